package normalize

import (
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// CleanHTML strips scripts, styles, form controls and every attribute except
// link and image targets from a product description fragment.
func CleanHTML(fragment string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, link, meta, noscript, iframe, svg, form, input, button, select, textarea, canvas").Remove()

	doc.Find("*").Each(func(i int, s *goquery.Selection) {
		for _, node := range s.Nodes {
			var kept []html.Attribute
			for _, attr := range node.Attr {
				switch {
				case node.Data == "a" && attr.Key == "href",
					node.Data == "img" && (attr.Key == "src" || attr.Key == "alt"):
					kept = append(kept, attr)
				}
			}
			node.Attr = kept
		}
	})

	body, err := doc.Find("body").Html()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(body), nil
}

// Markdown converts a description fragment to GitHub-flavoured markdown.
// Links are resolved against origin when it is set.
func Markdown(fragment, origin string) (string, error) {
	cleaned, err := CleanHTML(fragment)
	if err != nil {
		return "", err
	}

	converter := md.NewConverter(hostOf(origin), true, nil)
	converter.Use(plugin.GitHubFlavored())

	out, err := converter.ConvertString(cleaned)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func hostOf(origin string) string {
	origin = strings.TrimPrefix(origin, "https://")
	return strings.TrimPrefix(origin, "http://")
}
