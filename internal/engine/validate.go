package engine

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/law-makers/pricecrawl/internal/document"
)

// DefaultBlockWords are short, generic markers of a block or challenge page.
// Product copy and reviews use them too, so they are matched against the
// title and main heading, and against the whole text only on small pages.
var DefaultBlockWords = []string{
	"access denied",
	"blocked",
	"captcha",
	"robot check",
	"are you a robot",
}

// DefaultBlockSignatures are lower-case phrases that mark a challenge page
// wherever they appear in the visible text.
var DefaultBlockSignatures = []string{
	"unusual traffic from your computer network",
	"enter the characters you see below",
	"verify you are human",
	"request unsuccessful",
}

// DefaultMinBodyLength is the smallest markup accepted as a real page
const DefaultMinBodyLength = 1000

// challengeText is the visible-text size up to which generic block words are
// looked for in the whole page
const challengeText = 1500

// Validator decides whether an acquired document is usable
type Validator interface {
	Validate(doc *document.Document) error
}

// ValidatorFunc adapts a function to Validator
type ValidatorFunc func(doc *document.Document) error

// Validate implements Validator
func (f ValidatorFunc) Validate(doc *document.Document) error {
	return f(doc)
}

// BlockValidator rejects short bodies, blocking status codes and pages
// carrying a known challenge signature.
type BlockValidator struct {
	MinBodyLength int
	// Words only match the title, the main heading or a small page
	Words []string
	// Signatures match anywhere in the visible text
	Signatures    []string
	BlockStatuses []int
	// RejectShell fails pages that are an unrendered SPA shell. Only useful
	// for strategies that do not run JavaScript.
	RejectShell bool
}

// NewBlockValidator returns a validator with the default signatures plus extra
func NewBlockValidator(minBody int, extra ...string) *BlockValidator {
	if minBody <= 0 {
		minBody = DefaultMinBodyLength
	}
	sigs := append([]string(nil), DefaultBlockSignatures...)
	for _, s := range extra {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			sigs = append(sigs, s)
		}
	}
	return &BlockValidator{
		MinBodyLength: minBody,
		Words:         append([]string(nil), DefaultBlockWords...),
		Signatures:    sigs,
		BlockStatuses: []int{http.StatusForbidden, http.StatusTooManyRequests, http.StatusServiceUnavailable},
	}
}

// Shell returns a copy of v that also rejects unrendered SPA shells
func (v *BlockValidator) Shell() *BlockValidator {
	c := *v
	c.RejectShell = true
	return &c
}

// Validate implements Validator
func (v *BlockValidator) Validate(doc *document.Document) error {
	if doc == nil {
		return fmt.Errorf("%w: no document", ErrThinBody)
	}

	for _, code := range v.BlockStatuses {
		if doc.StatusCode == code {
			return fmt.Errorf("%w: HTTP %d", ErrBlocked, code)
		}
	}

	if len(doc.HTML) < v.MinBodyLength {
		return fmt.Errorf("%w: %d < %d bytes", ErrThinBody, len(doc.HTML), v.MinBodyLength)
	}

	text := strings.ToLower(doc.Text())
	if sig := firstMatch(text, v.Signatures); sig != "" {
		return fmt.Errorf("%w: matched %q", ErrBlocked, sig)
	}

	head := strings.ToLower(pageTitle(doc) + " " + mainHeading(doc))
	if len(text) <= challengeText {
		head += " " + text
	}
	if word := firstMatch(head, v.Words); word != "" {
		return fmt.Errorf("%w: matched %q", ErrBlocked, word)
	}

	if v.RejectShell && NeedsRendering(doc) {
		return fmt.Errorf("%w: %s shell", ErrUnrendered, DetectFramework(doc.HTML))
	}
	return nil
}

func firstMatch(haystack string, needles []string) string {
	for _, n := range needles {
		if n != "" && strings.Contains(haystack, n) {
			return n
		}
	}
	return ""
}

func pageTitle(doc *document.Document) string {
	if doc.Root == nil {
		return ""
	}
	return doc.Root.Find("title").First().Text()
}

func mainHeading(doc *document.Document) string {
	if doc.Root == nil {
		return ""
	}
	return doc.Root.Find("h1").First().Text()
}

// DetectFramework names the client-side framework a page was built with
func DetectFramework(html string) string {
	html = strings.ToLower(html)

	switch {
	case strings.Contains(html, "__next_data__"):
		return "Next.js"
	case strings.Contains(html, "__nuxt"):
		return "Nuxt"
	case strings.Contains(html, "data-reactroot"), strings.Contains(html, "react-dom"):
		return "React"
	case strings.Contains(html, "ng-version"), strings.Contains(html, "ng-app"):
		return "Angular"
	case strings.Contains(html, "data-v-"), strings.Contains(html, "vue.runtime"):
		return "Vue"
	case strings.Contains(html, "svelte"):
		return "Svelte"
	}
	return "Unknown"
}

// shellText is the visible-text size below which a script-heavy page is
// treated as not yet rendered
const shellText = 200

// NeedsRendering reports whether doc looks like a client-side app that has
// not been rendered: an empty mount node, or almost no text behind many scripts.
func NeedsRendering(doc *document.Document) bool {
	if doc.Root == nil {
		return false
	}

	mount := doc.Root.Find("#root, #app, #__next, #__nuxt, [ng-app], [data-reactroot]")
	if mount.Length() > 0 && strings.TrimSpace(mount.First().Text()) == "" && mount.First().Children().Length() == 0 {
		return true
	}

	scripts := doc.Root.Find("script").Length()
	return len(doc.Text()) < shellText && scripts > 5
}
