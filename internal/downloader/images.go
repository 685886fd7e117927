package downloader

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/law-makers/pricecrawl/internal/extract"
	"github.com/law-makers/pricecrawl/pkg/models"
)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// ImageJobs turns a record's images into jobs named <slug>-NN<ext>, where the
// slug comes from the title.
func ImageJobs(rec *models.ProductRecord) []Job {
	v, ok := rec.Get(extract.FieldImages)
	if !ok {
		return nil
	}

	var urls []string
	switch imgs := v.(type) {
	case []string:
		urls = imgs
	case []any:
		for _, i := range imgs {
			if s, ok := i.(string); ok {
				urls = append(urls, s)
			}
		}
	}

	title, _ := rec.String(extract.FieldTitle)
	slug := Slug(title)
	if slug == "" {
		slug = "image"
	}

	jobs := make([]Job, 0, len(urls))
	for i, u := range urls {
		ext := strings.ToLower(path.Ext(strings.SplitN(u, "?", 2)[0]))
		if len(ext) > 5 {
			ext = ""
		}
		jobs = append(jobs, Job{URL: u, Filename: fmt.Sprintf("%s-%02d%s", slug, i+1, ext)})
	}
	return jobs
}

// Slug lowercases s and joins its words with dashes, capped at 60 bytes
func Slug(s string) string {
	s = strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if len(s) > 60 {
		s = strings.TrimRight(s[:60], "-")
	}
	return s
}
