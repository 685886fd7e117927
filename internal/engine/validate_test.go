package engine

import (
	"errors"
	"strings"
	"testing"

	"github.com/law-makers/pricecrawl/internal/document"
)

func mustDoc(t *testing.T, html string, status int) *document.Document {
	t.Helper()
	doc, err := document.Parse("https://shop.example.com/p/1", html, nil)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	doc.StatusCode = status
	return doc
}

func TestBlockValidator(t *testing.T) {
	v := NewBlockValidator(200, "Pardon Our Interruption")
	filler := strings.Repeat("Genuine product copy. ", 20)

	tests := []struct {
		name   string
		html   string
		status int
		want   error
	}{
		{"ok", "<html><body><h1>Shoe</h1><p>" + filler + "</p></body></html>", 200, nil},
		{"short", "<html><body>tiny</body></html>", 200, ErrThinBody},
		{"status 429", "<html><body>" + filler + "</body></html>", 429, ErrBlocked},
		{"captcha title", "<html><head><title>Amazon CAPTCHA</title></head><body>" + filler + "</body></html>", 200, ErrBlocked},
		{"access denied text", "<html><body><h1>Access Denied</h1>" + filler + "</body></html>", 200, ErrBlocked},
		{"extra signature", "<html><body><h1>Pardon our interruption</h1>" + filler + "</body></html>", 200, ErrBlocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(mustDoc(t, tt.html, tt.status))
			if tt.want == nil {
				if err != nil {
					t.Errorf("Expected valid page, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestBlockValidator_GenericWordsInProductCopy(t *testing.T) {
	copyText := strings.Repeat("Stainless steel, rust proof and easy to clean. ", 40)
	v := NewBlockValidator(0, "Pardon Our Interruption")

	page := "<html><head><title>Kitchen Sink Strainer</title></head><body><h1>Kitchen Sink Strainer</h1>" +
		"<ul><li>Your sink never gets blocked again</li><li>No captcha-style fiddly clips</li></ul><p>" +
		copyText + "</p><div class=\"review\">Access denied to hair and food waste!</div></body></html>"
	if err := v.Validate(mustDoc(t, page, 200)); err != nil {
		t.Errorf("Expected product page to pass, got %v", err)
	}

	challenge := "<html><head><title>Shop</title></head><body><p>Your request has been blocked.</p>" +
		strings.Repeat("<!-- pad -->", 100) + "</body></html>"
	if err := v.Validate(mustDoc(t, challenge, 200)); !errors.Is(err, ErrBlocked) {
		t.Errorf("Expected small challenge page to be blocked, got %v", err)
	}

	phrase := "<html><body><h1>Shop</h1><p>" + copyText + "</p><p>Pardon our interruption while we check your browser</p></body></html>"
	if err := v.Validate(mustDoc(t, phrase, 200)); !errors.Is(err, ErrBlocked) {
		t.Errorf("Expected site phrase to match anywhere, got %v", err)
	}
}

func TestBlockValidator_SignatureInScriptIgnored(t *testing.T) {
	html := "<html><body><h1>Shoe</h1><p>" + strings.Repeat("copy ", 100) +
		"</p><script>var captchaEnabled = false;</script></body></html>"
	if err := NewBlockValidator(100).Validate(mustDoc(t, html, 200)); err != nil {
		t.Errorf("Expected scripts to be ignored, got %v", err)
	}
}

func TestBlockValidator_Shell(t *testing.T) {
	shell := `<html><head>` + strings.Repeat(`<script src="/static/chunk.js"></script>`, 8) +
		`<script id="__NEXT_DATA__" type="application/json">{}</script></head><body><div id="__next"></div>` +
		strings.Repeat("<!-- pad -->", 100) + `</body></html>`

	v := NewBlockValidator(100)
	if err := v.Validate(mustDoc(t, shell, 200)); err != nil {
		t.Errorf("Plain validator should accept shell, got %v", err)
	}

	err := v.Shell().Validate(mustDoc(t, shell, 200))
	if !errors.Is(err, ErrUnrendered) {
		t.Errorf("Expected ErrUnrendered, got %v", err)
	}
	if !strings.Contains(err.Error(), "Next.js") {
		t.Errorf("Expected framework in error, got %v", err)
	}
	if v.RejectShell {
		t.Error("Shell() must not modify the receiver")
	}
}

func TestDetectFramework(t *testing.T) {
	tests := []struct {
		html string
		want string
	}{
		{`<div data-reactroot></div>`, "React"},
		{`<app-root ng-version="17"></app-root>`, "Angular"},
		{`<div data-v-1a2b3c class="x"></div>`, "Vue"},
		{`<script id="__NEXT_DATA__"></script>`, "Next.js"},
		{`<html><body>plain</body></html>`, "Unknown"},
	}
	for _, tt := range tests {
		if got := DetectFramework(tt.html); got != tt.want {
			t.Errorf("DetectFramework(%q) = %s, want %s", tt.html, got, tt.want)
		}
	}
}
