package headers

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	in := []string{"user-agent: Bot", "Accept: text/html", "X-Empty:", "Referer: https://www.flipkart.com/"}
	out, err := Parse(in)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	expected := map[string]string{
		"User-Agent": "Bot",
		"Accept":     "text/html",
		"X-Empty":    "",
		"Referer":    "https://www.flipkart.com/",
	}
	if !reflect.DeepEqual(out, expected) {
		t.Fatalf("unexpected parse result: %#v", out)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, bad := range []string{"BadHeader", ": value", "Bad Key: v"} {
		if _, err := Parse([]string{bad}); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
