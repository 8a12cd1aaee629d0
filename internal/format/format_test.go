package format

import (
	"strings"
	"testing"
)

func TestJSONFormatterIndentsAndTerminates(t *testing.T) {
	payload := map[string]any{"category": "meme", "count": 3}

	var sb strings.Builder
	if err := (JSONFormatter{}).Write(&sb, payload); err != nil {
		t.Fatalf("write: %v", err)
	}

	out := sb.String()
	if !strings.HasSuffix(out, "\n") {
		t.Fatal("expected trailing newline")
	}
	if !strings.Contains(out, "\n  \"category\": \"meme\"") {
		t.Fatalf("expected indented fields, got %q", out)
	}
}
