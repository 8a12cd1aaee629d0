// Package format renders command output. File records, sync reports,
// and stats all pass through a Formatter, so the --json flag swaps the
// rendering without touching command code.
package format

import (
	"encoding/json"
	"io"
)

// Formatter renders one command payload to a writer.
type Formatter interface {
	Write(w io.Writer, payload any) error
}

// JSONFormatter renders payloads as indented JSON, one document per
// call, with a trailing newline.
type JSONFormatter struct{}

func (f JSONFormatter) Write(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
