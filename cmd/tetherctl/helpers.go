package main

import (
	"fmt"
	"io"

	json "github.com/goccy/go-json"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printData pretty-prints a JSON reply body, falling back to the raw
// bytes when they do not re-encode.
func printData(w io.Writer, data json.RawMessage) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		_, _ = fmt.Fprintf(w, "%s\n", data)
		return
	}
	if err := writeJSON(w, v); err != nil {
		_, _ = fmt.Fprintf(w, "%s\n", data)
	}
}
