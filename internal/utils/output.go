package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// OutputJSON prints data as indented JSON on stdout. Used by the --json
// flags so event listings can be piped into scripts.
func OutputJSON(data interface{}) error {
	return FprintJSON(os.Stdout, data)
}

// FprintJSON writes data as indented JSON followed by a newline.
func FprintJSON(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return nil
}
