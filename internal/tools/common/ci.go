// Package common holds output helpers shared by the command line tools.
package common

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// CIResult is the machine-readable summary printed in --ci mode.
type CIResult struct {
	OK      bool     `json:"ok"`
	Title   string   `json:"title"`
	Details []string `json:"details,omitempty"`
	Error   string   `json:"error,omitempty"`
}

func NewCIResult(ok bool, title string, details []string, err error) CIResult {
	res := CIResult{OK: ok, Title: title, Details: details}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

func WriteCIResult(w io.Writer, res CIResult) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("encode ci result: %w", err)
	}
	return nil
}

// PrintCIResult writes one JSON line to stdout.
func PrintCIResult(ok bool, title string, details []string, err error) {
	_ = WriteCIResult(os.Stdout, NewCIResult(ok, title, details, err))
}
