// Package output renders lookup results as JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is an output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts "json", "yaml" or "yml" in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported output format %q", s)
	}
}

// Marshal encodes v in the given format.
func Marshal(format Format, v any) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return append(data, '\n'), nil
	case FormatYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal YAML: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

// Write encodes v to w.
func Write(w io.Writer, format Format, v any) error {
	data, err := Marshal(format, v)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// WriteFile writes v to filePath unless it already exists and overwrite is
// false. It reports whether the file was written.
func WriteFile(filePath string, format Format, v any, overwrite bool) (bool, error) {
	if info, err := os.Stat(filePath); err == nil && !info.IsDir() && !overwrite {
		slog.Info("Output file already exists, skipping", "filename", filePath)
		return false, nil
	}

	data, err := Marshal(format, v)
	if err != nil {
		return false, err
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return false, fmt.Errorf("failed to create directory: %w", err)
	}

	slog.Info("Writing output file", "filename", filePath, "format", format)
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return false, fmt.Errorf("failed to write output file: %w", err)
	}
	return true, nil
}
