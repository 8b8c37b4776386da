// Package iojson provides small helpers for reading and writing JSON
// files and JSON-lines journals.
package iojson

import (
	"encoding/json"
	"fmt"
	"os"
)

// ReadFile decodes the JSON document at path into T.
func ReadFile[T any](path string) (T, error) {
	var out T

	data, err := os.ReadFile(path)
	if err != nil {
		return out, fmt.Errorf("read %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode JSON %s: %w", path, err)
	}
	return out, nil
}

// WriteFile writes obj as indented JSON to path.
func WriteFile(path string, obj any) error {
	data, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// AppendLine appends obj as a single JSON line to the journal at path,
// creating the file if needed. Journal files are append-only.
func AppendLine(path string, obj any) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("encode JSON line: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append JSON line: %w", err)
	}
	return nil
}
