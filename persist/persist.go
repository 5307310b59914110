// Package persist provides gob-based snapshot save/load for the in-memory
// index backends.
package persist

import (
	"encoding/gob"
	"fmt"
	"os"
)

// Save gob-encodes v into the file at path, replacing any previous content.
func Save(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("persist save: %w", err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(v); err != nil {
		return fmt.Errorf("persist save: %w", err)
	}
	return nil
}

// Load gob-decodes the file at path into v.
func Load(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("persist load: %w", err)
	}
	defer f.Close()

	if err := gob.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("persist load: %w", err)
	}
	return nil
}
