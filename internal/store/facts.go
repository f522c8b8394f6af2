package store

import (
	"fmt"
	"os"
	"strings"
)

// LoadFacts reads the property facts file used to ground AI answers. A
// missing file is not an error; the brain just runs without static facts.
func LoadFacts(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: read facts %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}
