package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/giygas/nhi-hospitals/logging"
)

// EncodeResult returns the indented JSON document for a result
func EncodeResult(result *Result) ([]byte, error) {
	var sb strings.Builder
	enc := json.NewEncoder(&sb)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return nil, fmt.Errorf("failed to encode classification result: %w", err)
	}
	return []byte(sb.String()), nil
}

// WriteResultJSON writes the region/city/hospital document to path
func WriteResultJSON(path string, result *Result) error {
	data, err := EncodeResult(result)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	logging.Debug("Classification result written", "path", path, "bytes", len(data))
	return nil
}

// WriteUnclassified writes one hospital name per line, sorted.
// With no names the file is removed instead.
func WriteUnclassified(path string, names []string) error {
	if len(names) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
		return nil
	}

	sorted := slices.Sorted(slices.Values(names))

	var sb strings.Builder
	for _, name := range sorted {
		sb.WriteString(name)
		sb.WriteByte('\n')
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	logging.Debug("Unclassified list written", "path", path, "count", len(sorted))
	return nil
}
