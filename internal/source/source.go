// Package source loads the list of cities to harvest.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/JakeFAU/hotel-harvester/internal/harvest"
)

// DefaultIDField is the object key holding the city code.
const DefaultIDField = "code"

// Record is one object of the source list. Fields other than the identifier
// (name, country, ...) are kept for the post-run merge.
type Record map[string]any

// Identifier extracts the work item stored under field. Missing fields,
// non-string values and blank strings yield harvest.ErrValidation.
func (r Record) Identifier(field string) (harvest.WorkItem, error) {
	raw, ok := r[field]
	if !ok {
		return "", fmt.Errorf("field %q missing: %w", field, harvest.ErrValidation)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("field %q is %T, not a string: %w", field, raw, harvest.ErrValidation)
	}
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("field %q is empty: %w", field, harvest.ErrValidation)
	}
	return harvest.WorkItem(s), nil
}

// String returns the string value of field, or "" when absent or not a string.
func (r Record) String(field string) string {
	s, _ := r[field].(string)
	return s
}

// File reads a JSON array of objects from disk.
type File struct {
	path string
}

// NewFile returns a loader for path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Load reads and decodes the whole list. Elements that are not JSON objects
// are kept as empty records so they surface as validation failures.
func (f *File) Load(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("load canceled: %w", err)
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read source %s: %w", f.path, err)
	}
	return Decode(data)
}

// Decode parses a JSON array of objects.
func Decode(data []byte) ([]Record, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode source list: %w", err)
	}
	records := make([]Record, 0, len(raw))
	for _, elem := range raw {
		var rec Record
		if err := json.Unmarshal(elem, &rec); err != nil || rec == nil {
			rec = Record{}
		}
		records = append(records, rec)
	}
	return records, nil
}
