package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/onaryc/AmigaVision/internal/domain"
)

// JSONCodec handles JSON import/export of catalog entries
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// Parse imports entries from JSON
func (c *JSONCodec) Parse(r io.Reader) ([]domain.Entry, error) {
	var entries []domain.Entry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return entries, nil
}

// Export exports entries to JSON
func (c *JSONCodec) Export(entries []domain.Entry, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(entries); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
