package codec

import (
	"fmt"
	"io"

	"github.com/onaryc/AmigaVision/internal/domain"

	"gopkg.in/yaml.v3"
)

// YAMLCodec handles YAML import/export of catalog entries
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

type yamlDocument struct {
	Titles []domain.Entry `yaml:"titles"`
}

// Parse imports entries from YAML
func (c *YAMLCodec) Parse(r io.Reader) ([]domain.Entry, error) {
	var doc yamlDocument
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return doc.Titles, nil
}

// Export exports entries to YAML
func (c *YAMLCodec) Export(entries []domain.Entry, w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(&yamlDocument{Titles: entries}); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return nil
}
