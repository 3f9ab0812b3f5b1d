package wotconfig

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadStatic reads the static fallback configuration from a YAML file. An
// empty path yields Defaults.
func LoadStatic(path string) (Config, error) {
	if path == "" {
		return Defaults(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read wot config %s: %w", path, err)
	}
	return ParseStatic(data)
}

// ParseStatic decodes a YAML document. Unknown keys are rejected.
func ParseStatic(data []byte) (Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var c Config
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	if c.ConfigID == "" {
		c.ConfigID = DefaultConfigID
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return Merge(Defaults(), &c), nil
}
