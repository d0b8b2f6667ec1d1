package engine

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"
)

// LoadJSON reads an engine config from a JSON reader. Zero-valued sections
// are filled from DefaultConfig.
func LoadJSON(r io.Reader) (*Config, error) {
	c := DefaultConfig()
	dec := json.NewDecoder(r)
	if err := dec.Decode(&c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadYAML reads an engine config from a YAML reader.
func LoadYAML(r io.Reader) (*Config, error) {
	c := DefaultConfig()
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
