package engine

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadInput reads a household input file.
func LoadInput(path string) (Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Input{}, fmt.Errorf("read household input: %w", err)
	}
	return ParseInput(data)
}

// ParseInput decodes a YAML household input. Unknown keys are rejected so
// typos do not silently fall back to zero values.
func ParseInput(data []byte) (Input, error) {
	var in Input
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&in); err != nil {
		return Input{}, fmt.Errorf("parse household input: %w", err)
	}
	return in, nil
}
