package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const exampleHeader = `# CARD:Live dashboard configuration.
#
# Copy this file to ` + FileName + ` in the same directory and edit it.
# Every key is optional; the values below are the defaults.
# Environment variables CARDLIVE_<KEY> (upper case) override the file.
`

// Manager writes and reads configuration in a home's config directory.
type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) WriteExample(dir string) error {
	raw, err := ExampleYAML()
	if err != nil {
		return err
	}
	path := filepath.Join(dir, ExampleFileName)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write example config: %w", err)
	}
	return nil
}

func (m *Manager) Load(dir string) (Config, error) {
	return Load(dir)
}

func ExampleYAML() ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(exampleHeader)
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(Default()); err != nil {
		return nil, fmt.Errorf("marshal example config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("marshal example config: %w", err)
	}
	return b.Bytes(), nil
}
