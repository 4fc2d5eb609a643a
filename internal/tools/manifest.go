package tools

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sigs.k8s.io/yaml"
)

//go:embed tools.yaml
var defaultManifest []byte

// Declaration is a tool as declared in the manifest.
type Declaration struct {
	Name        string          `json:"name"`
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Manifest lists tool declarations.
type Manifest struct {
	Tools []Declaration `json:"tools"`
}

// DefaultManifest returns the built-in declarations.
func DefaultManifest() (*Manifest, error) {
	return ParseManifest(defaultManifest)
}

// LoadManifest reads a YAML or JSON manifest from disk. An empty path yields the default manifest.
func LoadManifest(path string) (*Manifest, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultManifest()
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read tool manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes manifest bytes and checks declarations are well formed.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse tool manifest: %w", err)
	}
	if len(m.Tools) == 0 {
		return nil, errors.New("tool manifest declares no tools")
	}
	seen := make(map[string]struct{}, len(m.Tools))
	for i, decl := range m.Tools {
		if decl.Name == "" {
			return nil, fmt.Errorf("tool #%d missing name", i)
		}
		if _, dup := seen[decl.Name]; dup {
			return nil, fmt.Errorf("tool %q declared twice", decl.Name)
		}
		seen[decl.Name] = struct{}{}
		if len(decl.InputSchema) == 0 || string(decl.InputSchema) == "null" {
			m.Tools[i].InputSchema = json.RawMessage(`{"type":"object"}`)
		}
	}
	return &m, nil
}
