// Package openapi embeds the relay's API description.
package openapi

import (
	_ "embed"
	"sync"

	"sigs.k8s.io/yaml"
)

//go:embed spec.yaml
var specYAML []byte

var (
	jsonOnce sync.Once
	jsonDoc  []byte
	jsonErr  error
)

// JSON returns the document converted to JSON. The conversion runs once.
func JSON() ([]byte, error) {
	jsonOnce.Do(func() {
		jsonDoc, jsonErr = yaml.YAMLToJSON(specYAML)
	})
	return jsonDoc, jsonErr
}

// YAML returns the embedded document.
func YAML() []byte {
	return specYAML
}

// Paths lists the routes the document describes.
func Paths() ([]string, error) {
	var doc struct {
		Paths map[string]interface{} `json:"paths"`
	}
	if err := yaml.Unmarshal(specYAML, &doc); err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(doc.Paths))
	for p := range doc.Paths {
		paths = append(paths, p)
	}
	return paths, nil
}
