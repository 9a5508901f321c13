package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProfileDocument is the on-disk form of a scoring profile.
//
//	version: it-2025.1
//	skills: [python, sql, kubernetes]
//	degreeTiers:
//	  - name: doctorate
//	    score: 1.0
//	    keywords: [phd]
type ProfileDocument struct {
	Version     string               `yaml:"version"`
	Skills      []string             `yaml:"skills"`
	DegreeTiers []DegreeTierDocument `yaml:"degreeTiers"`
}

// DegreeTierDocument is one degree tier inside a ProfileDocument.
type DegreeTierDocument struct {
	Name     string   `yaml:"name"`
	Score    float64  `yaml:"score"`
	Keywords []string `yaml:"keywords"`
}

// LoadProfileDocument reads and decodes a profile file. Unknown fields are
// rejected so that typos do not silently fall back to defaults.
func LoadProfileDocument(path string) (*ProfileDocument, error) {
	if err := validateProfilePath(path); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file %s: %w", path, err)
	}

	return ParseProfileDocument(content)
}

// ParseProfileDocument decodes a profile from YAML.
func ParseProfileDocument(content []byte) (*ProfileDocument, error) {
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)

	var doc ProfileDocument
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}

	if strings.TrimSpace(doc.Version) == "" {
		return nil, fmt.Errorf("profile version is required")
	}
	if len(doc.Skills) == 0 {
		return nil, fmt.Errorf("profile must list at least one skill")
	}
	return &doc, nil
}

func validateProfilePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("profile file path is empty")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
	default:
		return fmt.Errorf("profile file %s must be a .yaml or .yml file", path)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("profile file does not exist: %s", path)
		}
		return fmt.Errorf("cannot access profile file %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("profile path is a directory, not a file: %s", path)
	}
	return nil
}
