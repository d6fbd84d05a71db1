package rules

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON []byte

var schemaLoader = gojsonschema.NewBytesLoader(schemaJSON)

// Load reads, validates, and compiles the rules file at path.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: read %q: %w", path, err)
	}
	doc, err := Parse(data, isYAML(path))
	if err != nil {
		return nil, fmt.Errorf("rules: %q: %w", path, err)
	}
	return CompileDocument(*doc), nil
}

// LoadOrEmpty is Load that logs failures and returns an empty Set instead.
// An empty path means no rules file is configured.
func LoadOrEmpty(path string) *Set {
	if path == "" {
		return &Set{}
	}
	set, err := Load(path)
	if err != nil {
		slog.Warn("rules: continuing without declared rules", "path", path, "err", err)
		return &Set{}
	}
	slog.Info("rules: loaded", "path", path, "rules", len(set.Rules),
		"event_patterns", len(set.EventPatterns), "file_patterns", len(set.FilePatterns))
	return set
}

// Parse decodes a rules document, converting YAML to JSON first so that both
// formats are checked against the same schema.
func Parse(data []byte, fromYAML bool) (*Document, error) {
	if fromYAML {
		var v interface{}
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		if v == nil {
			v = map[string]interface{}{}
		}
		js, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("convert yaml: %w", err)
		}
		data = js
	}

	if err := Validate(data); err != nil {
		return nil, err
	}

	var doc Document
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return &doc, nil
}

// Validate checks a JSON rules document against the embedded schema.
func Validate(data []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}
	issues := make([]string, 0, len(result.Errors()))
	for _, issue := range result.Errors() {
		issues = append(issues, issue.String())
	}
	return fmt.Errorf("failed schema validation: %s", strings.Join(issues, "; "))
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
