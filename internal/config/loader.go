package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads a tickwatch manifest from the provided path. The build path is
// resolved relative to the manifest's directory and environment variables in
// it are expanded.
func Load(path string) (*Manifest, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve manifest path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", absPath, err)
	}
	if err := validateAgainstSchema(raw); err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}

	var doc Manifest
	if err := strictUnmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", absPath, err)
	}

	doc.Watcher.BuildPath = resolveBuildPath(filepath.Dir(absPath), os.ExpandEnv(doc.Watcher.BuildPath))

	doc.ApplyDefaults()
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	return &doc, nil
}

func strictUnmarshal(data []byte, doc *Manifest) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	return decoder.Decode(doc)
}

func resolveBuildPath(base, buildPath string) string {
	if buildPath == "" {
		return buildPath
	}
	if filepath.IsAbs(buildPath) {
		return filepath.Clean(buildPath)
	}
	return filepath.Clean(filepath.Join(base, buildPath))
}
