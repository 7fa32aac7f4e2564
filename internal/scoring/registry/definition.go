package registry

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Definition is the on-disk shape of a registry artifact.
type Definition struct {
	Version string      `yaml:"version"`
	Pillars []PillarDef `yaml:"pillars"`
}

type PillarDef struct {
	ID         string        `yaml:"id"`
	Label      string        `yaml:"label"`
	Categories []CategoryDef `yaml:"categories"`
}

type CategoryDef struct {
	ID      string      `yaml:"id"`
	Label   string      `yaml:"label"`
	Factors []FactorDef `yaml:"factors"`
}

type FactorDef struct {
	Key   string  `yaml:"key"`
	Label string  `yaml:"label"`
	Max   float64 `yaml:"max"`
}

//go:embed default.yaml
var defaultArtifact []byte

// Parse decodes a YAML artifact and builds a Registry from it.
func Parse(data []byte) (*Registry, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("decode registry artifact: %w", err)
	}
	return New(def)
}

// Load reads an artifact from path. An empty path yields the embedded default.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry artifact: %w", err)
	}
	return Parse(data)
}

// Default builds the registry shipped with the binary.
func Default() (*Registry, error) {
	return Parse(defaultArtifact)
}
