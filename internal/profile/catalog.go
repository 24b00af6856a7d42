package profile

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// Kind classifies a top-level document key.
type Kind int

const (
	KindAttribute Kind = iota
	KindControl
	KindControlSection
	KindApplicationGroup
	KindStage
	KindIdentity
)

// Catalog knows which top-level keys carry control fields and application
// groups. Every other key is an opaque attribute.
type Catalog struct {
	kinds map[string]Kind
}

type catalogFile struct {
	Version           int      `yaml:"version"`
	Controls          []string `yaml:"controls"`
	ControlSections   []string `yaml:"controlSections"`
	ApplicationGroups []string `yaml:"applicationGroups"`
}

// DefaultCatalog returns the catalog compiled into the binary.
func DefaultCatalog() *Catalog {
	catalog, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("profile: embedded catalog: %v", err))
	}
	return catalog
}

// LoadCatalog reads a catalog file, or returns the embedded default when path
// is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultCatalog(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read field catalog: %w", err)
	}
	return ParseCatalog(b)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var cf catalogFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse field catalog: %w", err)
	}
	if cf.Version != 1 {
		return nil, errors.New("field catalog: unsupported version")
	}

	c := &Catalog{kinds: map[string]Kind{
		KeyUserID:         KindIdentity,
		KeyLastSavedStage: KindStage,
	}}
	add := func(names []string, kind Kind) error {
		for _, name := range names {
			name = strings.TrimSpace(name)
			if name == "" {
				return errors.New("field catalog: empty key")
			}
			if _, exists := c.kinds[name]; exists {
				return fmt.Errorf("field catalog: key %q listed twice or reserved", name)
			}
			c.kinds[name] = kind
		}
		return nil
	}
	if err := add(cf.Controls, KindControl); err != nil {
		return nil, err
	}
	if err := add(cf.ControlSections, KindControlSection); err != nil {
		return nil, err
	}
	if err := add(cf.ApplicationGroups, KindApplicationGroup); err != nil {
		return nil, err
	}
	return c, nil
}

// Classify reports how the value under key must be normalized.
func (c *Catalog) Classify(key string) Kind {
	if kind, ok := c.kinds[key]; ok {
		return kind
	}
	return KindAttribute
}
