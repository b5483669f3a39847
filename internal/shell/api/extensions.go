package api

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed extensions.yaml
var extensionsYAML []byte

// MsgExtensionNotFound is returned for unknown extension aliases.
const MsgExtensionNotFound = "No extension exists with given alias."

// Extension describes one advertised API extension.
type Extension struct {
	Alias       string   `yaml:"alias" json:"alias"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Namespace   string   `yaml:"namespace" json:"namespace"`
	Updated     string   `yaml:"updated" json:"updated"`
	Links       []string `yaml:"links" json:"links"`
}

// ExtensionCatalog is the static, ordered set of extensions.
type ExtensionCatalog struct {
	list    []Extension
	byAlias map[string]Extension
}

// LoadExtensions parses an extension catalog document.
func LoadExtensions(data []byte) (*ExtensionCatalog, error) {
	var list []Extension
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse extensions: %w", err)
	}

	c := &ExtensionCatalog{list: make([]Extension, 0, len(list)), byAlias: make(map[string]Extension, len(list))}
	for _, ext := range list {
		if ext.Alias == "" {
			return nil, fmt.Errorf("parse extensions: entry %q has no alias", ext.Name)
		}
		if _, dup := c.byAlias[ext.Alias]; dup {
			return nil, fmt.Errorf("parse extensions: duplicate alias %q", ext.Alias)
		}
		if ext.Links == nil {
			ext.Links = []string{}
		}
		c.list = append(c.list, ext)
		c.byAlias[ext.Alias] = ext
	}
	return c, nil
}

// DefaultExtensions returns the embedded catalog.
func DefaultExtensions() *ExtensionCatalog {
	c, err := LoadExtensions(extensionsYAML)
	if err != nil {
		panic(err)
	}
	return c
}

// All returns every extension in catalog order.
func (c *ExtensionCatalog) All() []Extension {
	return append([]Extension(nil), c.list...)
}

// Get looks up an extension by alias.
func (c *ExtensionCatalog) Get(alias string) (Extension, bool) {
	ext, ok := c.byAlias[alias]
	return ext, ok
}
