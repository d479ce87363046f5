package authz

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

type catalogNode struct {
	Key         string        `yaml:"key"`
	Name        string        `yaml:"name"`
	Category    string        `yaml:"category"`
	Description string        `yaml:"description"`
	Children    []catalogNode `yaml:"children"`
	Expand      *catalogGen   `yaml:"expand"`
}

type catalogGen struct {
	Prefix   string   `yaml:"prefix"`
	Category string   `yaml:"category"`
	Name     string   `yaml:"name"`
	Items    []string `yaml:"items"`
	Limit    int      `yaml:"limit"`
}

// CatalogEntry is one permission in seeding order; parents always come first.
type CatalogEntry struct {
	Key         string
	Name        string
	ParentKey   string
	Category    string
	Level       int
	Description string
}

// Catalog returns the flattened built-in permission tree.
func Catalog() ([]CatalogEntry, error) {
	return parseCatalog(catalogYAML)
}

func parseCatalog(data []byte) ([]CatalogEntry, error) {
	var roots []catalogNode
	if err := yaml.Unmarshal(data, &roots); err != nil {
		return nil, fmt.Errorf("parse permission catalog: %w", err)
	}
	var out []CatalogEntry
	seen := map[string]bool{}
	var walk func(n catalogNode, parent string, level int) error
	walk = func(n catalogNode, parent string, level int) error {
		if n.Key == "" {
			return fmt.Errorf("permission catalog: empty key under %q", parent)
		}
		if seen[n.Key] {
			return fmt.Errorf("permission catalog: duplicate key %q", n.Key)
		}
		seen[n.Key] = true
		out = append(out, CatalogEntry{
			Key:         n.Key,
			Name:        n.Name,
			ParentKey:   parent,
			Category:    n.Category,
			Level:       level,
			Description: n.Description,
		})
		for _, c := range n.Children {
			if err := walk(c, n.Key, level+1); err != nil {
				return err
			}
		}
		if g := n.Expand; g != nil {
			items := g.Items
			if g.Limit > 0 && g.Limit < len(items) {
				items = items[:g.Limit]
			}
			for _, item := range items {
				child := catalogNode{
					Key:      g.Prefix + item,
					Name:     strings.ReplaceAll(g.Name, "{title}", Title(item)),
					Category: g.Category,
				}
				if err := walk(child, n.Key, level+1); err != nil {
					return err
				}
			}
		}
		return nil
	}
	for _, r := range roots {
		if err := walk(r, "", 0); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Title turns snake_case into "Snake Case".
func Title(s string) string {
	parts := strings.Split(s, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
