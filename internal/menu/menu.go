// Package menu loads the navigation tree and filters it by member role.
//
// The tree ships as YAML. Filtering is pure: it never mutates the loaded
// tree, so one process can serve different roles from the same load.
package menu

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/flockhq/flock/internal/record"
)

// Item is one navigation entry. Items nest arbitrarily deep.
type Item struct {
	// ID is the stable key UI surfaces route on.
	ID string `yaml:"id"`

	// Label is the display text.
	Label string `yaml:"label"`

	// Roles lists the roles allowed to see this item. Empty means every
	// role, including pending members.
	Roles []record.Role `yaml:"roles,omitempty"`

	// Children are the nested entries under this item.
	Children []Item `yaml:"children,omitempty"`
}

// Load reads a menu tree from a YAML file.
func Load(path string) ([]Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read menu file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a menu tree from YAML bytes and validates it.
func Parse(data []byte) ([]Item, error) {
	var doc struct {
		Menu []Item `yaml:"menu"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse menu: %w", err)
	}
	if err := validate(doc.Menu, map[string]bool{}); err != nil {
		return nil, err
	}
	return doc.Menu, nil
}

func validate(items []Item, seen map[string]bool) error {
	for _, item := range items {
		if item.ID == "" {
			return fmt.Errorf("menu item %q has no id", item.Label)
		}
		if seen[item.ID] {
			return fmt.Errorf("duplicate menu id %q", item.ID)
		}
		seen[item.ID] = true
		for _, role := range item.Roles {
			if !role.Valid() {
				return fmt.Errorf("menu item %q has invalid role %q", item.ID, role)
			}
		}
		if err := validate(item.Children, seen); err != nil {
			return err
		}
	}
	return nil
}

// FilterByRole prunes the tree to the items the role may see. A parent
// visible to the role keeps only its visible children; a parent hidden
// from the role hides its whole subtree regardless of child rules.
func FilterByRole(items []Item, role record.Role) []Item {
	var out []Item
	for _, item := range items {
		if !allows(item.Roles, role) {
			continue
		}
		kept := item
		kept.Children = FilterByRole(item.Children, role)
		out = append(out, kept)
	}
	return out
}

func allows(roles []record.Role, role record.Role) bool {
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// Flatten returns the ids of every item in the tree, depth first. Handy
// for diffing what two roles can reach.
func Flatten(items []Item) []string {
	var ids []string
	for _, item := range items {
		ids = append(ids, item.ID)
		ids = append(ids, Flatten(item.Children)...)
	}
	return ids
}
