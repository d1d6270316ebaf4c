package seed

import (
	"context"
	_ "embed"
	"fmt"

	"yatube/internal/models"
	"yatube/internal/repository"
	"yatube/internal/validation"

	"gopkg.in/yaml.v3"
)

//go:embed data/groups.yml
var builtInGroupsYAML []byte

// BuiltInGroup is a community every environment starts with.
type BuiltInGroup struct {
	Slug        string `yaml:"slug"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

// ParseGroups decodes a YAML list of groups. Every entry needs a slug and a title.
func ParseGroups(raw []byte) ([]BuiltInGroup, error) {
	var groups []BuiltInGroup
	if err := yaml.Unmarshal(raw, &groups); err != nil {
		return nil, fmt.Errorf("parse groups: %w", err)
	}
	seen := make(map[string]bool, len(groups))
	for i, g := range groups {
		if g.Slug == "" || g.Title == "" {
			return nil, fmt.Errorf("group #%d: slug and title are required", i+1)
		}
		if err := validation.ValidateGroupSlug(g.Slug); err != nil {
			return nil, fmt.Errorf("group %q: %w", g.Slug, err)
		}
		if seen[g.Slug] {
			return nil, fmt.Errorf("group %q listed twice", g.Slug)
		}
		seen[g.Slug] = true
	}
	return groups, nil
}

// BuiltInGroups returns the embedded group list.
func BuiltInGroups() ([]BuiltInGroup, error) {
	return ParseGroups(builtInGroupsYAML)
}

// Groups upserts the built-in groups by slug. Running it twice leaves one row per slug.
func Groups(ctx context.Context, repo repository.GroupRepository) ([]models.Group, error) {
	builtIn, err := BuiltInGroups()
	if err != nil {
		return nil, err
	}

	groups := make([]models.Group, 0, len(builtIn))
	for _, g := range builtIn {
		group := models.Group{Slug: g.Slug, Title: g.Title, Description: g.Description}
		if err := repo.Upsert(ctx, &group); err != nil {
			return nil, fmt.Errorf("upsert group %s: %w", g.Slug, err)
		}
		groups = append(groups, group)
	}
	return groups, nil
}
