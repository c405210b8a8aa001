// Package sources loads the static source registry: the per-section
// configuration mapping sections to feed sources, topic patterns, and
// extraction mode. The registry is read once at process start and is
// immutable during a run.
package sources

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/zombar/trendwire/models"
)

// Extraction modes per section.
const (
	ModeEntities = "entities" // known-entity matching plus candidate discovery
	ModeTopics   = "topics"   // per-section regex topic tagging
)

// Group is one node of the source tree: a leaf holding feed sources,
// a set of named child groups, or both. The tagged shape replaces
// runtime duck-typing of nested source maps.
type Group struct {
	Primary  []models.Source  `yaml:"primary,omitempty"`
	Children map[string]Group `yaml:"children,omitempty"`
}

// Section is a top-level registry entry: presentation metadata, the
// extraction mode, topic patterns for topic-mode sections, and the
// source group tree.
type Section struct {
	Title  string   `yaml:"title,omitempty"`
	Mode   string   `yaml:"mode,omitempty"`
	Topics []string `yaml:"topics,omitempty"`
	Group  `yaml:",inline"`
}

// Registry is the full parsed source configuration.
type Registry struct {
	Sections map[string]Section `yaml:"sections"`
}

// Load reads and validates a YAML source registry.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading source registry %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML source registry from raw bytes.
func Parse(data []byte) (*Registry, error) {
	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parsing source registry: %w", err)
	}
	if len(reg.Sections) == 0 {
		return nil, fmt.Errorf("source registry has no sections")
	}
	for name, section := range reg.Sections {
		if section.Mode != "" && section.Mode != ModeEntities && section.Mode != ModeTopics {
			return nil, fmt.Errorf("section %s: unknown mode %q", name, section.Mode)
		}
		for _, src := range flattenGroup(section.Group, name) {
			if src.URL == "" {
				return nil, fmt.Errorf("section %s: source %q has no url", name, src.Name)
			}
		}
	}
	return &reg, nil
}

// Flatten walks every section's group tree and returns all sources with
// dotted category paths (e.g. "celebrities.hollywood"). Sections and
// children are visited in sorted name order so the result is stable.
func (r *Registry) Flatten() []models.Source {
	var out []models.Source
	for _, name := range sortedKeys(r.Sections) {
		out = append(out, flattenGroup(r.Sections[name].Group, name)...)
	}
	return out
}

// SectionNames returns the top-level section names in sorted order.
func (r *Registry) SectionNames() []string {
	return sortedKeys(r.Sections)
}

// SectionFor maps a flattened category path back to its top-level
// section. The path's first dotted component is the section name.
func (r *Registry) SectionFor(category string) (string, Section, bool) {
	name := category
	for i := 0; i < len(category); i++ {
		if category[i] == '.' {
			name = category[:i]
			break
		}
	}
	section, ok := r.Sections[name]
	return name, section, ok
}

func flattenGroup(g Group, prefix string) []models.Source {
	var out []models.Source
	for _, src := range g.Primary {
		src.Category = prefix
		out = append(out, src)
	}
	for _, name := range sortedKeys(g.Children) {
		out = append(out, flattenGroup(g.Children[name], prefix+"."+name)...)
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
