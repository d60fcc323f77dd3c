// Package catalog defines the read-only category catalog contributed by the
// service-category authoring system: per-category label taxonomies and the
// AI behavior rules keyed to them.
package catalog

import (
	"fmt"
	"strings"
)

// CategoryID uniquely identifies a category within the catalog
type CategoryID string

func (id CategoryID) String() string { return string(id) }

// LabelNode is one node of a category's ordered label taxonomy. The intent
// key is the stable identity of what the label means; display names are
// presentation only and may collide across categories.
type LabelNode struct {
	IntentKey   string      `json:"intentKey"`
	DisplayName string      `json:"displayName"`
	Children    []LabelNode `json:"children,omitempty"`
}

// ClassificationRule routes matched keywords/intents to a label path
type ClassificationRule struct {
	IntentKey string   `json:"intentKey"`
	Keywords  []string `json:"keywords"`
	LabelPath []string `json:"labelPath"`
}

// ResponseRule describes how replies for an intent are drafted. A non-empty
// ScopeEntity pins the rule to a named sub-entity (a particular supplier,
// manager, ...) and makes it more specific than a generic rule.
type ResponseRule struct {
	IntentKey   string `json:"intentKey"`
	Tone        string `json:"tone"`
	Template    string `json:"template"`
	ScopeEntity string `json:"scopeEntity,omitempty"`
}

// IsScoped reports whether the rule targets a named sub-entity
func (r ResponseRule) IsScoped() bool {
	return strings.TrimSpace(r.ScopeEntity) != ""
}

// RuleSet groups a category's behavior rules
type RuleSet struct {
	Classification []ClassificationRule `json:"classification"`
	Response       []ResponseRule       `json:"response"`
}

// CategoryDefinition is one service category's complete contribution: its
// label taxonomy plus the behavior rules keyed by intent key.
type CategoryDefinition struct {
	ID          CategoryID  `json:"categoryId"`
	DisplayName string      `json:"displayName"`
	Taxonomy    []LabelNode `json:"labelTaxonomy"`
	Rules       RuleSet     `json:"behaviorRules"`
}

// Validate enforces the catalog invariants: a non-empty taxonomy, intent
// keys unique within the category, and every rule referencing an intent key
// that exists in the taxonomy.
func (c *CategoryDefinition) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("category has no ID")
	}
	if len(c.Taxonomy) == 0 {
		return fmt.Errorf("category %s has an empty taxonomy", c.ID)
	}

	keys := make(map[string]bool)
	var walk func(nodes []LabelNode) error
	walk = func(nodes []LabelNode) error {
		for _, n := range nodes {
			if n.IntentKey == "" {
				return fmt.Errorf("category %s: taxonomy node %q has no intent key", c.ID, n.DisplayName)
			}
			if keys[n.IntentKey] {
				return fmt.Errorf("category %s: duplicate intent key %q", c.ID, n.IntentKey)
			}
			keys[n.IntentKey] = true
			if err := walk(n.Children); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(c.Taxonomy); err != nil {
		return err
	}

	for _, r := range c.Rules.Classification {
		if !keys[r.IntentKey] {
			return fmt.Errorf("category %s: classification rule references unknown intent key %q", c.ID, r.IntentKey)
		}
	}
	for _, r := range c.Rules.Response {
		if !keys[r.IntentKey] {
			return fmt.Errorf("category %s: response rule references unknown intent key %q", c.ID, r.IntentKey)
		}
	}
	return nil
}

// IntentKeys returns the set of all intent keys in the taxonomy
func (c *CategoryDefinition) IntentKeys() map[string]bool {
	keys := make(map[string]bool)
	var walk func(nodes []LabelNode)
	walk = func(nodes []LabelNode) {
		for _, n := range nodes {
			keys[n.IntentKey] = true
			walk(n.Children)
		}
	}
	walk(c.Taxonomy)
	return keys
}

// ResponseRuleFor returns the response rule for an intent key, if any
func (c *CategoryDefinition) ResponseRuleFor(intentKey string) (ResponseRule, bool) {
	for _, r := range c.Rules.Response {
		if r.IntentKey == intentKey {
			return r, true
		}
	}
	return ResponseRule{}, false
}

// NormalizeName canonicalizes a display name for cross-category comparison:
// lowercase, trimmed, inner runs of whitespace collapsed to one space.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
