// Package workflow defines the automation-graph model that flows through the
// composition pipeline: the placeholder-bearing composite template produced
// by the builder and the fully resolved concrete graph handed to the
// execution engine.
package workflow

import (
	"fmt"
	"regexp"

	"github.com/GTP-getaipro/FWIQ-sub012/domain/catalog"
)

// Strategy is the structural shape chosen for a composite template
type Strategy string

const (
	StrategyUnified Strategy = "unified"
	StrategyHybrid  Strategy = "hybrid"
	StrategyModular Strategy = "modular"
)

// Node kinds in the automation graph
const (
	NodeKindTrigger    = "trigger"
	NodeKindRouter     = "router"
	NodeKindClassifier = "classifier"
	NodeKindResponder  = "responder"
	NodeKindLabeler    = "labeler"
)

// Placeholder token classes. Tokens are resolved at injection time; an
// unresolved token is a hard error, never silently dropped.
const (
	PlaceholderLabel      = "labelId"
	PlaceholderFact       = "fact"
	PlaceholderCredential = "credential"
)

// placeholderPattern matches {{class:name}} tokens inside parameter values
var placeholderPattern = regexp.MustCompile(`\{\{(labelId|fact|credential):([^}]+)\}\}`)

// Placeholder builds a token string for a class and name
func Placeholder(class, name string) string {
	return fmt.Sprintf("{{%s:%s}}", class, name)
}

// FindPlaceholders returns every token occurrence in a string, each as
// [full, class, name].
func FindPlaceholders(s string) [][]string {
	return placeholderPattern.FindAllStringSubmatch(s, -1)
}

// DiscardedRule records a behavior rule that lost a merge conflict, kept in
// provenance so the resolution is auditable.
type DiscardedRule struct {
	CategoryID catalog.CategoryID   `json:"categoryId"`
	Rule       catalog.ResponseRule `json:"rule"`
	Reason     string               `json:"reason"`
}

// MergedNode is one node of the merged taxonomy with category provenance
type MergedNode struct {
	IntentKey   string               `json:"intentKey"`
	DisplayName string               `json:"displayName"`
	Provenance  []catalog.CategoryID `json:"provenance"`
	Discarded   []DiscardedRule      `json:"discarded,omitempty"`
	Children    []MergedNode         `json:"children,omitempty"`
}

// GraphNode is one node of the automation graph. Parameters may contain
// placeholder tokens until injection resolves them.
type GraphNode struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Kind       string            `json:"kind"`
	Category   string            `json:"category,omitempty"`
	Parameters map[string]string `json:"parameters"`
}

// Connection is a directed edge between two graph nodes
type Connection struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// GraphTemplate is the still-placeholder-bearing automation graph
type GraphTemplate struct {
	Nodes       []GraphNode  `json:"nodes"`
	Connections []Connection `json:"connections"`
}

// CompositeTemplate is the builder's output: the chosen strategy, the merged
// taxonomy with provenance, and the graph template awaiting injection.
type CompositeTemplate struct {
	Strategy       Strategy     `json:"strategy"`
	MergedTaxonomy []MergedNode `json:"mergedTaxonomy"`
	Graph          GraphTemplate `json:"graphTemplate"`
}

// BindingSet maps each placeholder class to tenant-specific values
type BindingSet struct {
	// Labels maps intent key to the provisioned mailbox label/folder ID
	Labels map[string]string
	// Facts maps fact name to its value from the business profile
	Facts map[string]string
	// Credentials maps provider ID to the external credential reference
	Credentials map[string]string
	// ProvisionedLabelIDs is the set of label IDs that currently exist on
	// the tenant's mailbox, per the label-provisioning collaborator. The
	// injector validates every resolved label against it to catch stale
	// taxonomy-to-label mappings before deployment.
	ProvisionedLabelIDs map[string]bool
}
