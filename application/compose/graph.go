package compose

import (
	"fmt"
	"sort"
	"strings"

	"github.com/GTP-getaipro/FWIQ-sub012/domain/catalog"
	"github.com/GTP-getaipro/FWIQ-sub012/domain/workflow"
)

// Graph node IDs are derived from strategy and content so the template is
// reproducible byte for byte.
const (
	nodeIDTrigger = "trigger"
	nodeIDRouter  = "route"
	nodeIDLabeler = "apply-labels"
)

// buildGraph assembles the automation graph for the chosen strategy. All
// strategies share the single inbound trigger and the final
// label-application stage; what sits between them differs:
//
//	unified: one classifier/responder section for every category
//	hybrid:  a pre-classification router in front of a shared section plus
//	         one section per category-specific subtree
//	modular: fully independent per-category sections
func buildGraph(strategy workflow.Strategy, categories []catalog.CategoryDefinition, m *merger, taxonomy []workflow.MergedNode) workflow.GraphTemplate {
	g := &graphBuilder{merger: m}
	g.addTrigger()

	switch strategy {
	case workflow.StrategyUnified:
		section := g.addSection("all", allIntentKeys(taxonomy), categories)
		g.connect(nodeIDTrigger, section.classifierID)
		g.connect(section.responderID, nodeIDLabeler)

	case workflow.StrategyHybrid:
		shared, specific := splitTaxonomy(taxonomy)
		g.addRouter(shared, specific)
		g.connect(nodeIDTrigger, nodeIDRouter)

		if len(shared) > 0 {
			section := g.addSection("shared", allIntentKeys(shared), categories)
			g.connect(nodeIDRouter, section.classifierID)
			g.connect(section.responderID, nodeIDLabeler)
		}
		for _, catID := range specificCategoryIDs(specific) {
			keys := categoryIntentKeys(specific, catID)
			section := g.addCategorySection(catID, keys)
			g.connect(nodeIDRouter, section.classifierID)
			g.connect(section.responderID, nodeIDLabeler)
		}

	case workflow.StrategyModular:
		for i := range categories {
			c := &categories[i]
			keys := sortedKeys(c.IntentKeys())
			section := g.addCategorySection(c.ID, keys)
			g.connect(nodeIDTrigger, section.classifierID)
			g.connect(section.responderID, nodeIDLabeler)
		}
	}

	g.addLabeler(allIntentKeys(taxonomy))
	return workflow.GraphTemplate{Nodes: g.nodes, Connections: g.connections}
}

type graphBuilder struct {
	merger      *merger
	nodes       []workflow.GraphNode
	connections []workflow.Connection
}

type section struct {
	classifierID string
	responderID  string
}

func (g *graphBuilder) addTrigger() {
	g.nodes = append(g.nodes, workflow.GraphNode{
		ID:   nodeIDTrigger,
		Name: "Inbound Email Trigger",
		Kind: workflow.NodeKindTrigger,
		Parameters: map[string]string{
			"credential": workflow.Placeholder(workflow.PlaceholderCredential, CredentialSlot),
			"timezone":   workflow.Placeholder(workflow.PlaceholderFact, "timezone"),
		},
	})
}

// addRouter emits the hybrid pre-classification stage. Routing between the
// shared and category-specific sub-graphs is best effort on ambiguous
// input; a misroute still ends at the label-application stage.
func (g *graphBuilder) addRouter(shared, specific []workflow.MergedNode) {
	params := map[string]string{
		"shared": strings.Join(allIntentKeys(shared), ","),
	}
	for _, catID := range specificCategoryIDs(specific) {
		params["category."+string(catID)] = strings.Join(categoryIntentKeys(specific, catID), ",")
	}
	g.nodes = append(g.nodes, workflow.GraphNode{
		ID:         nodeIDRouter,
		Name:       "Pre-Classification Router",
		Kind:       workflow.NodeKindRouter,
		Parameters: params,
	})
}

// addSection emits a classifier/responder pair covering the given intent
// keys, with response behavior taken from the merge-winning rules.
func (g *graphBuilder) addSection(name string, intentKeys []string, categories []catalog.CategoryDefinition) section {
	classifierID := "classify:" + name
	responderID := "respond:" + name

	classifierParams := map[string]string{}
	responderParams := map[string]string{
		"signature": workflow.Placeholder(workflow.PlaceholderFact, "business_name"),
	}
	for _, key := range intentKeys {
		classifierParams["label."+key] = workflow.Placeholder(workflow.PlaceholderLabel, key)
		if kw := g.mergedKeywords(key, categories); kw != "" {
			classifierParams["keywords."+key] = kw
		}
		if rule, winnerCat, ok := g.merger.winningRule(key); ok {
			responderParams["template."+key] = rule.Template
			responderParams["tone."+key] = rule.Tone
			if rule.IsScoped() {
				responderParams["scope."+key] = rule.ScopeEntity
			}
			// A category-specific branch exists only where rules differed
			// for the same intent key.
			if g.merger.hasConflict(key) {
				responderParams["branch."+key] = string(winnerCat.ID)
			}
		}
	}

	g.nodes = append(g.nodes,
		workflow.GraphNode{
			ID:         classifierID,
			Name:       fmt.Sprintf("Classifier (%s)", name),
			Kind:       workflow.NodeKindClassifier,
			Parameters: classifierParams,
		},
		workflow.GraphNode{
			ID:         responderID,
			Name:       fmt.Sprintf("Responder (%s)", name),
			Kind:       workflow.NodeKindResponder,
			Parameters: responderParams,
		},
	)
	g.connect(classifierID, responderID)
	return section{classifierID: classifierID, responderID: responderID}
}

// addCategorySection emits an independent classifier/responder pair scoped
// to one category, used by the hybrid and modular strategies.
func (g *graphBuilder) addCategorySection(catID catalog.CategoryID, intentKeys []string) section {
	classifierID := "classify:" + string(catID)
	responderID := "respond:" + string(catID)

	var cat *catalog.CategoryDefinition
	for i := range g.merger.categories {
		if g.merger.categories[i].ID == catID {
			cat = &g.merger.categories[i]
			break
		}
	}

	classifierParams := map[string]string{}
	responderParams := map[string]string{
		"signature": workflow.Placeholder(workflow.PlaceholderFact, "business_name"),
	}
	for _, key := range intentKeys {
		classifierParams["label."+key] = workflow.Placeholder(workflow.PlaceholderLabel, key)
		if cat != nil {
			for _, r := range cat.Rules.Classification {
				if r.IntentKey == key && len(r.Keywords) > 0 {
					classifierParams["keywords."+key] = strings.Join(r.Keywords, ",")
				}
			}
			if rule, ok := cat.ResponseRuleFor(key); ok {
				responderParams["template."+key] = rule.Template
				responderParams["tone."+key] = rule.Tone
				if rule.IsScoped() {
					responderParams["scope."+key] = rule.ScopeEntity
				}
			}
		}
	}

	g.nodes = append(g.nodes,
		workflow.GraphNode{
			ID:         classifierID,
			Name:       fmt.Sprintf("Classifier (%s)", catID),
			Kind:       workflow.NodeKindClassifier,
			Category:   string(catID),
			Parameters: classifierParams,
		},
		workflow.GraphNode{
			ID:         responderID,
			Name:       fmt.Sprintf("Responder (%s)", catID),
			Kind:       workflow.NodeKindResponder,
			Category:   string(catID),
			Parameters: responderParams,
		},
	)
	g.connect(classifierID, responderID)
	return section{classifierID: classifierID, responderID: responderID}
}

// addLabeler emits the final label-application stage every strategy ends in
func (g *graphBuilder) addLabeler(intentKeys []string) {
	params := map[string]string{}
	for _, key := range intentKeys {
		params["label."+key] = workflow.Placeholder(workflow.PlaceholderLabel, key)
	}
	g.nodes = append(g.nodes, workflow.GraphNode{
		ID:         nodeIDLabeler,
		Name:       "Apply Labels",
		Kind:       workflow.NodeKindLabeler,
		Parameters: params,
	})
}

func (g *graphBuilder) connect(from, to string) {
	g.connections = append(g.connections, workflow.Connection{From: from, To: to})
}

// mergedKeywords unions classification keywords across categories for an
// intent key. Keyword sets are additive, not conflicting: more signals can
// only sharpen routing.
func (g *graphBuilder) mergedKeywords(intentKey string, categories []catalog.CategoryDefinition) string {
	seen := make(map[string]bool)
	var keywords []string
	for i := range categories {
		for _, r := range categories[i].Rules.Classification {
			if r.IntentKey != intentKey {
				continue
			}
			for _, kw := range r.Keywords {
				norm := strings.ToLower(strings.TrimSpace(kw))
				if norm == "" || seen[norm] {
					continue
				}
				seen[norm] = true
				keywords = append(keywords, norm)
			}
		}
	}
	sort.Strings(keywords)
	return strings.Join(keywords, ",")
}

// allIntentKeys flattens a merged taxonomy into a sorted key list
func allIntentKeys(nodes []workflow.MergedNode) []string {
	seen := make(map[string]bool)
	var walk func(nodes []workflow.MergedNode)
	var keys []string
	walk = func(nodes []workflow.MergedNode) {
		for _, n := range nodes {
			if !seen[n.IntentKey] {
				seen[n.IntentKey] = true
				keys = append(keys, n.IntentKey)
			}
			walk(n.Children)
		}
	}
	walk(nodes)
	sort.Strings(keys)
	return keys
}

// splitTaxonomy separates merged (multi-provenance) top-level nodes from
// category-specific ones for the hybrid strategy.
func splitTaxonomy(taxonomy []workflow.MergedNode) (shared, specific []workflow.MergedNode) {
	for _, n := range taxonomy {
		if len(n.Provenance) > 1 {
			shared = append(shared, n)
		} else {
			specific = append(specific, n)
		}
	}
	return shared, specific
}

// specificCategoryIDs returns the sorted owner categories of
// single-provenance subtrees.
func specificCategoryIDs(specific []workflow.MergedNode) []catalog.CategoryID {
	seen := make(map[catalog.CategoryID]bool)
	var ids []catalog.CategoryID
	for _, n := range specific {
		id := n.Provenance[0]
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// categoryIntentKeys flattens the subtrees owned by one category
func categoryIntentKeys(specific []workflow.MergedNode, catID catalog.CategoryID) []string {
	var owned []workflow.MergedNode
	for _, n := range specific {
		if n.Provenance[0] == catID {
			owned = append(owned, n)
		}
	}
	return allIntentKeys(owned)
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
