package compose

import (
	"fmt"
	"sort"
	"strings"

	"github.com/GTP-getaipro/FWIQ-sub012/domain/catalog"
	"github.com/GTP-getaipro/FWIQ-sub012/domain/workflow"
	appErrors "github.com/GTP-getaipro/FWIQ-sub012/pkg/errors"
)

// Strategy switch points. Boundaries are closed on the simpler structure:
// exactly 0.70 is unified, exactly 0.40 is hybrid.
const (
	unifiedThreshold = 0.70
	hybridThreshold  = 0.40
)

// CredentialSlot is the provider-agnostic credential placeholder name the
// builder emits. Templates are pure functions of categories and score, so
// they cannot reference a tenant's concrete provider; the composer binds the
// tenant's mailbox credential to this slot at injection time.
const CredentialSlot = "mailbox"

// SelectStrategy maps a compatibility score to a composition strategy
func SelectStrategy(score float64) workflow.Strategy {
	switch {
	case score >= unifiedThreshold:
		return workflow.StrategyUnified
	case score >= hybridThreshold:
		return workflow.StrategyHybrid
	default:
		return workflow.StrategyModular
	}
}

// Build merges the selected categories into a single composite template
// under the strategy chosen for the score. Build is pure and deterministic:
// identical inputs always produce a structurally identical template, which
// the orchestrator's idempotency check relies on.
//
// The order of the categories slice is meaningful only for conflict
// tie-breaks: when two categories define the same intent key with rules of
// equal specificity, the earlier category wins.
func Build(categories []catalog.CategoryDefinition, score float64) (*workflow.CompositeTemplate, error) {
	if len(categories) == 0 {
		return nil, appErrors.NewInsufficientInputError("no categories to compose")
	}
	for i := range categories {
		if err := categories[i].Validate(); err != nil {
			return nil, appErrors.NewValidationError(err.Error())
		}
	}

	// Selection order drives tie-breaks; canonical (ID) order drives
	// iteration so output structure does not depend on input order.
	rank := make(map[catalog.CategoryID]int, len(categories))
	for i, c := range categories {
		if _, dup := rank[c.ID]; dup {
			return nil, appErrors.NewValidationError(fmt.Sprintf("category %s selected twice", c.ID))
		}
		rank[c.ID] = i
	}
	ordered := append([]catalog.CategoryDefinition(nil), categories...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	strategy := SelectStrategy(score)
	m := &merger{categories: ordered, rank: rank}

	var taxonomy []workflow.MergedNode
	switch strategy {
	case workflow.StrategyUnified:
		taxonomy = m.mergeTopLevel(func(group []sourceNode) bool { return true })
	case workflow.StrategyHybrid:
		// Only top-level nodes present in more than one category merge;
		// category-specific ones keep their own subtree.
		taxonomy = m.mergeTopLevel(func(group []sourceNode) bool { return len(group) > 1 })
	case workflow.StrategyModular:
		taxonomy = m.keepSeparate()
	}

	graph := buildGraph(strategy, ordered, m, taxonomy)

	return &workflow.CompositeTemplate{
		Strategy:       strategy,
		MergedTaxonomy: taxonomy,
		Graph:          graph,
	}, nil
}

// sourceNode tracks where a taxonomy node came from during the merge
type sourceNode struct {
	category *catalog.CategoryDefinition
	node     catalog.LabelNode
}

// merger carries the merge state shared by taxonomy and rule resolution
type merger struct {
	categories []catalog.CategoryDefinition
	rank       map[catalog.CategoryID]int
}

// mergeTopLevel groups top-level nodes by normalized display name and merges
// each group the shouldMerge predicate accepts. Non-merged nodes pass
// through with single-category provenance. Output is sorted by intent key.
func (m *merger) mergeTopLevel(shouldMerge func([]sourceNode) bool) []workflow.MergedNode {
	groups := make(map[string][]sourceNode)
	for i := range m.categories {
		c := &m.categories[i]
		for _, n := range c.Taxonomy {
			key := catalog.NormalizeName(n.DisplayName)
			groups[key] = append(groups[key], sourceNode{category: c, node: n})
		}
	}

	var out []workflow.MergedNode
	for _, group := range groups {
		if shouldMerge(group) {
			out = append(out, m.mergeGroup(group))
			continue
		}
		for _, src := range group {
			out = append(out, m.mergeGroup([]sourceNode{src}))
		}
	}
	sortMerged(out)
	return out
}

// keepSeparate builds the modular taxonomy: every category keeps its own
// top-level subtree untouched, provenance tracking only.
func (m *merger) keepSeparate() []workflow.MergedNode {
	var out []workflow.MergedNode
	for i := range m.categories {
		c := &m.categories[i]
		for _, n := range c.Taxonomy {
			out = append(out, m.mergeGroup([]sourceNode{{category: c, node: n}}))
		}
	}
	sortMerged(out)
	return out
}

// mergeGroup merges same-named nodes from several categories into one
// merged node: intent key identity, children unioned and de-duplicated by
// intent key, rule conflicts resolved and losers recorded.
func (m *merger) mergeGroup(group []sourceNode) workflow.MergedNode {
	// Node identity: the shared intent key when sources agree, otherwise
	// the lexicographically smallest so structure stays order-independent.
	intentKey := group[0].node.IntentKey
	for _, src := range group[1:] {
		if src.node.IntentKey < intentKey {
			intentKey = src.node.IntentKey
		}
	}

	merged := workflow.MergedNode{
		IntentKey:   intentKey,
		DisplayName: m.byRank(group).node.DisplayName,
	}
	for _, src := range group {
		merged.Provenance = append(merged.Provenance, src.category.ID)
	}
	sort.Slice(merged.Provenance, func(i, j int) bool { return merged.Provenance[i] < merged.Provenance[j] })
	merged.Discarded = m.resolveConflicts(intentKey, group)

	// Union children by intent key, merging recursively where keys collide.
	childGroups := make(map[string][]sourceNode)
	var childKeys []string
	for _, src := range group {
		for _, child := range src.node.Children {
			if _, seen := childGroups[child.IntentKey]; !seen {
				childKeys = append(childKeys, child.IntentKey)
			}
			childGroups[child.IntentKey] = append(childGroups[child.IntentKey], sourceNode{category: src.category, node: child})
		}
	}
	sort.Strings(childKeys)
	for _, key := range childKeys {
		merged.Children = append(merged.Children, m.mergeGroup(childGroups[key]))
	}
	return merged
}

// resolveConflicts picks the winning response rule for an intent key
// defined by more than one contributing category and records every
// discarded rule. A rule scoped to a named sub-entity outranks a generic
// one; at equal specificity the category listed first in the selection
// wins. Losing rules are never silently dropped.
func (m *merger) resolveConflicts(intentKey string, group []sourceNode) []workflow.DiscardedRule {
	type candidate struct {
		category *catalog.CategoryDefinition
		rule     catalog.ResponseRule
	}
	var candidates []candidate
	seen := make(map[catalog.CategoryID]bool)
	for _, src := range group {
		if seen[src.category.ID] {
			continue
		}
		seen[src.category.ID] = true
		if rule, ok := src.category.ResponseRuleFor(intentKey); ok {
			candidates = append(candidates, candidate{category: src.category, rule: rule})
		}
	}
	if len(candidates) < 2 {
		return nil
	}

	winner := candidates[0]
	for _, c := range candidates[1:] {
		if beats(c.rule, winner.rule, m.rank[c.category.ID], m.rank[winner.category.ID]) {
			winner = c
		}
	}

	var discarded []workflow.DiscardedRule
	for _, c := range candidates {
		if c.category.ID == winner.category.ID {
			continue
		}
		if sameRule(c.rule, winner.rule) {
			continue
		}
		discarded = append(discarded, workflow.DiscardedRule{
			CategoryID: c.category.ID,
			Rule:       c.rule,
			Reason:     fmt.Sprintf("lost to %s rule from category %s", specificity(winner.rule), winner.category.ID),
		})
	}
	sort.Slice(discarded, func(i, j int) bool { return discarded[i].CategoryID < discarded[j].CategoryID })
	return discarded
}

// hasConflict reports whether more than one category defines a differing
// response rule for the intent key.
func (m *merger) hasConflict(intentKey string) bool {
	var first catalog.ResponseRule
	found := false
	for i := range m.categories {
		rule, ok := m.categories[i].ResponseRuleFor(intentKey)
		if !ok {
			continue
		}
		if !found {
			first, found = rule, true
			continue
		}
		if !sameRule(first, rule) {
			return true
		}
	}
	return false
}

// winningRule resolves the response rule that survives the merge for an
// intent key, applying the same specificity-then-order resolution.
func (m *merger) winningRule(intentKey string) (catalog.ResponseRule, *catalog.CategoryDefinition, bool) {
	var (
		winner     catalog.ResponseRule
		winnerCat  *catalog.CategoryDefinition
		haveWinner bool
	)
	for i := range m.categories {
		c := &m.categories[i]
		rule, ok := c.ResponseRuleFor(intentKey)
		if !ok {
			continue
		}
		if !haveWinner || beats(rule, winner, m.rank[c.ID], m.rank[winnerCat.ID]) {
			winner, winnerCat, haveWinner = rule, c, true
		}
	}
	return winner, winnerCat, haveWinner
}

// beats reports whether the challenger rule outranks the incumbent
func beats(challenger, incumbent catalog.ResponseRule, challengerRank, incumbentRank int) bool {
	if challenger.IsScoped() != incumbent.IsScoped() {
		return challenger.IsScoped()
	}
	return challengerRank < incumbentRank
}

func sameRule(a, b catalog.ResponseRule) bool {
	return a.Tone == b.Tone && a.Template == b.Template && a.ScopeEntity == b.ScopeEntity
}

func specificity(r catalog.ResponseRule) string {
	if r.IsScoped() {
		return "scoped"
	}
	return "generic"
}

// byRank returns the group member whose category comes first in the
// tenant's selection order.
func (m *merger) byRank(group []sourceNode) sourceNode {
	best := group[0]
	for _, src := range group[1:] {
		if m.rank[src.category.ID] < m.rank[best.category.ID] {
			best = src
		}
	}
	return best
}

func sortMerged(nodes []workflow.MergedNode) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].IntentKey != nodes[j].IntentKey {
			return nodes[i].IntentKey < nodes[j].IntentKey
		}
		// Modular taxonomies can carry same-keyed subtrees from different
		// categories; provenance breaks the tie.
		return strings.Join(idStrings(nodes[i].Provenance), ",") < strings.Join(idStrings(nodes[j].Provenance), ",")
	})
}

func idStrings(ids []catalog.CategoryID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
