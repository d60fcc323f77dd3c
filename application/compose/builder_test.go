package compose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTP-getaipro/FWIQ-sub012/domain/catalog"
	"github.com/GTP-getaipro/FWIQ-sub012/domain/workflow"
	appErrors "github.com/GTP-getaipro/FWIQ-sub012/pkg/errors"
)

func TestSelectStrategy_Boundaries(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		want  workflow.Strategy
	}{
		{"high score is unified", 0.95, workflow.StrategyUnified},
		{"exactly 0.70 is unified", 0.70, workflow.StrategyUnified},
		{"just below 0.70 is hybrid", 0.699, workflow.StrategyHybrid},
		{"exactly 0.40 is hybrid", 0.40, workflow.StrategyHybrid},
		{"just below 0.40 is modular", 0.399, workflow.StrategyModular},
		{"zero is modular", 0.0, workflow.StrategyModular},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectStrategy(tt.score))
		})
	}
}

func TestBuild_EmptySelection(t *testing.T) {
	_, err := Build(nil, 1.0)

	assert.True(t, appErrors.IsInsufficientInput(err))
}

func TestBuild_DuplicateCategory(t *testing.T) {
	c := category("hvac", node("support", "Support"))

	_, err := Build([]catalog.CategoryDefinition{c, c}, 1.0)

	assert.True(t, appErrors.IsValidation(err))
}

func TestBuild_InvalidCategoryRejected(t *testing.T) {
	bad := catalog.CategoryDefinition{ID: "broken"} // empty taxonomy

	_, err := Build([]catalog.CategoryDefinition{bad}, 1.0)

	assert.True(t, appErrors.IsValidation(err))
}

func TestBuild_UnifiedMergesByDisplayName(t *testing.T) {
	a := category("hvac",
		node("support", "Support"),
		node("hvac_maintenance", "Maintenance"),
	)
	b := category("plumbing",
		node("support", "Support"),
	)

	tpl, err := Build([]catalog.CategoryDefinition{a, b}, 0.8)

	require.NoError(t, err)
	assert.Equal(t, workflow.StrategyUnified, tpl.Strategy)
	require.Len(t, tpl.MergedTaxonomy, 2)

	// Sorted by intent key: hvac_maintenance then support.
	assert.Equal(t, "hvac_maintenance", tpl.MergedTaxonomy[0].IntentKey)
	assert.Equal(t, []catalog.CategoryID{"hvac"}, tpl.MergedTaxonomy[0].Provenance)

	assert.Equal(t, "support", tpl.MergedTaxonomy[1].IntentKey)
	assert.Equal(t, []catalog.CategoryID{"hvac", "plumbing"}, tpl.MergedTaxonomy[1].Provenance)
}

func TestBuild_ModularKeepsCategoriesSeparate(t *testing.T) {
	a := category("hvac", node("support", "Support"))
	b := category("legal", node("support", "Support"))

	tpl, err := Build([]catalog.CategoryDefinition{a, b}, 0.1)

	require.NoError(t, err)
	assert.Equal(t, workflow.StrategyModular, tpl.Strategy)
	// Same display name, but modular never merges: two nodes survive.
	require.Len(t, tpl.MergedTaxonomy, 2)
	assert.Equal(t, []catalog.CategoryID{"hvac"}, tpl.MergedTaxonomy[0].Provenance)
	assert.Equal(t, []catalog.CategoryID{"legal"}, tpl.MergedTaxonomy[1].Provenance)
}

func TestBuild_HybridMergesOnlySharedNodes(t *testing.T) {
	a := category("hvac",
		node("support", "Support"),
		node("hvac_maintenance", "Maintenance"),
	)
	b := category("plumbing",
		node("support", "Support"),
		node("pipe_repair", "Pipe Repair"),
	)

	tpl, err := Build([]catalog.CategoryDefinition{a, b}, 0.5)

	require.NoError(t, err)
	assert.Equal(t, workflow.StrategyHybrid, tpl.Strategy)
	require.Len(t, tpl.MergedTaxonomy, 3)

	byKey := make(map[string]workflow.MergedNode)
	for _, n := range tpl.MergedTaxonomy {
		byKey[n.IntentKey] = n
	}
	assert.Len(t, byKey["support"].Provenance, 2)
	assert.Len(t, byKey["hvac_maintenance"].Provenance, 1)
	assert.Len(t, byKey["pipe_repair"].Provenance, 1)
}

func TestBuild_OrderIndependentStructure(t *testing.T) {
	a := category("hvac",
		node("support", "Support", node("urgent", "Urgent")),
		node("hvac_maintenance", "Maintenance"),
	)
	b := category("plumbing",
		node("support", "Support", node("after_hours", "After Hours")),
	)

	ab, err := Build([]catalog.CategoryDefinition{a, b}, 0.9)
	require.NoError(t, err)
	ba, err := Build([]catalog.CategoryDefinition{b, a}, 0.9)
	require.NoError(t, err)

	assert.Equal(t, ab.MergedTaxonomy, ba.MergedTaxonomy)
	assert.Equal(t, ab.Graph.Nodes, ba.Graph.Nodes)
	assert.Equal(t, ab.Graph.Connections, ba.Graph.Connections)
}

func TestBuild_ChildrenUnionedByIntentKey(t *testing.T) {
	a := category("hvac",
		node("support", "Support", node("urgent", "Urgent"), node("routine", "Routine")),
	)
	b := category("plumbing",
		node("support", "Support", node("urgent", "Urgent"), node("after_hours", "After Hours")),
	)

	tpl, err := Build([]catalog.CategoryDefinition{a, b}, 0.9)

	require.NoError(t, err)
	require.Len(t, tpl.MergedTaxonomy, 1)
	children := tpl.MergedTaxonomy[0].Children
	require.Len(t, children, 3)
	assert.Equal(t, "after_hours", children[0].IntentKey)
	assert.Equal(t, "routine", children[1].IntentKey)
	assert.Equal(t, "urgent", children[2].IntentKey)
	// The shared child carries both categories as provenance.
	assert.Len(t, children[2].Provenance, 2)
}

func TestBuild_ScopedRuleBeatsGeneric(t *testing.T) {
	a := category("hvac", node("urgent", "Urgent"))
	a.Rules.Response = []catalog.ResponseRule{
		{IntentKey: "urgent", Tone: "calm", Template: "generic reply"},
	}
	b := category("plumbing", node("urgent", "Urgent"))
	b.Rules.Response = []catalog.ResponseRule{
		{IntentKey: "urgent", Tone: "brisk", Template: "scoped reply", ScopeEntity: "on-call plumber"},
	}

	// a is listed first, but b's rule is scoped and must win anyway.
	tpl, err := Build([]catalog.CategoryDefinition{a, b}, 0.9)

	require.NoError(t, err)
	require.Len(t, tpl.MergedTaxonomy, 1)
	merged := tpl.MergedTaxonomy[0]

	require.Len(t, merged.Discarded, 1)
	assert.Equal(t, catalog.CategoryID("hvac"), merged.Discarded[0].CategoryID)
	assert.Equal(t, "generic reply", merged.Discarded[0].Rule.Template)
	assert.Contains(t, merged.Discarded[0].Reason, "scoped")

	responder := findNode(t, tpl.Graph.Nodes, "respond:all")
	assert.Equal(t, "scoped reply", responder.Parameters["template.urgent"])
	assert.Equal(t, "plumbing", responder.Parameters["branch.urgent"])
}

func TestBuild_SelectionOrderBreaksSpecificityTies(t *testing.T) {
	a := category("hvac", node("urgent", "Urgent"))
	a.Rules.Response = []catalog.ResponseRule{
		{IntentKey: "urgent", Tone: "calm", Template: "hvac reply"},
	}
	b := category("plumbing", node("urgent", "Urgent"))
	b.Rules.Response = []catalog.ResponseRule{
		{IntentKey: "urgent", Tone: "brisk", Template: "plumbing reply"},
	}

	// Both generic: the category selected first wins.
	tpl, err := Build([]catalog.CategoryDefinition{b, a}, 0.9)

	require.NoError(t, err)
	responder := findNode(t, tpl.Graph.Nodes, "respond:all")
	assert.Equal(t, "plumbing reply", responder.Parameters["template.urgent"])

	require.Len(t, tpl.MergedTaxonomy[0].Discarded, 1)
	assert.Equal(t, catalog.CategoryID("hvac"), tpl.MergedTaxonomy[0].Discarded[0].CategoryID)
}

func TestBuild_IdenticalRulesAreNotConflicts(t *testing.T) {
	rule := catalog.ResponseRule{IntentKey: "urgent", Tone: "calm", Template: "same reply"}
	a := category("hvac", node("urgent", "Urgent"))
	a.Rules.Response = []catalog.ResponseRule{rule}
	b := category("plumbing", node("urgent", "Urgent"))
	b.Rules.Response = []catalog.ResponseRule{rule}

	tpl, err := Build([]catalog.CategoryDefinition{a, b}, 0.9)

	require.NoError(t, err)
	assert.Empty(t, tpl.MergedTaxonomy[0].Discarded)

	responder := findNode(t, tpl.Graph.Nodes, "respond:all")
	// No differing rules means no category-specific branch either.
	assert.NotContains(t, responder.Parameters, "branch.urgent")
}

func TestBuild_UnifiedGraphShape(t *testing.T) {
	a := category("hvac", node("support", "Support"))
	a.Rules.Classification = []catalog.ClassificationRule{
		{IntentKey: "support", Keywords: []string{"Help", "broken"}, LabelPath: []string{"Support"}},
	}
	b := category("plumbing", node("support", "Support"))
	b.Rules.Classification = []catalog.ClassificationRule{
		{IntentKey: "support", Keywords: []string{"leak", "help"}, LabelPath: []string{"Support"}},
	}

	tpl, err := Build([]catalog.CategoryDefinition{a, b}, 0.9)

	require.NoError(t, err)

	trigger := findNode(t, tpl.Graph.Nodes, "trigger")
	assert.Equal(t, "{{credential:mailbox}}", trigger.Parameters["credential"])
	assert.Equal(t, "{{fact:timezone}}", trigger.Parameters["timezone"])

	classifier := findNode(t, tpl.Graph.Nodes, "classify:all")
	assert.Equal(t, "{{labelId:support}}", classifier.Parameters["label.support"])
	// Keywords are unioned, normalized, and sorted.
	assert.Equal(t, "broken,help,leak", classifier.Parameters["keywords.support"])

	labeler := findNode(t, tpl.Graph.Nodes, "apply-labels")
	assert.Equal(t, "{{labelId:support}}", labeler.Parameters["label.support"])

	assert.Contains(t, tpl.Graph.Connections, workflow.Connection{From: "trigger", To: "classify:all"})
	assert.Contains(t, tpl.Graph.Connections, workflow.Connection{From: "classify:all", To: "respond:all"})
	assert.Contains(t, tpl.Graph.Connections, workflow.Connection{From: "respond:all", To: "apply-labels"})
}

func TestBuild_HybridGraphHasRouter(t *testing.T) {
	a := category("hvac",
		node("support", "Support"),
		node("hvac_maintenance", "Maintenance"),
	)
	b := category("plumbing", node("support", "Support"))

	tpl, err := Build([]catalog.CategoryDefinition{a, b}, 0.5)

	require.NoError(t, err)

	router := findNode(t, tpl.Graph.Nodes, "route")
	assert.Equal(t, "support", router.Parameters["shared"])
	assert.Equal(t, "hvac_maintenance", router.Parameters["category.hvac"])

	assert.Contains(t, tpl.Graph.Connections, workflow.Connection{From: "trigger", To: "route"})
	assert.Contains(t, tpl.Graph.Connections, workflow.Connection{From: "route", To: "classify:shared"})
	assert.Contains(t, tpl.Graph.Connections, workflow.Connection{From: "route", To: "classify:hvac"})
}

func TestBuild_ModularGraphHasIndependentSections(t *testing.T) {
	a := category("hvac", node("hvac_maintenance", "Maintenance"))
	b := category("legal", node("contracts", "Contracts"))

	tpl, err := Build([]catalog.CategoryDefinition{a, b}, 0.1)

	require.NoError(t, err)

	findNode(t, tpl.Graph.Nodes, "classify:hvac")
	findNode(t, tpl.Graph.Nodes, "classify:legal")
	assert.Contains(t, tpl.Graph.Connections, workflow.Connection{From: "trigger", To: "classify:hvac"})
	assert.Contains(t, tpl.Graph.Connections, workflow.Connection{From: "trigger", To: "classify:legal"})
	assert.Contains(t, tpl.Graph.Connections, workflow.Connection{From: "respond:hvac", To: "apply-labels"})
	assert.Contains(t, tpl.Graph.Connections, workflow.Connection{From: "respond:legal", To: "apply-labels"})
}

func findNode(t *testing.T, nodes []workflow.GraphNode, id string) workflow.GraphNode {
	t.Helper()
	for _, n := range nodes {
		if n.ID == id {
			return n
		}
	}
	t.Fatalf("graph node %q not found", id)
	return workflow.GraphNode{}
}
