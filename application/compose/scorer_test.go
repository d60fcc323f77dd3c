package compose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTP-getaipro/FWIQ-sub012/domain/catalog"
	appErrors "github.com/GTP-getaipro/FWIQ-sub012/pkg/errors"
)

func category(id string, nodes ...catalog.LabelNode) catalog.CategoryDefinition {
	return catalog.CategoryDefinition{
		ID:          catalog.CategoryID(id),
		DisplayName: id,
		Taxonomy:    nodes,
	}
}

func node(intentKey, displayName string, children ...catalog.LabelNode) catalog.LabelNode {
	return catalog.LabelNode{IntentKey: intentKey, DisplayName: displayName, Children: children}
}

func TestScore_EmptySelection(t *testing.T) {
	_, err := Score(nil)

	assert.Error(t, err)
	assert.True(t, appErrors.IsInsufficientInput(err))
}

func TestScore_SingleCategory(t *testing.T) {
	score, err := Score([]catalog.CategoryDefinition{
		category("hvac", node("support", "Support")),
	})

	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
}

func TestScore_IdenticalCategories(t *testing.T) {
	a := category("hvac",
		node("support", "Support"),
		node("sales", "Sales"),
	)
	b := category("plumbing",
		node("support", "Support"),
		node("sales", "Sales"),
	)

	score, err := Score([]catalog.CategoryDefinition{a, b})

	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
}

func TestScore_DisjointCategories(t *testing.T) {
	a := category("hvac", node("maintenance", "Maintenance"))
	b := category("legal", node("contracts", "Contracts"))

	score, err := Score([]catalog.CategoryDefinition{a, b})

	require.NoError(t, err)
	assert.Equal(t, 0.0, score)
}

func TestScore_PartialOverlap(t *testing.T) {
	// Top-level Jaccard: shared {support} over union {support, sales,
	// contracts} = 1/3. Intent overlap: 1 shared of smaller set size 2 = 1/2.
	// Pair score is the mean: (1/3 + 1/2) / 2.
	a := category("hvac",
		node("support", "Support"),
		node("sales", "Sales"),
	)
	b := category("legal",
		node("support", "Support"),
		node("contracts", "Contracts"),
	)

	score, err := Score([]catalog.CategoryDefinition{a, b})

	require.NoError(t, err)
	assert.InDelta(t, (1.0/3.0+0.5)/2, score, 1e-9)
}

func TestScore_AggregateIsMinimum(t *testing.T) {
	// a and b are identical (pair score 1.0); c shares nothing with either,
	// so the weakest pair drags the aggregate to 0.
	a := category("hvac", node("support", "Support"))
	b := category("plumbing", node("support", "Support"))
	c := category("legal", node("contracts", "Contracts"))

	score, err := Score([]catalog.CategoryDefinition{a, b, c})

	require.NoError(t, err)
	assert.Equal(t, 0.0, score)
}

func TestScore_SubsetCountsAsFullOverlap(t *testing.T) {
	// b's intent keys are a strict subset of a's, so intent overlap is 1.0
	// even though the sets differ in size.
	a := category("hvac",
		node("support", "Support"),
		node("sales", "Sales"),
		node("billing", "Billing"),
	)
	b := category("plumbing", node("support", "Support"))

	score, err := Score([]catalog.CategoryDefinition{a, b})

	require.NoError(t, err)
	// Jaccard 1/3, overlap 1.0
	assert.InDelta(t, (1.0/3.0+1.0)/2, score, 1e-9)
}

func TestScore_NameNormalization(t *testing.T) {
	// Display names that differ only in case and whitespace count as the
	// same top-level node.
	a := category("hvac", node("support", "Customer  Support"))
	b := category("plumbing", node("support", "customer support"))

	score, err := Score([]catalog.CategoryDefinition{a, b})

	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
}
