package compose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTP-getaipro/FWIQ-sub012/domain/catalog"
	"github.com/GTP-getaipro/FWIQ-sub012/domain/workflow"
	appErrors "github.com/GTP-getaipro/FWIQ-sub012/pkg/errors"
)

func testTemplate(t *testing.T) *workflow.CompositeTemplate {
	t.Helper()
	c := category("hvac", node("support", "Support"))
	tpl, err := Build([]catalog.CategoryDefinition{c}, 1.0)
	require.NoError(t, err)
	return tpl
}

func fullBindings() workflow.BindingSet {
	return workflow.BindingSet{
		Labels: map[string]string{"support": "Label_42"},
		Facts: map[string]string{
			"timezone":      "America/Toronto",
			"business_name": "Acme HVAC",
		},
		Credentials:         map[string]string{"mailbox": "cred-789"},
		ProvisionedLabelIDs: map[string]bool{"Label_42": true},
	}
}

func TestInject_ResolvesAllPlaceholderClasses(t *testing.T) {
	tpl := testTemplate(t)

	graph, err := Inject(tpl, fullBindings(), "Acme HVAC email automation")

	require.NoError(t, err)
	assert.Equal(t, "Acme HVAC email automation", graph.Name)
	assert.Equal(t, workflow.StrategyUnified, graph.Strategy)

	byID := make(map[string]workflow.GraphNode)
	for _, n := range graph.Nodes {
		byID[n.ID] = n
	}
	assert.Equal(t, "cred-789", byID["trigger"].Parameters["credential"])
	assert.Equal(t, "America/Toronto", byID["trigger"].Parameters["timezone"])
	assert.Equal(t, "Label_42", byID["classify:all"].Parameters["label.support"])
	assert.Equal(t, "Acme HVAC", byID["respond:all"].Parameters["signature"])
	assert.Equal(t, "Label_42", byID["apply-labels"].Parameters["label.support"])

	// No token survives injection.
	for _, n := range graph.Nodes {
		for k, v := range n.Parameters {
			assert.Empty(t, workflow.FindPlaceholders(v), "unresolved token in %s/%s", n.ID, k)
		}
	}
}

func TestInject_MissingFactNamesToken(t *testing.T) {
	tpl := testTemplate(t)
	bindings := fullBindings()
	delete(bindings.Facts, "timezone")

	_, err := Inject(tpl, bindings, "test")

	require.Error(t, err)
	assert.True(t, appErrors.IsUnresolvedPlaceholder(err))
	assert.Contains(t, err.Error(), "{{fact:timezone}}")
}

func TestInject_MissingCredentialNamesToken(t *testing.T) {
	tpl := testTemplate(t)
	bindings := fullBindings()
	bindings.Credentials = map[string]string{}

	_, err := Inject(tpl, bindings, "test")

	require.Error(t, err)
	assert.True(t, appErrors.IsUnresolvedPlaceholder(err))
	assert.Contains(t, err.Error(), "{{credential:mailbox}}")
}

func TestInject_UnboundLabelIsBindingMismatch(t *testing.T) {
	tpl := testTemplate(t)
	bindings := fullBindings()
	// The tenant has no label for the intent key at all: taxonomy and
	// provisioned labels have drifted apart.
	delete(bindings.Labels, "support")

	_, err := Inject(tpl, bindings, "test")

	require.Error(t, err)
	assert.True(t, appErrors.IsLabelBindingMismatch(err))

	appErr := appErrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, []string{"support"}, appErr.Details["intentKeys"])
}

func TestInject_StaleLabelIsBindingMismatch(t *testing.T) {
	tpl := testTemplate(t)
	bindings := fullBindings()
	// Bound but no longer provisioned on the mailbox.
	bindings.ProvisionedLabelIDs = map[string]bool{}

	_, err := Inject(tpl, bindings, "test")

	require.Error(t, err)
	assert.True(t, appErrors.IsLabelBindingMismatch(err))
}

func TestInject_BatchesAllLabelMismatches(t *testing.T) {
	a := category("hvac", node("support", "Support"), node("billing", "Billing"))
	b := category("plumbing", node("support", "Support"), node("quotes", "Quotes"))
	tpl, err := Build([]catalog.CategoryDefinition{a, b}, 0.9)
	require.NoError(t, err)

	bindings := fullBindings()
	// Only support is bound and provisioned; billing and quotes are both
	// broken and must be reported together.
	_, err = Inject(tpl, bindings, "test")

	require.Error(t, err)
	assert.True(t, appErrors.IsLabelBindingMismatch(err))

	appErr := appErrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, []string{"billing", "quotes"}, appErr.Details["intentKeys"])
}

func TestInject_DeterministicOutputHash(t *testing.T) {
	tpl := testTemplate(t)

	first, err := Inject(tpl, fullBindings(), "test")
	require.NoError(t, err)
	second, err := Inject(tpl, fullBindings(), "test")
	require.NoError(t, err)

	assert.Equal(t, first.Hash(), second.Hash())
}
