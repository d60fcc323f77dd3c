package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCategory() CategoryDefinition {
	return CategoryDefinition{
		ID:          "hvac",
		DisplayName: "HVAC Services",
		Taxonomy: []LabelNode{
			{IntentKey: "support", DisplayName: "Support", Children: []LabelNode{
				{IntentKey: "urgent", DisplayName: "Urgent"},
			}},
			{IntentKey: "sales", DisplayName: "Sales"},
		},
		Rules: RuleSet{
			Classification: []ClassificationRule{
				{IntentKey: "urgent", Keywords: []string{"asap"}, LabelPath: []string{"Support", "Urgent"}},
			},
			Response: []ResponseRule{
				{IntentKey: "support", Tone: "helpful", Template: "support reply"},
			},
		},
	}
}

func TestCategoryDefinition_Validate(t *testing.T) {
	c := validCategory()
	assert.NoError(t, c.Validate())
}

func TestCategoryDefinition_Validate_MissingID(t *testing.T) {
	c := validCategory()
	c.ID = ""
	assert.Error(t, c.Validate())
}

func TestCategoryDefinition_Validate_EmptyTaxonomy(t *testing.T) {
	c := validCategory()
	c.Taxonomy = nil
	assert.Error(t, c.Validate())
}

func TestCategoryDefinition_Validate_DuplicateIntentKey(t *testing.T) {
	c := validCategory()
	c.Taxonomy = append(c.Taxonomy, LabelNode{IntentKey: "support", DisplayName: "Support Again"})

	err := c.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate intent key")
}

func TestCategoryDefinition_Validate_RuleReferencesUnknownKey(t *testing.T) {
	c := validCategory()
	c.Rules.Response = append(c.Rules.Response, ResponseRule{IntentKey: "ghost", Template: "x"})

	err := c.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown intent key")
}

func TestCategoryDefinition_IntentKeys(t *testing.T) {
	c := validCategory()

	keys := c.IntentKeys()

	assert.Equal(t, map[string]bool{"support": true, "urgent": true, "sales": true}, keys)
}

func TestCategoryDefinition_ResponseRuleFor(t *testing.T) {
	c := validCategory()

	rule, ok := c.ResponseRuleFor("support")
	require.True(t, ok)
	assert.Equal(t, "support reply", rule.Template)

	_, ok = c.ResponseRuleFor("ghost")
	assert.False(t, ok)
}

func TestResponseRule_IsScoped(t *testing.T) {
	assert.False(t, ResponseRule{}.IsScoped())
	assert.False(t, ResponseRule{ScopeEntity: "   "}.IsScoped())
	assert.True(t, ResponseRule{ScopeEntity: "on-call manager"}.IsScoped())
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Support", "support"},
		{"  Customer   Support  ", "customer support"},
		{"CUSTOMER\tSUPPORT", "customer support"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeName(tt.in))
	}
}
