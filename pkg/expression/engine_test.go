package expression

import (
	"testing"

	"github.com/nexusportal/backend/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_Evaluate(t *testing.T) {
	engine := NewEngine()

	result, err := engine.Evaluate("amount > 100", map[string]interface{}{"amount": 150})
	require.NoError(t, err)
	assert.Equal(t, true, result)

	result, err = engine.Evaluate("amount > 100", map[string]interface{}{"amount": 50})
	require.NoError(t, err)
	assert.Equal(t, false, result)
}

func TestEngine_ProgramCacheReuse(t *testing.T) {
	engine := NewEngine()

	// Same expression twice with different environments must not leak
	// state between evaluations.
	first, err := engine.Evaluate(`status == "open"`, map[string]interface{}{"status": "open"})
	require.NoError(t, err)
	second, err := engine.Evaluate(`status == "open"`, map[string]interface{}{"status": "closed"})
	require.NoError(t, err)

	assert.Equal(t, true, first)
	assert.Equal(t, false, second)
}

func TestEngine_CompileError(t *testing.T) {
	engine := NewEngine()

	_, err := engine.Evaluate("amount >", map[string]interface{}{"amount": 1})
	assert.Error(t, err)
}

func TestEngine_Functions(t *testing.T) {
	engine := NewEngine()

	result, err := engine.Evaluate(`UPPER(name) == "ACME"`, map[string]interface{}{"name": "acme"})
	require.NoError(t, err)
	assert.Equal(t, true, result)
}

func TestConditions_Evaluate(t *testing.T) {
	conditions := NewConditions()

	tests := []struct {
		name       string
		expression string
		record     models.SObject
		want       bool
		wantErr    bool
	}{
		{"numeric comparison true", "amount > 100", models.SObject{"amount": 150}, true, false},
		{"numeric comparison false", "amount > 100", models.SObject{"amount": 50}, false, false},
		{"string equality", `type == "partner"`, models.SObject{"type": "partner"}, true, false},
		{"record alias", `record.amount > 100`, models.SObject{"amount": 200}, true, false},
		{"missing attribute is nil", "amount == nil", models.SObject{}, true, false},
		{"non-boolean result", "amount + 1", models.SObject{"amount": 1}, false, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := conditions.Evaluate(tc.expression, tc.record)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
