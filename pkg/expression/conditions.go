package expression

import (
	"fmt"

	"github.com/nexusportal/backend/pkg/models"
)

// Conditions evaluates web form branch expressions against records.
// Attributes are exposed directly in the environment ("amount > 100"),
// with the whole record additionally reachable as "record".
type Conditions struct {
	engine *Engine
}

// NewConditions creates a condition evaluator backed by a shared engine
func NewConditions() *Conditions {
	return &Conditions{engine: NewEngine()}
}

// Evaluate runs a boolean expression against a record
func (c *Conditions) Evaluate(expression string, record models.SObject) (bool, error) {
	env := make(map[string]interface{}, len(record)+1)
	for k, v := range record {
		env[k] = v
	}
	env["record"] = map[string]interface{}(record)

	result, err := c.engine.Evaluate(expression, env)
	if err != nil {
		return false, err
	}

	passed, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q did not produce a boolean (got %T)", expression, result)
	}
	return passed, nil
}
