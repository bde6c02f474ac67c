package ports

import (
	"github.com/nexusportal/backend/pkg/models"
)

// ConditionEvaluator decides which edge a Condition step takes.
// This interface enables testing the session controller without a real
// expression engine. Evaluation failures are configuration errors: the
// expression references fields the record does not carry, or does not
// produce a boolean.
type ConditionEvaluator interface {
	// Evaluate runs a boolean expression against a record
	Evaluate(expression string, record models.SObject) (bool, error)
}
