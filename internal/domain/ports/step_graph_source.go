package ports

import (
	"context"

	"github.com/nexusportal/backend/internal/domain/models"
)

// StepGraphSource supplies immutable web form step definitions. Edges that
// reference missing steps are configuration errors; implementations should
// catch them at load time via domain.ValidateGraph rather than at runtime.
type StepGraphSource interface {
	// GetWebForm fetches a web form definition by id
	GetWebForm(ctx context.Context, webFormID string) (*models.WebForm, error)

	// GetStartStep fetches the designated start step of a web form
	GetStartStep(ctx context.Context, webFormID string) (*models.WebFormStep, error)

	// GetStep fetches a step by id
	GetStep(ctx context.Context, stepID string) (*models.WebFormStep, error)

	// GetNextStep follows the forward edge, or returns nil at a terminal
	GetNextStep(ctx context.Context, stepID string) (*models.WebFormStep, error)

	// GetConditionDefaultNextStep follows the default edge of a Condition
	// step, or returns nil when none is configured
	GetConditionDefaultNextStep(ctx context.Context, stepID string) (*models.WebFormStep, error)
}
