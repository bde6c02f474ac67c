package domain

import (
	"context"
	"fmt"

	"github.com/nexusportal/backend/internal/domain/models"
	"github.com/nexusportal/backend/internal/domain/ports"
	"github.com/nexusportal/backend/pkg/errors"
)

// NextStep resolves the step that follows current, or nil at a terminal.
//
// Only Condition steps consult the condition-default edge: a failed
// condition falls through to ConditionDefaultNextStepID. Every other step
// kind always follows NextStepID regardless of conditionPassed.
func NextStep(ctx context.Context, graph ports.StepGraphSource, current *models.WebFormStep, conditionPassed bool) (*models.WebFormStep, error) {
	if current == nil {
		return nil, errors.NewConfigurationError("step graph", "cannot walk from a nil step")
	}

	if current.Kind == models.StepKindCondition && !conditionPassed {
		if !current.HasConditionDefault() {
			return nil, nil
		}
		next, err := graph.GetConditionDefaultNextStep(ctx, current.ID)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, errors.NewConfigurationError(
				fmt.Sprintf("step %s", current.ID),
				fmt.Sprintf("condition default edge references missing step %s", *current.ConditionDefaultNextStepID))
		}
		return next, nil
	}

	if !current.HasNext() {
		return nil, nil
	}
	next, err := graph.GetNextStep(ctx, current.ID)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return nil, errors.NewConfigurationError(
			fmt.Sprintf("step %s", current.ID),
			fmt.Sprintf("next edge references missing step %s", *current.NextStepID))
	}
	return next, nil
}

// ValidateGraph checks a web form definition for authoring errors: a
// missing or dangling start step, edges to nonexistent steps, Condition
// steps without an expression, and form steps without a target entity.
// Implementations of StepGraphSource run this at load time so dangling
// edges surface as configuration errors, never at runtime.
func ValidateGraph(form *models.WebForm, steps []*models.WebFormStep) error {
	if form.StartStepID == "" {
		return errors.NewConfigurationError(fmt.Sprintf("web form %s", form.ID), "no start step designated")
	}

	byID := make(map[string]*models.WebFormStep, len(steps))
	for _, s := range steps {
		if _, dup := byID[s.ID]; dup {
			return errors.NewConfigurationError(fmt.Sprintf("web form %s", form.ID),
				fmt.Sprintf("duplicate step id %s", s.ID))
		}
		byID[s.ID] = s
	}

	if _, ok := byID[form.StartStepID]; !ok {
		return errors.NewConfigurationError(fmt.Sprintf("web form %s", form.ID),
			fmt.Sprintf("start step %s does not exist", form.StartStepID))
	}

	for _, s := range steps {
		subject := fmt.Sprintf("step %s", s.ID)

		if s.HasNext() {
			if _, ok := byID[*s.NextStepID]; !ok {
				return errors.NewConfigurationError(subject,
					fmt.Sprintf("next edge references missing step %s", *s.NextStepID))
			}
		}
		if s.HasConditionDefault() {
			if _, ok := byID[*s.ConditionDefaultNextStepID]; !ok {
				return errors.NewConfigurationError(subject,
					fmt.Sprintf("condition default edge references missing step %s", *s.ConditionDefaultNextStepID))
			}
		}

		switch s.Kind {
		case models.StepKindCondition:
			if s.ConditionExpression == nil || *s.ConditionExpression == "" {
				return errors.NewConfigurationError(subject, "condition step has no expression")
			}
		case models.StepKindLoadForm, models.StepKindLoadTab:
			if s.TargetEntity == "" || s.TargetPrimaryKey == "" {
				return errors.NewConfigurationError(subject, "form step has no target entity or primary key")
			}
		case models.StepKindRedirect:
			if s.RedirectURL == nil || *s.RedirectURL == "" {
				return errors.NewConfigurationError(subject, "redirect step has no url")
			}
		case models.StepKindLoadUserControl:
			// Custom control wiring is host-supplied; nothing to validate here.
		default:
			return errors.NewConfigurationError(subject, fmt.Sprintf("unknown step type %q", s.Kind))
		}
	}

	return nil
}
