package services

import (
	"context"

	dmodels "github.com/nexusportal/backend/internal/domain/models"
	"github.com/nexusportal/backend/internal/domain/ports"
	"github.com/nexusportal/backend/pkg/errors"
)

// ProgressStep is one item of the user-facing progress indicator
type ProgressStep struct {
	StepID      string `json:"step_id"`
	Title       string `json:"title"`
	Index       int    `json:"index"`
	IsActive    bool   `json:"is_active"`
	IsCompleted bool   `json:"is_completed"`
}

// ProgressProjector derives the linear list of visible steps a session
// travels through. Condition steps are compressed out; where history has
// recorded which branch a condition took, the projection follows it, and
// ahead of the session it follows the primary (condition passed) edges.
// Read-only: it never mutates the session.
type ProgressProjector struct {
	graph ports.StepGraphSource
}

// NewProgressProjector creates a new ProgressProjector
func NewProgressProjector(graph ports.StepGraphSource) *ProgressProjector {
	return &ProgressProjector{graph: graph}
}

// ProgressSteps projects the session onto its visible step sequence
func (p *ProgressProjector) ProgressSteps(ctx context.Context, session *dmodels.WebFormSession) ([]ProgressStep, error) {
	form, err := p.graph.GetWebForm(ctx, session.WebFormID)
	if err != nil {
		return nil, err
	}
	if form == nil {
		return nil, errors.NewNotFoundError("WebForm", session.WebFormID)
	}

	step, err := p.graph.GetStartStep(ctx, session.WebFormID)
	if err != nil {
		return nil, err
	}
	if step == nil {
		return nil, errors.NewConfigurationError("web form "+form.ID, "no start step designated")
	}

	var steps []ProgressStep
	visited := make(map[string]bool)
	visibleIndex := 0

	for step != nil && !visited[step.ID] {
		visited[step.ID] = true

		if step.Kind.IsVisible() {
			title := step.Name
			if title == "" {
				title = step.ID
			}
			steps = append(steps, ProgressStep{
				StepID:      step.ID,
				Title:       title,
				Index:       visibleIndex,
				IsActive:    step.ID == session.CurrentStepID,
				IsCompleted: visibleIndex < session.CurrentStepIndex,
			})
			visibleIndex++
		}

		step, err = p.successor(ctx, session, step)
		if err != nil {
			return nil, err
		}
	}

	return steps, nil
}

// successor picks the next node: the branch history actually took when one
// is journaled, otherwise the step's own forward edge.
func (p *ProgressProjector) successor(ctx context.Context, session *dmodels.WebFormSession, step *dmodels.WebFormStep) (*dmodels.WebFormStep, error) {
	// Entries update in place and keep their insertion position, so after
	// a retreat-and-retake the abandoned branch may sit later in the slice.
	// The active entry always wins; slice order only breaks ties between
	// abandoned branches.
	var takenID, abandonedID string
	for _, e := range session.StepHistory {
		if e.PreviousStepID != step.ID {
			continue
		}
		if e.IsActive {
			takenID = e.StepID
			break
		}
		abandonedID = e.StepID
	}
	if takenID == "" {
		takenID = abandonedID
	}
	if takenID != "" {
		return p.graph.GetStep(ctx, takenID)
	}
	if !step.HasNext() {
		return nil, nil
	}
	return p.graph.GetNextStep(ctx, step.ID)
}
