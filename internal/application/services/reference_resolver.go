package services

import (
	"context"
	"fmt"

	dmodels "github.com/nexusportal/backend/internal/domain/models"
	"github.com/nexusportal/backend/internal/domain/ports"
	"github.com/nexusportal/backend/pkg/constants"
	"github.com/nexusportal/backend/pkg/errors"
	"github.com/nexusportal/backend/pkg/models"
)

// StepRequest carries the per-request inputs a step resolution can draw on:
// the query string of the current request and the visitor identity.
type StepRequest struct {
	QueryParams map[string]string
	User        *models.PortalUser
	AnonymousID string
}

// Query returns a named request parameter, or "" when absent
func (r *StepRequest) Query(name string) string {
	if r == nil || r.QueryParams == nil {
		return ""
	}
	return r.QueryParams[name]
}

// Resolution is the outcome of resolving a step's source record.
// A nil Resolution means the configured lookup missed: the caller must
// drive the user to a not-found outcome, not proceed.
type Resolution struct {
	Reference dmodels.RecordRef
	// StartNewRecord flags that no record exists yet and the step should
	// begin creating one (SourceNone, or a create-if-absent relationship).
	StartNewRecord bool
}

// ReferenceResolver turns a step's configured source strategy into a
// RecordRef. Lookup misses are values, never errors; only malformed
// configuration raises.
type ReferenceResolver struct {
	records ports.RecordStore
}

// NewReferenceResolver creates a new ReferenceResolver
func NewReferenceResolver(records ports.RecordStore) *ReferenceResolver {
	return &ReferenceResolver{records: records}
}

// Resolve determines the source record for a step within a session
func (r *ReferenceResolver) Resolve(ctx context.Context, step *dmodels.WebFormStep, session *dmodels.WebFormSession, req *StepRequest) (*Resolution, error) {
	switch step.SourceStrategy {
	case dmodels.SourceNone, "":
		return &Resolution{
			Reference:      dmodels.RecordRef{EntityName: step.TargetEntity, PrimaryKeyName: step.TargetPrimaryKey},
			StartNewRecord: true,
		}, nil

	case dmodels.SourceQueryString:
		return r.resolveQueryString(ctx, step, req)

	case dmodels.SourceCurrentUser:
		if req == nil || req.User.IsAnonymous() {
			return nil, nil
		}
		return &Resolution{
			Reference: dmodels.RecordRef{
				EntityName:     req.User.EntityName(),
				PrimaryKeyName: constants.FieldID,
				ID:             req.User.ID,
			},
		}, nil

	case dmodels.SourceRecordRelatedToCurrentUser:
		return r.resolveRelatedToCurrentUser(ctx, step, req)

	case dmodels.SourceResultFromPreviousStep:
		return r.resolveFromPreviousStep(step, session)

	default:
		return nil, errors.NewConfigurationError(
			fmt.Sprintf("step %s", step.ID),
			fmt.Sprintf("unknown source strategy %q", step.SourceStrategy))
	}
}

func (r *ReferenceResolver) resolveQueryString(ctx context.Context, step *dmodels.WebFormStep, req *StepRequest) (*Resolution, error) {
	if step.SourceParam == nil || *step.SourceParam == "" {
		return nil, errors.NewConfigurationError(
			fmt.Sprintf("step %s", step.ID), "query string strategy has no parameter name")
	}

	value := req.Query(*step.SourceParam)
	if value == "" {
		return nil, nil
	}

	if step.ParamIsPrimaryKey {
		// The parameter holds the record id; no lookup needed.
		return &Resolution{
			Reference: dmodels.RecordRef{
				EntityName:     step.TargetEntity,
				PrimaryKeyName: step.TargetPrimaryKey,
				ID:             value,
			},
		}, nil
	}

	record, err := r.records.FindOne(ctx, step.TargetEntity, *step.SourceParam, value)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	return &Resolution{
		Reference: dmodels.RecordRef{
			EntityName:     step.TargetEntity,
			PrimaryKeyName: step.TargetPrimaryKey,
			ID:             record.GetString(step.TargetPrimaryKey),
		},
	}, nil
}

func (r *ReferenceResolver) resolveRelatedToCurrentUser(ctx context.Context, step *dmodels.WebFormStep, req *StepRequest) (*Resolution, error) {
	if step.SourceRelationship == nil || *step.SourceRelationship == "" {
		return nil, errors.NewConfigurationError(
			fmt.Sprintf("step %s", step.ID), "related-record strategy has no relationship name")
	}
	if req == nil || req.User.IsAnonymous() {
		return nil, nil
	}

	userRecord, err := r.records.Get(ctx, req.User.EntityName(), constants.FieldID, req.User.ID)
	if err != nil {
		return nil, err
	}
	if userRecord == nil {
		return nil, nil
	}

	related, err := r.records.FindRelated(ctx, userRecord, *step.SourceRelationship)
	if err != nil {
		return nil, err
	}
	if related == nil {
		if step.CreateIfAbsent {
			return &Resolution{
				Reference:      dmodels.RecordRef{EntityName: step.TargetEntity, PrimaryKeyName: step.TargetPrimaryKey},
				StartNewRecord: true,
			}, nil
		}
		return nil, nil
	}
	return &Resolution{
		Reference: dmodels.RecordRef{
			EntityName:     step.TargetEntity,
			PrimaryKeyName: step.TargetPrimaryKey,
			ID:             related.GetString(step.TargetPrimaryKey),
		},
	}, nil
}

func (r *ReferenceResolver) resolveFromPreviousStep(step *dmodels.WebFormStep, session *dmodels.WebFormSession) (*Resolution, error) {
	if session == nil || len(session.StepHistory) == 0 {
		return nil, errors.NewConfigurationError(
			fmt.Sprintf("step %s", step.ID), "previous-step strategy with no step history")
	}

	// A named source step must have been journaled already.
	if step.SourceStepID != nil && *step.SourceStepID != "" {
		entry := session.FindEntry(*step.SourceStepID)
		if entry == nil {
			return nil, errors.NewConfigurationError(
				fmt.Sprintf("step %s", step.ID),
				fmt.Sprintf("references step %s which was never visited", *step.SourceStepID))
		}
		return &Resolution{Reference: entry.ReferenceEntity}, nil
	}

	// Default to the immediately previous step: the one this step's own
	// history entry points back to, falling back to the latest entry.
	if own := session.FindEntry(step.ID); own != nil && own.PreviousStepID != "" {
		if prev := session.FindEntry(own.PreviousStepID); prev != nil {
			return &Resolution{Reference: prev.ReferenceEntity}, nil
		}
	}
	latest := session.StepHistory[len(session.StepHistory)-1]
	if latest.StepID == step.ID && len(session.StepHistory) > 1 {
		latest = session.StepHistory[len(session.StepHistory)-2]
	}
	return &Resolution{Reference: latest.ReferenceEntity}, nil
}
