package persistence

import (
	"context"
	"database/sql"
	"fmt"

	dmodels "github.com/nexusportal/backend/internal/domain/models"
	"github.com/nexusportal/backend/pkg/constants"
)

// WebFormRepository reads web form and step definitions from the system
// tables. Definitions are written by the admin surface and treated as
// read-only here; a miss is (nil, nil).
type WebFormRepository struct {
	db *sql.DB
}

// NewWebFormRepository creates a new WebFormRepository
func NewWebFormRepository(db *sql.DB) *WebFormRepository {
	return &WebFormRepository{db: db}
}

func (r *WebFormRepository) formColumns() string {
	return fmt.Sprintf("%s, %s, %s, %s, %s",
		constants.FieldID,
		constants.FieldSysWebForm_Name,
		constants.FieldSysWebForm_StartStepID,
		constants.FieldSysWebForm_SavePastRecords,
		constants.FieldSysWebForm_EditExistingRecord,
	)
}

func (r *WebFormRepository) stepColumns() string {
	return fmt.Sprintf("%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s",
		constants.FieldID,
		constants.FieldSysWebFormStep_WebFormID,
		constants.FieldSysWebFormStep_Name,
		constants.FieldSysWebFormStep_Type,
		constants.FieldSysWebFormStep_NextStepID,
		constants.FieldSysWebFormStep_ConditionDefaultNextStepID,
		constants.FieldSysWebFormStep_SourceStrategy,
		constants.FieldSysWebFormStep_SourceParam,
		constants.FieldSysWebFormStep_SourceRelationship,
		constants.FieldSysWebFormStep_SourceStepID,
		constants.FieldSysWebFormStep_ParamIsPrimaryKey,
		constants.FieldSysWebFormStep_CreateIfAbsent,
		constants.FieldSysWebFormStep_TargetEntity,
		constants.FieldSysWebFormStep_TargetPrimaryKey,
		constants.FieldSysWebFormStep_Mode,
		constants.FieldSysWebFormStep_ConditionExpression,
		constants.FieldSysWebFormStep_RedirectURL,
		constants.FieldSysWebFormStep_AllowRetreat,
	)
}

// GetWebForm loads a web form definition by id
func (r *WebFormRepository) GetWebForm(ctx context.Context, webFormID string) (*dmodels.WebForm, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? AND %s = 0 LIMIT 1",
		r.formColumns(), constants.TableWebForm, constants.FieldID, constants.FieldIsDeleted)

	var form dmodels.WebForm
	var startStepID sql.NullString
	err := r.db.QueryRowContext(ctx, query, webFormID).Scan(
		&form.ID,
		&form.Name,
		&startStepID,
		&form.SavePastRecords,
		&form.EditExistingRecord,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	form.StartStepID = startStepID.String
	return &form, nil
}

// GetStartStep loads the designated first step of a web form
func (r *WebFormRepository) GetStartStep(ctx context.Context, webFormID string) (*dmodels.WebFormStep, error) {
	form, err := r.GetWebForm(ctx, webFormID)
	if err != nil {
		return nil, err
	}
	if form == nil || form.StartStepID == "" {
		return nil, nil
	}
	return r.GetStep(ctx, form.StartStepID)
}

// GetStep loads a single step definition by id
func (r *WebFormRepository) GetStep(ctx context.Context, stepID string) (*dmodels.WebFormStep, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? AND %s = 0 LIMIT 1",
		r.stepColumns(), constants.TableWebFormStep, constants.FieldID, constants.FieldIsDeleted)
	return r.scanStep(r.db.QueryRowContext(ctx, query, stepID))
}

// GetNextStep follows the step's forward edge
func (r *WebFormRepository) GetNextStep(ctx context.Context, stepID string) (*dmodels.WebFormStep, error) {
	step, err := r.GetStep(ctx, stepID)
	if err != nil {
		return nil, err
	}
	if step == nil || !step.HasNext() {
		return nil, nil
	}
	return r.GetStep(ctx, *step.NextStepID)
}

// GetConditionDefaultNextStep follows the step's default (condition failed) edge
func (r *WebFormRepository) GetConditionDefaultNextStep(ctx context.Context, stepID string) (*dmodels.WebFormStep, error) {
	step, err := r.GetStep(ctx, stepID)
	if err != nil {
		return nil, err
	}
	if step == nil || !step.HasConditionDefault() {
		return nil, nil
	}
	return r.GetStep(ctx, *step.ConditionDefaultNextStepID)
}

// GetSteps loads every step of a web form, for graph validation
func (r *WebFormRepository) GetSteps(ctx context.Context, webFormID string) ([]*dmodels.WebFormStep, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? AND %s = 0",
		r.stepColumns(), constants.TableWebFormStep, constants.FieldSysWebFormStep_WebFormID, constants.FieldIsDeleted)

	rows, err := r.db.QueryContext(ctx, query, webFormID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []*dmodels.WebFormStep
	for rows.Next() {
		step, err := r.scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *WebFormRepository) scanStep(row rowScanner) (*dmodels.WebFormStep, error) {
	var step dmodels.WebFormStep
	var next, condDefault, sourceParam, sourceRel, sourceStep, condExpr, redirectURL sql.NullString
	var kind, strategy, mode sql.NullString

	err := row.Scan(
		&step.ID,
		&step.WebFormID,
		&step.Name,
		&kind,
		&next,
		&condDefault,
		&strategy,
		&sourceParam,
		&sourceRel,
		&sourceStep,
		&step.ParamIsPrimaryKey,
		&step.CreateIfAbsent,
		&step.TargetEntity,
		&step.TargetPrimaryKey,
		&mode,
		&condExpr,
		&redirectURL,
		&step.AllowRetreat,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	step.Kind = dmodels.StepKind(kind.String)
	step.SourceStrategy = dmodels.SourceStrategy(strategy.String)
	step.Mode = dmodels.FormMode(mode.String)
	step.NextStepID = nullableString(next)
	step.ConditionDefaultNextStepID = nullableString(condDefault)
	step.SourceParam = nullableString(sourceParam)
	step.SourceRelationship = nullableString(sourceRel)
	step.SourceStepID = nullableString(sourceStep)
	step.ConditionExpression = nullableString(condExpr)
	step.RedirectURL = nullableString(redirectURL)
	return &step, nil
}

func nullableString(v sql.NullString) *string {
	if !v.Valid || v.String == "" {
		return nil
	}
	s := v.String
	return &s
}
