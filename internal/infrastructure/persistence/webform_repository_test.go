package persistence

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	dmodels "github.com/nexusportal/backend/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var stepColumnNames = []string{
	"id", "web_form_id", "name", "type", "next_step_id", "condition_default_next_step_id",
	"source_strategy", "source_param", "source_relationship", "source_step_id",
	"param_is_primary_key", "create_if_absent", "target_entity", "target_primary_key",
	"mode", "condition_expression", "redirect_url", "allow_retreat",
}

func TestWebFormRepository_GetWebForm(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewWebFormRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM _System_WebForm WHERE id = \\?").
		WithArgs("wf-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "start_step_id", "save_past_records", "edit_existing_record",
		}).AddRow("wf-1", "Loan Application", "S1", true, false))

	form, err := repo.GetWebForm(context.Background(), "wf-1")
	require.NoError(t, err)
	require.NotNil(t, form)
	assert.Equal(t, "Loan Application", form.Name)
	assert.Equal(t, "S1", form.StartStepID)
	assert.True(t, form.SavePastRecords)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebFormRepository_GetWebFormMiss(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewWebFormRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM _System_WebForm WHERE id = \\?").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	form, err := repo.GetWebForm(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, form)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebFormRepository_GetStep(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewWebFormRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM _System_WebFormStep WHERE id = \\?").
		WithArgs("S2").
		WillReturnRows(sqlmock.NewRows(stepColumnNames).AddRow(
			"S2", "wf-1", "", "Condition", "S3", "S4",
			"", nil, nil, nil,
			false, false, "", "",
			"", "amount > 100", nil, false,
		))

	step, err := repo.GetStep(context.Background(), "S2")
	require.NoError(t, err)
	require.NotNil(t, step)
	assert.Equal(t, dmodels.StepKindCondition, step.Kind)
	require.NotNil(t, step.NextStepID)
	assert.Equal(t, "S3", *step.NextStepID)
	require.NotNil(t, step.ConditionDefaultNextStepID)
	assert.Equal(t, "S4", *step.ConditionDefaultNextStepID)
	require.NotNil(t, step.ConditionExpression)
	assert.Equal(t, "amount > 100", *step.ConditionExpression)
	assert.Nil(t, step.SourceParam, "empty nullable columns stay nil")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebFormRepository_GetNextStep(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewWebFormRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM _System_WebFormStep WHERE id = \\?").
		WithArgs("S1").
		WillReturnRows(sqlmock.NewRows(stepColumnNames).AddRow(
			"S1", "wf-1", "Details", "LoadForm", "S2", nil,
			"None", nil, nil, nil,
			false, false, "lead", "id",
			"Insert", nil, nil, true,
		))
	mock.ExpectQuery("SELECT (.+) FROM _System_WebFormStep WHERE id = \\?").
		WithArgs("S2").
		WillReturnRows(sqlmock.NewRows(stepColumnNames).AddRow(
			"S2", "wf-1", "Review", "LoadForm", nil, nil,
			"ResultFromPreviousStep", nil, nil, nil,
			false, false, "lead", "id",
			"Edit", nil, nil, true,
		))

	next, err := repo.GetNextStep(context.Background(), "S1")
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "S2", next.ID)
	assert.Equal(t, dmodels.SourceResultFromPreviousStep, next.SourceStrategy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepository_FindRelated(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewRecordRepository(db)

	mock.ExpectQuery("SELECT \\* FROM account WHERE contact_id = \\?").
		WithArgs("C7").
		WillReturnRows(sqlmock.NewRows([]string{"id", "contact_id"}).AddRow("ACC1", "C7"))

	record := map[string]interface{}{"id": "C7"}
	related, err := repo.FindRelated(context.Background(), record, "account.contact_id")
	require.NoError(t, err)
	require.NotNil(t, related)
	assert.Equal(t, "ACC1", related.GetString("id"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepository_MalformedRelationship(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewRecordRepository(db)

	_, err = repo.FindRelated(context.Background(), map[string]interface{}{"id": "C7"}, "noseparator")
	assert.Error(t, err)
}
