package definition

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	dmodels "github.com/nexusportal/backend/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loanForm = `
id: wf-loan
name: Loan Application
start_step_id: S1
save_past_records: true
steps:
  - id: S1
    name: Applicant Details
    type: LoadForm
    source_strategy: None
    target_entity: lead
    target_primary_key: id
    mode: Insert
    next_step_id: S2
    allow_retreat: true
  - id: S2
    type: Condition
    condition_expression: amount > 100
    next_step_id: S3
    condition_default_next_step_id: S4
  - id: S3
    name: Manual Review
    type: LoadForm
    source_strategy: ResultFromPreviousStep
    target_entity: lead
    target_primary_key: id
    mode: Edit
    allow_retreat: true
  - id: S4
    name: Instant Approval
    type: Redirect
    redirect_url: https://example.com/approved
`

func writeDefinition(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "loan.yaml", loanForm)

	source, err := LoadDir(dir)
	require.NoError(t, err)
	ctx := context.Background()

	form, err := source.GetWebForm(ctx, "wf-loan")
	require.NoError(t, err)
	require.NotNil(t, form)
	assert.Equal(t, "Loan Application", form.Name)
	assert.True(t, form.SavePastRecords)

	start, err := source.GetStartStep(ctx, "wf-loan")
	require.NoError(t, err)
	require.NotNil(t, start)
	assert.Equal(t, "S1", start.ID)
	assert.Equal(t, dmodels.StepKindLoadForm, start.Kind)
	assert.Equal(t, "wf-loan", start.WebFormID, "steps inherit the file's web form id")

	next, err := source.GetNextStep(ctx, "S1")
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, dmodels.StepKindCondition, next.Kind)

	fallback, err := source.GetConditionDefaultNextStep(ctx, "S2")
	require.NoError(t, err)
	require.NotNil(t, fallback)
	assert.Equal(t, "S4", fallback.ID)
	assert.Equal(t, dmodels.StepKindRedirect, fallback.Kind)

	missing, err := source.GetWebForm(ctx, "unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestLoadDir_RejectsInvalidGraph(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "broken.yaml", `
id: wf-broken
start_step_id: S1
steps:
  - id: S1
    type: LoadForm
    target_entity: lead
    target_primary_key: id
    next_step_id: S9
`)

	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S9")
}

func TestLoadDir_RejectsDuplicateFormID(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "a.yaml", loanForm)
	writeDefinition(t, dir, "b.yaml", loanForm)

	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate web form id")
}

func TestLoadDir_EmptyDirectory(t *testing.T) {
	_, err := LoadDir(t.TempDir())
	assert.Error(t, err)
}
