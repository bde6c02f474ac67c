package services

import (
	"context"
	"fmt"
	"testing"

	dmodels "github.com/nexusportal/backend/internal/domain/models"
	"github.com/nexusportal/backend/pkg/errors"
	"github.com/nexusportal/backend/pkg/expression"
	"github.com/nexusportal/backend/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGraph is a map-backed StepGraphSource for controller tests
type fakeGraph struct {
	form  *dmodels.WebForm
	steps map[string]*dmodels.WebFormStep
}

func newFakeGraph(form *dmodels.WebForm, steps ...*dmodels.WebFormStep) *fakeGraph {
	g := &fakeGraph{form: form, steps: make(map[string]*dmodels.WebFormStep)}
	for _, s := range steps {
		g.steps[s.ID] = s
	}
	return g
}

func (g *fakeGraph) GetWebForm(ctx context.Context, webFormID string) (*dmodels.WebForm, error) {
	if g.form != nil && g.form.ID == webFormID {
		return g.form, nil
	}
	return nil, nil
}

func (g *fakeGraph) GetStartStep(ctx context.Context, webFormID string) (*dmodels.WebFormStep, error) {
	if g.form == nil || g.form.StartStepID == "" {
		return nil, nil
	}
	return g.steps[g.form.StartStepID], nil
}

func (g *fakeGraph) GetStep(ctx context.Context, stepID string) (*dmodels.WebFormStep, error) {
	return g.steps[stepID], nil
}

func (g *fakeGraph) GetNextStep(ctx context.Context, stepID string) (*dmodels.WebFormStep, error) {
	s := g.steps[stepID]
	if s == nil || !s.HasNext() {
		return nil, nil
	}
	return g.steps[*s.NextStepID], nil
}

func (g *fakeGraph) GetConditionDefaultNextStep(ctx context.Context, stepID string) (*dmodels.WebFormStep, error) {
	s := g.steps[stepID]
	if s == nil || !s.HasConditionDefault() {
		return nil, nil
	}
	return g.steps[*s.ConditionDefaultNextStepID], nil
}

// fakeSessionStore is an in-memory SessionPersistence
type fakeSessionStore struct {
	sessions    map[string]*dmodels.WebFormSession
	saveErr     error
	saveCount   int
	deactivated []string
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*dmodels.WebFormSession)}
}

func (f *fakeSessionStore) Load(ctx context.Context, sessionID string) (*dmodels.WebFormSession, error) {
	s, ok := f.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

func (f *fakeSessionStore) LoadByPrimaryRecord(ctx context.Context, webFormID, recordID string) (*dmodels.WebFormSession, error) {
	for _, s := range f.sessions {
		if s.WebFormID == webFormID && s.PrimaryRecord.ID == recordID && s.IsActive {
			return s.Clone(), nil
		}
	}
	return nil, nil
}

func (f *fakeSessionStore) LoadByIdentity(ctx context.Context, webFormID, identity string) (*dmodels.WebFormSession, error) {
	for _, s := range f.sessions {
		if s.WebFormID == webFormID && s.IsActive && (s.ContactID == identity || s.AnonymousID == identity) {
			return s.Clone(), nil
		}
	}
	return nil, nil
}

func (f *fakeSessionStore) Save(ctx context.Context, session *dmodels.WebFormSession) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	f.saveCount++
	f.sessions[session.ID] = session.Clone()
	return session.ID, nil
}

func (f *fakeSessionStore) Deactivate(ctx context.Context, sessionID string) error {
	f.deactivated = append(f.deactivated, sessionID)
	if s, ok := f.sessions[sessionID]; ok {
		s.IsActive = false
	}
	return nil
}

// fakeRecordStore is an in-memory RecordStore
type fakeRecordStore struct {
	records map[string]models.SObject            // entity/id
	related map[string]map[string]models.SObject // entity/id -> relationship -> record
}

func newFakeRecordStore() *fakeRecordStore {
	return &fakeRecordStore{
		records: make(map[string]models.SObject),
		related: make(map[string]map[string]models.SObject),
	}
}

func recordKey(entity, id string) string { return fmt.Sprintf("%s/%s", entity, id) }

func (f *fakeRecordStore) add(entity, id string, record models.SObject) {
	record["id"] = id
	f.records[recordKey(entity, id)] = record
}

func (f *fakeRecordStore) Get(ctx context.Context, entityName, keyName, id string) (models.SObject, error) {
	r, ok := f.records[recordKey(entityName, id)]
	if !ok {
		return nil, nil
	}
	return r, nil
}

func (f *fakeRecordStore) FindOne(ctx context.Context, entityName, attributeName string, value interface{}) (models.SObject, error) {
	for key, r := range f.records {
		if len(key) > len(entityName) && key[:len(entityName)] == entityName && r.Get(attributeName) == value {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeRecordStore) FindRelated(ctx context.Context, record models.SObject, relationshipName string) (models.SObject, error) {
	for _, rels := range f.related {
		if r, ok := rels[relationshipName]; ok {
			return r, nil
		}
	}
	return nil, nil
}

func newController(graph *fakeGraph, store *fakeSessionStore, records *fakeRecordStore) *SessionController {
	return NewSessionController(graph, store, records, expression.NewConditions())
}

// linearGraph builds A -> B -> C with retreat allowed everywhere
func linearGraph() *fakeGraph {
	return newFakeGraph(
		&dmodels.WebForm{ID: "wf", Name: "Application", StartStepID: "A", SavePastRecords: true},
		&dmodels.WebFormStep{ID: "A", WebFormID: "wf", Kind: dmodels.StepKindLoadForm, TargetEntity: "lead", TargetPrimaryKey: "id", NextStepID: strPtr("B"), AllowRetreat: true},
		&dmodels.WebFormStep{ID: "B", WebFormID: "wf", Kind: dmodels.StepKindLoadForm, TargetEntity: "lead", TargetPrimaryKey: "id", NextStepID: strPtr("C"), AllowRetreat: true},
		&dmodels.WebFormStep{ID: "C", WebFormID: "wf", Kind: dmodels.StepKindLoadForm, TargetEntity: "lead", TargetPrimaryKey: "id", AllowRetreat: true},
	)
}

func strPtr(s string) *string { return &s }

func TestEnter_NewSession(t *testing.T) {
	store := newFakeSessionStore()
	sc := newController(linearGraph(), store, newFakeRecordStore())

	result, err := sc.Enter(context.Background(), "wf", &StepRequest{}, "")
	require.NoError(t, err)

	assert.Equal(t, "A", result.Step.ID)
	assert.Equal(t, "A", result.Session.CurrentStepID)
	assert.Equal(t, 0, result.Session.CurrentStepIndex)
	assert.False(t, result.Resumed)
	assert.True(t, result.Session.IsActive)
	assert.Empty(t, result.Session.StepHistory)
	assert.Equal(t, 1, store.saveCount, "durable flows persist the session on entry")
}

func TestEnter_NoStartStep(t *testing.T) {
	graph := newFakeGraph(&dmodels.WebForm{ID: "wf"})
	sc := newController(graph, newFakeSessionStore(), newFakeRecordStore())

	_, err := sc.Enter(context.Background(), "wf", &StepRequest{}, "")
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}

func TestEnter_UnknownWebForm(t *testing.T) {
	sc := newController(linearGraph(), newFakeSessionStore(), newFakeRecordStore())

	_, err := sc.Enter(context.Background(), "other", &StepRequest{}, "")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestEnter_ResumeByToken(t *testing.T) {
	store := newFakeSessionStore()
	store.sessions["sess1"] = &dmodels.WebFormSession{
		ID: "sess1", WebFormID: "wf", CurrentStepID: "B", CurrentStepIndex: 1, IsActive: true,
	}
	sc := newController(linearGraph(), store, newFakeRecordStore())

	result, err := sc.Enter(context.Background(), "wf", &StepRequest{}, "sess1")
	require.NoError(t, err)

	assert.True(t, result.Resumed)
	assert.Equal(t, "B", result.Step.ID)
	assert.Equal(t, 1, result.Session.CurrentStepIndex)
}

func TestEnter_ResumeByIdentity(t *testing.T) {
	store := newFakeSessionStore()
	store.sessions["sess1"] = &dmodels.WebFormSession{
		ID: "sess1", WebFormID: "wf", CurrentStepID: "C", CurrentStepIndex: 2,
		ContactID: "contact-7", IsActive: true,
	}
	sc := newController(linearGraph(), store, newFakeRecordStore())

	req := &StepRequest{User: &models.PortalUser{ID: "contact-7", Kind: models.PrincipalContact}}
	result, err := sc.Enter(context.Background(), "wf", req, "")
	require.NoError(t, err)

	assert.True(t, result.Resumed)
	assert.Equal(t, "C", result.Step.ID)
}

func TestEnter_InactiveSessionIsNotResumed(t *testing.T) {
	store := newFakeSessionStore()
	store.sessions["sess1"] = &dmodels.WebFormSession{
		ID: "sess1", WebFormID: "wf", CurrentStepID: "B", CurrentStepIndex: 1, IsActive: false,
	}
	sc := newController(linearGraph(), store, newFakeRecordStore())

	result, err := sc.Enter(context.Background(), "wf", &StepRequest{}, "sess1")
	require.NoError(t, err)
	assert.False(t, result.Resumed)
	assert.Equal(t, "A", result.Step.ID)
}

func TestAdvance_BackForwardSymmetry(t *testing.T) {
	store := newFakeSessionStore()
	sc := newController(linearGraph(), store, newFakeRecordStore())
	ctx := context.Background()

	result, err := sc.Enter(ctx, "wf", &StepRequest{}, "")
	require.NoError(t, err)
	session := result.Session

	step, err := sc.AdvanceAfterAction(ctx, session, dmodels.RecordRef{}, nil, false)
	require.NoError(t, err)
	assert.Equal(t, "B", step.ID)

	step, err = sc.AdvanceAfterAction(ctx, session, dmodels.RecordRef{}, nil, false)
	require.NoError(t, err)
	assert.Equal(t, "C", step.ID)
	assert.Equal(t, 2, session.CurrentStepIndex)

	step, err = sc.Retreat(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, "B", step.ID)
	assert.Equal(t, "B", session.CurrentStepID)
	assert.Equal(t, 1, session.CurrentStepIndex)

	entryC := session.FindEntry("C")
	require.NotNil(t, entryC)
	assert.False(t, entryC.IsActive, "the abandoned step is marked inactive")
}

func TestAdvance_BranchSelection(t *testing.T) {
	condExpr := "amount > 100"
	graph := newFakeGraph(
		&dmodels.WebForm{ID: "wf", StartStepID: "S1", SavePastRecords: true},
		&dmodels.WebFormStep{ID: "S1", Kind: dmodels.StepKindLoadForm, TargetEntity: "lead", TargetPrimaryKey: "id", SourceStrategy: dmodels.SourceNone, NextStepID: strPtr("S2")},
		&dmodels.WebFormStep{ID: "S2", Kind: dmodels.StepKindCondition, ConditionExpression: &condExpr, NextStepID: strPtr("S3"), ConditionDefaultNextStepID: strPtr("S4")},
		&dmodels.WebFormStep{ID: "S3", Kind: dmodels.StepKindLoadForm, TargetEntity: "lead", TargetPrimaryKey: "id"},
		&dmodels.WebFormStep{ID: "S4", Kind: dmodels.StepKindLoadForm, TargetEntity: "lead", TargetPrimaryKey: "id"},
	)
	ctx := context.Background()

	t.Run("failed predicate takes default edge", func(t *testing.T) {
		records := newFakeRecordStore()
		records.add("lead", "L1", models.SObject{"amount": 50})
		sc := newController(graph, newFakeSessionStore(), records)

		result, err := sc.Enter(ctx, "wf", &StepRequest{}, "")
		require.NoError(t, err)
		session := result.Session

		step, err := sc.AdvanceAfterAction(ctx, session, dmodels.RecordRef{EntityName: "lead", PrimaryKeyName: "id", ID: "L1"}, nil, false)
		require.NoError(t, err)
		assert.Equal(t, "S4", step.ID)

		// Two entries: the condition hop (inactive) and the landed step.
		require.Len(t, session.StepHistory, 2)
		entryS2 := session.FindEntry("S2")
		require.NotNil(t, entryS2)
		assert.False(t, entryS2.IsActive, "condition-only entries are inactive")
		entryS4 := session.FindEntry("S4")
		require.NotNil(t, entryS4)
		assert.True(t, entryS4.IsActive)
	})

	t.Run("passed predicate takes next edge", func(t *testing.T) {
		records := newFakeRecordStore()
		records.add("lead", "L2", models.SObject{"amount": 150})
		sc := newController(graph, newFakeSessionStore(), records)

		result, err := sc.Enter(ctx, "wf", &StepRequest{}, "")
		require.NoError(t, err)

		step, err := sc.AdvanceAfterAction(ctx, result.Session, dmodels.RecordRef{EntityName: "lead", PrimaryKeyName: "id", ID: "L2"}, nil, false)
		require.NoError(t, err)
		assert.Equal(t, "S3", step.ID)
	})
}

func TestAdvance_ConditionTransparency(t *testing.T) {
	// Two consecutive conditions compress into a single visible move.
	expr1 := "amount > 10"
	expr2 := "amount > 20"
	graph := newFakeGraph(
		&dmodels.WebForm{ID: "wf", StartStepID: "S1", SavePastRecords: true},
		&dmodels.WebFormStep{ID: "S1", Kind: dmodels.StepKindLoadForm, TargetEntity: "lead", TargetPrimaryKey: "id", NextStepID: strPtr("C1")},
		&dmodels.WebFormStep{ID: "C1", Kind: dmodels.StepKindCondition, ConditionExpression: &expr1, NextStepID: strPtr("C2")},
		&dmodels.WebFormStep{ID: "C2", Kind: dmodels.StepKindCondition, ConditionExpression: &expr2, NextStepID: strPtr("S2")},
		&dmodels.WebFormStep{ID: "S2", Kind: dmodels.StepKindLoadForm, TargetEntity: "lead", TargetPrimaryKey: "id"},
	)
	records := newFakeRecordStore()
	records.add("lead", "L1", models.SObject{"amount": 30})
	sc := newController(graph, newFakeSessionStore(), records)
	ctx := context.Background()

	result, err := sc.Enter(ctx, "wf", &StepRequest{}, "")
	require.NoError(t, err)
	session := result.Session

	step, err := sc.AdvanceAfterAction(ctx, session, dmodels.RecordRef{EntityName: "lead", PrimaryKeyName: "id", ID: "L1"}, nil, false)
	require.NoError(t, err)

	assert.Equal(t, "S2", step.ID)
	assert.Equal(t, 1, session.CurrentStepIndex, "condition hops never increment the visible index")
	assert.Len(t, session.StepHistory, 3, "every hop is journaled")
}

func TestAdvance_StickyPrimaryRecord(t *testing.T) {
	store := newFakeSessionStore()
	records := newFakeRecordStore()
	sc := newController(linearGraph(), store, records)
	ctx := context.Background()

	result, err := sc.Enter(ctx, "wf", &StepRequest{}, "")
	require.NoError(t, err)
	session := result.Session

	first := dmodels.RecordRef{EntityName: "lead", PrimaryKeyName: "id", ID: "L1"}
	_, err = sc.AdvanceAfterAction(ctx, session, first, nil, false)
	require.NoError(t, err)
	assert.Equal(t, first, session.PrimaryRecord)

	second := dmodels.RecordRef{EntityName: "account", PrimaryKeyName: "id", ID: "ACC9"}
	_, err = sc.AdvanceAfterAction(ctx, session, second, nil, false)
	require.NoError(t, err)
	assert.Equal(t, first, session.PrimaryRecord, "the first non-empty record id is never overwritten")
}

func TestAdvance_IdempotentRevisit(t *testing.T) {
	store := newFakeSessionStore()
	sc := newController(linearGraph(), store, newFakeRecordStore())
	ctx := context.Background()

	result, err := sc.Enter(ctx, "wf", &StepRequest{}, "")
	require.NoError(t, err)
	session := result.Session

	_, err = sc.AdvanceAfterAction(ctx, session, dmodels.RecordRef{}, nil, false)
	require.NoError(t, err)

	// Leave B with one record, come back, leave again with another.
	refB1 := dmodels.RecordRef{EntityName: "lead", PrimaryKeyName: "id", ID: "L1"}
	_, err = sc.AdvanceAfterAction(ctx, session, refB1, nil, false)
	require.NoError(t, err)

	_, err = sc.Retreat(ctx, session)
	require.NoError(t, err)

	refB2 := dmodels.RecordRef{EntityName: "lead", PrimaryKeyName: "id", ID: "L2"}
	step, err := sc.AdvanceAfterAction(ctx, session, refB2, nil, false)
	require.NoError(t, err)
	assert.Equal(t, "C", step.ID)

	count := 0
	for _, e := range session.StepHistory {
		if e.StepID == "B" {
			count++
		}
	}
	assert.Equal(t, 1, count, "revisits update in place")
	assert.Equal(t, refB2, session.FindEntry("B").ReferenceEntity, "the most recent non-empty reference is retained")
}

func TestAdvance_TerminalCompletesFlow(t *testing.T) {
	store := newFakeSessionStore()
	sc := newController(linearGraph(), store, newFakeRecordStore())
	ctx := context.Background()

	result, err := sc.Enter(ctx, "wf", &StepRequest{}, "")
	require.NoError(t, err)
	session := result.Session

	_, err = sc.AdvanceAfterAction(ctx, session, dmodels.RecordRef{}, nil, false)
	require.NoError(t, err)
	_, err = sc.AdvanceAfterAction(ctx, session, dmodels.RecordRef{}, nil, false)
	require.NoError(t, err)

	step, err := sc.AdvanceAfterAction(ctx, session, dmodels.RecordRef{}, nil, false)
	require.NoError(t, err)
	assert.Nil(t, step, "a terminal step signals flow completion")
	assert.False(t, session.IsActive)
	assert.Contains(t, store.deactivated, session.ID)
	assert.NotEmpty(t, session.StepHistory, "history survives completion for audit")
}

func TestAdvance_ConditionCycleDetected(t *testing.T) {
	expr := "amount > 10"
	graph := newFakeGraph(
		&dmodels.WebForm{ID: "wf", StartStepID: "S1", SavePastRecords: true},
		&dmodels.WebFormStep{ID: "S1", Kind: dmodels.StepKindLoadForm, TargetEntity: "lead", TargetPrimaryKey: "id", NextStepID: strPtr("C1")},
		&dmodels.WebFormStep{ID: "C1", Kind: dmodels.StepKindCondition, ConditionExpression: &expr, NextStepID: strPtr("C2")},
		&dmodels.WebFormStep{ID: "C2", Kind: dmodels.StepKindCondition, ConditionExpression: &expr, NextStepID: strPtr("C1")},
	)
	records := newFakeRecordStore()
	records.add("lead", "L1", models.SObject{"amount": 30})
	sc := newController(graph, newFakeSessionStore(), records)
	ctx := context.Background()

	result, err := sc.Enter(ctx, "wf", &StepRequest{}, "")
	require.NoError(t, err)

	_, err = sc.AdvanceAfterAction(ctx, result.Session, dmodels.RecordRef{EntityName: "lead", PrimaryKeyName: "id", ID: "L1"}, nil, false)
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err), "a condition cycle is a configuration error")
}

func TestAdvance_PersistFailureDoesNotAdvance(t *testing.T) {
	store := newFakeSessionStore()
	sc := newController(linearGraph(), store, newFakeRecordStore())
	ctx := context.Background()

	result, err := sc.Enter(ctx, "wf", &StepRequest{}, "")
	require.NoError(t, err)
	session := result.Session

	store.saveErr = fmt.Errorf("connection reset")

	_, err = sc.AdvanceAfterAction(ctx, session, dmodels.RecordRef{EntityName: "lead", PrimaryKeyName: "id", ID: "L1"}, nil, false)
	require.Error(t, err)
	assert.True(t, errors.IsPersistence(err))

	assert.Equal(t, "A", session.CurrentStepID, "in-memory state must not advance past durable state")
	assert.Equal(t, 0, session.CurrentStepIndex)
	assert.Empty(t, session.StepHistory)
	assert.Equal(t, dmodels.RecordRef{}, session.PrimaryRecord)
}

func TestAdvance_StatelessFlowSkipsPersistence(t *testing.T) {
	graph := linearGraph()
	graph.form.SavePastRecords = false
	store := newFakeSessionStore()
	sc := newController(graph, store, newFakeRecordStore())
	ctx := context.Background()

	result, err := sc.Enter(ctx, "wf", &StepRequest{}, "")
	require.NoError(t, err)

	_, err = sc.AdvanceAfterAction(ctx, result.Session, dmodels.RecordRef{}, nil, false)
	require.NoError(t, err)
	assert.Equal(t, 0, store.saveCount, "stateless flows never touch the session store")
}

func TestRetreat_EmptyHistory(t *testing.T) {
	sc := newController(linearGraph(), newFakeSessionStore(), newFakeRecordStore())
	ctx := context.Background()

	result, err := sc.Enter(ctx, "wf", &StepRequest{}, "")
	require.NoError(t, err)

	_, err = sc.Retreat(ctx, result.Session)
	require.Error(t, err)
	assert.True(t, errors.IsNavigation(err))
}

func TestRetreat_DisallowedStep(t *testing.T) {
	graph := linearGraph()
	graph.steps["B"].AllowRetreat = false
	sc := newController(graph, newFakeSessionStore(), newFakeRecordStore())
	ctx := context.Background()

	result, err := sc.Enter(ctx, "wf", &StepRequest{}, "")
	require.NoError(t, err)
	session := result.Session

	_, err = sc.AdvanceAfterAction(ctx, session, dmodels.RecordRef{}, nil, false)
	require.NoError(t, err)

	_, err = sc.Retreat(ctx, session)
	require.Error(t, err)
	assert.True(t, errors.IsNavigation(err))
	assert.Equal(t, "B", session.CurrentStepID, "a failed retreat is a no-op")
}

func TestRetreat_SkipsConditionHops(t *testing.T) {
	expr := "amount > 10"
	graph := newFakeGraph(
		&dmodels.WebForm{ID: "wf", StartStepID: "S1", SavePastRecords: true},
		&dmodels.WebFormStep{ID: "S1", Kind: dmodels.StepKindLoadForm, TargetEntity: "lead", TargetPrimaryKey: "id", NextStepID: strPtr("C1"), AllowRetreat: true},
		&dmodels.WebFormStep{ID: "C1", Kind: dmodels.StepKindCondition, ConditionExpression: &expr, NextStepID: strPtr("S2")},
		&dmodels.WebFormStep{ID: "S2", Kind: dmodels.StepKindLoadForm, TargetEntity: "lead", TargetPrimaryKey: "id", AllowRetreat: true},
	)
	records := newFakeRecordStore()
	records.add("lead", "L1", models.SObject{"amount": 30})
	sc := newController(graph, newFakeSessionStore(), records)
	ctx := context.Background()

	result, err := sc.Enter(ctx, "wf", &StepRequest{}, "")
	require.NoError(t, err)
	session := result.Session

	step, err := sc.AdvanceAfterAction(ctx, session, dmodels.RecordRef{EntityName: "lead", PrimaryKeyName: "id", ID: "L1"}, nil, false)
	require.NoError(t, err)
	require.Equal(t, "S2", step.ID)

	step, err = sc.Retreat(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, "S1", step.ID, "retreat lands on the visible step behind the condition hop")
	assert.Equal(t, 0, session.CurrentStepIndex)
}

func TestTerminate(t *testing.T) {
	store := newFakeSessionStore()
	sc := newController(linearGraph(), store, newFakeRecordStore())
	ctx := context.Background()

	result, err := sc.Enter(ctx, "wf", &StepRequest{}, "")
	require.NoError(t, err)

	require.NoError(t, sc.Terminate(ctx, result.Session))
	assert.False(t, result.Session.IsActive)
	assert.Contains(t, store.deactivated, result.Session.ID)
}
