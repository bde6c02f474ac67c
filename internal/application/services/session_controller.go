package services

import (
	"context"
	"fmt"
	"log"

	"github.com/nexusportal/backend/internal/domain"
	dmodels "github.com/nexusportal/backend/internal/domain/models"
	"github.com/nexusportal/backend/internal/domain/ports"
	"github.com/nexusportal/backend/pkg/errors"
	"github.com/nexusportal/backend/pkg/utils"
)

// SessionController orchestrates multi-step form sessions: initial entry,
// forward and backward movement, and termination. It exclusively owns
// mutation of WebFormSession; every other component reads.
//
// The controller holds no per-session state of its own. The host loads the
// session before each request and persists after, so one instance serves
// all sessions concurrently.
type SessionController struct {
	graph      ports.StepGraphSource
	sessions   ports.SessionPersistence
	records    ports.RecordStore
	conditions ports.ConditionEvaluator
	resolver   *ReferenceResolver
}

// NewSessionController creates a new SessionController
func NewSessionController(
	graph ports.StepGraphSource,
	sessions ports.SessionPersistence,
	records ports.RecordStore,
	conditions ports.ConditionEvaluator,
) *SessionController {
	return &SessionController{
		graph:      graph,
		sessions:   sessions,
		records:    records,
		conditions: conditions,
		resolver:   NewReferenceResolver(records),
	}
}

// EnterResult is what a flow entry hands back to the transport layer
type EnterResult struct {
	Session *dmodels.WebFormSession
	Step    *dmodels.WebFormStep
	// Resumed is true when an existing persisted session was picked up
	Resumed bool
}

// Enter loads or initializes the session for a web form. Resolution order:
// an explicit resume token (session id), then the visitor's sticky primary
// record, then the visitor identity. A new session starts at the web form's
// start step with index 0.
func (sc *SessionController) Enter(ctx context.Context, webFormID string, req *StepRequest, resumeToken string) (*EnterResult, error) {
	form, err := sc.graph.GetWebForm(ctx, webFormID)
	if err != nil {
		return nil, err
	}
	if form == nil {
		return nil, errors.NewNotFoundError("WebForm", webFormID)
	}

	start, err := sc.graph.GetStartStep(ctx, webFormID)
	if err != nil {
		return nil, err
	}
	if start == nil {
		return nil, errors.NewConfigurationError(
			fmt.Sprintf("web form %s", webFormID), "no start step designated")
	}

	if form.SavePastRecords {
		session, err := sc.resumeSession(ctx, form, req, resumeToken)
		if err != nil {
			return nil, err
		}
		if session != nil {
			step, err := sc.graph.GetStep(ctx, session.CurrentStepID)
			if err != nil {
				return nil, err
			}
			if step == nil {
				return nil, errors.NewConfigurationError(
					fmt.Sprintf("session %s", session.ID),
					fmt.Sprintf("current step %s no longer exists", session.CurrentStepID))
			}
			log.Printf("▶️ WebForm session resumed: %s at step %s", session.ID, step.ID)
			return &EnterResult{Session: session, Step: step, Resumed: true}, nil
		}
	}

	session := &dmodels.WebFormSession{
		ID:            utils.GenerateID(),
		WebFormID:     webFormID,
		CurrentStepID: start.ID,
		IsActive:      true,
	}
	if req != nil {
		if !req.User.IsAnonymous() {
			session.ContactID = req.User.ID
		} else {
			session.AnonymousID = req.AnonymousID
		}
	}

	if form.SavePastRecords {
		if _, err := sc.sessions.Save(ctx, session); err != nil {
			return nil, errors.NewPersistenceError("session create", err)
		}
	}

	log.Printf("✅ WebForm session created: %s for form %s at step %s", session.ID, webFormID, start.ID)
	return &EnterResult{Session: session, Step: start}, nil
}

// resumeSession tries each resumption key in order and returns the first
// active persisted session, or nil when the visitor starts fresh.
func (sc *SessionController) resumeSession(ctx context.Context, form *dmodels.WebForm, req *StepRequest, resumeToken string) (*dmodels.WebFormSession, error) {
	if resumeToken != "" {
		session, err := sc.sessions.Load(ctx, resumeToken)
		if err != nil {
			return nil, errors.NewPersistenceError("session load", err)
		}
		if session != nil && session.IsActive && session.WebFormID == form.ID {
			return session, nil
		}
	}

	if req == nil {
		return nil, nil
	}

	if form.EditExistingRecord && !req.User.IsAnonymous() {
		userRef := dmodels.RecordRef{EntityName: req.User.EntityName(), ID: req.User.ID}
		session, err := sc.sessions.LoadByPrimaryRecord(ctx, form.ID, userRef.ID)
		if err != nil {
			return nil, errors.NewPersistenceError("session load by primary record", err)
		}
		if session != nil && session.IsActive {
			return session, nil
		}
	}

	identity := req.AnonymousID
	if !req.User.IsAnonymous() {
		identity = req.User.ID
	}
	if identity == "" {
		return nil, nil
	}
	session, err := sc.sessions.LoadByIdentity(ctx, form.ID, identity)
	if err != nil {
		return nil, errors.NewPersistenceError("session load by identity", err)
	}
	if session != nil && session.IsActive {
		return session, nil
	}
	return nil, nil
}

// CurrentStep returns the step the session points at
func (sc *SessionController) CurrentStep(ctx context.Context, session *dmodels.WebFormSession) (*dmodels.WebFormStep, error) {
	step, err := sc.graph.GetStep(ctx, session.CurrentStepID)
	if err != nil {
		return nil, err
	}
	if step == nil {
		return nil, errors.NewConfigurationError(
			fmt.Sprintf("session %s", session.ID),
			fmt.Sprintf("current step %s no longer exists", session.CurrentStepID))
	}
	return step, nil
}

// CurrentReference resolves the record the active step operates on: the
// journaled reference when the step was already visited, otherwise a fresh
// resolution of the step's source strategy. A nil resolution means the
// lookup missed and the caller must drive a not-found outcome.
func (sc *SessionController) CurrentReference(ctx context.Context, session *dmodels.WebFormSession, req *StepRequest) (*Resolution, error) {
	step, err := sc.CurrentStep(ctx, session)
	if err != nil {
		return nil, err
	}
	if entry := session.CurrentEntry(); entry != nil && !entry.ReferenceEntity.IsEmpty() {
		return &Resolution{Reference: entry.ReferenceEntity}, nil
	}
	return sc.resolver.Resolve(ctx, step, session, req)
}

// AdvanceAfterAction moves the session forward once the active step's
// business action has committed. currentRef is the record that action
// produced or operated on; it is journaled against the step being left.
// Condition steps encountered on the way are evaluated and chained
// transparently. Returns the newly current step, or nil when the flow
// reached a terminal step and completed.
//
// conditionPassed is consulted only when the step being left is itself a
// Condition step whose outcome the caller computed.
func (sc *SessionController) AdvanceAfterAction(ctx context.Context, session *dmodels.WebFormSession, currentRef dmodels.RecordRef, req *StepRequest, conditionPassed bool) (*dmodels.WebFormStep, error) {
	form, err := sc.graph.GetWebForm(ctx, session.WebFormID)
	if err != nil {
		return nil, err
	}
	if form == nil {
		return nil, errors.NewNotFoundError("WebForm", session.WebFormID)
	}

	current, err := sc.CurrentStep(ctx, session)
	if err != nil {
		return nil, err
	}

	snapshot := session.Clone()

	// Journal the outcome of the step that just executed, and fix the
	// sticky primary record at the first non-empty id seen anywhere.
	sc.recordReference(session, current.ID, currentRef)
	sc.stickPrimaryRecord(session, currentRef)

	next, err := sc.walkToVisibleStep(ctx, session, current, currentRef, conditionPassed)
	if err != nil {
		*session = *snapshot
		return nil, err
	}

	if next == nil {
		// Terminal: the flow completed. Keep history for audit.
		session.IsActive = false
		if form.SavePastRecords {
			if _, err := sc.sessions.Save(ctx, session); err != nil {
				*session = *snapshot
				return nil, errors.NewPersistenceError("session save", err)
			}
			if err := sc.sessions.Deactivate(ctx, session.ID); err != nil {
				*session = *snapshot
				return nil, errors.NewPersistenceError("session deactivate", err)
			}
		}
		log.Printf("✅ WebForm session completed: %s", session.ID)
		return nil, nil
	}

	session.CurrentStepID = next.ID
	session.CurrentStepIndex++

	if form.SavePastRecords {
		if _, err := sc.sessions.Save(ctx, session); err != nil {
			// The in-memory session must not advance past durable state.
			*session = *snapshot
			return nil, errors.NewPersistenceError("session save", err)
		}
	}

	log.Printf("➡️ WebForm session %s advanced to step %s (index %d)", session.ID, next.ID, session.CurrentStepIndex)
	return next, nil
}

// walkToVisibleStep follows edges from current until it lands on a visible
// step or a terminal, evaluating and journaling Condition hops on the way.
// A Condition step revisited within one advance is a configuration cycle.
func (sc *SessionController) walkToVisibleStep(ctx context.Context, session *dmodels.WebFormSession, current *dmodels.WebFormStep, currentRef dmodels.RecordRef, conditionPassed bool) (*dmodels.WebFormStep, error) {
	visited := map[string]bool{current.ID: true}
	passed := conditionPassed
	if current.Kind != dmodels.StepKindCondition {
		passed = true
	}

	for {
		next, err := domain.NextStep(ctx, sc.graph, current, passed)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, nil
		}
		if visited[next.ID] {
			return nil, errors.NewConfigurationError(
				fmt.Sprintf("step %s", next.ID),
				"condition chain revisits a step within one advance")
		}
		visited[next.ID] = true

		if next.Kind != dmodels.StepKindCondition {
			sc.journalVisit(session, next.ID, current.ID, session.CurrentStepIndex+1, true, dmodels.RecordRef{})
			return next, nil
		}

		// Condition hops are journaled (inactive) so back-navigation and
		// progress projection can reconstruct the branch, but they never
		// increment the visible step index.
		condRef, err := sc.conditionReference(next, session, currentRef)
		if err != nil {
			return nil, err
		}
		sc.journalVisit(session, next.ID, current.ID, session.CurrentStepIndex+1, false, condRef)

		passed, err = sc.evaluateCondition(ctx, next, condRef)
		if err != nil {
			return nil, err
		}
		current = next
	}
}

// conditionReference picks the record a Condition step evaluates against:
// a named prior step's journaled reference, or the record produced by the
// step that just executed.
func (sc *SessionController) conditionReference(step *dmodels.WebFormStep, session *dmodels.WebFormSession, currentRef dmodels.RecordRef) (dmodels.RecordRef, error) {
	if step.SourceStepID != nil && *step.SourceStepID != "" {
		entry := session.FindEntry(*step.SourceStepID)
		if entry == nil {
			return dmodels.RecordRef{}, errors.NewConfigurationError(
				fmt.Sprintf("step %s", step.ID),
				fmt.Sprintf("references step %s which was never visited", *step.SourceStepID))
		}
		return entry.ReferenceEntity, nil
	}
	return currentRef, nil
}

func (sc *SessionController) evaluateCondition(ctx context.Context, step *dmodels.WebFormStep, ref dmodels.RecordRef) (bool, error) {
	if step.ConditionExpression == nil || *step.ConditionExpression == "" {
		return false, errors.NewConfigurationError(
			fmt.Sprintf("step %s", step.ID), "condition step has no expression")
	}
	if ref.IsEmpty() {
		return false, errors.NewConfigurationError(
			fmt.Sprintf("step %s", step.ID), "condition expression references an unresolvable record")
	}

	record, err := sc.records.Get(ctx, ref.EntityName, ref.PrimaryKeyName, ref.ID)
	if err != nil {
		return false, err
	}
	if record == nil {
		return false, errors.NewConfigurationError(
			fmt.Sprintf("step %s", step.ID),
			fmt.Sprintf("condition record %s/%s does not exist", ref.EntityName, ref.ID))
	}

	passed, err := sc.conditions.Evaluate(*step.ConditionExpression, record)
	if err != nil {
		return false, errors.NewConfigurationError(
			fmt.Sprintf("step %s", step.ID),
			fmt.Sprintf("condition evaluation failed: %v", err))
	}
	return passed, nil
}

// Retreat moves the session one visible step backwards. It fails with a
// NavigationError when the current step forbids backward movement or there
// is nothing to go back to.
func (sc *SessionController) Retreat(ctx context.Context, session *dmodels.WebFormSession) (*dmodels.WebFormStep, error) {
	form, err := sc.graph.GetWebForm(ctx, session.WebFormID)
	if err != nil {
		return nil, err
	}
	if form == nil {
		return nil, errors.NewNotFoundError("WebForm", session.WebFormID)
	}

	current, err := sc.CurrentStep(ctx, session)
	if err != nil {
		return nil, err
	}
	if !current.AllowRetreat {
		return nil, errors.NewNavigationError("move previous", fmt.Sprintf("step %s disallows backward movement", current.ID))
	}

	entry := session.CurrentEntry()
	if len(session.StepHistory) == 0 || entry == nil || entry.PreviousStepID == "" {
		return nil, errors.NewNavigationError("move previous", "step history is empty")
	}

	// Condition hops are transparent going backwards too: follow previous
	// pointers until a visible step.
	prevID := entry.PreviousStepID
	var prev *dmodels.WebFormStep
	for prevID != "" {
		step, err := sc.graph.GetStep(ctx, prevID)
		if err != nil {
			return nil, err
		}
		if step == nil {
			return nil, errors.NewConfigurationError(
				fmt.Sprintf("session %s", session.ID),
				fmt.Sprintf("history references missing step %s", prevID))
		}
		if step.Kind.IsVisible() {
			prev = step
			break
		}
		hop := session.FindEntry(prevID)
		if hop == nil {
			break
		}
		prevID = hop.PreviousStepID
	}
	if prev == nil {
		return nil, errors.NewNavigationError("move previous", "no visible step behind the current one")
	}

	snapshot := session.Clone()

	entry.IsActive = false
	session.CurrentStepID = prev.ID
	session.CurrentStepIndex--
	if reentered := session.FindEntry(prev.ID); reentered != nil {
		reentered.IsActive = true
	}

	if form.SavePastRecords {
		if _, err := sc.sessions.Save(ctx, session); err != nil {
			*session = *snapshot
			return nil, errors.NewPersistenceError("session save", err)
		}
	}

	log.Printf("⬅️ WebForm session %s retreated to step %s (index %d)", session.ID, prev.ID, session.CurrentStepIndex)
	return prev, nil
}

// Terminate marks the session inactive. History is kept for audit.
func (sc *SessionController) Terminate(ctx context.Context, session *dmodels.WebFormSession) error {
	session.IsActive = false
	if err := sc.sessions.Deactivate(ctx, session.ID); err != nil {
		return errors.NewPersistenceError("session deactivate", err)
	}
	log.Printf("🛑 WebForm session terminated: %s", session.ID)
	return nil
}

// recordReference journals a step outcome against an existing history
// entry. Steps that were never journaled (the start step before its first
// advance) have no entry to update; their record survives through the
// sticky primary record instead.
func (sc *SessionController) recordReference(session *dmodels.WebFormSession, stepID string, ref dmodels.RecordRef) {
	entry := session.FindEntry(stepID)
	if entry == nil {
		return
	}
	if !ref.IsEmpty() {
		entry.ReferenceEntity = ref
	}
}

// journalVisit creates or updates the single history entry for a step id.
// Revisits update in place: previous pointer and reference only when the
// new value is non-empty, the active flag always. This update-not-append
// rule is what keeps backward navigation and loop re-entry safe.
func (sc *SessionController) journalVisit(session *dmodels.WebFormSession, stepID, previousStepID string, index int, active bool, ref dmodels.RecordRef) {
	entry := session.FindEntry(stepID)
	if entry == nil {
		session.StepHistory = append(session.StepHistory, &dmodels.StepHistoryEntry{
			StepID:          stepID,
			Index:           index,
			PreviousStepID:  previousStepID,
			ReferenceEntity: ref,
			IsActive:        active,
		})
		return
	}
	if previousStepID != "" {
		entry.PreviousStepID = previousStepID
	}
	if !ref.IsEmpty() {
		entry.ReferenceEntity = ref
	}
	entry.Index = index
	entry.IsActive = active
}

func (sc *SessionController) stickPrimaryRecord(session *dmodels.WebFormSession, ref dmodels.RecordRef) {
	if session.PrimaryRecord.IsEmpty() && !ref.IsEmpty() {
		session.PrimaryRecord = ref
	}
}

// Resolver exposes the controller's reference resolver to the transport
// layer for resolving a step's record on first render.
func (sc *SessionController) Resolver() *ReferenceResolver {
	return sc.resolver
}
