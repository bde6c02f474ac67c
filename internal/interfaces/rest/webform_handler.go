package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nexusportal/backend/internal/application/services"
	dmodels "github.com/nexusportal/backend/internal/domain/models"
	"github.com/nexusportal/backend/internal/domain/ports"
	"github.com/nexusportal/backend/pkg/errors"
)

// Outcome values a navigation response can carry
const (
	OutcomeStep      = "step"
	OutcomeRedirect  = "redirect"
	OutcomeCompleted = "completed"
	OutcomeNotFound  = "record_not_found"
)

// WebFormHandler exposes the web form session lifecycle over REST
type WebFormHandler struct {
	controller *services.SessionController
	projector  *services.ProgressProjector
	sessions   ports.SessionPersistence
}

// NewWebFormHandler creates a new WebFormHandler
func NewWebFormHandler(controller *services.SessionController, projector *services.ProgressProjector, sessions ports.SessionPersistence) *WebFormHandler {
	return &WebFormHandler{controller: controller, projector: projector, sessions: sessions}
}

// RegisterRoutes mounts the session endpoints under the given group
func (h *WebFormHandler) RegisterRoutes(api *gin.RouterGroup) {
	forms := api.Group("/webforms/:webFormId")
	forms.POST("/sessions", h.EnterSession)
	forms.POST("/sessions/:sessionId/advance", h.AdvanceSession)
	forms.POST("/sessions/:sessionId/retreat", h.RetreatSession)
	forms.GET("/sessions/:sessionId/progress", h.GetProgress)
	forms.DELETE("/sessions/:sessionId", h.TerminateSession)
}

type enterRequest struct {
	ResumeToken string `json:"resume_token"`
}

type recordRefBody struct {
	EntityName     string `json:"entity_name"`
	PrimaryKeyName string `json:"primary_key_name"`
	ID             string `json:"id"`
}

type advanceRequest struct {
	Record recordRefBody `json:"record"`
	// ConditionPassed carries the outcome when the current step is itself
	// a condition whose predicate the client-side action computed.
	ConditionPassed bool `json:"condition_passed"`
	// Session carries the full state for stateless flows; durable flows
	// leave it empty and are loaded by the path's session id.
	Session *dmodels.WebFormSession `json:"session,omitempty"`
}

type navigationResponse struct {
	Outcome     string                  `json:"outcome"`
	SessionID   string                  `json:"session_id,omitempty"`
	Resumed     bool                    `json:"resumed,omitempty"`
	Step        *stepView               `json:"step,omitempty"`
	RedirectURL string                  `json:"redirect_url,omitempty"`
	Session     *dmodels.WebFormSession `json:"session,omitempty"`
}

type stepView struct {
	ID             string            `json:"id"`
	Name           string            `json:"name,omitempty"`
	Type           dmodels.StepKind  `json:"type"`
	Mode           dmodels.FormMode  `json:"mode,omitempty"`
	TargetEntity   string            `json:"target_entity,omitempty"`
	Record         *recordRefBody    `json:"record,omitempty"`
	StartNewRecord bool              `json:"start_new_record,omitempty"`
	Index          int               `json:"index"`
	AllowRetreat   bool              `json:"allow_retreat"`
}

func (h *WebFormHandler) stepRequest(c *gin.Context) *services.StepRequest {
	params := make(map[string]string)
	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return &services.StepRequest{
		QueryParams: params,
		User:        GetUserFromContext(c),
		AnonymousID: anonymousID(c),
	}
}

func anonymousID(c *gin.Context) string {
	if id := c.GetHeader("X-Anonymous-Id"); id != "" {
		return id
	}
	if id, err := c.Cookie("portal_anon_id"); err == nil {
		return id
	}
	return ""
}

// EnterSession handles POST /api/webforms/:webFormId/sessions
func (h *WebFormHandler) EnterSession(c *gin.Context) {
	var body enterRequest
	if c.Request.ContentLength > 0 && !BindJSON(c, &body) {
		return
	}

	req := h.stepRequest(c)
	result, err := h.controller.Enter(c.Request.Context(), c.Param("webFormId"), req, body.ResumeToken)
	if err != nil {
		RespondAppError(c, err)
		return
	}

	response, err := h.buildStepResponse(c, result.Session, result.Step, req)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	response.SessionID = result.Session.ID
	response.Resumed = result.Resumed
	c.JSON(http.StatusCreated, response)
}

// AdvanceSession handles POST /api/webforms/:webFormId/sessions/:sessionId/advance
func (h *WebFormHandler) AdvanceSession(c *gin.Context) {
	var body advanceRequest
	if !BindJSON(c, &body) {
		return
	}

	session, inline, err := h.loadSession(c, body.Session)
	if err != nil {
		RespondAppError(c, err)
		return
	}

	ref := dmodels.RecordRef{
		EntityName:     body.Record.EntityName,
		PrimaryKeyName: body.Record.PrimaryKeyName,
		ID:             body.Record.ID,
	}
	req := h.stepRequest(c)

	next, err := h.controller.AdvanceAfterAction(c.Request.Context(), session, ref, req, body.ConditionPassed)
	if err != nil {
		RespondAppError(c, err)
		return
	}

	if next == nil {
		c.JSON(http.StatusOK, &navigationResponse{Outcome: OutcomeCompleted, SessionID: session.ID})
		return
	}

	response, err := h.buildStepResponse(c, session, next, req)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	response.SessionID = session.ID
	if inline {
		response.Session = session
	}
	c.JSON(http.StatusOK, response)
}

// RetreatSession handles POST /api/webforms/:webFormId/sessions/:sessionId/retreat
func (h *WebFormHandler) RetreatSession(c *gin.Context) {
	var body advanceRequest
	if c.Request.ContentLength > 0 && !BindJSON(c, &body) {
		return
	}

	session, inline, err := h.loadSession(c, body.Session)
	if err != nil {
		RespondAppError(c, err)
		return
	}

	req := h.stepRequest(c)
	prev, err := h.controller.Retreat(c.Request.Context(), session)
	if err != nil {
		RespondAppError(c, err)
		return
	}

	response, err := h.buildStepResponse(c, session, prev, req)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	response.SessionID = session.ID
	if inline {
		response.Session = session
	}
	c.JSON(http.StatusOK, response)
}

// GetProgress handles GET /api/webforms/:webFormId/sessions/:sessionId/progress
func (h *WebFormHandler) GetProgress(c *gin.Context) {
	session, _, err := h.loadSession(c, nil)
	if err != nil {
		RespondAppError(c, err)
		return
	}

	HandleGetEnvelope(c, "progress", func() (interface{}, error) {
		return h.projector.ProgressSteps(c.Request.Context(), session)
	})
}

// TerminateSession handles DELETE /api/webforms/:webFormId/sessions/:sessionId
func (h *WebFormHandler) TerminateSession(c *gin.Context) {
	session, _, err := h.loadSession(c, nil)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	if err := h.controller.Terminate(c.Request.Context(), session); err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Session terminated"})
}

// loadSession resolves the session the request targets: inline state for
// stateless flows, otherwise the persisted session by path id. The bool
// reports whether inline state was used, so callers echo it back.
func (h *WebFormHandler) loadSession(c *gin.Context, inline *dmodels.WebFormSession) (*dmodels.WebFormSession, bool, error) {
	if inline != nil {
		if inline.WebFormID != c.Param("webFormId") {
			return nil, false, errors.NewValidationError("session", "session does not belong to this web form")
		}
		return inline, true, nil
	}

	sessionID := c.Param("sessionId")
	session, err := h.sessions.Load(c.Request.Context(), sessionID)
	if err != nil {
		return nil, false, errors.NewPersistenceError("session load", err)
	}
	if session == nil {
		return nil, false, errors.NewNotFoundError("Session", sessionID)
	}
	if session.WebFormID != c.Param("webFormId") {
		return nil, false, errors.NewNotFoundError("Session", sessionID)
	}
	return session, false, nil
}

// buildStepResponse classifies the step into an outcome and resolves the
// record it operates on. A resolution miss becomes a record_not_found
// outcome rather than an error.
func (h *WebFormHandler) buildStepResponse(c *gin.Context, session *dmodels.WebFormSession, step *dmodels.WebFormStep, req *services.StepRequest) (*navigationResponse, error) {
	if step.Kind == dmodels.StepKindRedirect {
		url := ""
		if step.RedirectURL != nil {
			url = *step.RedirectURL
		}
		return &navigationResponse{Outcome: OutcomeRedirect, RedirectURL: url}, nil
	}

	view := &stepView{
		ID:           step.ID,
		Name:         step.Name,
		Type:         step.Kind,
		Mode:         step.Mode,
		TargetEntity: step.TargetEntity,
		Index:        session.CurrentStepIndex,
		AllowRetreat: step.AllowRetreat,
	}

	resolution, err := h.controller.CurrentReference(c.Request.Context(), session, req)
	if err != nil {
		return nil, err
	}
	if resolution == nil {
		return &navigationResponse{Outcome: OutcomeNotFound, Step: view}, nil
	}
	if !resolution.Reference.IsEmpty() || resolution.StartNewRecord {
		view.Record = &recordRefBody{
			EntityName:     resolution.Reference.EntityName,
			PrimaryKeyName: resolution.Reference.PrimaryKeyName,
			ID:             resolution.Reference.ID,
		}
		view.StartNewRecord = resolution.StartNewRecord
	}

	return &navigationResponse{Outcome: OutcomeStep, Step: view}, nil
}
