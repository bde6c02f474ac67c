package models

// StepKind classifies what a web form step does when it becomes current
type StepKind string

const (
	// StepKindCondition evaluates an expression and picks an edge; never shown to the user
	StepKindCondition StepKind = "Condition"
	// StepKindLoadForm renders an entity form for the step's target record
	StepKindLoadForm StepKind = "LoadForm"
	// StepKindLoadTab renders a single form tab
	StepKindLoadTab StepKind = "LoadTab"
	// StepKindRedirect sends the visitor to a configured URL
	StepKindRedirect StepKind = "Redirect"
	// StepKindLoadUserControl runs host-supplied custom logic
	StepKindLoadUserControl StepKind = "LoadUserControl"
)

// IsVisible reports whether the step materializes in the user-facing
// progress indicator. Condition steps are transparent.
func (k StepKind) IsVisible() bool {
	return k != StepKindCondition
}

// SourceStrategy selects how a step resolves the record it operates on
type SourceStrategy string

const (
	SourceNone                       SourceStrategy = "None"
	SourceQueryString                SourceStrategy = "QueryString"
	SourceCurrentUser                SourceStrategy = "CurrentUser"
	SourceRecordRelatedToCurrentUser SourceStrategy = "RecordRelatedToCurrentUser"
	SourceResultFromPreviousStep     SourceStrategy = "ResultFromPreviousStep"
)

// FormMode controls how a form-bearing step treats its target record
type FormMode string

const (
	ModeInsert   FormMode = "Insert"
	ModeEdit     FormMode = "Edit"
	ModeReadOnly FormMode = "ReadOnly"
)

// WebForm is the root definition of a multi-step form flow
type WebForm struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	StartStepID string `json:"start_step_id" yaml:"start_step_id"`
	// SavePastRecords makes session history durable so a returning user
	// resumes where they left off. False means the flow is stateless.
	SavePastRecords bool `json:"save_past_records" yaml:"save_past_records"`
	// EditExistingRecord resumes by primary record for authenticated users
	EditExistingRecord bool           `json:"edit_existing_record" yaml:"edit_existing_record"`
	Steps              []*WebFormStep `json:"steps,omitempty" yaml:"steps,omitempty"`
}

// WebFormStep is one node in a web form's step graph
type WebFormStep struct {
	ID        string   `json:"id" yaml:"id"`
	WebFormID string   `json:"web_form_id" yaml:"web_form_id"`
	Name      string   `json:"name" yaml:"name"`
	Kind      StepKind `json:"type" yaml:"type"`

	// Edges. NextStepID is the forward edge for every kind;
	// ConditionDefaultNextStepID is consulted only by Condition steps.
	NextStepID                 *string `json:"next_step_id,omitempty" yaml:"next_step_id,omitempty"`
	ConditionDefaultNextStepID *string `json:"condition_default_next_step_id,omitempty" yaml:"condition_default_next_step_id,omitempty"`

	// Record source configuration
	SourceStrategy     SourceStrategy `json:"source_strategy" yaml:"source_strategy"`
	SourceParam        *string        `json:"source_param,omitempty" yaml:"source_param,omitempty"`
	SourceRelationship *string        `json:"source_relationship,omitempty" yaml:"source_relationship,omitempty"`
	SourceStepID       *string        `json:"source_step_id,omitempty" yaml:"source_step_id,omitempty"`
	// ParamIsPrimaryKey means the query string value is the record id itself;
	// otherwise SourceParam names the attribute to match it against.
	ParamIsPrimaryKey bool `json:"param_is_primary_key,omitempty" yaml:"param_is_primary_key,omitempty"`
	CreateIfAbsent    bool `json:"create_if_absent,omitempty" yaml:"create_if_absent,omitempty"`

	// Target record identity (absent for Redirect/Condition)
	TargetEntity     string   `json:"target_entity,omitempty" yaml:"target_entity,omitempty"`
	TargetPrimaryKey string   `json:"target_primary_key,omitempty" yaml:"target_primary_key,omitempty"`
	Mode             FormMode `json:"mode,omitempty" yaml:"mode,omitempty"`

	ConditionExpression *string `json:"condition_expression,omitempty" yaml:"condition_expression,omitempty"`
	RedirectURL         *string `json:"redirect_url,omitempty" yaml:"redirect_url,omitempty"`
	AllowRetreat        bool    `json:"allow_retreat" yaml:"allow_retreat"`
}

// HasNext reports whether the step carries a forward edge
func (s *WebFormStep) HasNext() bool {
	return s.NextStepID != nil && *s.NextStepID != ""
}

// HasConditionDefault reports whether the step carries a default edge
func (s *WebFormStep) HasConditionDefault() bool {
	return s.ConditionDefaultNextStepID != nil && *s.ConditionDefaultNextStepID != ""
}
