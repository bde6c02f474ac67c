package models

// RecordRef is a lightweight pointer to a record: entity type, primary key
// attribute name, and id. An empty ID means "not yet resolved/created".
// Value type; compared by value.
type RecordRef struct {
	EntityName     string `json:"entity_name"`
	PrimaryKeyName string `json:"primary_key_name"`
	ID             string `json:"id"`
}

// IsEmpty reports whether the reference carries no record identity
func (r RecordRef) IsEmpty() bool {
	return r.ID == ""
}

// StepHistoryEntry records a visit to one step. There is exactly one entry
// per distinct step id in a session; revisits update in place.
type StepHistoryEntry struct {
	StepID          string    `json:"step_id"`
	Index           int       `json:"index"`
	PreviousStepID  string    `json:"previous_step_id,omitempty"`
	ReferenceEntity RecordRef `json:"reference_entity"`
	IsActive        bool      `json:"is_active"`
}

// WebFormSession is one user's in-progress traversal of a step graph,
// persisted across requests. The session controller exclusively owns
// mutation; every other component reads.
type WebFormSession struct {
	ID               string              `json:"id"`
	WebFormID        string              `json:"web_form_id"`
	CurrentStepID    string              `json:"current_step_id"`
	CurrentStepIndex int                 `json:"current_step_index"`
	StepHistory      []*StepHistoryEntry `json:"step_history"`
	// PrimaryRecord is fixed at the first non-empty record id produced
	// anywhere in the flow and never overwritten afterwards.
	PrimaryRecord RecordRef `json:"primary_record"`
	// ContactID / AnonymousID identify the visitor for session resumption
	ContactID   string `json:"contact_id,omitempty"`
	AnonymousID string `json:"anonymous_id,omitempty"`
	IsActive    bool   `json:"is_active"`
}

// Clone deep-copies the session so a failed persist can roll back
// in-memory state without desynchronizing from the store
func (s *WebFormSession) Clone() *WebFormSession {
	dup := *s
	dup.StepHistory = make([]*StepHistoryEntry, len(s.StepHistory))
	for i, e := range s.StepHistory {
		copied := *e
		dup.StepHistory[i] = &copied
	}
	return &dup
}

// FindEntry returns the history entry for a step id, or nil
func (s *WebFormSession) FindEntry(stepID string) *StepHistoryEntry {
	for _, e := range s.StepHistory {
		if e.StepID == stepID {
			return e
		}
	}
	return nil
}

// CurrentEntry returns the history entry for the current step, or nil
func (s *WebFormSession) CurrentEntry() *StepHistoryEntry {
	return s.FindEntry(s.CurrentStepID)
}

// CurrentReference returns the record reference resolved for the current
// step, or an empty RecordRef if the step has no entry yet
func (s *WebFormSession) CurrentReference() RecordRef {
	if e := s.CurrentEntry(); e != nil {
		return e.ReferenceEntity
	}
	return RecordRef{}
}
