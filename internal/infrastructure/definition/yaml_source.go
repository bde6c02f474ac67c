package definition

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/nexusportal/backend/internal/domain"
	dmodels "github.com/nexusportal/backend/internal/domain/models"
	goyaml "gopkg.in/yaml.v3"
)

// YAMLSource is a StepGraphSource backed by web form definition files.
// It serves deployments that version their forms alongside the code
// instead of authoring them in the admin surface. Definitions are loaded
// and validated once at startup; lookups are in-memory and read-only.
type YAMLSource struct {
	forms map[string]*dmodels.WebForm
	steps map[string]*dmodels.WebFormStep
}

// LoadDir reads every .yaml/.yml file in dir, one web form per file,
// and validates each step graph before serving it.
func LoadDir(dir string) (*YAMLSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read definitions directory at %q: %w", dir, err)
	}

	source := &YAMLSource{
		forms: make(map[string]*dmodels.WebForm),
		steps: make(map[string]*dmodels.WebFormStep),
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		if err := source.loadFile(filepath.Join(dir, entry.Name())); err != nil {
			return nil, err
		}
		loaded++
	}

	if loaded == 0 {
		return nil, fmt.Errorf("no web form definition files (.yaml/.yml) found in %q", dir)
	}
	log.Printf("✅ Loaded %d web form definition(s) from %s", loaded, dir)
	return source, nil
}

func (s *YAMLSource) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading definition file: %w", err)
	}

	var form dmodels.WebForm
	if err := goyaml.Unmarshal(data, &form); err != nil {
		return fmt.Errorf("error unmarshalling %s: %w", filepath.Base(path), err)
	}
	if form.ID == "" {
		return fmt.Errorf("definition %s has no web form id", filepath.Base(path))
	}
	if _, exists := s.forms[form.ID]; exists {
		return fmt.Errorf("duplicate web form id %s in %s", form.ID, filepath.Base(path))
	}

	for _, step := range form.Steps {
		step.WebFormID = form.ID
	}
	if err := domain.ValidateGraph(&form, form.Steps); err != nil {
		return fmt.Errorf("definition %s: %w", filepath.Base(path), err)
	}

	s.forms[form.ID] = &form
	for _, step := range form.Steps {
		s.steps[step.ID] = step
	}
	return nil
}

// GetWebForm returns a loaded web form definition, or nil
func (s *YAMLSource) GetWebForm(ctx context.Context, webFormID string) (*dmodels.WebForm, error) {
	return s.forms[webFormID], nil
}

// GetStartStep returns the designated first step of a web form, or nil
func (s *YAMLSource) GetStartStep(ctx context.Context, webFormID string) (*dmodels.WebFormStep, error) {
	form := s.forms[webFormID]
	if form == nil || form.StartStepID == "" {
		return nil, nil
	}
	return s.steps[form.StartStepID], nil
}

// GetStep returns a step definition by id, or nil
func (s *YAMLSource) GetStep(ctx context.Context, stepID string) (*dmodels.WebFormStep, error) {
	return s.steps[stepID], nil
}

// GetNextStep follows the step's forward edge
func (s *YAMLSource) GetNextStep(ctx context.Context, stepID string) (*dmodels.WebFormStep, error) {
	step := s.steps[stepID]
	if step == nil || !step.HasNext() {
		return nil, nil
	}
	return s.steps[*step.NextStepID], nil
}

// GetConditionDefaultNextStep follows the step's default (condition failed) edge
func (s *YAMLSource) GetConditionDefaultNextStep(ctx context.Context, stepID string) (*dmodels.WebFormStep, error) {
	step := s.steps[stepID]
	if step == nil || !step.HasConditionDefault() {
		return nil, nil
	}
	return s.steps[*step.ConditionDefaultNextStepID], nil
}
