package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/roach88/tactline/internal/ir"
)

// Scenario drives a solver through a sequence of tacts and checks what it
// signified along the way.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name" validate:"required"`

	// Description explains what this scenario validates.
	Description string `yaml:"description" validate:"required"`

	// KB is the knowledge-base directory. Relative paths are resolved
	// against the scenario file's directory.
	KB string `yaml:"kb" validate:"required"`

	// Tacts are processed in order, one tact per step.
	Tacts []TactStep `yaml:"tacts" validate:"required,min=1,dive"`

	// Assertions are checked against the final timeline.
	Assertions []Assertion `yaml:"assertions,omitempty" validate:"dive"`
}

// TactStep applies a working-memory update and then processes one tact.
type TactStep struct {
	Items       []ir.WMItem `yaml:"items,omitempty" validate:"dive"`
	ClearBefore bool        `yaml:"clear_before,omitempty"`

	// Expect is optional; a step without one only has to succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes the outcome of one tact. Every field is a subset match
// except Opened, Closed and Occurred, which must list exactly the
// intervals and events of that tact.
type Expect struct {
	// Signified maps expression paths to values; null means unknown.
	Signified map[string]any `yaml:"signified,omitempty"`

	// WM maps working-memory paths to values after the tact.
	WM map[string]any `yaml:"wm,omitempty"`

	Opened   []string `yaml:"opened,omitempty"`
	Closed   []string `yaml:"closed,omitempty"`
	Occurred []string `yaml:"occurred,omitempty"`

	// Error is the runtime error code the step must fail with.
	Error string `yaml:"error,omitempty"`
}

// Assertion checks the state left behind by the whole scenario.
type Assertion struct {
	Type string `yaml:"type" validate:"required,oneof=interval_count event_count still_open signified"`

	// ID names the interval or event (interval_count, event_count, still_open).
	ID string `yaml:"id,omitempty"`

	// Path is a signified expression path (signified).
	Path string `yaml:"path,omitempty"`

	Count *int  `yaml:"count,omitempty" validate:"omitempty,min=0"`
	Open  *bool `yaml:"open,omitempty"`
	Value any   `yaml:"value,omitempty"`
}

// Assertion type constants.
const (
	AssertIntervalCount = "interval_count"
	AssertEventCount    = "event_count"
	AssertStillOpen     = "still_open"
	AssertSignified     = "signified"
)

var scenarioValidator = newScenarioValidator()

func newScenarioValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected and the KB path is resolved relative to the
// file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(s.KB) {
		s.KB = filepath.Join(filepath.Dir(path), s.KB)
	}
	return s, nil
}

// ParseScenario decodes and validates scenario YAML. The KB path is left
// as written.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if err := scenarioValidator.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		msgs := make([]string, len(verrs))
		for i, fe := range verrs {
			msgs[i] = fmt.Sprintf("%s failed %q", strings.TrimPrefix(fe.Namespace(), "Scenario."), fe.Tag())
		}
		return errors.New(strings.Join(msgs, "; "))
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

// validateAssertion checks the fields each assertion type depends on.
func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertIntervalCount, AssertEventCount:
		if a.ID == "" || a.Count == nil {
			return fmt.Errorf("%s requires id and count", a.Type)
		}
	case AssertStillOpen:
		if a.ID == "" || a.Open == nil {
			return fmt.Errorf("%s requires id and open", a.Type)
		}
	case AssertSignified:
		if a.Path == "" {
			return fmt.Errorf("%s requires path", a.Type)
		}
	}
	return nil
}

// FindScenarios returns the .yaml and .yml files under dir in lexical
// order. A non-empty filter is a glob matched against the file name
// without its extension.
func FindScenarios(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			matched, err := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext))
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}
