package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test: a cast of users, a sequence of
// commands and clock movements, and the expected final state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Users are seeded with zero score before the first step.
	Users []string `yaml:"users"`

	// Engine overrides the reference tuning for this scenario.
	Engine *EngineTuning `yaml:"engine,omitempty"`

	// Steps run in order against a fresh engine.
	Steps []Step `yaml:"steps"`

	// Final asserts on users and checks after the last step.
	Final *FinalState `yaml:"final,omitempty"`
}

// EngineTuning carries per-scenario engine overrides.
type EngineTuning struct {
	DailyLimit   int    `yaml:"daily_limit,omitempty"`
	ExpiryWindow string `yaml:"expiry_window,omitempty"`
}

// Step is exactly one command or clock movement. Exactly one field must be
// set; the loader rejects steps with zero or multiple actions.
type Step struct {
	Send    *SendStep    `yaml:"send,omitempty"`
	Confirm *ResolveStep `yaml:"confirm,omitempty"`
	Snooze  *ResolveStep `yaml:"snooze,omitempty"`
	Advance string       `yaml:"advance,omitempty"`
	Sweep   *SweepStep   `yaml:"sweep,omitempty"`
}

// SendStep issues a send command.
type SendStep struct {
	Sender   string  `yaml:"sender"`
	Receiver string  `yaml:"receiver"`
	Message  string  `yaml:"message,omitempty"`
	Expect   *Expect `yaml:"expect,omitempty"`
}

// ResolveStep issues a confirm or snooze command.
type ResolveStep struct {
	Actor  string  `yaml:"actor"`
	Check  string  `yaml:"check"`
	Expect *Expect `yaml:"expect,omitempty"`
}

// SweepStep runs one expiry sweep at the current clock time.
type SweepStep struct {
	// Expired, when non-nil, asserts which check ids the sweep expired.
	Expired []string `yaml:"expired,omitempty"`
}

// Expect describes the expected rejection of a command. A nil Expect means
// the command must succeed.
type Expect struct {
	// Error is the expected error code, e.g. QUOTA_EXCEEDED.
	Error string `yaml:"error"`
}

// FinalState lists expected user and check records. Subset match: only the
// listed records and fields are checked.
type FinalState struct {
	Users  []UserExpect  `yaml:"users,omitempty"`
	Checks []CheckExpect `yaml:"checks,omitempty"`
}

// UserExpect asserts a user's score and quota counter.
type UserExpect struct {
	ID        string `yaml:"id"`
	Score     int    `yaml:"score"`
	SentToday int    `yaml:"sent_today"`
}

// CheckExpect asserts a check's terminal status.
type CheckExpect struct {
	ID     string `yaml:"id"`
	Status string `yaml:"status"`
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos fail loudly instead of silently skipping assertions.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Users) < 2 {
		return fmt.Errorf("at least two users are required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if s.Engine != nil && s.Engine.ExpiryWindow != "" {
		if _, err := time.ParseDuration(s.Engine.ExpiryWindow); err != nil {
			return fmt.Errorf("engine.expiry_window: %w", err)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step Step) error {
	set := 0
	if step.Send != nil {
		set++
		if step.Send.Sender == "" || step.Send.Receiver == "" {
			return fmt.Errorf("steps[%d].send: sender and receiver are required", index)
		}
	}
	if step.Confirm != nil {
		set++
		if step.Confirm.Actor == "" || step.Confirm.Check == "" {
			return fmt.Errorf("steps[%d].confirm: actor and check are required", index)
		}
	}
	if step.Snooze != nil {
		set++
		if step.Snooze.Actor == "" || step.Snooze.Check == "" {
			return fmt.Errorf("steps[%d].snooze: actor and check are required", index)
		}
	}
	if step.Advance != "" {
		set++
		if _, err := time.ParseDuration(step.Advance); err != nil {
			return fmt.Errorf("steps[%d].advance: %w", index, err)
		}
	}
	if step.Sweep != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("steps[%d]: exactly one of send, confirm, snooze, advance, sweep is required", index)
	}
	return nil
}
