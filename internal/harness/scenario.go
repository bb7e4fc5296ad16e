package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tastefi/internal/identity"
)

// Scenario is a scripted sequence of profile writes plus assertions on the
// resulting trace and ledger state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Program selects the deployed program by name. Empty means the
	// embedded restaurant_dashboard program.
	Program string `yaml:"program,omitempty"`

	// Seed drives the deterministic identity generator. Empty means Name.
	Seed string `yaml:"seed,omitempty"`

	// Flow is executed in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions are evaluated after the flow.
	Assertions []Assertion `yaml:"assertions"`
}

// Flow actions.
const (
	// ActionUpdateProfile submits one write and records the ledger's answer.
	ActionUpdateProfile = "update_restaurant_profile"

	// ActionCreateAndVerify runs the full create, fetch, and compare cycle.
	ActionCreateAndVerify = "create_and_verify"
)

// Outcome cases beyond the ledger error codes.
const (
	CaseSuccess  = "Success"
	CaseMismatch = "Mismatch"
)

// FlowStep is one invocation in a scenario.
type FlowStep struct {
	// Invoke is update_restaurant_profile or create_and_verify.
	Invoke string `yaml:"invoke"`

	// As labels the fresh identity generated for this step.
	As string `yaml:"as,omitempty"`

	// Record reuses the identity labelled by an earlier step.
	Record string `yaml:"record,omitempty"`

	// OmitCosigner leaves the profile signature off the transaction.
	OmitCosigner bool `yaml:"omit_cosigner,omitempty"`

	// Args holds name and ipfs_hash.
	Args map[string]any `yaml:"args"`

	// Expect checks the outcome. Nil means success is not checked.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause names the expected outcome: Success, Mismatch, or a ledger
// error code such as MissingRequiredSignature.
type ExpectClause struct {
	Case string `yaml:"case"`
}

// Assertion validates the trace or ledger state after the flow.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Action and Args are used by trace_contains and trace_count.
	// Args is a subset match.
	Action string         `yaml:"action,omitempty"`
	Args   map[string]any `yaml:"args,omitempty"`

	// Count is used by trace_count.
	Count int `yaml:"count,omitempty"`

	// Actions is used by trace_order.
	Actions []string `yaml:"actions,omitempty"`

	// Record is the label read by record_equals and record_absent.
	Record string `yaml:"record,omitempty"`

	// Expect holds the fields record_equals compares: name, ipfs_hash,
	// owner. Owner may be "$caller" or "$<label>".
	Expect map[string]string `yaml:"expect,omitempty"`

	// Records lists the labels records_distinct compares.
	Records []string `yaml:"records,omitempty"`
}

// Assertion types.
const (
	AssertTraceContains   = "trace_contains"
	AssertTraceOrder      = "trace_order"
	AssertTraceCount      = "trace_count"
	AssertRecordEquals    = "record_equals"
	AssertRecordAbsent    = "record_absent"
	AssertRecordsDistinct = "records_distinct"
)

// LoadScenario reads and validates a scenario YAML file. Unknown fields
// are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
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

func (s *Scenario) seed() string {
	if s.Seed != "" {
		return s.Seed
	}
	return s.Name
}

// validateScenario checks required fields and that every label is defined
// before it is used.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	labels := make(map[string]bool)
	for i, step := range s.Flow {
		if err := validateStep(i, &step, labels); err != nil {
			return err
		}
		if step.As != "" {
			labels[step.As] = true
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i], labels); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, step *FlowStep, labels map[string]bool) error {
	switch step.Invoke {
	case ActionUpdateProfile:
	case ActionCreateAndVerify:
		if step.Record != "" || step.OmitCosigner {
			return fmt.Errorf("flow[%d]: %s always uses a fresh, co-signed identity", i, ActionCreateAndVerify)
		}
	case "":
		return fmt.Errorf("flow[%d]: invoke is required", i)
	default:
		return fmt.Errorf("flow[%d]: unknown action %q", i, step.Invoke)
	}

	if step.As != "" && step.Record != "" {
		return fmt.Errorf("flow[%d]: as and record are mutually exclusive", i)
	}
	if step.As != "" && labels[step.As] {
		return fmt.Errorf("flow[%d]: label %q already defined", i, step.As)
	}
	if step.Record != "" && !labels[step.Record] {
		return fmt.Errorf("flow[%d]: record %q is not defined by an earlier step", i, step.Record)
	}

	if step.Args == nil {
		return fmt.Errorf("flow[%d]: args is required", i)
	}
	for _, key := range []string{"name", "ipfs_hash"} {
		v, ok := step.Args[key]
		if !ok {
			return fmt.Errorf("flow[%d]: args.%s is required", i, key)
		}
		if _, ok := v.(string); !ok {
			return fmt.Errorf("flow[%d]: args.%s must be a string, got %T", i, key, v)
		}
	}
	if len(step.Args) != 2 {
		return fmt.Errorf("flow[%d]: args accepts only name and ipfs_hash", i)
	}

	if step.Expect != nil && step.Expect.Case == "" {
		return fmt.Errorf("flow[%d].expect: case is required", i)
	}
	return nil
}

func validateAssertion(index int, a *Assertion, labels map[string]bool) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertRecordEquals:
		if !labels[a.Record] {
			return fmt.Errorf("assertions[%d]: record %q is not defined by the flow", index, a.Record)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for record_equals", index)
		}
		for key, val := range a.Expect {
			switch key {
			case "name", "ipfs_hash":
			case "owner":
				if err := validateOwnerRef(val, labels); err != nil {
					return fmt.Errorf("assertions[%d]: %w", index, err)
				}
			default:
				return fmt.Errorf("assertions[%d]: unknown record field %q", index, key)
			}
		}
	case AssertRecordAbsent:
		if !labels[a.Record] {
			return fmt.Errorf("assertions[%d]: record %q is not defined by the flow", index, a.Record)
		}
	case AssertRecordsDistinct:
		if len(a.Records) < 2 {
			return fmt.Errorf("assertions[%d]: records_distinct needs at least two records", index)
		}
		for _, r := range a.Records {
			if !labels[r] {
				return fmt.Errorf("assertions[%d]: record %q is not defined by the flow", index, r)
			}
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// CallerRef names the env caller in owner expectations.
const CallerRef = "$caller"

func validateOwnerRef(ref string, labels map[string]bool) error {
	if ref == CallerRef {
		return nil
	}
	if len(ref) > 1 && ref[0] == '$' {
		if !labels[ref[1:]] {
			return fmt.Errorf("owner %q names an undefined record", ref)
		}
		return nil
	}
	if _, err := identity.ParsePublicKey(ref); err != nil {
		return fmt.Errorf("owner %q: %w", ref, err)
	}
	return nil
}
