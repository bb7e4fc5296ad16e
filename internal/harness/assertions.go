package harness

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/tastefi/internal/dashboard"
	"github.com/roach88/tastefi/internal/identity"
	"github.com/roach88/tastefi/internal/ledger"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			if event.Type == EventInvocation {
				fmt.Fprintf(&buf, "  [%d] %s %s %v\n", i+1, event.Action, event.Record, event.Args)
			}
		}
	}
	return buf.String()
}

// AssertionContext provides ledger access for record assertions.
type AssertionContext struct {
	Ctx    context.Context
	Client *dashboard.Client
	Caller identity.PublicKey

	// Labels maps scenario labels to the profile keys they were bound to.
	Labels map[string]identity.PublicKey
}

// EvaluateAssertions evaluates all assertions against the result and
// returns one message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertRecordEquals, AssertRecordAbsent, AssertRecordsDistinct:
			if actx == nil || actx.Client == nil {
				err = fmt.Errorf("assertion[%d]: %s requires a ledger client", i, assertion.Type)
				break
			}
			switch assertion.Type {
			case AssertRecordEquals:
				err = assertRecordEquals(actx, assertion)
			case AssertRecordAbsent:
				err = assertRecordAbsent(actx, assertion)
			default:
				err = assertRecordsDistinct(actx, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

// assertTraceContains checks for an invocation of the action whose args
// include every expected arg.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Type == EventInvocation && event.Action == assertion.Action && matchArgs(event.Args, assertion.Args) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("action %s with args %v", assertion.Action, assertion.Args),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first occurrences of the actions appear
// in the given order. Intervening actions are allowed.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if event.Type != EventInvocation {
			continue
		}
		if _, seen := positions[event.Action]; !seen {
			positions[event.Action] = i + 1
		}
	}

	for _, action := range assertion.Actions {
		if positions[action] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all actions present: %v", assertion.Actions),
				Actual:   fmt.Sprintf("missing action: %s", action),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Actions); i++ {
		prev, curr := assertion.Actions[i-1], assertion.Actions[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", assertion.Actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that the action was invoked exactly Count times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == EventInvocation && event.Action == assertion.Action {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

func (a *AssertionContext) resolve(label string) (identity.PublicKey, error) {
	pk, ok := a.Labels[label]
	if !ok {
		return identity.PublicKey{}, fmt.Errorf("record %q was never bound to an identity", label)
	}
	return pk, nil
}

func (a *AssertionContext) resolveOwner(ref string) (identity.PublicKey, error) {
	if ref == CallerRef {
		return a.Caller, nil
	}
	if strings.HasPrefix(ref, "$") {
		return a.resolve(ref[1:])
	}
	return identity.ParsePublicKey(ref)
}

// assertRecordEquals fetches the labelled record and compares the expected
// fields.
func assertRecordEquals(actx *AssertionContext, assertion Assertion) error {
	pk, err := actx.resolve(assertion.Record)
	if err != nil {
		return &AssertionError{Type: AssertRecordEquals, Expected: "bound record", Actual: err.Error()}
	}

	got, err := actx.Client.FetchRestaurantProfile(actx.Ctx, pk)
	if err != nil {
		return &AssertionError{
			Type:     AssertRecordEquals,
			Expected: fmt.Sprintf("record %s", assertion.Record),
			Actual:   fmt.Sprintf("fetch failed: %v", err),
		}
	}

	keys := make([]string, 0, len(assertion.Expect))
	for k := range assertion.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		want := assertion.Expect[key]
		var actual string
		switch key {
		case "name":
			actual = got.Name
		case "ipfs_hash":
			actual = got.IPFSHash
		case "owner":
			owner, err := actx.resolveOwner(want)
			if err != nil {
				return &AssertionError{Type: AssertRecordEquals, Expected: "resolvable owner", Actual: err.Error()}
			}
			want = owner.String()
			actual = got.Owner.String()
		default:
			return fmt.Errorf("record_equals: unknown field %q", key)
		}

		if actual != want {
			return &AssertionError{
				Type:     AssertRecordEquals,
				Expected: fmt.Sprintf("%s.%s = %q", assertion.Record, key, want),
				Actual:   fmt.Sprintf("%s.%s = %q", assertion.Record, key, actual),
			}
		}
	}
	return nil
}

// assertRecordAbsent checks that nothing was stored at the labelled
// identity.
func assertRecordAbsent(actx *AssertionContext, assertion Assertion) error {
	pk, err := actx.resolve(assertion.Record)
	if err != nil {
		return &AssertionError{Type: AssertRecordAbsent, Expected: "bound record", Actual: err.Error()}
	}

	_, err = actx.Client.FetchRestaurantProfile(actx.Ctx, pk)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return nil
	}
	actual := "record exists"
	if err != nil {
		actual = fmt.Sprintf("fetch failed: %v", err)
	}
	return &AssertionError{
		Type:     AssertRecordAbsent,
		Expected: fmt.Sprintf("no record at %s", assertion.Record),
		Actual:   actual,
	}
}

// assertRecordsDistinct checks that the labels were bound to pairwise
// different identities.
func assertRecordsDistinct(actx *AssertionContext, assertion Assertion) error {
	seen := make(map[identity.PublicKey]string, len(assertion.Records))
	for _, label := range assertion.Records {
		pk, err := actx.resolve(label)
		if err != nil {
			return &AssertionError{Type: AssertRecordsDistinct, Expected: "bound records", Actual: err.Error()}
		}
		if prev, dup := seen[pk]; dup {
			return &AssertionError{
				Type:     AssertRecordsDistinct,
				Expected: fmt.Sprintf("distinct identities for %v", assertion.Records),
				Actual:   fmt.Sprintf("%s and %s share %s", prev, label, pk),
			}
		}
		seen[pk] = label
	}
	return nil
}

// matchArgs reports whether actual contains every expected arg.
func matchArgs(actual, expected map[string]any) bool {
	for key, want := range expected {
		got, ok := actual[key]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}
