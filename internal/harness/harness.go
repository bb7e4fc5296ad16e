package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/tastefi/internal/identity"
	"github.com/roach88/tastefi/internal/idl"
	"github.com/roach88/tastefi/internal/ledger"
	"github.com/roach88/tastefi/internal/localnet"
)

// RunOption configures Run.
type RunOption func(*runConfig)

type runConfig struct {
	programs []*idl.Program
	logger   *slog.Logger
}

// WithPrograms deploys programs instead of the embedded default.
func WithPrograms(programs []*idl.Program) RunOption {
	return func(c *runConfig) { c.programs = programs }
}

// WithLogger sets the logger for the localnet and the flow.
func WithLogger(l *slog.Logger) RunOption {
	return func(c *runConfig) { c.logger = l }
}

// Run executes scenario against a fresh in-memory localnet with a
// deterministic identity generator seeded by the scenario. The first
// generated identity is the caller.
func Run(ctx context.Context, scenario *Scenario, opts ...RunOption) (*Result, error) {
	cfg := runConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	node, err := localnet.Start(ctx, localnet.Config{Programs: cfg.programs, Logger: cfg.logger})
	if err != nil {
		return nil, fmt.Errorf("failed to start localnet: %w", err)
	}
	defer node.Close()

	programName := scenario.Program
	if programName == "" {
		programName = idl.DefaultProgramName
	}
	program, ok := node.Program(programName)
	if !ok {
		return nil, fmt.Errorf("program %q is not deployed", programName)
	}

	gen := identity.NewDeterministicGenerator(scenario.seed())
	caller, err := gen.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate caller: %w", err)
	}

	return RunWithEnv(ctx, &Env{
		Client:    node.Client(),
		Caller:    caller,
		Generator: gen,
		Program:   program,
		Logger:    cfg.logger,
	}, scenario)
}

// RunWithEnv executes scenario against env. Expect and assertion failures
// are reported in the Result; infrastructure failures are returned as
// errors.
func RunWithEnv(ctx context.Context, env *Env, scenario *Scenario) (*Result, error) {
	if err := env.validate(); err != nil {
		return nil, err
	}

	gen := &recordingGenerator{inner: env.Generator}
	stepEnv := *env
	stepEnv.Generator = gen

	r := &runner{
		env:    &stepEnv,
		gen:    gen,
		labels: make(map[string]*identity.Identity),
		result: NewResult(),
		logger: env.logger().With("scenario", scenario.Name),
	}
	if err := r.executeFlow(ctx, scenario.Flow); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	actx := &AssertionContext{
		Ctx:    ctx,
		Client: env.dashboard(),
		Caller: env.Caller.PublicKey(),
		Labels: r.labelKeys(),
	}
	for _, msg := range EvaluateAssertions(r.result, scenario.Assertions, actx) {
		r.result.AddError(msg)
	}
	return r.result, nil
}

type runner struct {
	env    *Env
	gen    *recordingGenerator
	labels map[string]*identity.Identity
	result *Result
	seq    int64
	logger *slog.Logger
}

func (r *runner) next() int64 {
	r.seq++
	return r.seq
}

func (r *runner) labelKeys() map[string]identity.PublicKey {
	out := make(map[string]identity.PublicKey, len(r.labels))
	for label, id := range r.labels {
		out[label] = id.PublicKey()
	}
	return out
}

func (r *runner) executeFlow(ctx context.Context, flow []FlowStep) error {
	for i, step := range flow {
		name, _ := step.Args["name"].(string)
		ref, _ := step.Args["ipfs_hash"].(string)
		label := step.As
		if step.Record != "" {
			label = step.Record
		}

		r.result.AddInvocationTrace(step.Invoke, label, step.Args, r.next())

		var (
			profile *identity.Identity
			receipt *ledger.Receipt
			err     error
		)
		r.gen.reset()
		switch step.Invoke {
		case ActionCreateAndVerify:
			var v *Verification
			v, err = CreateAndVerify(ctx, r.env, name, ref)
			if v != nil {
				receipt = v.Receipt
			}
			profile = r.gen.last

		case ActionUpdateProfile:
			var opts []CreateOption
			if step.OmitCosigner {
				opts = append(opts, WithoutCosigner())
			}
			if step.Record != "" {
				opts = append(opts, WithProfile(r.labels[step.Record]))
			}
			var created *Created
			created, err = Create(ctx, r.env, name, ref, opts...)
			if created != nil {
				profile, receipt = created.Profile, created.Receipt
			}
		}

		outcome, fatal := classify(err)
		if fatal != nil {
			return fmt.Errorf("flow step %d (%s): %w", i, step.Invoke, fatal)
		}
		if step.As != "" && profile != nil {
			r.labels[step.As] = profile
		}

		var res map[string]any
		if receipt != nil {
			res = map[string]any{"slot": receipt.Slot}
		}
		r.result.AddCompletionTrace(outcome, label, res, r.next())

		if step.Expect != nil && step.Expect.Case != outcome {
			r.result.AddError(fmt.Sprintf("flow[%d] %s: expected case %s, got %s", i, step.Invoke, step.Expect.Case, outcome))
		}
		r.logger.Info("flow step completed", "step", i, "action", step.Invoke, "record", label, "output_case", outcome)
	}
	return nil
}

// recordingGenerator remembers the last identity it handed out so a
// step's profile can be labelled even when the write was rejected.
type recordingGenerator struct {
	inner identity.Generator
	last  *identity.Identity
}

func (g *recordingGenerator) Generate() (*identity.Identity, error) {
	id, err := g.inner.Generate()
	if err == nil {
		g.last = id
	}
	return id, err
}

func (g *recordingGenerator) reset() {
	g.last = nil
}

// classify maps a step error to an output case. Errors that are not
// ledger rejections or mismatches are fatal.
func classify(err error) (string, error) {
	if err == nil {
		return CaseSuccess, nil
	}
	var mm *MismatchError
	if errors.As(err, &mm) {
		return CaseMismatch, nil
	}
	if code := ledger.CodeOf(err); code != "" {
		return string(code), nil
	}
	return "", err
}
