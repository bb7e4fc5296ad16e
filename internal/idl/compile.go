package idl

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/tastefi/internal/identity"
)

//go:embed schema.cue
var schemaSource []byte

//go:embed programs/restaurant_dashboard.cue
var restaurantDashboardSource []byte

// DefaultProgramName is the name of the embedded program definition.
const DefaultProgramName = "restaurant_dashboard"

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Compile checks a program struct against the schema and converts it.
// The program name is taken from the value's last path selector, e.g.
//
//	v := ctx.CompileString(src).LookupPath(cue.ParsePath("program.restaurant_dashboard"))
//	prog, err := Compile(v)
func Compile(v cue.Value) (*Program, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	schema := v.Context().CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("idl schema: %w", err)
	}
	unified := v.Unify(schema.LookupPath(cue.MakePath(cue.Def("Program"))))
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	prog := &Program{}
	if sels := v.Path().Selectors(); len(sels) > 0 {
		prog.Name = sels[len(sels)-1].String()
	}
	if prog.Name == "" {
		return nil, &CompileError{Field: "program", Message: "program must be a named field", Pos: v.Pos()}
	}

	prog.ID = ProgramID(prog.Name)
	if idVal := unified.LookupPath(cue.ParsePath("id")); idVal.Exists() {
		s, err := idVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		pk, err := identity.ParsePublicKey(s)
		if err != nil {
			return nil, &CompileError{Field: "id", Message: err.Error(), Pos: idVal.Pos()}
		}
		prog.ID = pk
	}

	var err error
	prog.Instructions, err = parseInstructions(unified)
	if err != nil {
		return nil, err
	}
	if len(prog.Instructions) == 0 {
		return nil, &CompileError{Field: "instruction", Message: "at least one instruction is required", Pos: v.Pos()}
	}

	prog.Accounts, err = parseAccountTypes(unified)
	if err != nil {
		return nil, err
	}

	return prog, nil
}

func parseInstructions(v cue.Value) ([]Instruction, error) {
	iter, err := v.LookupPath(cue.ParsePath("instruction")).Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []Instruction
	for iter.Next() {
		name := iter.Label()
		ixVal := iter.Value()
		ix := Instruction{
			Name:          name,
			Discriminator: InstructionDiscriminator(name),
		}

		accounts, err := parseAccountSpecs(ixVal.LookupPath(cue.ParsePath("accounts")))
		if err != nil {
			return nil, err
		}
		ix.Accounts = accounts

		args, err := parseFields(ixVal.LookupPath(cue.ParsePath("args")), "args")
		if err != nil {
			return nil, err
		}
		ix.Args = args

		if err := checkInit(&ix, ixVal.Pos()); err != nil {
			return nil, err
		}
		out = append(out, ix)
	}
	return out, nil
}

func parseAccountSpecs(v cue.Value) ([]AccountSpec, error) {
	list, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []AccountSpec
	seen := make(map[string]bool)
	for list.Next() {
		item := list.Value()
		spec := AccountSpec{}

		if spec.Name, err = item.LookupPath(cue.ParsePath("name")).String(); err != nil {
			return nil, formatCUEError(err)
		}
		if seen[spec.Name] {
			return nil, &CompileError{Field: "accounts", Message: fmt.Sprintf("duplicate account %q", spec.Name), Pos: item.Pos()}
		}
		seen[spec.Name] = true

		for _, flag := range []struct {
			label string
			dst   *bool
		}{
			{"writable", &spec.Writable},
			{"signer", &spec.Signer},
			{"init", &spec.Init},
		} {
			fv, _ := item.LookupPath(cue.ParsePath(flag.label)).Default()
			if *flag.dst, err = fv.Bool(); err != nil {
				return nil, formatCUEError(err)
			}
		}

		if addrVal := item.LookupPath(cue.ParsePath("address")); addrVal.Exists() {
			s, err := addrVal.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			pk, err := identity.ParsePublicKey(s)
			if err != nil {
				return nil, &CompileError{Field: "address", Message: err.Error(), Pos: addrVal.Pos()}
			}
			spec.Address = &pk
		}

		out = append(out, spec)
	}
	return out, nil
}

// checkInit enforces that an instruction creating accounts has every
// created slot signed and writable and carries the system program.
func checkInit(ix *Instruction, pos token.Pos) error {
	hasInit := false
	for _, a := range ix.Accounts {
		if !a.Init {
			continue
		}
		hasInit = true
		if !a.Signer || !a.Writable {
			return &CompileError{
				Field:   "accounts",
				Message: fmt.Sprintf("%s: init account %q must be signer and writable", ix.Name, a.Name),
				Pos:     pos,
			}
		}
	}
	if !hasInit {
		return nil
	}
	for _, a := range ix.Accounts {
		if a.Address != nil && *a.Address == identity.SystemProgramID {
			return nil
		}
	}
	return &CompileError{
		Field:   "accounts",
		Message: fmt.Sprintf("%s: init requires a system program account", ix.Name),
		Pos:     pos,
	}
}

func parseAccountTypes(v cue.Value) ([]AccountType, error) {
	iter, err := v.LookupPath(cue.ParsePath("account")).Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []AccountType
	for iter.Next() {
		name := iter.Label()
		fields, err := parseFields(iter.Value().LookupPath(cue.ParsePath("fields")), "fields")
		if err != nil {
			return nil, err
		}
		out = append(out, AccountType{
			Name:          name,
			Discriminator: AccountDiscriminator(name),
			Fields:        fields,
		})
	}
	return out, nil
}

func parseFields(v cue.Value, label string) ([]Field, error) {
	list, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []Field
	seen := make(map[string]bool)
	for list.Next() {
		item := list.Value()
		name, err := item.LookupPath(cue.ParsePath("name")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		typ, err := item.LookupPath(cue.ParsePath("type")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if seen[name] {
			return nil, &CompileError{Field: label, Message: fmt.Sprintf("duplicate field %q", name), Pos: item.Pos()}
		}
		seen[name] = true

		ft := FieldType(typ)
		if !ft.valid() {
			return nil, &CompileError{Field: "type", Message: fmt.Sprintf("unsupported type %q", typ), Pos: item.Pos()}
		}
		out = append(out, Field{Name: name, Type: ft})
	}
	return out, nil
}

// CompileSource compiles every program under the top-level "program" field
// of a CUE source file.
func CompileSource(filename string, src []byte) ([]*Program, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return compilePrograms(v)
}

// Load compiles the CUE package in dir and returns its programs sorted by
// name.
func Load(dir string) ([]*Program, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("idl directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("idl directory: not a directory: %s", dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	ctx := cuecontext.New()
	v := ctx.BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return compilePrograms(v)
}

func compilePrograms(v cue.Value) ([]*Program, error) {
	progs := v.LookupPath(cue.ParsePath("program"))
	if !progs.Exists() {
		return nil, &CompileError{Field: "program", Message: "no programs defined", Pos: v.Pos()}
	}
	iter, err := progs.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []*Program
	for iter.Next() {
		p, err := Compile(iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, &CompileError{Field: "program", Message: "no programs defined", Pos: progs.Pos()}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

var (
	defaultOnce sync.Once
	defaultProg *Program
	defaultErr  error
)

// Default returns the embedded restaurant dashboard program. The returned
// value is shared and must not be modified.
func Default() (*Program, error) {
	defaultOnce.Do(func() {
		progs, err := CompileSource("restaurant_dashboard.cue", restaurantDashboardSource)
		if err != nil {
			defaultErr = fmt.Errorf("compile embedded program: %w", err)
			return
		}
		defaultProg = progs[0]
	})
	return defaultProg, defaultErr
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
