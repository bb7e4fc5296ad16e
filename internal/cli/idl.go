package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tastefi/internal/idl"
)

type idlOutput struct {
	Programs []*idl.Program `json:"programs"`
}

func (o idlOutput) renderText(w io.Writer) {
	for i, p := range o.Programs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "program %s\n", p)
		for _, ix := range p.Instructions {
			fmt.Fprintf(w, "  instruction %s [%s]\n", ix.Name, ix.Discriminator)
			for _, a := range ix.Accounts {
				fmt.Fprintf(w, "    account %s%s\n", a.Name, accountFlags(a))
			}
			for _, f := range ix.Args {
				fmt.Fprintf(w, "    arg %s: %s\n", f.Name, f.Type)
			}
		}
		for _, at := range p.Accounts {
			fmt.Fprintf(w, "  account type %s [%s]\n", at.Name, at.Discriminator)
			for _, f := range at.Fields {
				fmt.Fprintf(w, "    field %s: %s\n", f.Name, f.Type)
			}
		}
	}
}

func accountFlags(a idl.AccountSpec) string {
	var flags []string
	if a.Writable {
		flags = append(flags, "mut")
	}
	if a.Signer {
		flags = append(flags, "signer")
	}
	if a.Init {
		flags = append(flags, "init")
	}
	if a.Address != nil {
		flags = append(flags, "address="+a.Address.String())
	}
	if len(flags) == 0 {
		return ""
	}
	return " (" + strings.Join(flags, ", ") + ")"
}

// NewIDLCommand creates the idl command.
func NewIDLCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "idl [dir]",
		Short: "Compile and print program definitions",
		Long: `Compile the CUE program definitions in dir and print the resulting
IDL. Without dir the embedded restaurant_dashboard program is printed.

Examples:
  tastefi idl
  tastefi idl ./programs --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				progs []*idl.Program
				err   error
			)
			if len(args) == 1 {
				progs, err = idl.Load(args[0])
			} else {
				var p *idl.Program
				p, err = idl.Default()
				progs = []*idl.Program{p}
			}
			if err != nil {
				return WrapExitError(ExitCommandError, "compilation failed", err)
			}
			return rootOpts.formatter(cmd).Success(idlOutput{Programs: progs})
		},
	}

	return cmd
}
