package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rendis/procdesigner/internal/designer"
	"github.com/rendis/procdesigner/internal/diagram"
	"github.com/rendis/procdesigner/internal/expressions"
	"github.com/rendis/procdesigner/pkg/payload"
	"github.com/rendis/procdesigner/pkg/schema"
)

// source selects where a command reads its payload: a stored process, a
// file, or stdin.
type source struct {
	process string
}

func (s *source) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&s.process, "process", "p", "", "read the payload of a stored process instead of a file")
}

// read returns the payload named by the flags or the optional file argument.
// "-" or no argument reads stdin.
func (s *source) read(a *app, cmd *cobra.Command, args []string) (string, error) {
	if s.process != "" {
		st, err := a.openStore(cmd)
		if err != nil {
			return "", err
		}
		defer st.Close()
		return st.Load(cmd.Context(), s.process)
	}
	return readInput(cmd, args)
}

func readInput(cmd *cobra.Command, args []string) (string, error) {
	var r io.Reader = cmd.InOrStdin()
	if len(args) > 0 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return "", err
		}
		defer f.Close()
		r = f
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func newDecodeCmd(a *app) *cobra.Command {
	var src source
	var live bool
	cmd := &cobra.Command{
		Use:   "decode [file|-]",
		Short: "Decode a payload and print the diagram as JSON",
		Long: `decode prints the shapes and routes a payload carries. With --live the payload
is loaded the way the designer loads it: end events are rebuilt from terminating
routes and dangling routes are dropped, and the load diagnostics are printed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := src.read(a, cmd, args)
			if err != nil {
				return err
			}
			if !live {
				g, err := payload.Decode(body)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"version": g.Version,
					"diagram": g.Diagram(),
					"ignored": g.Ignored,
				})
			}

			reg, err := buildRegistry(a.cfg)
			if err != nil {
				return err
			}
			sess := designer.NewSession(designer.Config{Registry: reg, Logger: a.logger})
			if err := sess.LoadPayload(cmd.Context(), body); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"diagram":     sess.Snapshot(),
				"diagnostics": sess.Diagnostics(),
				"task_no":     sess.TaskNo,
			})
		},
	}
	src.bind(cmd)
	cmd.Flags().BoolVar(&live, "live", false, "load into a designer session and report diagnostics")
	return cmd
}

func newEncodeCmd(a *app) *cobra.Command {
	var saveTo string
	cmd := &cobra.Command{
		Use:   "encode [file|-]",
		Short: "Encode a JSON diagram into a payload",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			var d schema.Diagram
			if err := json.Unmarshal([]byte(in), &d); err != nil {
				return schema.NewErrorf(schema.ErrCodeFormat, "diagram JSON: %s", err.Error()).WithCause(err)
			}
			out, err := payload.Encode(&d, payload.WithVersion(a.cfg.FormatVersion))
			if err != nil {
				return err
			}
			if saveTo == "" {
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			}

			st, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()
			res, err := st.Save(cmd.Context(), saveTo, out)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		},
	}
	cmd.Flags().StringVar(&saveTo, "save", "", "store the payload under this process id instead of printing it")
	return cmd
}

func newValidateCmd(a *app) *cobra.Command {
	var src source
	cmd := &cobra.Command{
		Use:   "validate [file|-]",
		Short: "Check a payload for structural issues and lint findings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := src.read(a, cmd, args)
			if err != nil {
				return err
			}
			v, err := buildValidator(a.cfg)
			if err != nil {
				return err
			}
			in, err := designer.Inspect(cmd.Context(), body, v)
			if err != nil {
				return err
			}
			printIssues(cmd.OutOrStdout(), in.Result)
			return in.Result.ToError()
		},
	}
	src.bind(cmd)
	return cmd
}

func printIssues(w io.Writer, res *schema.ValidationResult) {
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()

	for _, is := range res.Errors {
		fmt.Fprintf(w, "%s %-16s %s: %s\n", red("error  "), is.Code, is.Location(), is.Message)
	}
	for _, is := range res.Warnings {
		fmt.Fprintf(w, "%s %-16s %s: %s\n", yellow("warning"), is.Code, is.Location(), is.Message)
	}
	if res.Valid() {
		fmt.Fprintf(w, "%s (%d warnings)\n", green("valid"), len(res.Warnings))
	}
}

func newRenderCmd(a *app) *cobra.Command {
	var src source
	var format, output string
	cmd := &cobra.Command{
		Use:   "render [file|-]",
		Short: "Draw a payload as ascii, mermaid or a PNG image",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := diagram.ParseFormat(format)
			if err != nil {
				return err
			}
			if f == diagram.FormatImage && output == "" {
				return fmt.Errorf("image output needs --output")
			}
			body, err := src.read(a, cmd, args)
			if err != nil {
				return err
			}
			v, err := buildValidator(a.cfg)
			if err != nil {
				return err
			}
			in, err := designer.Inspect(cmd.Context(), body, v)
			if err != nil {
				return err
			}
			out, err := diagram.Render(cmd.Context(), in.Model(src.process), f, a.cfg.AsciiBin)
			if err != nil {
				return err
			}
			if output == "" {
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}
			return os.WriteFile(output, out, 0o644)
		},
	}
	src.bind(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", "ascii", "ascii, mermaid or image")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}

func newQueryCmd(a *app) *cobra.Command {
	var src source
	cmd := &cobra.Command{
		Use:   "query <jq-expression> [file|-]",
		Short: "Run a jq expression over a decoded payload",
		Example: `  procdesigner query '.shapes[] | select(.kind == "task") | .label' order.txt
  procdesigner query -p orders '[.routes[] | select(.terminate)] | length'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := src.read(a, cmd, args[1:])
			if err != nil {
				return err
			}
			in, err := designer.Inspect(cmd.Context(), body, nil)
			if err != nil {
				return err
			}
			results, err := expressions.NewGoJQEngine().EvaluateAll(cmd.Context(), args[0], in.Data())
			if err != nil {
				return err
			}
			for _, r := range results {
				if s, ok := r.(string); ok {
					fmt.Fprintln(cmd.OutOrStdout(), s)
					continue
				}
				b, err := json.Marshal(r)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(string(b)))
			}
			return nil
		},
	}
	src.bind(cmd)
	return cmd
}
