// Package console is the command line entry point of an application.
//
//	func main() {
//	    application, err := app.New(app.WithBootloaders(&AppBootloader{}))
//	    if err != nil { ... }
//	    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	    defer stop()
//	    os.Exit(console.Execute(ctx, application))
//	}
package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/km-arc/go-spiral/framework/app"
	"github.com/km-arc/go-spiral/framework/core"
	"github.com/km-arc/go-spiral/framework/errs"
)

// ScopeName is the scope opened around actions run from the command line.
const ScopeName = "console"

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewRootCommand creates the `spiral` command tree for a.
func NewRootCommand(a *app.Application) *cobra.Command {
	root := &cobra.Command{
		Use:           "spiral",
		Short:         "Run and inspect a spiral application",
		Version:       a.Version(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCommand(a),
		newContainerListCommand(a),
		newConfigShowCommand(a),
		newCallCommand(a),
	)
	return root
}

// Execute runs the root command with os.Args and returns the exit code.
func Execute(ctx context.Context, a *app.Application) int {
	return Run(ctx, a, os.Args[1:], os.Stdout, os.Stderr)
}

// Run executes args against the command tree. Errors are printed to errOut.
func Run(ctx context.Context, a *app.Application, args []string, out, errOut io.Writer) int {
	root := NewRootCommand(a)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	fmt.Fprintln(errOut, "Error:", err)
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

// fail tags err with the Console kind unless it already carries one.
func fail(op, subject string, err error) error {
	if err == nil {
		return nil
	}
	var e *errs.Error
	if !errors.As(err, &e) {
		err = errs.Wrap(errs.Console, op, subject, err)
	}
	return &ExitError{Code: 1, Err: err}
}

// ── serve ─────────────────────────────────────────────────────────────────────

func newServeCommand(a *app.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve HTTP until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return fail("console.serve", "", a.Serve(cmd.Context()))
		},
	}
}

// ── container:list ────────────────────────────────────────────────────────────

type binding struct {
	Abstract string `yaml:"abstract"`
	Resolved bool   `yaml:"resolved"`
}

type containerListing struct {
	Bindings []binding         `yaml:"bindings"`
	Aliases  map[string]string `yaml:"aliases,omitempty"`
}

func newContainerListCommand(a *app.Application) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "container:list",
		Short: "List root container bindings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.Boot(); err != nil {
				return fail("console.container:list", "", err)
			}
			listing := containerListing{Aliases: a.Aliases()}
			for _, abstract := range a.Bindings() {
				listing.Bindings = append(listing.Bindings, binding{Abstract: abstract, Resolved: a.Resolved(abstract)})
			}

			switch format {
			case "yaml":
				return fail("console.container:list", format, writeYAML(cmd.OutOrStdout(), listing))
			case "text":
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ABSTRACT\tRESOLVED")
				for _, b := range listing.Bindings {
					fmt.Fprintf(w, "%s\t%t\n", b.Abstract, b.Resolved)
				}
				return fail("console.container:list", format, w.Flush())
			default:
				return fail("console.container:list", format, fmt.Errorf("unknown format %q (want text or yaml)", format))
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or yaml")
	return cmd
}

// ── config:show ───────────────────────────────────────────────────────────────

func newConfigShowCommand(a *app.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "config:show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return fail("console.config:show", "", writeYAML(cmd.OutOrStdout(), maskSecrets(a.Config().Repository().All())))
		},
	}
}

// ── call ──────────────────────────────────────────────────────────────────────

func newCallCommand(a *app.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "call <controller> <action> [key=value...]",
		Short: "Run a controller action through the interceptor pipeline",
		Example: `  spiral call users show id=1
  spiral call greeter hello name=gopher`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			subject := args[0] + "." + args[1]
			params, err := parseParams(args[2:])
			if err != nil {
				return fail("console.call", subject, err)
			}
			out, err := a.Call(cmd.Context(), ScopeName, args[0], args[1], params)
			if err != nil {
				return fail("console.call", subject, err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return fail("console.call", subject, enc.Encode(out))
		},
	}
}

// mask replaces secret values in config:show output.
const mask = "******"

// maskSecrets copies settings with non-empty secret values masked. A key is
// secret when its last segment is "key", "dsn" or contains "password",
// "secret" or "token".
func maskSecrets(settings map[string]any) map[string]any {
	out := make(map[string]any, len(settings))
	for k, v := range settings {
		switch x := v.(type) {
		case map[string]any:
			out[k] = maskSecrets(x)
		default:
			if isSecret(k) && v != nil && fmt.Sprint(v) != "" {
				out[k] = mask
				continue
			}
			out[k] = v
		}
	}
	return out
}

func isSecret(key string) bool {
	key = strings.ToLower(key)
	if key == "key" || key == "dsn" || strings.HasSuffix(key, "_key") {
		return true
	}
	for _, word := range []string{"password", "secret", "token"} {
		if strings.Contains(key, word) {
			return true
		}
	}
	return false
}

func parseParams(args []string) (core.Params, error) {
	params := core.Params{}
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, errs.New(errs.Console, "console.call", arg, "parameter must look like key=value")
		}
		params[key] = value
	}
	return params, nil
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
