package builder

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// Runner executes a single invocation and blocks until it has finished. A
// non-zero exit status must be reported as an error.
type Runner interface {
	Run(ctx context.Context, inv Invocation) error
}

// ShellRunner runs invocations through the mvdan.cc/sh interpreter
type ShellRunner struct {
	// Dir is the working directory for all commands; empty means the current one
	Dir    string
	Env    []string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// DryRun only logs the commands
	DryRun bool
}

// NewShellRunner returns a runner connected to the process' stdio and environment
func NewShellRunner() *ShellRunner {
	return &ShellRunner{
		Env:    os.Environ(),
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

var defaultExecHandler = interp.DefaultExecHandler(2)

// callStmt turns the invocation into a simple command. Every token is single
// quoted so globs, variables and escapes are passed through untouched.
func callStmt(inv Invocation) *syntax.Stmt {
	call := &syntax.CallExpr{
		Args: make([]*syntax.Word, len(inv)),
	}
	for idx, arg := range inv {
		call.Args[idx] = &syntax.Word{
			Parts: []syntax.WordPart{&syntax.SglQuoted{Value: arg}},
		}
	}

	return &syntax.Stmt{Cmd: call}
}

func (r *ShellRunner) Run(ctx context.Context, inv Invocation) error {
	if len(inv) == 0 {
		return eris.New("empty invocation")
	}

	stmt := callStmt(inv)
	log(ctx).Info().
		Bool("dry", r.DryRun).
		Str("cmd", inv.String()).
		Msg(printStmt(stmt))

	if r.DryRun {
		return nil
	}

	env := r.Env
	if env == nil {
		env = os.Environ()
	}

	runner, err := interp.New(
		interp.Dir(r.Dir),
		interp.Env(expand.ListEnviron(env...)),
		interp.ExecHandler(defaultExecHandler),
		interp.StdIO(r.Stdin, r.Stdout, r.Stderr),
		interp.Params("-e"),
	)
	if err != nil {
		return eris.Wrap(err, "Failed to initialize runner")
	}

	// exit status errors stay unwrapped for interp.IsExitStatus
	return runner.Run(ctx, stmt)
}

func printStmt(stmt *syntax.Stmt) string {
	buffer := strings.Builder{}
	printer := syntax.NewPrinter(syntax.Minify(true))
	if err := printer.Print(&buffer, stmt); err != nil {
		return ""
	}

	return buffer.String()
}
