package builder

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"

	"github.com/multiagent-debugger/pkgbuild/pkg"
)

// DefaultTestIndexURL is the upload endpoint of TestPyPI
const DefaultTestIndexURL = "https://test.pypi.org/legacy/"

// Options configures an Orchestrator. Zero values are replaced with the defaults
// of the multiagent-debugger project.
type Options struct {
	// EnvDir is the virtual environment directory
	EnvDir string
	// Python is the host interpreter used to create the environment
	Python   string
	Platform Platform

	BuildDir    string
	DistDir     string
	MetadataDir string

	TestIndexURL string
	// IndexURL overrides twine's default repository when set
	IndexURL string

	// DryRun skips filesystem changes made by the orchestrator itself. Pair it
	// with a dry ShellRunner.
	DryRun bool
}

func (o *Options) applyDefaults() {
	if o.Platform == nil {
		o.Platform = HostPlatform()
	}
	if o.EnvDir == "" {
		o.EnvDir = ".venv"
	}
	if o.Python == "" {
		if o.Platform == Windows {
			o.Python = "python"
		} else {
			o.Python = "python3"
		}
	}
	if o.BuildDir == "" {
		o.BuildDir = "build"
	}
	if o.DistDir == "" {
		o.DistDir = "dist"
	}
	if o.MetadataDir == "" {
		o.MetadataDir = "multiagent_debugger.egg-info"
	}
	if o.TestIndexURL == "" {
		o.TestIndexURL = DefaultTestIndexURL
	}
}

// Orchestrator maps each build command to its sequence of tool invocations.
// Every step blocks until the previous one finished and the first failure aborts
// the whole operation.
type Orchestrator struct {
	fs     afero.Fs
	runner Runner
	out    io.Writer
	opts   Options
	env    Environment
}

// New creates an orchestrator that accesses the project through fs, executes
// commands with runner and prints progress messages to out.
func New(fs afero.Fs, runner Runner, out io.Writer, opts Options) *Orchestrator {
	opts.applyDefaults()

	return &Orchestrator{
		fs:     fs,
		runner: runner,
		out:    out,
		opts:   opts,
		env: Environment{
			Dir:      opts.EnvDir,
			Platform: opts.Platform,
		},
	}
}

// Environment returns the descriptor of the managed virtual environment
func (o *Orchestrator) Environment() Environment {
	return o.env
}

// python builds an invocation of the host interpreter. runInEnv swaps it for the
// environment's interpreter.
func (o *Orchestrator) python(args ...string) Invocation {
	return append(Invocation{o.opts.Python}, args...)
}

func (o *Orchestrator) runInEnv(ctx context.Context, inv Invocation) error {
	return o.runner.Run(ctx, inv.InEnv(o.opts.Python, o.env))
}

func (o *Orchestrator) exists(path string) (bool, error) {
	_, err := o.fs.Stat(path)
	if err == nil {
		return true, nil
	}

	if os.IsNotExist(err) {
		return false, nil
	}
	return false, eris.Wrapf(err, "Failed to check %s", path)
}

// EnsureEnvironment creates the virtual environment (with pip) unless it already exists
func (o *Orchestrator) EnsureEnvironment(ctx context.Context) error {
	found, err := o.exists(o.env.Dir)
	if err != nil {
		return err
	}

	if found {
		pkg.PrintTask(o.out, fmt.Sprintf("Virtual environment already exists in %s.", o.env.Dir))
		return nil
	}

	pkg.PrintTask(o.out, fmt.Sprintf("Creating virtual environment in %s...", o.env.Dir))
	err = o.runner.Run(ctx, o.python("-m", "venv", o.env.Dir))
	if err != nil {
		return eris.Wrapf(err, "Failed to create virtual environment in %s", o.env.Dir)
	}

	pkg.PrintSubtask(o.out, "Virtual environment created.")
	return nil
}

// CleanTargets lists the directories removed by Clean
func (o *Orchestrator) CleanTargets() []string {
	return []string{o.opts.BuildDir, o.opts.DistDir, o.opts.MetadataDir}
}

// Clean removes the build artifacts. Missing directories are skipped.
func (o *Orchestrator) Clean(ctx context.Context) error {
	pkg.PrintTask(o.out, "Cleaning build artifacts...")

	for _, dir := range o.CleanTargets() {
		found, err := o.exists(dir)
		if err != nil {
			return err
		}
		if !found {
			continue
		}

		log(ctx).Info().
			Bool("dry", o.opts.DryRun).
			Str("path", dir).
			Msgf("removing %s", dir)
		if o.opts.DryRun {
			continue
		}

		err = o.fs.RemoveAll(dir)
		if err != nil {
			return eris.Wrapf(err, "Could not delete %s", dir)
		}
	}

	pkg.PrintSubtask(o.out, "Cleaned.")
	return nil
}

// Build installs the build frontend and builds sdist and wheel
func (o *Orchestrator) Build(ctx context.Context) error {
	err := o.EnsureEnvironment(ctx)
	if err != nil {
		return err
	}

	pkg.PrintTask(o.out, "Building package...")
	err = o.runInEnv(ctx, o.python("-m", "pip", "install", "--upgrade", "build"))
	if err != nil {
		return err
	}

	err = o.runInEnv(ctx, o.python("-m", "build"))
	if err != nil {
		return err
	}

	pkg.PrintSubtask(o.out, "Build complete.")
	return nil
}

// Install installs the project in development (editable) mode
func (o *Orchestrator) Install(ctx context.Context) error {
	err := o.EnsureEnvironment(ctx)
	if err != nil {
		return err
	}

	pkg.PrintTask(o.out, "Installing package in development mode...")
	err = o.runInEnv(ctx, o.python("-m", "pip", "install", "-e", "."))
	if err != nil {
		return err
	}

	pkg.PrintSubtask(o.out, "Installation complete.")
	return nil
}

// Test installs pytest and runs it, stopping at the first failure
func (o *Orchestrator) Test(ctx context.Context) error {
	err := o.EnsureEnvironment(ctx)
	if err != nil {
		return err
	}

	pkg.PrintTask(o.out, "Installing test dependencies...")
	err = o.runInEnv(ctx, o.python("-m", "pip", "install", "pytest"))
	if err != nil {
		return err
	}

	pkg.PrintTask(o.out, "Running tests...")
	err = o.runInEnv(ctx, o.python("-m", "pytest", "-xvs"))
	if err != nil {
		return err
	}

	pkg.PrintSubtask(o.out, "Tests complete.")
	return nil
}

// Dist rebuilds the distributions from a clean tree
func (o *Orchestrator) Dist(ctx context.Context) error {
	err := o.Clean(ctx)
	if err != nil {
		return err
	}

	err = o.Build(ctx)
	if err != nil {
		return err
	}

	pkg.PrintSubtask(o.out, fmt.Sprintf("Distribution files created in ./%s/", filepath.ToSlash(o.opts.DistDir)))
	return nil
}

// UploadTest uploads fresh distributions to the test index
func (o *Orchestrator) UploadTest(ctx context.Context) error {
	return o.upload(ctx, "TestPyPI", o.opts.TestIndexURL)
}

// Upload uploads fresh distributions to the production index
func (o *Orchestrator) Upload(ctx context.Context) error {
	return o.upload(ctx, "PyPI", o.opts.IndexURL)
}

func (o *Orchestrator) upload(ctx context.Context, index, url string) error {
	err := o.Dist(ctx)
	if err != nil {
		return err
	}

	pkg.PrintTask(o.out, fmt.Sprintf("Uploading to %s...", index))
	err = o.runInEnv(ctx, o.python("-m", "pip", "install", "--upgrade", "twine"))
	if err != nil {
		return err
	}

	files, err := o.distFiles()
	if err != nil {
		return err
	}

	inv := o.python("-m", "twine", "upload")
	if url != "" {
		inv = append(inv, "--repository-url", url)
	}
	inv = append(inv, files...)

	err = o.runInEnv(ctx, inv)
	if err != nil {
		return err
	}

	pkg.PrintSubtask(o.out, fmt.Sprintf("Upload to %s complete.", index))
	return nil
}

func (o *Orchestrator) distFiles() ([]string, error) {
	pattern := filepath.Join(o.opts.DistDir, "*")
	matches, err := afero.Glob(o.fs, pattern)
	if err != nil {
		return nil, eris.Wrapf(err, "Failed to resolve pattern %s", pattern)
	}

	files := make([]string, 0, len(matches))
	for _, item := range matches {
		info, err := o.fs.Stat(item)
		if err != nil {
			return nil, eris.Wrapf(err, "Could not stat %s", item)
		}

		if !info.IsDir() {
			files = append(files, item)
		}
	}

	if len(files) == 0 {
		if o.opts.DryRun {
			// nothing was built, show the pattern instead
			return []string{pattern}, nil
		}
		return nil, eris.Errorf("No distribution files found in %s", o.opts.DistDir)
	}

	sort.Strings(files)
	return files, nil
}

// ActivateHelp prints the command that activates the environment in the user's shell
func (o *Orchestrator) ActivateHelp(w io.Writer) {
	fmt.Fprintln(w, "\nTo activate the virtual environment:")
	fmt.Fprintf(w, "    %s\n", o.env.ActivationCommand())
	fmt.Fprintln(w)
}
