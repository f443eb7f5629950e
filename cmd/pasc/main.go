package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/sanity-io/litter"

	"github.com/matouskozak/pascal-frontend/pkg/ast"
	"github.com/matouskozak/pascal-frontend/pkg/cli"
	"github.com/matouskozak/pascal-frontend/pkg/codegen"
	"github.com/matouskozak/pascal-frontend/pkg/config"
	"github.com/matouskozak/pascal-frontend/pkg/lexer"
	"github.com/matouskozak/pascal-frontend/pkg/parser"
	"github.com/matouskozak/pascal-frontend/pkg/util"
)

const (
	exitOK      = 0
	exitUsage   = 1
	exitCompile = 2
)

// compileError marks failures of the compilation itself, as opposed to
// bad invocations.
type compileError struct{ err error }

func (e *compileError) Error() string { return e.err.Error() }
func (e *compileError) Unwrap() error { return e.err }

type options struct {
	outFile    string
	backend    string
	target     string
	std        string
	configFile string
	linkExe    string
	wall       bool
	dumpAST    bool
	dumpSexpr  bool
	quiet      bool
	verbose    bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	app := cli.NewApp("pasc")
	app.Synopsis = "[options] <input-file>"
	app.Description = "A compiler for a small Pascal dialect. Prints the generated IR and writes a native object file."
	app.Authors = []string{"Matous Kozak"}
	app.Repository = "<https://github.com/matouskozak/pascal-frontend>"
	app.Stdout, app.Stderr = stdout, stderr

	var opts options
	fs := app.FlagSet
	fs.String(&opts.outFile, "output", "o", "", "Place the object file into <file> (default output.o).", "file")
	fs.String(&opts.backend, "backend", "b", "", "Select the code generator: qbe or llvm.", "backend")
	fs.String(&opts.target, "target", "t", "", "Set the QBE target ABI (default: host).", "target")
	fs.String(&opts.std, "std", "", "", "Select the dialect: mila or ext.", "std")
	fs.String(&opts.configFile, "config", "", "", "Read settings from a TOML file.", "file")
	fs.String(&opts.linkExe, "link", "", "", "Also link the object into the executable <file>.", "file")
	fs.Bool(&opts.wall, "Wall", "", false, "Enable all warnings.")
	fs.Bool(&opts.dumpAST, "dump-ast", "", false, "Dump the syntax tree and exit.")
	fs.Bool(&opts.dumpSexpr, "dump-ast-sexpr", "", false, "Dump the syntax tree as an S-expression and exit.")
	fs.Bool(&opts.quiet, "quiet", "q", false, "Do not print the generated IR.")
	fs.Bool(&opts.verbose, "verbose", "v", false, "Report each compilation stage on stderr.")

	cfg := config.NewConfig()
	groups := cfg.SetupFlagGroups(fs)

	app.Action = func(inputFiles []string) error {
		if len(inputFiles) != 1 {
			app.Usage(stdout)
			return fmt.Errorf("%w: expected exactly one input file, got %d", cli.ErrUsage, len(inputFiles))
		}
		if err := configure(cfg, &opts, groups); err != nil {
			fmt.Fprintf(stderr, "pasc: %v\n", err)
			return fmt.Errorf("%w: %v", cli.ErrUsage, err)
		}
		if err := compile(inputFiles[0], cfg, &opts, stdout); err != nil {
			fmt.Fprintf(stdout, "Error while compiling %s\n", inputFiles[0])
			util.Report(stdout, err)
			return &compileError{err}
		}
		return nil
	}

	err := app.Run(args)
	var ce *compileError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &ce):
		return exitCompile
	default:
		return exitUsage
	}
}

// configure layers the settings: built-in defaults, then the project file,
// then the command line.
func configure(cfg *config.Config, opts *options, groups *config.FlagGroups) error {
	cfg.Verbose = opts.verbose
	if opts.configFile != "" {
		if _, err := cfg.LoadFile(opts.configFile); err != nil {
			return fmt.Errorf("config %s: %w", opts.configFile, err)
		}
		util.Info(cfg, "loaded settings from %s", opts.configFile)
	}
	if opts.std != "" {
		if err := cfg.ApplyStd(opts.std); err != nil {
			return err
		}
	}
	if opts.backend != "" {
		if err := cfg.SetBackend(opts.backend); err != nil {
			return err
		}
	}
	if opts.outFile != "" {
		cfg.OutFile = opts.outFile
	}
	if opts.wall {
		for i := config.Warning(0); i < config.WarnCount; i++ {
			cfg.SetWarning(i, true)
		}
	}
	cfg.ApplyFlagGroups(groups)

	target := cfg.QbeTarget
	if opts.target != "" {
		target = opts.target
	}
	cfg.SetTarget(runtime.GOOS, runtime.GOARCH, target)
	return nil
}

func compile(path string, cfg *config.Config, opts *options, stdout io.Writer) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read file '%s': %w", path, err)
	}
	source := []rune(string(content))
	util.SetSourceFiles([]util.SourceFileRecord{{Name: path, Content: source}})

	util.Info(cfg, "parsing %s (std %s)", path, cfg.StdName)
	p := parser.NewParser(lexer.NewLexer(source, 0, cfg), cfg)
	root, err := p.Parse()
	if err != nil {
		return err
	}

	if opts.dumpAST {
		dump := litter.Options{StripPackageNames: true, HidePrivateFields: true, HideZeroValues: true}
		fmt.Fprintln(stdout, dump.Sdump(root))
		return nil
	}
	if opts.dumpSexpr {
		fmt.Fprintln(stdout, ast.Format(root))
		return nil
	}

	util.Info(cfg, "lowering to IR")
	prog, err := codegen.NewContext(cfg).GenerateIR(root)
	if err != nil {
		return err
	}

	backend, err := codegen.SelectBackend(cfg)
	if err != nil {
		return err
	}
	if !opts.quiet {
		text, err := backend.GenerateIR(prog, cfg)
		if err != nil {
			return err
		}
		fmt.Fprint(stdout, text)
	}

	util.Info(cfg, "writing %s with the %s backend (target %s)", cfg.OutFile, backend.Name(), cfg.QbeTarget)
	if err := codegen.EmitObject(backend, prog, cfg); err != nil {
		return err
	}
	if opts.linkExe != "" {
		return codegen.Link(cfg, opts.linkExe, cfg.OutFile)
	}
	return nil
}
