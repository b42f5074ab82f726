package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/iley/calcc/internal/compiler"
	"github.com/iley/calcc/internal/config"
	"github.com/iley/calcc/internal/ir"
	"github.com/iley/calcc/internal/lexer"
	"github.com/iley/calcc/internal/logging"
	"github.com/iley/calcc/internal/toolchain"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	EngineClang  = "clang"
	EngineInterp = "interp"
)

// Config keys bound to the persistent flags.
var globalBindings = map[string]string{
	"log.level":   "log-level",
	"log.format":  "log-format",
	"ir.function": "function",
	"ir.pointers": "pointers",
	"dump.tree":   "dump-tree",
}

// Config keys bound to the flags of the run command.
var runBindings = map[string]string{
	"toolchain.cc":   "cc",
	"toolchain.keep": "keep",
}

// exitCodeError makes the process exit with code without printing anything.
type exitCodeError struct {
	code int
}

func (e exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

type app struct {
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
	configFile string
	engine     string

	viper *viper.Viper
	cfg   *config.Config
	log   *zap.SugaredLogger
}

func newRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}

	rootCmd := &cobra.Command{
		Use:   "calcc [file]",
		Short: "Compile arithmetic statements to LLVM IR",
		Long: "calcc compiles ';'-separated integer arithmetic statements with variables and an optional\n" +
			"return into a single LLVM IR function. Source is read from the file argument or stdin.",
		Args:              cobra.MaximumNArgs(1),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE:              a.compile,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "YAML configuration file")
	flags.String("log-level", logging.DefaultLevel, "log level (debug, info, warn, error)")
	flags.String("log-format", logging.DefaultFormat, "log format (console, json, logfmt)")
	flags.String("function", compiler.DefaultFunctionName, "name of the generated function")
	flags.String("pointers", ir.PointersOpaque.String(), "pointer spelling in the IR (opaque, typed)")
	flags.String("dump-tree", compiler.DumpNone.String(), "prepend the parsed program as comments (none, sexpr, pretty)")

	compileCmd := &cobra.Command{
		Use:   "compile [file]",
		Short: "Compile a program and print the IR",
		Args:  cobra.MaximumNArgs(1),
		RunE:  a.compile,
	}

	runCmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Compile and execute a program, exiting with its result",
		Long: "Compile a program, build it with an external LLVM compiler (or the built-in interpreter)\n" +
			"and exit with the value the program returns.",
		Args: cobra.MaximumNArgs(1),
		RunE: a.run,
	}
	runCmd.Flags().StringVar(&a.engine, "engine", EngineClang, "how to execute the IR (clang, interp)")
	runCmd.Flags().String("cc", toolchain.DefaultCC, "compiler used to build the IR")
	runCmd.Flags().BoolP("keep", "k", false, "keep intermediate files")

	tokensCmd := &cobra.Command{
		Use:   "tokens [file]",
		Short: "Print the lexemes of a program",
		Args:  cobra.MaximumNArgs(1),
		RunE:  a.tokens,
	}

	treeCmd := &cobra.Command{
		Use:   "tree [file]",
		Short: "Print the parsed program without generating IR",
		Args:  cobra.MaximumNArgs(1),
		RunE:  a.tree,
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE:  a.printConfig,
	}

	rootCmd.AddCommand(compileCmd, runCmd, tokensCmd, treeCmd, configCmd)
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	return rootCmd
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	bindings := make(map[string]string, len(globalBindings)+len(runBindings))
	for key, flag := range globalBindings {
		bindings[key] = flag
	}
	if cmd.Flags().Lookup("cc") != nil {
		for key, flag := range runBindings {
			bindings[key] = flag
		}
	}

	v, err := config.NewViper(a.configFile, cmd.Flags(), bindings)
	if err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	cfg.Log.Writer = a.stderr
	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}

	a.viper = v
	a.cfg = cfg
	a.log = log
	return nil
}

func (a *app) readInput(args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		input, err := io.ReadAll(a.stdin)
		if err != nil {
			return "", errors.Wrap(err, "reading standard input")
		}
		return string(input), nil
	}
	input, err := os.ReadFile(args[0])
	if err != nil {
		return "", errors.Wrap(err, "reading input file")
	}
	return string(input), nil
}

func (a *app) newCompiler() *compiler.Compiler {
	return compiler.New(a.cfg.CompilerOptions(), a.log)
}

func (a *app) compile(cmd *cobra.Command, args []string) error {
	input, err := a.readInput(args)
	if err != nil {
		return err
	}
	output, err := a.newCompiler().Compile(input)
	if err != nil {
		return err
	}
	_, err = io.WriteString(a.stdout, output)
	return errors.Wrap(err, "writing output")
}

func (a *app) run(cmd *cobra.Command, args []string) error {
	input, err := a.readInput(args)
	if err != nil {
		return err
	}
	_, irf, err := a.newCompiler().Generate(input)
	if err != nil {
		return err
	}

	var code int
	switch a.engine {
	case EngineInterp:
		result, err := ir.Interpret(irf)
		if err != nil {
			return errors.WithMessage(err, "interpreting IR")
		}
		// Same truncation the operating system applies to exit statuses.
		code = int(uint8(result))
	case EngineClang:
		var sb strings.Builder
		if err := irf.Print(&sb, a.cfg.IR.Pointers); err != nil {
			return err
		}
		tc := toolchain.New(a.cfg.Toolchain, a.log.Named("toolchain"))
		code, err = tc.Execute(cmd.Context(), sb.String())
		if err != nil {
			return err
		}
	default:
		return errors.Errorf("unknown engine %q", a.engine)
	}

	a.log.Infow("program finished", "exit_code", code)
	if code != 0 {
		return exitCodeError{code: code}
	}
	return nil
}

func (a *app) tokens(cmd *cobra.Command, args []string) error {
	input, err := a.readInput(args)
	if err != nil {
		return err
	}
	lexemes, err := lexer.Tokenize(input)
	if err != nil {
		return err
	}
	var sb strings.Builder
	for _, lexeme := range lexemes {
		fmt.Fprintf(&sb, "%s\t%s\n", lexeme.Loc, lexeme)
	}
	_, err = io.WriteString(a.stdout, sb.String())
	return errors.Wrap(err, "writing output")
}

func (a *app) tree(cmd *cobra.Command, args []string) error {
	input, err := a.readInput(args)
	if err != nil {
		return err
	}
	program, err := a.newCompiler().Parse(input)
	if err != nil {
		return err
	}
	mode := a.cfg.Dump.Tree
	if mode == compiler.DumpNone {
		mode = compiler.DumpSexpr
	}
	_, err = io.WriteString(a.stdout, compiler.DumpTree(program, mode))
	return errors.Wrap(err, "writing output")
}

func (a *app) printConfig(cmd *cobra.Command, args []string) error {
	out, err := config.YAML(a.viper)
	if err != nil {
		return err
	}
	_, err = io.WriteString(a.stdout, out)
	return errors.Wrap(err, "writing output")
}

// execute runs the command line and returns the process exit status.
func execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	rootCmd := newRootCommand(stdin, stdout, stderr)
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var exit exitCodeError
		if errors.As(err, &exit) {
			return exit.code
		}
		fmt.Fprintf(stderr, "calcc: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
