package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/iley/calcc/internal/compiler"
	"github.com/iley/calcc/internal/ir"
	"github.com/iley/calcc/internal/toolchain"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

const (
	sourceSuffix = ".calc"
	// Expected exit status of the program.
	exitCodeSuffix = ".out"
	// Expected fragment of the compilation error.
	errorSuffix = ".err"
)

// TestCase represents a single program with its expectation.
type TestCase struct {
	Name         string
	SourceFile   string
	ExpectedFile string
	ExpectError  bool
}

// discoverTests finds all programs in testsDir that have an expectation file.
func discoverTests(testsDir string) ([]TestCase, error) {
	var tests []TestCase

	err := filepath.WalkDir(testsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, sourceSuffix) {
			return nil
		}

		baseName := strings.TrimSuffix(path, sourceSuffix)
		name, err := filepath.Rel(testsDir, baseName)
		if err != nil {
			return err
		}
		if _, err := os.Stat(baseName + exitCodeSuffix); err == nil {
			tests = append(tests, TestCase{Name: filepath.ToSlash(name), SourceFile: path, ExpectedFile: baseName + exitCodeSuffix})
		} else if _, err := os.Stat(baseName + errorSuffix); err == nil {
			tests = append(tests, TestCase{Name: filepath.ToSlash(name), SourceFile: path, ExpectedFile: baseName + errorSuffix, ExpectError: true})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(tests, func(i, j int) bool {
		return tests[i].Name < tests[j].Name
	})
	return tests, nil
}

// findTestCase finds a test case by number prefix, name or path.
func findTestCase(tests []TestCase, testsDir, identifier string) (*TestCase, error) {
	identifier = strings.TrimSuffix(identifier, sourceSuffix)
	identifier = strings.TrimPrefix(filepath.ToSlash(identifier), filepath.ToSlash(testsDir)+"/")

	for i := range tests {
		if tests[i].Name == identifier || strings.HasPrefix(tests[i].Name, identifier+"_") {
			return &tests[i], nil
		}
	}
	return nil, errors.Errorf("test not found: %s", identifier)
}

type runner struct {
	engine    string
	compiler  *compiler.Compiler
	toolchain *toolchain.Toolchain
}

// execute compiles source and returns the exit status of the resulting program.
func (r *runner) execute(ctx context.Context, source string) (int, error) {
	_, irf, err := r.compiler.Generate(source)
	if err != nil {
		return 0, errors.WithMessage(err, "compilation error")
	}

	switch r.engine {
	case "interp":
		result, err := ir.Interpret(irf)
		if err != nil {
			return 0, errors.WithMessage(err, "runtime error")
		}
		return int(uint8(result)), nil
	case "clang":
		code, err := r.toolchain.Execute(ctx, irf.String())
		if err != nil {
			return 0, errors.WithMessage(err, "runtime error")
		}
		return code, nil
	}
	return 0, errors.Errorf("unknown engine %q", r.engine)
}

// runSingleTest runs a single test case and returns pass/fail status.
func (r *runner) runSingleTest(ctx context.Context, testCase TestCase) (bool, string) {
	source, err := os.ReadFile(testCase.SourceFile)
	if err != nil {
		return false, fmt.Sprintf("error reading source: %v", err)
	}
	expected, err := os.ReadFile(testCase.ExpectedFile)
	if err != nil {
		return false, fmt.Sprintf("error reading expected output: %v", err)
	}
	want := strings.TrimSpace(string(expected))

	code, err := r.execute(ctx, string(source))
	if testCase.ExpectError {
		if err == nil {
			return false, fmt.Sprintf("expected error containing %q, program exited with %d", want, code)
		}
		if !strings.Contains(err.Error(), want) {
			return false, fmt.Sprintf("error mismatch:\nExpected: %q\nActual:   %q", want, err.Error())
		}
		return true, ""
	}
	if err != nil {
		return false, err.Error()
	}

	wantCode, err := strconv.Atoi(want)
	if err != nil {
		return false, fmt.Sprintf("bad expected exit status %q", want)
	}
	if code != wantCode {
		return false, fmt.Sprintf("exit status mismatch: expected %d, got %d", wantCode, code)
	}
	return true, ""
}

// runTests runs tests and reports progress to out. Returns the number of
// failed tests.
func (r *runner) runTests(ctx context.Context, tests []TestCase, out io.Writer) int {
	passed := 0
	failed := 0
	for _, test := range tests {
		fmt.Fprintf(out, "Running test %s... ", test.Name)
		if success, errorMsg := r.runSingleTest(ctx, test); success {
			fmt.Fprintln(out, "PASS")
			passed++
		} else {
			fmt.Fprintf(out, "FAIL - %s\n", errorMsg)
			failed++
		}
	}

	if failed == 0 {
		fmt.Fprintf(out, "Test Results: %d passed. All good!\n", passed)
	} else {
		fmt.Fprintf(out, "Test Results: %d passed, %d failed\n", passed, failed)
	}
	return failed
}

func main() {
	testsDir := pflag.StringP("dir", "d", "testdata/programs", "directory containing the test programs")
	engine := pflag.StringP("engine", "e", "clang", "how to execute compiled programs (clang, interp)")
	cc := pflag.String("cc", toolchain.DefaultCC, "compiler used to build the IR")
	pflag.Parse()

	tests, err := discoverTests(*testsDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error discovering tests: %v\n", err)
		os.Exit(1)
	}
	if len(tests) == 0 {
		fmt.Printf("No tests found in %s\n", *testsDir)
		return
	}

	testsToRun := tests
	if pflag.NArg() > 0 {
		testCase, err := findTestCase(tests, *testsDir, pflag.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		testsToRun = []TestCase{*testCase}
		fmt.Printf("Running specific test: %s\n", testCase.Name)
	} else if len(tests) == 1 {
		fmt.Printf("Found 1 test\n")
	} else {
		fmt.Printf("Found %d tests\n", len(tests))
	}

	r := &runner{
		engine:    *engine,
		compiler:  compiler.New(compiler.Options{}, nil),
		toolchain: toolchain.New(toolchain.Config{CC: *cc}, nil),
	}
	if failed := r.runTests(context.Background(), testsToRun, os.Stdout); failed > 0 {
		os.Exit(1)
	}
}
