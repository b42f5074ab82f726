package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/iley/calcc/internal/compiler"
	"github.com/stretchr/testify/require"
)

const programsDir = "../../testdata/programs"

func interpRunner() *runner {
	return &runner{engine: "interp", compiler: compiler.New(compiler.Options{}, nil)}
}

func TestDiscoverTests(t *testing.T) {
	tests, err := discoverTests(programsDir)
	require.NoError(t, err)
	require.NotEmpty(t, tests)
	require.Equal(t, "001_return_zero", tests[0].Name)
	for i := 1; i < len(tests); i++ {
		require.Less(t, tests[i-1].Name, tests[i].Name)
	}

	tc, err := findTestCase(tests, programsDir, "003")
	require.NoError(t, err)
	require.Equal(t, "003_variables", tc.Name)
	require.False(t, tc.ExpectError)

	tc, err = findTestCase(tests, programsDir, programsDir+"/101_adjacent_operands.calc")
	require.NoError(t, err)
	require.True(t, tc.ExpectError)

	_, err = findTestCase(tests, programsDir, "999")
	require.EqualError(t, err, "test not found: 999")
}

func TestDiscoverSkipsProgramsWithoutExpectation(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.calc"), []byte("1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.calc"), []byte("2"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.out"), []byte("2\n"), 0o644))

	tests, err := discoverTests(dir)
	require.NoError(t, err)
	require.Len(t, tests, 1)
	require.Equal(t, "b", tests[0].Name)
}

func TestProgramsWithInterpreter(t *testing.T) {
	tests, err := discoverTests(programsDir)
	require.NoError(t, err)

	r := interpRunner()
	for _, tc := range tests {
		t.Run(tc.Name, func(t *testing.T) {
			success, msg := r.runSingleTest(context.Background(), tc)
			require.True(t, success, msg)
		})
	}
}

func TestRunTestsReportsFailures(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.calc"), []byte("return 3"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.out"), []byte("3\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong.calc"), []byte("return 3"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong.out"), []byte("4\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "noerr.calc"), []byte("1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "noerr.err"), []byte("unexpected operand\n"), 0o644))

	tests, err := discoverTests(dir)
	require.NoError(t, err)

	var out bytes.Buffer
	failed := interpRunner().runTests(context.Background(), tests, &out)
	require.Equal(t, 2, failed)
	require.Contains(t, out.String(), "Running test good... PASS\n")
	require.Contains(t, out.String(), "exit status mismatch: expected 4, got 3")
	require.Contains(t, out.String(), `expected error containing "unexpected operand", program exited with 1`)
	require.Contains(t, out.String(), "Test Results: 1 passed, 2 failed\n")
}
