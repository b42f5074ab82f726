package main

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"
	"github.com/onsi/gomega/gexec"
	"github.com/stretchr/testify/require"
)

type result struct {
	code   int
	stdout string
	stderr string
}

func runCalcc(t *testing.T, input string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), args, strings.NewReader(input), &stdout, &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func TestCompileFromStdin(t *testing.T) {
	for _, args := range [][]string{nil, {"compile"}, {"compile", "-"}} {
		res := runCalcc(t, "return 1 + 1", args...)
		require.Equal(t, 0, res.code, res.stderr)
		require.Equal(t, "define i32 @main() {\n  %1 = add i32 1, 1\n  ret i32 %1\n}\n", res.stdout)
	}
}

func TestCompileFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prog.calc")
	require.NoError(t, os.WriteFile(path, []byte("a = 2;\nreturn a * a\n"), 0o644))

	res := runCalcc(t, "", "compile", path)
	require.Equal(t, 0, res.code, res.stderr)
	require.Contains(t, res.stdout, "%a = alloca i32\n")
	require.Contains(t, res.stdout, "%3 = mul i32 %1, %2\n")
}

func TestCompileFlags(t *testing.T) {
	res := runCalcc(t, "a = 3; a", "--function", "calc", "--pointers", "typed", "--dump-tree", "sexpr")
	require.Equal(t, 0, res.code, res.stderr)
	require.Equal(t, strings.Join([]string{
		"; statement 1: (= a 3)",
		"; statement 2: a",
		"define i32 @calc() {",
		"  %a = alloca i32",
		"  store i32 3, i32* %a",
		"  %1 = load i32, i32* %a",
		"  ret i32 %1",
		"}",
	}, "\n")+"\n", res.stdout)
}

func TestCompileErrorWritesNothingToStdout(t *testing.T) {
	tests := []struct {
		input string
		err   string
	}{
		{"1 1", "unexpected operand"},
		{"* 2", "operator without left operand"},
		{"if 1", "unsupported construct"},
		{"(1 + 2", "unclosed '('"},
		{"1 % 2", "unknown operator"},
		{"1 +", "incomplete expression"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			res := runCalcc(t, tt.input)
			require.Equal(t, 1, res.code)
			require.Empty(t, res.stdout)
			require.True(t, strings.HasPrefix(res.stderr, "calcc: "), res.stderr)
			require.Contains(t, res.stderr, tt.err)
		})
	}
}

func TestMissingInputFile(t *testing.T) {
	res := runCalcc(t, "", "compile", filepath.Join(t.TempDir(), "missing.calc"))
	require.Equal(t, 1, res.code)
	require.Contains(t, res.stderr, "reading input file")
}

func TestRunWithInterpreter(t *testing.T) {
	tests := []struct {
		input string
		code  int
	}{
		{"return 0", 0},
		{"a = 1 + 2*3; b = 4; return a*b*b", 112},
		{"return ((1 + 2) * 3 + 4) * 5", 65},
		{"1*2 ; 3*4/5", 2},
		// Exit statuses keep the low byte only.
		{"return 300", 44},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			res := runCalcc(t, tt.input, "run", "--engine", "interp")
			require.Equal(t, tt.code, res.code, res.stderr)
			require.Empty(t, res.stdout)
		})
	}
}

func TestRunDivisionByZero(t *testing.T) {
	res := runCalcc(t, "return 1 / 0", "run", "--engine=interp")
	require.Equal(t, 1, res.code)
	require.Contains(t, res.stderr, "interpreting IR")
	require.Contains(t, res.stderr, "division by zero")
}

func TestRunUnknownEngine(t *testing.T) {
	res := runCalcc(t, "return 1", "run", "--engine", "jit")
	require.Equal(t, 1, res.code)
	require.Contains(t, res.stderr, `unknown engine "jit"`)
}

func TestRunWithFakeCompiler(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	cc := filepath.Join(t.TempDir(), "fakecc")
	script := "#!/bin/sh\nprintf '#!/bin/sh\\nexit 9\\n' > \"$2\" && chmod +x \"$2\"\n"
	require.NoError(t, os.WriteFile(cc, []byte(script), 0o755))

	res := runCalcc(t, "return 9", "run", "--cc", cc)
	require.Equal(t, 9, res.code, res.stderr)
}

func TestTokens(t *testing.T) {
	res := runCalcc(t, "a = (1)", "tokens")
	require.Equal(t, 0, res.code, res.stderr)
	require.Equal(t, strings.Join([]string{
		"1:1\t<IDENT \"a\">",
		"1:3\t<OPERATOR \"=\">",
		"1:5\t<LPAREN \"(\">",
		"1:6\t<NUMBER \"1\">",
		"1:7\t<RPAREN \")\">",
	}, "\n")+"\n", res.stdout)
}

func TestTree(t *testing.T) {
	res := runCalcc(t, "return 1 + 2 * 3; x = 4", "tree")
	require.Equal(t, 0, res.code, res.stderr)
	require.Equal(t, "statement 1: (return (+ 1 (* 2 3)))\nstatement 2: (= x 4)\n", res.stdout)

	res = runCalcc(t, "7", "tree", "--dump-tree", "pretty")
	require.Equal(t, 0, res.code, res.stderr)
	require.Contains(t, res.stdout, "ast.Literal")
}

func TestConfigCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calcc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ir:\n  function: entry\n"), 0o644))

	res := runCalcc(t, "", "config", "--config", path, "--pointers", "typed")
	require.Equal(t, 0, res.code, res.stderr)
	require.Contains(t, res.stdout, "function: entry")
	require.Contains(t, res.stdout, "pointers: typed")
}

func TestDebugLoggingGoesToStderr(t *testing.T) {
	res := runCalcc(t, "1 + 2", "--log-level", "debug", "--log-format", "json")
	require.Equal(t, 0, res.code, res.stderr)
	require.True(t, strings.HasPrefix(res.stdout, "define i32 @main() {"))
	require.Contains(t, res.stderr, `"msg":"consumed lexeme"`)
}

func TestBadFlagValue(t *testing.T) {
	res := runCalcc(t, "1", "--pointers", "fat")
	require.Equal(t, 1, res.code)
	require.Contains(t, res.stderr, `unknown pointer style "fat"`)
}

func TestBinary(t *testing.T) {
	gt := NewGomegaWithT(t)
	calcc, err := gexec.Build("github.com/iley/calcc/cmd/calcc")
	gt.Expect(err).NotTo(HaveOccurred())
	defer gexec.CleanupBuildArtifacts()

	t.Run("compile", func(t *testing.T) {
		gt := NewGomegaWithT(t)
		cmd := exec.Command(calcc)
		cmd.Stdin = strings.NewReader("return 1 + 1")
		sess, err := gexec.Start(cmd, nil, nil)
		gt.Expect(err).NotTo(HaveOccurred())
		gt.Eventually(sess, time.Minute).Should(gexec.Exit(0))
		gt.Expect(sess.Out).To(gbytes.Say(`define i32 @main\(\) {`))
		gt.Expect(sess.Out).To(gbytes.Say(`%1 = add i32 1, 1`))
		gt.Expect(sess.Out).To(gbytes.Say(`ret i32 %1`))
	})

	t.Run("error", func(t *testing.T) {
		gt := NewGomegaWithT(t)
		cmd := exec.Command(calcc)
		cmd.Stdin = strings.NewReader("1 1")
		sess, err := gexec.Start(cmd, nil, nil)
		gt.Expect(err).NotTo(HaveOccurred())
		gt.Eventually(sess, time.Minute).Should(gexec.Exit(1))
		gt.Expect(sess.Out.Contents()).To(BeEmpty())
		gt.Expect(sess.Err).To(gbytes.Say("unexpected operand"))
	})

	t.Run("run", func(t *testing.T) {
		gt := NewGomegaWithT(t)
		cmd := exec.Command(calcc, "run", "--engine", "interp")
		cmd.Stdin = strings.NewReader("a = 1 + 2*3; b = 4; return a*b*b")
		sess, err := gexec.Start(cmd, nil, nil)
		gt.Expect(err).NotTo(HaveOccurred())
		gt.Eventually(sess, time.Minute).Should(gexec.Exit(112))
	})

	t.Run("environment", func(t *testing.T) {
		gt := NewGomegaWithT(t)
		cmd := exec.Command(calcc, "compile")
		cmd.Env = append(os.Environ(), "CALCC_IR_FUNCTION=fromenv")
		cmd.Stdin = strings.NewReader("5")
		sess, err := gexec.Start(cmd, nil, nil)
		gt.Expect(err).NotTo(HaveOccurred())
		gt.Eventually(sess, time.Minute).Should(gexec.Exit(0))
		gt.Expect(sess.Out).To(gbytes.Say(`define i32 @fromenv\(\) {`))
	})
}
