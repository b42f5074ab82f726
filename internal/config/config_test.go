package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/iley/calcc/internal/compiler"
	"github.com/iley/calcc/internal/ir"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	v, err := NewViper("", pflag.NewFlagSet("test", pflag.ContinueOnError), nil)
	require.NoError(t, err)
	c, err := Load(v)
	require.NoError(t, err)

	require.Equal(t, "warn", c.Log.Level)
	require.Equal(t, "console", c.Log.Format)
	require.Equal(t, compiler.Options{FunctionName: "main", Pointers: ir.PointersOpaque, Dump: compiler.DumpNone}, c.CompilerOptions())
	require.Equal(t, "clang", c.Toolchain.CC)
	require.Empty(t, c.Toolchain.Flags)
	require.False(t, c.Toolchain.Keep)
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calcc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
ir:
  function: entry
  pointers: typed
dump:
  tree: sexpr
toolchain:
  cc: clang-14
  flags: ["-O2", "-Wno-override-module"]
  keep: true
`), 0o644))

	v, err := NewViper(path, pflag.NewFlagSet("test", pflag.ContinueOnError), nil)
	require.NoError(t, err)
	c, err := Load(v)
	require.NoError(t, err)

	require.Equal(t, "debug", c.Log.Level)
	require.Equal(t, compiler.Options{FunctionName: "entry", Pointers: ir.PointersTyped, Dump: compiler.DumpSexpr}, c.CompilerOptions())
	require.Equal(t, "clang-14", c.Toolchain.CC)
	require.Equal(t, []string{"-O2", "-Wno-override-module"}, c.Toolchain.Flags)
	require.True(t, c.Toolchain.Keep)
}

func TestEnvironment(t *testing.T) {
	t.Setenv("CALCC_IR_POINTERS", "typed")
	t.Setenv("CALCC_DUMP_TREE", "pretty")
	t.Setenv("CALCC_TOOLCHAIN_FLAGS", "-O1,-g")

	v, err := NewViper("", pflag.NewFlagSet("test", pflag.ContinueOnError), nil)
	require.NoError(t, err)
	c, err := Load(v)
	require.NoError(t, err)

	require.Equal(t, ir.PointersTyped, c.IR.Pointers)
	require.Equal(t, compiler.DumpPretty, c.Dump.Tree)
	require.Equal(t, []string{"-O1", "-g"}, c.Toolchain.Flags)
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("CALCC_IR_FUNCTION", "fromenv")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("function", "main", "")
	require.NoError(t, flags.Parse([]string{"--function", "fromflag"}))

	v, err := NewViper("", flags, map[string]string{"ir.function": "function"})
	require.NoError(t, err)
	c, err := Load(v)
	require.NoError(t, err)
	require.Equal(t, "fromflag", c.IR.Function)
}

func TestUnsetFlagFallsBackToEnvironment(t *testing.T) {
	t.Setenv("CALCC_IR_FUNCTION", "fromenv")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("function", "main", "")
	require.NoError(t, flags.Parse(nil))

	v, err := NewViper("", flags, map[string]string{"ir.function": "function"})
	require.NoError(t, err)
	c, err := Load(v)
	require.NoError(t, err)
	require.Equal(t, "fromenv", c.IR.Function)
}

func TestErrors(t *testing.T) {
	_, err := NewViper("", pflag.NewFlagSet("test", pflag.ContinueOnError), map[string]string{"ir.function": "missing"})
	require.EqualError(t, err, `no flag "missing" to bind to ir.function`)

	_, err = NewViper(filepath.Join(t.TempDir(), "absent.yaml"), pflag.NewFlagSet("test", pflag.ContinueOnError), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "reading config file")

	t.Setenv("CALCC_IR_POINTERS", "fat")
	v, err := NewViper("", pflag.NewFlagSet("test", pflag.ContinueOnError), nil)
	require.NoError(t, err)
	_, err = Load(v)
	require.Error(t, err)
	require.Contains(t, err.Error(), `unknown pointer style "fat"`)
}

func TestYAML(t *testing.T) {
	v, err := NewViper("", pflag.NewFlagSet("test", pflag.ContinueOnError), nil)
	require.NoError(t, err)
	out, err := YAML(v)
	require.NoError(t, err)
	require.Contains(t, out, "function: main")
	require.Contains(t, out, "pointers: opaque")
	require.Contains(t, out, "cc: clang")
}
