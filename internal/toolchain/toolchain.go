// Package toolchain drives the external native compiler that turns emitted IR
// into an executable. Only the run command and the end-to-end test runner use
// it; the compiler itself never does.
package toolchain

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const DefaultCC = "clang"

type Config struct {
	// CC is the compiler executable that accepts LLVM IR (.ll) input.
	CC string `mapstructure:"cc"`
	// Flags are passed to CC before the input file.
	Flags []string `mapstructure:"flags"`
	// Keep leaves the intermediate files in place.
	Keep bool `mapstructure:"keep"`
}

type Toolchain struct {
	cfg Config
	log *zap.SugaredLogger
}

func New(cfg Config, log *zap.SugaredLogger) *Toolchain {
	if cfg.CC == "" {
		cfg.CC = DefaultCC
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Toolchain{cfg: cfg, log: log}
}

// Build writes irText to a temporary directory and compiles it. The returned
// cleanup function removes the directory unless Keep is set.
func (tc *Toolchain) Build(ctx context.Context, irText string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "calcc-")
	if err != nil {
		return "", nil, errors.Wrap(err, "creating build directory")
	}
	cleanup := func() {
		if tc.cfg.Keep {
			tc.log.Infow("keeping intermediate files", "dir", dir)
			return
		}
		if err := os.RemoveAll(dir); err != nil {
			tc.log.Warnw("failed to remove build directory", "dir", dir, "error", err)
		}
	}

	irFile := filepath.Join(dir, "program.ll")
	binFile := filepath.Join(dir, "program")
	if err := os.WriteFile(irFile, []byte(irText), 0o644); err != nil {
		cleanup()
		return "", nil, errors.Wrap(err, "writing IR file")
	}

	args := append(append([]string{}, tc.cfg.Flags...), "-o", binFile, irFile)
	cmd := exec.CommandContext(ctx, tc.cfg.CC, args...)
	tc.log.Debugw("compiling IR", "cc", tc.cfg.CC, "args", args)
	if output, err := cmd.CombinedOutput(); err != nil {
		cleanup()
		return "", nil, errors.Wrapf(err, "%s failed: %s", tc.cfg.CC, output)
	}
	return binFile, cleanup, nil
}

// Run executes binary and returns its exit code.
func (tc *Toolchain) Run(ctx context.Context, binary string) (int, error) {
	cmd := exec.CommandContext(ctx, binary)
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		return exitErr.ExitCode(), nil
	}
	return 0, errors.Wrapf(err, "running %s", binary)
}

// Execute builds irText and runs the result.
func (tc *Toolchain) Execute(ctx context.Context, irText string) (int, error) {
	binary, cleanup, err := tc.Build(ctx, irText)
	if err != nil {
		return 0, err
	}
	defer cleanup()
	return tc.Run(ctx, binary)
}
