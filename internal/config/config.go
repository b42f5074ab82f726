// Package config loads calcc settings from flags, CALCC_* environment
// variables and an optional YAML file, in that order of precedence.
package config

import (
	"reflect"
	"strings"

	"github.com/iley/calcc/internal/compiler"
	"github.com/iley/calcc/internal/ir"
	"github.com/iley/calcc/internal/logging"
	"github.com/iley/calcc/internal/toolchain"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

const EnvPrefix = "CALCC"

type IRConfig struct {
	Function string          `mapstructure:"function"`
	Pointers ir.PointerStyle `mapstructure:"pointers"`
}

type DumpConfig struct {
	Tree compiler.DumpMode `mapstructure:"tree"`
}

type Config struct {
	Log       logging.Config   `mapstructure:"log"`
	IR        IRConfig         `mapstructure:"ir"`
	Dump      DumpConfig       `mapstructure:"dump"`
	Toolchain toolchain.Config `mapstructure:"toolchain"`
}

// CompilerOptions returns the options for compiler.New.
func (c *Config) CompilerOptions() compiler.Options {
	return compiler.Options{
		FunctionName: c.IR.Function,
		Pointers:     c.IR.Pointers,
		Dump:         c.Dump.Tree,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", logging.DefaultLevel)
	v.SetDefault("log.format", logging.DefaultFormat)
	v.SetDefault("ir.function", compiler.DefaultFunctionName)
	v.SetDefault("ir.pointers", ir.PointersOpaque.String())
	v.SetDefault("dump.tree", compiler.DumpNone.String())
	v.SetDefault("toolchain.cc", toolchain.DefaultCC)
	v.SetDefault("toolchain.flags", []string{})
	v.SetDefault("toolchain.keep", false)
}

// NewViper creates a viper instance with defaults and environment bindings.
// Flags named in bindings (config key -> flag name) override everything else.
// configFile is read when non-empty.
func NewViper(configFile string, flags *pflag.FlagSet, bindings map[string]string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, flagName := range bindings {
		flag := flags.Lookup(flagName)
		if flag == nil {
			return nil, errors.Errorf("no flag %q to bind to %s", flagName, key)
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, errors.Wrapf(err, "binding flag %q", flagName)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config file %s", configFile)
		}
	}
	return v, nil
}

// Load decodes the settings held by v.
func Load(v *viper.Viper) (*Config, error) {
	var c Config
	err := v.Unmarshal(&c, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		pointerStyleDecodeHook,
		dumpModeDecodeHook,
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, errors.Wrap(err, "decoding configuration")
	}
	return &c, nil
}

// YAML renders the effective settings of v.
func YAML(v *viper.Viper) (string, error) {
	out, err := yaml.Marshal(v.AllSettings())
	if err != nil {
		return "", errors.Wrap(err, "encoding configuration")
	}
	return string(out), nil
}

func pointerStyleDecodeHook(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
	if f.Kind() != reflect.String || t != reflect.TypeOf(ir.PointerStyle(0)) {
		return data, nil
	}
	return ir.ParsePointerStyle(data.(string))
}

func dumpModeDecodeHook(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
	if f.Kind() != reflect.String || t != reflect.TypeOf(compiler.DumpMode(0)) {
		return data, nil
	}
	return compiler.ParseDumpMode(data.(string))
}
