// Package config loads the optional dylink.yaml and resolves generator
// settings from file, environment and defaults.
package config

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xyproto/env/v2"
	"go.uber.org/zap/zapcore"
	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/dylink/errors"
	"github.com/wippyai/dylink/gen"
)

// FileName is the configuration file looked up next to the inputs and at
// the module root.
const FileName = "dylink.yaml"

// Environment overrides.
const (
	EnvTag       = "DYLINK_TAG"
	EnvSuffix    = "DYLINK_SUFFIX"
	EnvRuntime   = "DYLINK_RUNTIME"
	EnvLogLevel  = "DYLINK_LOG_LEVEL"
	EnvLogFormat = "DYLINK_LOG_FORMAT"
)

// Log formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config represents dylink.yaml.
type Config struct {
	Tag     string    `yaml:"tag,omitempty"`
	Suffix  string    `yaml:"suffix,omitempty"`
	Runtime string    `yaml:"runtime,omitempty"`
	Log     LogConfig `yaml:"log,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// Resolved contains resolved configuration values.
type Resolved struct {
	// Dir is the package directory being generated.
	Dir string
	// Root is the module root, or empty outside a module.
	Root       string
	ModulePath string
	// ImportPath is the import path of Dir, or empty outside a module.
	ImportPath string
	// File is the configuration file that was read, or empty.
	File      string
	Options   gen.Options
	LogLevel  zapcore.Level
	LogFormat string
}

// Load reads a configuration file. Unknown fields are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, "read "+path)
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !stderrors.Is(err, io.EOF) {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidSyntax, err, "parse "+path)
	}
	return &cfg, nil
}

// Find returns the configuration file for dir: dir/dylink.yaml, then
// dylink.yaml at the module root. It returns "" when neither exists.
func Find(dir, root string) string {
	candidates := []string{filepath.Join(dir, FileName)}
	if root != "" {
		candidates = append(candidates, filepath.Join(root, FileName))
	}
	for _, c := range candidates {
		if st, err := os.Stat(c); err == nil && !st.IsDir() {
			return c
		}
	}
	return ""
}

// Resolve reads the configuration for dir and applies environment
// overrides and defaults. A non-empty file overrides the lookup.
func Resolve(dir, file string) (*Resolved, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}

	res := &Resolved{Dir: abs}
	if root, ok := FindModuleRoot(abs); ok {
		res.Root = root
		res.ModulePath, err = modulePath(root)
		if err != nil {
			return nil, err
		}
		res.ImportPath = importPath(res.ModulePath, root, abs)
	}

	if file == "" {
		file = Find(abs, res.Root)
	}
	cfg := &Config{}
	if file != "" {
		if cfg, err = Load(file); err != nil {
			return nil, err
		}
		res.File = file
	}

	env.Load()
	cfg.Tag = env.Str(EnvTag, cfg.Tag)
	cfg.Suffix = env.Str(EnvSuffix, cfg.Suffix)
	cfg.Runtime = env.Str(EnvRuntime, cfg.Runtime)
	cfg.Log.Level = env.Str(EnvLogLevel, cfg.Log.Level)
	cfg.Log.Format = env.Str(EnvLogFormat, cfg.Log.Format)

	res.Options = gen.Options{
		Tag:         strings.TrimSpace(cfg.Tag),
		Suffix:      strings.TrimSpace(cfg.Suffix),
		RuntimePath: strings.TrimSpace(cfg.Runtime),
	}

	res.LogLevel = zapcore.WarnLevel
	if lvl := strings.TrimSpace(cfg.Log.Level); lvl != "" {
		if res.LogLevel, err = zapcore.ParseLevel(lvl); err != nil {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "log level")
		}
	}

	res.LogFormat = strings.TrimSpace(cfg.Log.Format)
	if res.LogFormat == "" {
		res.LogFormat = FormatConsole
	}

	if err := res.Validate(); err != nil {
		return nil, err
	}
	return res, nil
}

// Validate checks the generator options. Empty options mean the default.
func (r *Resolved) Validate() error {
	o := r.Options
	if o.Tag != "" && !validTag(o.Tag) {
		return invalid("build tag %q is not a valid tag name", o.Tag)
	}
	if o.Suffix != "" && (!strings.HasSuffix(o.Suffix, ".go") || o.Suffix == ".go" ||
		strings.HasSuffix(o.Suffix, "_test.go") || strings.ContainsAny(o.Suffix, `/\`)) {
		return invalid("output suffix %q must end in .go and name a non-test file", o.Suffix)
	}
	if o.RuntimePath != "" {
		if err := module.CheckImportPath(o.RuntimePath); err != nil {
			return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "runtime import path")
		}
	}
	rt := o.RuntimePath
	if rt == "" {
		rt = gen.DefaultRuntimePath
	}
	if r.ImportPath != "" && r.ImportPath == rt {
		return invalid("package %s cannot bind through itself", r.ImportPath)
	}
	switch r.LogFormat {
	case FormatConsole, FormatJSON:
	default:
		return invalid("log format %q must be %q or %q", r.LogFormat, FormatConsole, FormatJSON)
	}
	return nil
}

// FindModuleRoot walks up from dir to the directory holding go.mod.
func FindModuleRoot(dir string) (string, bool) {
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func modulePath(root string) (string, error) {
	data, err := os.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		return "", fmt.Errorf("read go.mod: %w", err)
	}
	path := modfile.ModulePath(data)
	if path == "" {
		return "", invalid("could not determine module path from %s", filepath.Join(root, "go.mod"))
	}
	return path, nil
}

func importPath(modPath, root, dir string) string {
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == "." {
		return modPath
	}
	return modPath + "/" + filepath.ToSlash(rel)
}

func validTag(tag string) bool {
	for _, r := range tag {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.':
		default:
			return false
		}
	}
	return tag != ""
}

func invalid(format string, args ...any) error {
	return errors.New(errors.PhaseConfig, errors.KindInvalidInput).Detail(format, args...).Build()
}
