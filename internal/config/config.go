// Package config loads and validates the schemaflow configuration file.
// Both TOML and YAML layouts are accepted, chosen by file extension.
package config

import (
	"errors"
	"fmt"
	"go/token"
	"os"
	"path/filepath"
	"slices"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	yaml "gopkg.in/yaml.v3"
)

// GenerationConfig captures code generation settings.
type GenerationConfig struct {
	Package string `toml:"package" yaml:"package"`
	Out     string `toml:"out" yaml:"out"`
}

// MigrationConfig captures migration settings.
type MigrationConfig struct {
	Database string `toml:"database" yaml:"database"`
	Out      string `toml:"out" yaml:"out"`
}

// Config mirrors the expected schemaflow configuration layout.
type Config struct {
	Schema     string           `toml:"schema" yaml:"schema"`
	Generation GenerationConfig `toml:"generation" yaml:"generation"`
	Migration  MigrationConfig  `toml:"migration" yaml:"migration"`
}

// JobPlan is the fully-resolved configuration used by downstream stages.
type JobPlan struct {
	SchemaPath   string
	Package      string
	ModelsOut    string
	Database     string
	MigrationOut string
}

// LoadOptions tunes config loading behavior.
type LoadOptions struct {
	Strict bool
	// Environ supplies environment overrides; nil uses os.Environ via
	// os.Getenv.
	Environ func(string) string
}

// Result wraps a loaded job plan alongside any non-fatal warnings.
type Result struct {
	Plan     JobPlan
	Warnings []string
}

// Load reads, validates, and resolves a schemaflow configuration file.
func Load(path string, opts LoadOptions) (Result, error) {
	var res Result

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return res, fmt.Errorf("read %s: %w", path, err)
	}

	cfg, unknownKeys, err := decode(path, data)
	if err != nil {
		return res, err
	}
	if len(unknownKeys) > 0 {
		slices.Sort(unknownKeys)
		message := fmt.Sprintf("%s: unknown configuration keys: %s", path, strings.Join(unknownKeys, ", "))
		if opts.Strict {
			return res, errors.New(message)
		}
		res.Warnings = append(res.Warnings, message)
	}

	if cfg.Schema == "" {
		return res, fmt.Errorf("%s: schema is required", path)
	}
	pkg := cfg.Generation.Package
	if pkg == "" {
		pkg = "models"
	}
	if !token.IsIdentifier(pkg) || token.Lookup(pkg) != token.IDENT {
		return res, fmt.Errorf("%s: invalid package name %q", path, pkg)
	}

	modelsOut, err := resolveOut(path, "generation.out", cfg.Generation.Out, "models.gen.go")
	if err != nil {
		return res, err
	}
	migrationOut, err := resolveOut(path, "migration.out", cfg.Migration.Out, "migration.sql")
	if err != nil {
		return res, err
	}

	getenv := opts.Environ
	if getenv == nil {
		getenv = os.Getenv
	}
	database := cfg.Migration.Database
	if fromEnv := getenv("DATABASE_URL"); fromEnv != "" {
		database = fromEnv
	}

	baseDir := filepath.Dir(path)
	res.Plan = JobPlan{
		SchemaPath:   filepath.Join(baseDir, filepath.Clean(cfg.Schema)),
		Package:      pkg,
		ModelsOut:    modelsOut,
		Database:     database,
		MigrationOut: migrationOut,
	}
	return res, nil
}

var knownKeys = map[string]struct{}{
	"schema":     {},
	"generation": {},
	"migration":  {},
}

var knownSectionKeys = map[string]map[string]struct{}{
	"generation": {"package": {}, "out": {}},
	"migration":  {"database": {}, "out": {}},
}

// decode parses the file by extension and reports keys outside the known
// layout.
func decode(path string, data []byte) (Config, []string, error) {
	var cfg Config
	var raw map[string]any

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, nil, fmt.Errorf("%s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return cfg, nil, fmt.Errorf("%s: %w", path, err)
		}
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, nil, fmt.Errorf("%s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &raw); err != nil {
			return cfg, nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	var unknown []string
	for key, value := range raw {
		if _, ok := knownKeys[key]; !ok {
			unknown = append(unknown, key)
			continue
		}
		section, ok := knownSectionKeys[key]
		if !ok {
			continue
		}
		record, ok := value.(map[string]any)
		if !ok {
			continue
		}
		for sub := range record {
			if _, ok := section[sub]; !ok {
				unknown = append(unknown, key+"."+sub)
			}
		}
	}
	return cfg, unknown, nil
}

func resolveOut(path, field, out, fallback string) (string, error) {
	if out == "" {
		out = fallback
	}
	if filepath.IsAbs(out) {
		return "", fmt.Errorf("%s: %s must be a relative path", path, field)
	}
	cleaned := filepath.Clean(out)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %s must not traverse upwards", path, field)
	}
	return filepath.Join(filepath.Dir(path), cleaned), nil
}
