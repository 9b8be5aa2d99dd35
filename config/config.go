// Package config loads comparison jobs from YAML. Environment placeholders in
// string values are resolved after parsing, with variables optionally read from
// a .env file next to the config.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/TFMV/recon/logger"
	"github.com/TFMV/recon/pkg/assertions"
	"github.com/TFMV/recon/pkg/core"
	"github.com/TFMV/recon/pkg/readers"
	"github.com/TFMV/recon/pkg/reconcile"
	"github.com/TFMV/recon/report"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// --- Configuration Structs ---

// Config is the root of a recon configuration file.
type Config struct {
	Log         logger.Config `mapstructure:"log"`
	Reports     ReportsConfig `mapstructure:"reports"`
	Server      ServerConfig  `mapstructure:"server"`
	Defaults    Defaults      `mapstructure:"defaults"`
	Comparisons []Comparison  `mapstructure:"comparisons" validate:"required,min=1,dive"`
}

// ReportsConfig selects where and how reports are written.
type ReportsConfig struct {
	Dir     string               `mapstructure:"dir"`
	Formats []string             `mapstructure:"formats" validate:"dive,oneof=json html excel xlsx csv parquet"`
	MaxRows int                  `mapstructure:"max_rows" validate:"gte=0"`
	Publish report.PublishConfig `mapstructure:"publish"`
}

// ServerConfig holds the API server settings.
type ServerConfig struct {
	Port int `mapstructure:"port" validate:"gte=0,lte=65535"`
}

// Defaults apply to every comparison unless overridden.
type Defaults struct {
	Comparison ComparisonSettings `mapstructure:"comparison"`
}

// ComparisonSettings are partially specified comparison rules. Unset fields
// fall through to the next layer.
type ComparisonSettings struct {
	PrimaryKeys         []string          `mapstructure:"primary_keys"`
	ExcludeColumns      []string          `mapstructure:"exclude_columns"`
	NumericTolerance    *float64          `mapstructure:"numeric_tolerance" validate:"omitempty,gte=0"`
	CaseSensitive       *bool             `mapstructure:"case_sensitive"`
	StripWhitespace     *bool             `mapstructure:"strip_whitespace"`
	TreatEmptyAsNull    *bool             `mapstructure:"treat_empty_as_null"`
	NullVsEmptyMismatch *bool             `mapstructure:"null_vs_empty_mismatch"`
	Thresholds          ThresholdSettings `mapstructure:"thresholds"`
}

// ThresholdSettings are partially specified thresholds.
type ThresholdSettings struct {
	MaxMismatchPercentage   *float64 `mapstructure:"max_mismatch_percentage" validate:"omitempty,gte=0"`
	MaxRecordDiffPercentage *float64 `mapstructure:"max_record_diff_percentage" validate:"omitempty,gte=0"`
	MaxMissingRecords       *int     `mapstructure:"max_missing_records" validate:"omitempty,gte=0"`
}

// Comparison is one configured source/target pair.
type Comparison struct {
	Name       string             `mapstructure:"name" validate:"required"`
	Source     core.SourceConfig  `mapstructure:"source"`
	Target     core.SourceConfig  `mapstructure:"target"`
	Comparison ComparisonSettings `mapstructure:"comparison"`
	Assertions []string           `mapstructure:"assertions"`
}

// Defaults applied after loading.
const (
	DefaultReportDir = "./reports"
	DefaultPort      = 3000
)

// --- Load Configuration ---

// LoadConfig reads a YAML config file. A .env file in the same directory is
// loaded first without overriding variables already set.
func LoadConfig(configPath string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	return Parse(data, os.LookupEnv)
}

// Parse decodes the YAML in data, expands placeholders inside string values
// using lookup and validates the result. Expansion runs after parsing, so a
// substituted value is never interpreted as YAML.
func Parse(data []byte, lookup func(string) (string, bool)) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault("reports.dir", DefaultReportDir)
	v.SetDefault("reports.formats", []string{report.FormatJSON, report.FormatHTML})
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("log.level", "info")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	missing := map[string]struct{}{}
	for _, key := range v.AllKeys() {
		if expanded, changed := expandValue(v.Get(key), lookup, missing); changed {
			v.Set(key, expanded)
		}
	}
	if err := unresolved(missing); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var placeholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// Expand replaces ${VAR} and ${VAR:-default} placeholders. A default is used
// when the variable is unset or empty. Unset variables without a default are
// reported together.
func Expand(text string, lookup func(string) (string, bool)) (string, error) {
	missing := map[string]struct{}{}
	out := expandString(text, lookup, missing)
	if err := unresolved(missing); err != nil {
		return "", err
	}
	return out, nil
}

func expandString(text string, lookup func(string) (string, bool), missing map[string]struct{}) string {
	return placeholder.ReplaceAllStringFunc(text, func(m string) string {
		groups := placeholder.FindStringSubmatch(m)
		name, hasDefault, def := groups[1], groups[2] != "", groups[3]
		if val, ok := lookup(name); ok && (val != "" || !hasDefault) {
			return val
		}
		if hasDefault {
			return def
		}
		missing[name] = struct{}{}
		return m
	})
}

// expandValue walks decoded YAML and expands every string it holds.
func expandValue(v any, lookup func(string) (string, bool), missing map[string]struct{}) (any, bool) {
	switch val := v.(type) {
	case string:
		if !strings.Contains(val, "${") {
			return val, false
		}
		return expandString(val, lookup, missing), true
	case []any:
		out := make([]any, len(val))
		changed := false
		for i, item := range val {
			var c bool
			out[i], c = expandValue(item, lookup, missing)
			changed = changed || c
		}
		return out, changed
	case map[string]any:
		out := make(map[string]any, len(val))
		changed := false
		for k, item := range val {
			var c bool
			out[k], c = expandValue(item, lookup, missing)
			changed = changed || c
		}
		return out, changed
	case map[any]any:
		out := make(map[any]any, len(val))
		changed := false
		for k, item := range val {
			var c bool
			out[k], c = expandValue(item, lookup, missing)
			changed = changed || c
		}
		return out, changed
	}
	return v, false
}

func unresolved(missing map[string]struct{}) error {
	if len(missing) == 0 {
		return nil
	}
	names := make([]string, 0, len(missing))
	for name := range missing {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Errorf("unresolved environment variables: %s", strings.Join(names, ", "))
}

// --- Validation Functions ---

var validate = validator.New()

// Validate checks struct constraints and the semantics of every comparison.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	seen := make(map[string]struct{}, len(c.Comparisons))
	for i, cmp := range c.Comparisons {
		if _, dup := seen[cmp.Name]; dup {
			return fmt.Errorf("comparison %q is defined more than once", cmp.Name)
		}
		seen[cmp.Name] = struct{}{}

		if err := cmp.Validate(c.Defaults.Comparison); err != nil {
			return fmt.Errorf("comparisons[%d] %q: %w", i, cmp.Name, err)
		}
	}
	return nil
}

// Validate checks the sources, the resolved rules and the assertion names.
func (cmp *Comparison) Validate(defaults ComparisonSettings) error {
	if err := validateSource("source", cmp.Source); err != nil {
		return err
	}
	if err := validateSource("target", cmp.Target); err != nil {
		return err
	}
	if err := reconcile.ValidateConfig(Resolve(defaults, cmp.Comparison)); err != nil {
		return err
	}
	return assertions.Validate(cmp.Assertions)
}

func validateSource(role string, src core.SourceConfig) error {
	if !readers.DefaultFactory.Supports(src.Type) {
		return fmt.Errorf("%s: unsupported source type %q (supported: %s)",
			role, src.Type, strings.Join(readers.DefaultFactory.Types(), ", "))
	}
	typ := strings.ToLower(src.Type)
	switch typ {
	case "", readers.TypeAuto, readers.TypeCSV, readers.TypeExcel, readers.TypeParquet, readers.TypeArrow:
		if src.Path == "" {
			return fmt.Errorf("%s: path is required for %s source", role, typeName(typ))
		}
	default:
		if src.Table == "" && src.Query == "" {
			return fmt.Errorf("%s: table or query is required for %s source", role, typ)
		}
	}
	return nil
}

func typeName(typ string) string {
	if typ == "" {
		return readers.TypeAuto
	}
	return typ
}

// --- Resolution ---

// Resolve layers settings over defaults over the built-in defaults.
func Resolve(defaults, settings ComparisonSettings) core.ComparisonConfig {
	cfg := core.DefaultComparisonConfig()
	defaults.apply(&cfg)
	settings.apply(&cfg)
	return cfg
}

func (s ComparisonSettings) apply(cfg *core.ComparisonConfig) {
	if len(s.PrimaryKeys) > 0 {
		cfg.PrimaryKeys = append([]string(nil), s.PrimaryKeys...)
	}
	if s.ExcludeColumns != nil {
		cfg.ExcludeColumns = append([]string(nil), s.ExcludeColumns...)
	}
	setIf(&cfg.NumericTolerance, s.NumericTolerance)
	setIf(&cfg.CaseSensitive, s.CaseSensitive)
	setIf(&cfg.StripWhitespace, s.StripWhitespace)
	setIf(&cfg.TreatEmptyAsNull, s.TreatEmptyAsNull)
	setIf(&cfg.NullVsEmptyMismatch, s.NullVsEmptyMismatch)
	setIf(&cfg.Thresholds.MaxMismatchPercentage, s.Thresholds.MaxMismatchPercentage)
	setIf(&cfg.Thresholds.MaxRecordDiffPercentage, s.Thresholds.MaxRecordDiffPercentage)
	setIf(&cfg.Thresholds.MaxMissingRecords, s.Thresholds.MaxMissingRecords)
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// ComparisonConfig returns the resolved rules for cmp.
func (c *Config) ComparisonConfig(cmp Comparison) core.ComparisonConfig {
	return Resolve(c.Defaults.Comparison, cmp.Comparison)
}

// Select returns the comparisons with the given names in config order, or all
// of them when names is empty.
func (c *Config) Select(names ...string) ([]Comparison, error) {
	if len(names) == 0 {
		return c.Comparisons, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = false
	}
	var out []Comparison
	for _, cmp := range c.Comparisons {
		if _, ok := want[cmp.Name]; ok {
			want[cmp.Name] = true
			out = append(out, cmp)
		}
	}
	for _, n := range names {
		if !want[n] {
			return nil, fmt.Errorf("comparison %q not found", n)
		}
	}
	return out, nil
}

// ReportOptions returns the rendering options for report generators.
func (c *Config) ReportOptions() report.Options {
	return report.Options{MaxRows: c.Reports.MaxRows}
}
