// Package config holds the configuration record shared by placement and
// routing.
//
// A [Config] is passed explicitly into every component; there is no
// process-wide configuration state. Start from [Default], optionally merge a
// file with [Load] and environment overrides with [Config.ApplyEnv], then
// call [Config.ValidateAndSetDefaults] before use.
package config

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/boardroute/pkg/errors"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	DefaultClearanceMM            = 0.2
	DefaultTraceWidthMM           = 0.25
	DefaultViaDiameterMM          = 0.8
	DefaultViaDrillMM             = 0.4
	DefaultLayerCount             = 2
	DefaultLengthMatchToleranceMM = 0.5
	DefaultEdgeMarginMM           = 2.0
	DefaultSeed                   = uint64(42)

	// MaxLayerCount bounds the number of copper layers.
	MaxLayerCount = 32
)

// Placement strategies.
const (
	StrategyGrid     = "grid"
	StrategyCluster  = "cluster"
	StrategyOptimize = "optimize"
)

// Routing quality levels.
const (
	QualityFast   = "fast"
	QualityMedium = "medium"
	QualityHigh   = "high"
)

// ValidStrategies is the set of supported placement strategies.
var ValidStrategies = map[string]bool{
	StrategyGrid:     true,
	StrategyCluster:  true,
	StrategyOptimize: true,
}

// Preset is the search tuning selected by a routing quality level.
type Preset struct {
	NodeBudget         int     // max search expansions per connection
	TurnPenalty        float64 // added per 45° direction change
	ViaCost            float64 // cost of one layer change, in cell units
	Retries            int     // extra attempts per failed connection
	OptimizeIterations int     // annealing iterations for the optimize strategy
}

// Presets maps routing quality to search tuning.
var Presets = map[string]Preset{
	QualityFast:   {NodeBudget: 100_000, TurnPenalty: 0.2, ViaCost: 8, Retries: 0, OptimizeIterations: 2_000},
	QualityMedium: {NodeBudget: 400_000, TurnPenalty: 0.5, ViaCost: 10, Retries: 1, OptimizeIterations: 10_000},
	QualityHigh:   {NodeBudget: 2_000_000, TurnPenalty: 0.8, ViaCost: 12, Retries: 3, OptimizeIterations: 50_000},
}

// KeepOutRule requires a minimum courtyard gap between components of two
// classes during optimized placement.
type KeepOutRule struct {
	A          string  `json:"a" toml:"a" yaml:"a"`
	B          string  `json:"b" toml:"b" yaml:"b"`
	DistanceMM float64 `json:"distance_mm" toml:"distance_mm" yaml:"distance_mm"`
}

// DefaultKeepOut keeps heat and switching noise away from sensitive parts.
var DefaultKeepOut = []KeepOutRule{
	{A: "power", B: "sensitive", DistanceMM: 5},
	{A: "thermal", B: "sensitive", DistanceMM: 5},
	{A: "thermal", B: "thermal", DistanceMM: 3},
}

// =============================================================================
// Config
// =============================================================================

// Config is the placement and routing configuration. ValidateAndSetDefaults
// fills unset tuning fields from the quality preset. NodeBudget and
// OptimizeIterations treat zero as unset; TurnPenalty, ViaCost and Retries
// are pointers so an explicit zero is kept.
type Config struct {
	ClearanceMM            float64 `json:"clearance_mm" toml:"clearance_mm" yaml:"clearance_mm"`
	TraceWidthMM           float64 `json:"trace_width_mm" toml:"trace_width_mm" yaml:"trace_width_mm"`
	ViaDiameterMM          float64 `json:"via_diameter_mm" toml:"via_diameter_mm" yaml:"via_diameter_mm"`
	ViaDrillMM             float64 `json:"via_drill_mm" toml:"via_drill_mm" yaml:"via_drill_mm"`
	LayerCount             int     `json:"layer_count" toml:"layer_count" yaml:"layer_count"`
	PlacementStrategy      string  `json:"placement_strategy" toml:"placement_strategy" yaml:"placement_strategy"`
	RoutingQuality         string  `json:"routing_quality" toml:"routing_quality" yaml:"routing_quality"`
	LengthMatchToleranceMM float64 `json:"length_match_tolerance_mm" toml:"length_match_tolerance_mm" yaml:"length_match_tolerance_mm"`

	// GridPitchMM overrides the routing cell pitch (default trace + clearance).
	GridPitchMM float64 `json:"grid_pitch_mm,omitempty" toml:"grid_pitch_mm" yaml:"grid_pitch_mm,omitempty"`
	// PlacementGridMM snaps placed component centres (0 disables snapping).
	PlacementGridMM float64 `json:"placement_grid_mm,omitempty" toml:"placement_grid_mm" yaml:"placement_grid_mm,omitempty"`
	// ComponentClearanceMM is the minimum courtyard-to-courtyard gap
	// (default: ClearanceMM).
	ComponentClearanceMM float64 `json:"component_clearance_mm,omitempty" toml:"component_clearance_mm" yaml:"component_clearance_mm,omitempty"`
	// EdgeMarginMM keeps courtyards away from the board edge.
	EdgeMarginMM float64 `json:"edge_margin_mm,omitempty" toml:"edge_margin_mm" yaml:"edge_margin_mm,omitempty"`
	Seed         uint64  `json:"seed,omitempty" toml:"seed" yaml:"seed,omitempty"`

	NodeBudget         int     `json:"node_budget,omitempty" toml:"node_budget" yaml:"node_budget,omitempty"`
	NetTimeout         string  `json:"net_timeout,omitempty" toml:"net_timeout" yaml:"net_timeout,omitempty"`
	TurnPenalty        *float64 `json:"turn_penalty,omitempty" toml:"turn_penalty" yaml:"turn_penalty,omitempty"`
	ViaCost            *float64 `json:"via_cost,omitempty" toml:"via_cost" yaml:"via_cost,omitempty"`
	Retries            *int     `json:"retries,omitempty" toml:"retries" yaml:"retries,omitempty"`
	OptimizeIterations int      `json:"optimize_iterations,omitempty" toml:"optimize_iterations" yaml:"optimize_iterations,omitempty"`

	// RipUp enables a single tear-up-and-reroute pass for blocked
	// connections.
	RipUp bool `json:"ripup,omitempty" toml:"ripup" yaml:"ripup,omitempty"`

	KeepOut []KeepOutRule `json:"keep_out,omitempty" toml:"keep_out" yaml:"keep_out,omitempty"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		ClearanceMM:            DefaultClearanceMM,
		TraceWidthMM:           DefaultTraceWidthMM,
		ViaDiameterMM:          DefaultViaDiameterMM,
		ViaDrillMM:             DefaultViaDrillMM,
		LayerCount:             DefaultLayerCount,
		PlacementStrategy:      StrategyGrid,
		RoutingQuality:         QualityMedium,
		LengthMatchToleranceMM: DefaultLengthMatchToleranceMM,
		EdgeMarginMM:           DefaultEdgeMarginMM,
		Seed:                   DefaultSeed,
		KeepOut:                append([]KeepOutRule(nil), DefaultKeepOut...),
	}
}

// ValidateAndSetDefaults checks the configuration and fills derived values.
// It is idempotent.
func (c *Config) ValidateAndSetDefaults() error {
	if c.validated {
		return nil
	}
	if c.PlacementStrategy == "" {
		c.PlacementStrategy = StrategyGrid
	}
	if c.RoutingQuality == "" {
		c.RoutingQuality = QualityMedium
	}
	if c.LayerCount == 0 {
		c.LayerCount = DefaultLayerCount
	}
	if err := c.Validate(); err != nil {
		return err
	}

	if c.GridPitchMM == 0 {
		c.GridPitchMM = c.TraceWidthMM + c.ClearanceMM
	}
	if c.ComponentClearanceMM == 0 {
		c.ComponentClearanceMM = c.ClearanceMM
	}
	if c.Seed == 0 {
		c.Seed = DefaultSeed
	}
	p := Presets[c.RoutingQuality]
	if c.NodeBudget == 0 {
		c.NodeBudget = p.NodeBudget
	}
	if c.TurnPenalty == nil {
		c.TurnPenalty = Ptr(p.TurnPenalty)
	}
	if c.ViaCost == nil {
		c.ViaCost = Ptr(p.ViaCost)
	}
	if c.Retries == nil {
		c.Retries = Ptr(p.Retries)
	}
	if c.OptimizeIterations == 0 {
		c.OptimizeIterations = p.OptimizeIterations
	}
	c.validated = true
	return nil
}

// Validate checks field ranges without applying defaults.
func (c *Config) Validate() error {
	positive := []struct {
		name string
		v    float64
	}{
		{"clearance_mm", c.ClearanceMM},
		{"trace_width_mm", c.TraceWidthMM},
		{"via_diameter_mm", c.ViaDiameterMM},
		{"via_drill_mm", c.ViaDrillMM},
	}
	for _, f := range positive {
		if !(f.v > 0) || math.IsInf(f.v, 0) {
			return errors.New(errors.ErrCodeInvalidConfig, "%s must be positive, got %v", f.name, f.v)
		}
	}
	if c.ViaDrillMM >= c.ViaDiameterMM {
		return errors.New(errors.ErrCodeInvalidConfig, "via_drill_mm (%v) must be smaller than via_diameter_mm (%v)", c.ViaDrillMM, c.ViaDiameterMM)
	}
	if c.LayerCount < 1 || c.LayerCount > MaxLayerCount {
		return errors.New(errors.ErrCodeInvalidConfig, "layer_count must be between 1 and %d, got %d", MaxLayerCount, c.LayerCount)
	}
	if !ValidStrategies[c.PlacementStrategy] {
		return errors.New(errors.ErrCodeInvalidConfig, "invalid placement_strategy: %q (must be one of: grid, cluster, optimize)", c.PlacementStrategy)
	}
	if _, ok := Presets[c.RoutingQuality]; !ok {
		return errors.New(errors.ErrCodeInvalidConfig, "invalid routing_quality: %q (must be one of: fast, medium, high)", c.RoutingQuality)
	}
	nonNegative := []struct {
		name string
		v    float64
	}{
		{"length_match_tolerance_mm", c.LengthMatchToleranceMM},
		{"grid_pitch_mm", c.GridPitchMM},
		{"placement_grid_mm", c.PlacementGridMM},
		{"component_clearance_mm", c.ComponentClearanceMM},
		{"edge_margin_mm", c.EdgeMarginMM},
		{"turn_penalty", c.GetTurnPenalty()},
		{"via_cost", c.GetViaCost()},
	}
	for _, f := range nonNegative {
		if f.v < 0 || math.IsNaN(f.v) {
			return errors.New(errors.ErrCodeInvalidConfig, "%s must not be negative, got %v", f.name, f.v)
		}
	}
	if c.NodeBudget < 0 || c.GetRetries() < 0 || c.OptimizeIterations < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "budgets must not be negative")
	}
	if c.NetTimeout != "" {
		d, err := time.ParseDuration(c.NetTimeout)
		if err != nil || d < 0 {
			return errors.New(errors.ErrCodeInvalidConfig, "invalid net_timeout: %q", c.NetTimeout)
		}
	}
	for _, r := range c.KeepOut {
		if r.A == "" || r.B == "" || r.DistanceMM < 0 {
			return errors.New(errors.ErrCodeInvalidConfig, "invalid keep_out rule %s/%s", r.A, r.B)
		}
	}
	return nil
}

// GetTurnPenalty returns the turn penalty, or the preset's when unset.
func (c *Config) GetTurnPenalty() float64 {
	if c.TurnPenalty != nil {
		return *c.TurnPenalty
	}
	return Presets[c.RoutingQuality].TurnPenalty
}

// GetViaCost returns the via cost, or the preset's when unset.
func (c *Config) GetViaCost() float64 {
	if c.ViaCost != nil {
		return *c.ViaCost
	}
	return Presets[c.RoutingQuality].ViaCost
}

// GetRetries returns the retry count, or the preset's when unset.
func (c *Config) GetRetries() int {
	if c.Retries != nil {
		return *c.Retries
	}
	return Presets[c.RoutingQuality].Retries
}

// Ptr returns a pointer to v. It sets the optional tuning fields.
func Ptr[T any](v T) *T { return &v }

// GetNetTimeout returns the per-net wall-clock budget, or zero for none.
func (c *Config) GetNetTimeout() time.Duration {
	d, _ := time.ParseDuration(c.NetTimeout)
	return d
}

// KeepOutDistance returns the required gap between two component classes,
// or zero when no rule applies.
func (c *Config) KeepOutDistance(a, b string) float64 {
	var d float64
	for _, r := range c.KeepOut {
		if (r.A == a && r.B == b) || (r.A == b && r.B == a) {
			d = math.Max(d, r.DistanceMM)
		}
	}
	return d
}

// Canonical returns the input for configuration cache keys: the canonical
// JSON encoding of the configuration.
func (c Config) Canonical() []byte {
	data, _ := json.Marshal(c)
	return data
}

// =============================================================================
// Loading
// =============================================================================

// Load reads a TOML or YAML configuration file on top of the defaults. The
// format is chosen by extension (.toml, .yaml, .yml).
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, errors.Wrap(errors.ErrCodeFileNotFound, err, "config file %s", path)
		}
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config %s", path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		return cfg, errors.New(errors.ErrCodeUnsupported, "unsupported config format %q (use .toml, .yaml or .yml)", filepath.Ext(path))
	}
	if err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse config %s", path)
	}
	return cfg, nil
}

// Save writes the configuration as TOML or YAML by extension.
func (c Config) Save(path string) error {
	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		var b strings.Builder
		err = toml.NewEncoder(&b).Encode(c)
		data = []byte(b.String())
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		return errors.New(errors.ErrCodeUnsupported, "unsupported config format %q", filepath.Ext(path))
	}
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BOARDROUTE_"

// ApplyEnv overrides fields from BOARDROUTE_* environment variables:
// CLEARANCE_MM, TRACE_WIDTH_MM, VIA_DIAMETER_MM, VIA_DRILL_MM, LAYERS,
// STRATEGY, QUALITY, TOLERANCE_MM, SEED, NET_TIMEOUT and RIPUP.
// Malformed numbers are reported as INVALID_CONFIG.
func (c *Config) ApplyEnv() error {
	floats := map[string]*float64{
		"CLEARANCE_MM":    &c.ClearanceMM,
		"TRACE_WIDTH_MM":  &c.TraceWidthMM,
		"VIA_DIAMETER_MM": &c.ViaDiameterMM,
		"VIA_DRILL_MM":    &c.ViaDrillMM,
		"TOLERANCE_MM":    &c.LengthMatchToleranceMM,
	}
	for name, dst := range floats {
		v, ok := os.LookupEnv(EnvPrefix + name)
		if !ok || v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "%s%s", EnvPrefix, name)
		}
		*dst = f
	}
	if v := os.Getenv(EnvPrefix + "LAYERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "%sLAYERS", EnvPrefix)
		}
		c.LayerCount = n
	}
	if v := os.Getenv(EnvPrefix + "SEED"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "%sSEED", EnvPrefix)
		}
		c.Seed = n
	}
	if v := os.Getenv(EnvPrefix + "RIPUP"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "%sRIPUP", EnvPrefix)
		}
		c.RipUp = b
	}
	if v := os.Getenv(EnvPrefix + "STRATEGY"); v != "" {
		c.PlacementStrategy = v
	}
	if v := os.Getenv(EnvPrefix + "QUALITY"); v != "" {
		c.RoutingQuality = v
	}
	if v := os.Getenv(EnvPrefix + "NET_TIMEOUT"); v != "" {
		c.NetTimeout = v
	}
	return nil
}
