package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/boardroute/pkg/config"
	"github.com/matzehuels/boardroute/pkg/footprint"
	"github.com/matzehuels/boardroute/pkg/netlist"
	"github.com/matzehuels/boardroute/pkg/pipeline"
)

// configFileEnv names a configuration file used when --config is not given.
const configFileEnv = "BOARDROUTE_CONFIG"

// designFlags are the flags shared by every command that places or routes.
type designFlags struct {
	config     string
	strategy   string
	quality    string
	layers     int
	ripup      bool
	seed       uint64
	footprints string
}

func (f *designFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.config, "config", "c", os.Getenv(configFileEnv), "configuration file (.toml, .yaml)")
	fl.StringVar(&f.strategy, "strategy", "", "placement strategy: grid, cluster, optimize")
	fl.StringVarP(&f.quality, "quality", "q", "", "routing quality: fast, medium, high")
	fl.IntVar(&f.layers, "layers", 0, "copper layer count")
	fl.BoolVar(&f.ripup, "ripup", false, "tear up a blocking lower-priority net once and retry")
	fl.Uint64Var(&f.seed, "seed", 0, "seed for the optimize strategy")
	fl.StringVar(&f.footprints, "footprints", "", "directory of footprint definitions (.yaml, .json)")
}

// loadConfig builds the run configuration: defaults, then the config file,
// then BOARDROUTE_* variables, then explicitly set flags.
func (f *designFlags) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if f.config != "" {
		loaded, err := config.Load(f.config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	fl := cmd.Flags()
	if fl.Changed("strategy") {
		cfg.PlacementStrategy = f.strategy
	}
	if fl.Changed("quality") {
		cfg.RoutingQuality = f.quality
	}
	if fl.Changed("layers") {
		cfg.LayerCount = f.layers
	}
	if fl.Changed("ripup") {
		cfg.RipUp = f.ripup
	}
	if fl.Changed("seed") {
		cfg.Seed = f.seed
	}
	if err := cfg.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// library returns a footprint library with the --footprints directory
// searched before the built-in footprints.
func (c *CLI) library(f *designFlags) *footprint.Library {
	opts := footprint.Options{Logger: c.Logger}
	if f.footprints != "" {
		opts.Sources = []footprint.Source{footprint.NewDirSource(f.footprints), footprint.Builtin()}
	}
	return footprint.NewLibrary(opts)
}

// pipelineOptions assembles run options from the shared flags.
func (c *CLI) pipelineOptions(cmd *cobra.Command, df *designFlags, cf cacheFlags) (pipeline.Options, error) {
	cfg, err := df.loadConfig(cmd)
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		Config:  cfg,
		Library: c.library(df),
		Refresh: cf.refresh,
		Logger:  c.Logger,
	}, nil
}

// loadDesign reads a design file and logs its size.
func (c *CLI) loadDesign(ctx context.Context, path string) (*netlist.Netlist, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	nl, err := netlist.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if nl.Name == "" {
		nl.Name = trimExt(filepath.Base(path))
	}
	c.Logger.Debug("loaded design", "file", path, "components", len(nl.Components()), "nets", len(nl.Nets()))
	return nl, nil
}
