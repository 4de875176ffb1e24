package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/boardroute/pkg/buildinfo"
	"github.com/matzehuels/boardroute/pkg/cache"
	"github.com/matzehuels/boardroute/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "boardroute"

	// cacheDirEnv overrides the layout cache directory.
	cacheDirEnv = "BOARDROUTE_CACHE_DIR"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Boardroute places and routes printed circuit boards",
		Long: `Boardroute reads a design (components, footprints and nets), places the
movable components on the board and routes every net on a discretized
multi-layer grid. The result is a routed layout with traces, vias and
completion statistics.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.routeCommand())
	root.AddCommand(c.placeCommand())
	root.AddCommand(c.validateCommand())
	root.AddCommand(c.batchCommand())
	root.AddCommand(c.netgraphCommand())
	root.AddCommand(c.footprintsCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

// cacheFlags selects the layout cache backend.
type cacheFlags struct {
	noCache bool
	refresh bool
	redis   string
}

func (f *cacheFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable the layout cache")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "ignore cached layouts but store new ones")
	cmd.Flags().StringVar(&f.redis, "redis", os.Getenv("BOARDROUTE_REDIS"), "redis address for a shared layout cache (host:port)")
}

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, f cacheFlags) (*pipeline.Runner, error) {
	lc, err := c.newCache(ctx, f)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(lc, nil, c.Logger), nil
}

// newCache picks the layout cache: none, redis, or the local file cache.
// An unreachable redis falls back to the file cache.
func (c *CLI) newCache(ctx context.Context, f cacheFlags) (cache.Cache, error) {
	if f.noCache {
		return cache.NewNullCache(), nil
	}
	if f.redis != "" {
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{Addr: f.redis})
		if err == nil {
			c.Logger.Debug("using redis layout cache", "addr", f.redis)
			return rc, nil
		}
		if !errors.Is(err, cache.ErrUnavailable) {
			return nil, err
		}
		c.Logger.Warn("redis unavailable, using file cache", "addr", f.redis, "err", err)
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the layout cache directory. BOARDROUTE_CACHE_DIR wins,
// then the XDG cache home (~/.cache/boardroute/).
func cacheDir() (string, error) {
	if dir := os.Getenv(cacheDirEnv); dir != "" {
		return dir, nil
	}
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return cache.DefaultDir()
	}
	return filepath.Join(home, ".cache", appName), nil
}

// layoutPath derives the default layout output path from a design path:
// board.yaml becomes board.layout.json.
func layoutPath(design string) string {
	return trimExt(design) + ".layout.json"
}

// placedPath derives the default placed-design path, keeping the format.
func placedPath(design string) string {
	ext := filepath.Ext(design)
	if ext == "" {
		ext = ".json"
	}
	return trimExt(design) + ".placed" + ext
}

func trimExt(path string) string {
	return path[:len(path)-len(filepath.Ext(path))]
}
