package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/boardroute/pkg/cache"
	"github.com/matzehuels/boardroute/pkg/errors"
	"github.com/matzehuels/boardroute/pkg/layout"
	"github.com/matzehuels/boardroute/pkg/netlist"
)

const blinkyYAML = `name: blinky
board:
  width: 40
  height: 30
components:
  - ref: J1
    footprint: {name: PinHeader_1x02_P2.54mm}
  - ref: R1
    value: "330"
    footprint: {name: R_0805}
  - ref: D1
    footprint: {name: LED_0805}
nets:
  - name: VCC
    endpoints: [J1.1, R1.1]
  - name: LED_A
    endpoints: [R1.2, D1.1]
  - name: GND
    endpoints: [D1.2, J1.2]
`

// writeDesign writes content into a fresh temp dir and returns its path.
func writeDesign(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// run executes the root command with a silent logger and an isolated cache.
func run(t *testing.T, args ...string) error {
	t.Helper()
	return runTo(t, io.Discard, args...)
}

func runTo(t *testing.T, out io.Writer, args ...string) error {
	t.Helper()
	if os.Getenv(cacheDirEnv) == "" {
		t.Setenv(cacheDirEnv, t.TempDir())
	}
	t.Setenv(configFileEnv, "")
	t.Setenv("BOARDROUTE_REDIS", "")

	c := New(io.Discard, LogInfo)
	root := c.RootCommand()
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(io.Discard)
	return root.ExecuteContext(context.Background())
}

func TestRouteCommand(t *testing.T) {
	design := writeDesign(t, "blinky.yaml", blinkyYAML)
	if err := run(t, "route", design, "--no-cache", "--check", "--nets"); err != nil {
		t.Fatalf("route: %v", err)
	}

	l, err := layout.ReadFile(layoutPath(design))
	if err != nil {
		t.Fatalf("read layout: %v", err)
	}
	if l.Stats.CompletionRate != 1 {
		t.Errorf("CompletionRate = %v, want 1", l.Stats.CompletionRate)
	}
	if len(l.Placements) != 3 || len(l.Nets) != 3 {
		t.Errorf("placements = %d, nets = %d, want 3 and 3", len(l.Placements), len(l.Nets))
	}
	if l.Design != "blinky" {
		t.Errorf("Design = %q, want blinky", l.Design)
	}
}

func TestRouteCommandCachesLayout(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(cacheDirEnv, dir)
	design := writeDesign(t, "blinky.yaml", blinkyYAML)

	for i := 0; i < 2; i++ {
		if err := run(t, "route", design); err != nil {
			t.Fatalf("route #%d: %v", i+1, err)
		}
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		t.Fatal(err)
	}
	if entries, _, _ := fc.Stats(); entries != 1 {
		t.Errorf("cached layouts = %d, want 1", entries)
	}

	if err := run(t, "cache", "clear"); err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	if entries, _, _ := fc.Stats(); entries != 0 {
		t.Errorf("cached layouts after clear = %d, want 0", entries)
	}
}

func TestRouteCommandConfigFile(t *testing.T) {
	design := writeDesign(t, "blinky.yaml", blinkyYAML)
	cfg := filepath.Join(t.TempDir(), "boardroute.toml")
	if err := os.WriteFile(cfg, []byte("layer_count = 4\nrouting_quality = \"fast\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(t.TempDir(), "out.json")

	if err := run(t, "route", design, "--no-cache", "--config", cfg, "-o", out); err != nil {
		t.Fatalf("route: %v", err)
	}
	l, err := layout.ReadFile(out)
	if err != nil {
		t.Fatalf("read layout: %v", err)
	}
	if len(l.Layers) != 4 {
		t.Errorf("Layers = %v, want 4 layers", l.Layers)
	}
}

func TestRouteCommandFlagOverridesConfig(t *testing.T) {
	design := writeDesign(t, "blinky.yaml", blinkyYAML)
	cfg := filepath.Join(t.TempDir(), "boardroute.yaml")
	if err := os.WriteFile(cfg, []byte("layer_count: 4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(t.TempDir(), "out.json")

	if err := run(t, "route", design, "--no-cache", "--config", cfg, "--layers", "2", "-o", out); err != nil {
		t.Fatalf("route: %v", err)
	}
	l, err := layout.ReadFile(out)
	if err != nil {
		t.Fatalf("read layout: %v", err)
	}
	if len(l.Layers) != 2 {
		t.Errorf("Layers = %v, want 2 layers", l.Layers)
	}
}

func TestRouteCommandInvalidStrategy(t *testing.T) {
	design := writeDesign(t, "blinky.yaml", blinkyYAML)
	err := run(t, "route", design, "--no-cache", "--strategy", "spiral")
	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("err = %v, want INVALID_CONFIG", err)
	}
}

func TestRouteCommandMissingDesign(t *testing.T) {
	err := run(t, "route", filepath.Join(t.TempDir(), "missing.yaml"), "--no-cache")
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("err = %v, want FILE_NOT_FOUND", err)
	}
}

func TestPlaceCommand(t *testing.T) {
	design := writeDesign(t, "blinky.yaml", blinkyYAML)
	if err := run(t, "place", design, "--strategy", "cluster"); err != nil {
		t.Fatalf("place: %v", err)
	}

	nl, err := netlist.ReadFile(placedPath(design))
	if err != nil {
		t.Fatalf("read placed design: %v", err)
	}
	for _, c := range nl.Components() {
		if !c.Placement.Placed {
			t.Errorf("%s not placed", c.Ref)
		}
		if !c.Footprint.Resolved() {
			t.Errorf("%s footprint not resolved", c.Ref)
		}
	}
}

func TestValidateCommand(t *testing.T) {
	tests := []struct {
		name     string
		design   string
		wantCode errors.Code
	}{
		{"valid", blinkyYAML, ""},
		{"singleton net is a warning", blinkyYAML + "  - name: NC\n    endpoints: [R1.1]\n", ""},
		{"dangling endpoint", blinkyYAML + "  - name: SDA\n    endpoints: [R1.1, U9.3]\n", errors.ErrCodeDanglingReference},
		{"unknown footprint", strings.Replace(blinkyYAML, "R_0805", "R_9999", 1), errors.ErrCodeFootprintNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			design := writeDesign(t, "design.yaml", tt.design)
			err := run(t, "validate", design)
			if tt.wantCode == "" {
				if err != nil {
					t.Errorf("validate: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantCode) {
				t.Errorf("err = %v, want %s", err, tt.wantCode)
			}
		})
	}
}

func TestBatchCommand(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yaml"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(blinkyYAML), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	out := filepath.Join(t.TempDir(), "layouts")

	if err := run(t, "batch", dir, "--no-cache", "--workers", "2", "--output-dir", out); err != nil {
		t.Fatalf("batch: %v", err)
	}
	for _, name := range []string{"a.layout.json", "b.layout.json"} {
		if _, err := layout.ReadFile(filepath.Join(out, name)); err != nil {
			t.Errorf("read %s: %v", name, err)
		}
	}
}

func TestBatchCommandReportsFailures(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"good.yaml": blinkyYAML,
		"bad.yaml":  strings.Replace(blinkyYAML, "R_0805", "R_9999", 1),
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	err := run(t, "batch", dir, "--no-cache")
	if err == nil || !strings.Contains(err.Error(), "1 of 2 designs failed") {
		t.Errorf("err = %v, want one failed design", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "good.layout.json")); err != nil {
		t.Errorf("good design layout missing: %v", err)
	}
}

func TestNetgraphCommand(t *testing.T) {
	design := writeDesign(t, "blinky.yaml", blinkyYAML)
	if err := run(t, "route", design, "--no-cache"); err != nil {
		t.Fatalf("route: %v", err)
	}
	out := filepath.Join(t.TempDir(), "nets.dot")

	if err := run(t, "netgraph", design, "--layout", layoutPath(design), "-o", out); err != nil {
		t.Fatalf("netgraph: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	dot := string(data)
	for _, want := range []string{"graph G", `"R1"`, "pos="} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q:\n%s", want, dot)
		}
	}

	if err := run(t, "netgraph", design, "-o", filepath.Join(t.TempDir(), "nets.png")); err == nil {
		t.Error("netgraph .png error = nil, want unsupported format")
	}
}

func TestFootprintsCommand(t *testing.T) {
	if err := run(t, "footprints"); err != nil {
		t.Fatalf("footprints: %v", err)
	}
	if err := run(t, "footprints", "SOIC-8"); err != nil {
		t.Fatalf("footprints SOIC-8: %v", err)
	}
	err := run(t, "footprints", "NOPE")
	if !errors.Is(err, errors.ErrCodeFootprintNotFound) {
		t.Errorf("err = %v, want FOOTPRINT_NOT_FOUND", err)
	}
}

func TestCompletionCommand(t *testing.T) {
	var buf bytes.Buffer
	if err := runTo(t, &buf, "completion", "bash"); err != nil {
		t.Fatalf("completion: %v", err)
	}
	if !strings.Contains(buf.String(), appName) {
		t.Error("bash completion should mention the command name")
	}
}

func TestStatsLine(t *testing.T) {
	line := statsLine(layout.Stats{
		CompletionRate: 0.5,
		NetsAttempted:  4,
		NetsCompleted:  2,
		TotalTraces:    6,
		ViaCount:       3,
	}, true)
	for _, want := range []string{"50.0% routed", "2/4 nets", "3 vias", iconCached} {
		if !strings.Contains(line, want) {
			t.Errorf("statsLine missing %q: %q", want, line)
		}
	}
}
