package footprint

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/boardroute/pkg/errors"
)

// Source looks footprints up by name.
type Source interface {
	// Name identifies the source in logs and listings.
	Name() string

	// Lookup returns the named definition. An unknown name is
	// (Definition{}, false, nil).
	Lookup(ctx context.Context, name string) (Definition, bool, error)

	// List returns the names the source can resolve, sorted.
	List(ctx context.Context) ([]string, error)
}

// =============================================================================
// Directory source
// =============================================================================

// definitionExts are tried in order for each name.
var definitionExts = []string{".yaml", ".yml", ".json"}

// DirSource reads one definition per file from a directory. The file
// name without extension is the footprint name.
//
//	# footprints/BUZZER_12MM.yaml
//	width: 12
//	height: 12
//	courtyard: 0.5
//	pads:
//	  - {id: "+", offset: {x: -3.25, y: 0}}
//	  - {id: "-", offset: {x: 3.25, y: 0}}
type DirSource struct {
	Dir string
}

// NewDirSource returns a source reading from dir.
func NewDirSource(dir string) *DirSource { return &DirSource{Dir: dir} }

// Name implements [Source].
func (s *DirSource) Name() string { return "dir:" + s.Dir }

// Lookup implements [Source].
func (s *DirSource) Lookup(_ context.Context, name string) (Definition, bool, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return Definition{}, false, errors.New(errors.ErrCodeInvalidInput, "invalid footprint name %q", name)
	}
	for _, ext := range definitionExts {
		path := filepath.Join(s.Dir, name+ext)
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return Definition{}, false, err
		}
		d, err := decode(data, ext)
		if err != nil {
			return Definition{}, false, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse %s", path).About(name)
		}
		if d.Name == "" {
			d.Name = name
		}
		if err := d.Validate(); err != nil {
			return Definition{}, false, err
		}
		return d, true, nil
	}
	return Definition{}, false, nil
}

// List implements [Source].
func (s *DirSource) List(context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || !slices.Contains(definitionExts, ext) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ext))
	}
	slices.Sort(names)
	return slices.Compact(names), nil
}

func decode(data []byte, ext string) (Definition, error) {
	var d Definition
	var err error
	if ext == ".json" {
		err = json.Unmarshal(data, &d)
	} else {
		err = yaml.Unmarshal(data, &d)
	}
	return d, err
}

// =============================================================================
// Memory source
// =============================================================================

// MemorySource holds definitions registered at runtime.
type MemorySource struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewMemorySource returns a source holding defs.
func NewMemorySource(defs ...Definition) (*MemorySource, error) {
	s := &MemorySource{defs: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		if err := s.Add(d); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add registers d, replacing any definition of the same name.
func (s *MemorySource) Add(d Definition) error {
	if err := d.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.defs[d.Name] = d
	s.mu.Unlock()
	return nil
}

// Name implements [Source].
func (s *MemorySource) Name() string { return "memory" }

// Lookup implements [Source].
func (s *MemorySource) Lookup(_ context.Context, name string) (Definition, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.defs[name]
	if ok {
		d.Pads = slices.Clone(d.Pads)
	}
	return d, ok, nil
}

// List implements [Source].
func (s *MemorySource) List(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.defs))
	for n := range s.defs {
		names = append(names, n)
	}
	slices.Sort(names)
	return names, nil
}

var (
	_ Source = (*DirSource)(nil)
	_ Source = (*MemorySource)(nil)
)
