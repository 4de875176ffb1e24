package netlist

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/boardroute/pkg/errors"
)

// Design is the serialized form of a netlist as read from a design file.
//
//	{
//	  "name": "blinky",
//	  "board": {"width": 50, "height": 30},
//	  "components": [{"ref": "R1", "footprint": {"name": "R_0805"}, "pins": [...]}],
//	  "nets": [{"name": "LED_A", "endpoints": [{"ref": "R1", "pin": "2"}, {"ref": "D1", "pin": "1"}]}]
//	}
//
// Endpoints may also be written as "REF.PIN" strings.
type Design struct {
	Name       string       `json:"name,omitempty" yaml:"name,omitempty"`
	Board      Board        `json:"board" yaml:"board"`
	Components []*Component `json:"components" yaml:"components"`
	Nets       []designNet  `json:"nets" yaml:"nets"`
}

// designNet mirrors [Net] but accepts endpoints either as objects or as
// "REF.PIN" strings.
type designNet struct {
	Name       string           `json:"name" yaml:"name"`
	Endpoints  []designEndpoint `json:"endpoints" yaml:"endpoints"`
	Class      string           `json:"class,omitempty" yaml:"class,omitempty"`
	Priority   int              `json:"priority,omitempty" yaml:"priority,omitempty"`
	Critical   bool             `json:"critical,omitempty" yaml:"critical,omitempty"`
	MatchGroup string           `json:"match_group,omitempty" yaml:"match_group,omitempty"`
}

type designEndpoint struct{ Endpoint }

func (e *designEndpoint) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		ep, err := ParseEndpoint(s)
		e.Endpoint = ep
		return err
	}
	return json.Unmarshal(data, &e.Endpoint)
}

func (e *designEndpoint) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		ep, err := ParseEndpoint(node.Value)
		e.Endpoint = ep
		return err
	}
	return node.Decode(&e.Endpoint)
}

func (e designEndpoint) MarshalJSON() ([]byte, error) { return json.Marshal(e.Endpoint) }

func (e designEndpoint) MarshalYAML() (any, error) { return e.Endpoint, nil }

// Netlist converts the design into a netlist. It does not validate
// endpoints; call [Netlist.Validate] for that.
func (d *Design) Netlist() (*Netlist, error) {
	nets := make([]*Net, len(d.Nets))
	for i, dn := range d.Nets {
		n := &Net{
			Name:       dn.Name,
			Class:      dn.Class,
			Priority:   dn.Priority,
			Critical:   dn.Critical,
			MatchGroup: dn.MatchGroup,
			Endpoints:  make([]Endpoint, len(dn.Endpoints)),
		}
		for j, ep := range dn.Endpoints {
			n.Endpoints[j] = ep.Endpoint
		}
		nets[i] = n
	}
	return New(d.Name, d.Board, d.Components, nets)
}

// DesignOf converts a netlist back to its serialized form.
func DesignOf(nl *Netlist) Design {
	d := Design{Name: nl.Name, Board: nl.Board, Components: nl.Components()}
	for _, n := range nl.Nets() {
		dn := designNet{
			Name:       n.Name,
			Class:      n.Class,
			Priority:   n.Priority,
			Critical:   n.Critical,
			MatchGroup: n.MatchGroup,
		}
		for _, ep := range n.Endpoints {
			dn.Endpoints = append(dn.Endpoints, designEndpoint{ep})
		}
		d.Nets = append(d.Nets, dn)
	}
	return d
}

// Format identifies a design file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatOf picks the format from a file extension, defaulting to JSON.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// Read decodes a design from r.
func Read(r io.Reader, format Format) (*Netlist, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read design")
	}
	return Parse(data, format)
}

// Parse decodes a design from bytes.
func Parse(data []byte, format Format) (*Netlist, error) {
	var d Design
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &d)
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&d)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode %s design", format)
	}
	return d.Netlist()
}

// ReadFile reads a design file, choosing the decoder by extension.
func ReadFile(path string) (*Netlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "design file %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "open %s", path)
	}
	return Parse(data, FormatOf(path))
}

// Marshal encodes a netlist as a design document.
func Marshal(nl *Netlist, format Format) ([]byte, error) {
	d := DesignOf(nl)
	if format == FormatYAML {
		return yaml.Marshal(d)
	}
	return json.MarshalIndent(d, "", "  ")
}

// WriteFile writes a netlist as a design file, choosing the encoder by
// extension.
func WriteFile(nl *Netlist, path string) error {
	data, err := Marshal(nl, FormatOf(path))
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
