// Package netgraph draws net connectivity as a Graphviz diagram.
//
// Components become boxes pinned at their board positions, and each net
// becomes edges between the components it joins. By default an edge is
// drawn for every connection of the net's spanning tree, which is exactly
// the set of pad pairs the router is asked to connect. Passing a routed
// layout colours each net by its routing status.
//
//	dot := netgraph.ToDOT(nl, netgraph.Options{Layout: &l})
//	svg, err := netgraph.RenderSVG(ctx, dot)
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering; no Graphviz installation is needed.
package netgraph

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/boardroute/pkg/autoroute"
	"github.com/matzehuels/boardroute/pkg/geom"
	"github.com/matzehuels/boardroute/pkg/layout"
	"github.com/matzehuels/boardroute/pkg/netlist"
)

// posScale converts board millimetres to Graphviz inches, enlarged so
// small parts do not collapse into each other.
const posScale = 1.0 / 10

// Status colours.
const (
	colorRouted   = "#2e7d32"
	colorPartial  = "#ef6c00"
	colorUnrouted = "#c62828"
	colorUnknown  = "#757575"
)

// Options configures diagram generation.
type Options struct {
	// Complete draws an edge between every pair of components on a net
	// instead of the spanning tree.
	Complete bool

	// Layout colours nets by routing status when set.
	Layout *layout.Layout

	// Nets restricts the diagram to the named nets. Empty means all.
	Nets []string
}

// ToDOT converts a netlist to Graphviz DOT.
func ToDOT(nl *netlist.Netlist, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("graph G {\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  overlap=false;\n")
	buf.WriteString("  splines=true;\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=10];\n")
	buf.WriteString("  edge [fontsize=8];\n\n")

	for _, c := range nl.Components() {
		fmt.Fprintf(&buf, "  %q [%s];\n", c.Ref, strings.Join(nodeAttrs(c), ", "))
	}
	buf.WriteString("\n")

	wanted := make(map[string]bool, len(opts.Nets))
	for _, n := range opts.Nets {
		wanted[n] = true
	}
	for _, n := range nl.Nets() {
		if len(wanted) > 0 && !wanted[n.Name] {
			continue
		}
		pins, err := nl.PinsOf(n.Name)
		if err != nil {
			continue
		}
		color := statusColor(opts.Layout, n.Name)
		for _, e := range connections(pins, opts.Complete) {
			fmt.Fprintf(&buf, "  %q -- %q [label=%q, color=%q, fontcolor=%q];\n", e[0], e[1], n.Name, color, color)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func nodeAttrs(c *netlist.Component) []string {
	label := c.Ref
	if c.Value != "" {
		label += "\n" + c.Value
	}
	attrs := []string{fmt.Sprintf("label=%q", label)}
	if c.Placement.Placed || c.Placement.Fixed {
		attrs = append(attrs, fmt.Sprintf("pos=\"%.3f,%.3f!\"", c.Placement.X*posScale, -c.Placement.Y*posScale))
	}
	if c.Placement.Fixed {
		attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=lightgrey")
	}
	return attrs
}

// connections returns the component pairs joined by a net, skipping
// connections between pins of the same component and duplicate pairs.
func connections(pins []netlist.PinRef, complete bool) [][2]string {
	var pairs [][2]int
	if complete {
		for i := range pins {
			for j := i + 1; j < len(pins); j++ {
				pairs = append(pairs, [2]int{i, j})
			}
		}
	} else {
		pts := make([]geom.Point, len(pins))
		for i, p := range pins {
			pts[i] = p.Position
		}
		pairs = autoroute.SpanningTree(pts)
	}

	seen := make(map[[2]string]bool)
	var out [][2]string
	for _, p := range pairs {
		a, b := pins[p[0]].Component.Ref, pins[p[1]].Component.Ref
		if a == b {
			continue
		}
		if a > b {
			a, b = b, a
		}
		key := [2]string{a, b}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	return out
}

func statusColor(l *layout.Layout, name string) string {
	if l == nil {
		return colorUnknown
	}
	rn, ok := l.Net(name)
	if !ok {
		return colorUnknown
	}
	switch rn.Status {
	case layout.StatusRouted:
		return colorRouted
	case layout.StatusPartial:
		return colorPartial
	}
	return colorUnrouted
}

// RenderSVG lays out a DOT graph with neato, honouring pinned positions,
// and returns the SVG.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()
	gv.SetLayout(graphviz.NEATO)

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
