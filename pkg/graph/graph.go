// Package graph builds the resolved dependency graph of a module: explicit
// and managed versions, exclusions, scope mediation, nearest-wins conflict
// resolution and cycle detection over the live resolution path.
package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/poltergeist/reactor/pkg/types"
)

// Metadata is what a metadata source knows about a coordinate
type Metadata struct {
	Coordinate   types.Coordinate
	Packaging    types.Packaging
	Dependencies []types.Dependency
}

// MetadataSource returns the declared dependencies of a coordinate. It
// returns an error wrapping types.ErrNotFound when the coordinate is unknown.
type MetadataSource interface {
	FetchMetadata(ctx context.Context, c types.Coordinate) (*Metadata, error)
}

// Node is a selected coordinate in the graph
type Node struct {
	Coordinate types.Coordinate
	Scope      types.Scope
	Depth      int
	// Path runs from the graph root to the node's declaring parent
	Path []types.Coordinate
	// Missing is set when no metadata was available for the node
	Missing bool
}

// Parent returns the coordinate that first brought the node in
func (n *Node) Parent() types.Coordinate {
	return n.Path[len(n.Path)-1]
}

// Edge is a declared dependency between two coordinates, pointing at the
// version selected for the target.
type Edge struct {
	From  types.Coordinate
	To    types.Coordinate
	Scope types.Scope
}

// Conflict records two versions of one artifact reaching the same graph.
// The selected version is always the nearer one.
type Conflict struct {
	Key          types.Key
	Selected     string
	SelectedPath []types.Coordinate
	Rejected     string
	RejectedPath []types.Coordinate
	// Downgrade is set when the rejected version is newer than the selected one
	Downgrade bool
}

func (c Conflict) String() string {
	return fmt.Sprintf("%s: %s (%s) over %s (%s)",
		c.Key, c.Selected, joinPath(c.SelectedPath), c.Rejected, joinPath(c.RejectedPath))
}

// Graph is the resolved dependency graph of one root coordinate
type Graph struct {
	Root      types.Coordinate
	Nodes     []*Node
	Edges     []Edge
	Conflicts []Conflict

	byKey map[types.Key]*Node
	edges map[edgeKey]bool
}

type edgeKey struct {
	from, to string
}

func newGraph(root types.Coordinate) *Graph {
	return &Graph{
		Root:  root,
		byKey: make(map[types.Key]*Node),
		edges: make(map[edgeKey]bool),
	}
}

// Lookup returns the node selected for k
func (g *Graph) Lookup(k types.Key) (*Node, bool) {
	n, ok := g.byKey[k]
	return n, ok
}

// Contains reports whether exactly c was selected
func (g *Graph) Contains(c types.Coordinate) bool {
	n, ok := g.byKey[c.Key()]
	return ok && n.Coordinate.Version == c.Version
}

// Coordinates returns the selected coordinates in resolution order
func (g *Graph) Coordinates() []types.Coordinate {
	out := make([]types.Coordinate, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		out = append(out, n.Coordinate)
	}
	return out
}

// Children returns the nodes first brought in by c, in resolution order
func (g *Graph) Children(c types.Coordinate) []*Node {
	var out []*Node
	for _, n := range g.Nodes {
		if n.Parent().ID() == c.ID() {
			out = append(out, n)
		}
	}
	return out
}

func (g *Graph) add(n *Node) {
	g.byKey[n.Coordinate.Key()] = n
	g.Nodes = append(g.Nodes, n)
}

func (g *Graph) addEdge(from, to types.Coordinate, scope types.Scope) {
	k := edgeKey{from: from.ID(), to: to.ID()}
	if g.edges[k] {
		return
	}
	g.edges[k] = true
	g.Edges = append(g.Edges, Edge{From: from, To: to, Scope: scope})
}

func joinPath(path []types.Coordinate) string {
	parts := make([]string, len(path))
	for i, c := range path {
		parts[i] = c.ID()
	}
	return strings.Join(parts, " -> ")
}
