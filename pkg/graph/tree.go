package graph

import (
	"fmt"
	"io"

	"github.com/poltergeist/reactor/pkg/types"
)

// WriteTree prints the graph as an indented tree, each node under the
// coordinate that first brought it in, followed by the conflict records.
func (g *Graph) WriteTree(w io.Writer) error {
	if _, err := fmt.Fprintln(w, g.Root.ID()); err != nil {
		return err
	}
	if err := g.writeChildren(w, g.Root, ""); err != nil {
		return err
	}

	if len(g.Conflicts) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "\nConflicts:"); err != nil {
		return err
	}
	for _, c := range g.Conflicts {
		marker := ""
		if c.Downgrade {
			marker = " [downgrade]"
		}
		if _, err := fmt.Fprintf(w, "  %s%s\n", c, marker); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) writeChildren(w io.Writer, parent types.Coordinate, indent string) error {
	children := g.Children(parent)
	for i, n := range children {
		branch, next := "+- ", "|  "
		if i == len(children)-1 {
			branch, next = "\\- ", "   "
		}
		suffix := ""
		if n.Missing {
			suffix = " (no metadata)"
		}
		if _, err := fmt.Fprintf(w, "%s%s%s (%s)%s\n", indent, branch, n.Coordinate.ID(), n.Scope, suffix); err != nil {
			return err
		}
		if err := g.writeChildren(w, n.Coordinate, indent+next); err != nil {
			return err
		}
	}
	return nil
}
