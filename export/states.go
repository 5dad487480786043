// Package export writes a solved graph to disk: a CSV of per-node states
// and a text summary of the calibration result, in the formats spec.md
// §6 fixes. It is this repository's analogue of the teacher's
// exporter.go CSVExporter — the same "open once, write a row per
// estimate, close" shape, generalized from one Estimate per row to this
// domain's fixed state-node layout.
package export

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/SamDSchofield/vicon2gt/manifold"
	"github.com/SamDSchofield/vicon2gt/solver"
)

// statesHeader is the fixed column order spec.md §6 requires.
var statesHeader = []string{"t", "qx", "qy", "qz", "qw", "px", "py", "pz", "vx", "vy", "vz", "bgx", "bgy", "bgz", "bax", "bay", "baz"}

// StatesWriter writes the per-node CSV file, one row per state node.
type StatesWriter struct {
	hdlr *os.File
}

// NewStatesWriter creates (or truncates) path and writes the header.
func NewStatesWriter(path string) (*StatesWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(f, "# Creation date (UTC): %s\n", time.Now().UTC())
	fmt.Fprintln(f, strings.Join(statesHeader, ","))
	return &StatesWriter{hdlr: f}, nil
}

// WriteNode appends one row for node, in statesHeader's column order.
func (w *StatesWriter) WriteNode(node *solver.StateNode) error {
	q := manifold.QuatFromRotation(node.R)
	row := []string{
		fmt.Sprintf("%.9f", node.T),
		fmt.Sprintf("%.6f", q.X), fmt.Sprintf("%.6f", q.Y), fmt.Sprintf("%.6f", q.Z), fmt.Sprintf("%.6f", q.W),
		fmt.Sprintf("%.6f", node.P.AtVec(0)), fmt.Sprintf("%.6f", node.P.AtVec(1)), fmt.Sprintf("%.6f", node.P.AtVec(2)),
		fmt.Sprintf("%.6f", node.V.AtVec(0)), fmt.Sprintf("%.6f", node.V.AtVec(1)), fmt.Sprintf("%.6f", node.V.AtVec(2)),
		fmt.Sprintf("%.6f", node.Bg.AtVec(0)), fmt.Sprintf("%.6f", node.Bg.AtVec(1)), fmt.Sprintf("%.6f", node.Bg.AtVec(2)),
		fmt.Sprintf("%.6f", node.Ba.AtVec(0)), fmt.Sprintf("%.6f", node.Ba.AtVec(1)), fmt.Sprintf("%.6f", node.Ba.AtVec(2)),
	}
	_, err := w.hdlr.WriteString(strings.Join(row, ",") + "\n")
	return err
}

// WriteAll writes every node in result.Nodes, in order.
func (w *StatesWriter) WriteAll(nodes []*solver.StateNode) error {
	for _, n := range nodes {
		if err := w.WriteNode(n); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying file.
func (w *StatesWriter) Close() error {
	return w.hdlr.Close()
}
