package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/SamDSchofield/vicon2gt/manifold"
	"github.com/SamDSchofield/vicon2gt/solver"
	"gonum.org/v1/gonum/mat"
)

func TestStatesWriterHeaderAndRow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "states.csv")

	w, err := NewStatesWriter(path)
	if err != nil {
		t.Fatalf("NewStatesWriter failed: %v", err)
	}
	node := &solver.StateNode{
		T:  1.5,
		R:  manifold.Identity(3),
		P:  mat.NewVecDense(3, []float64{1, 2, 3}),
		V:  mat.NewVecDense(3, []float64{0, 0, 0}),
		Bg: mat.NewVecDense(3, nil),
		Ba: mat.NewVecDense(3, nil),
	}
	if err := w.WriteNode(node); err != nil {
		t.Fatalf("WriteNode failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines (comment, header, row), got %d", len(lines))
	}
	if !strings.HasPrefix(lines[1], "t,qx,qy,qz,qw,px,py,pz,vx,vy,vz,bgx,bgy,bgz,bax,bay,baz") {
		t.Fatalf("unexpected header: %s", lines[1])
	}
	if !strings.HasPrefix(lines[2], "1.500000000,") {
		t.Fatalf("unexpected row: %s", lines[2])
	}
}
