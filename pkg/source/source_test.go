package source

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Siddhant-K-code/projcoords/pkg/types"
)

func TestLoadJSONL(t *testing.T) {
	input := `{"id": "a", "values": [0, 1], "metadata": {"label": "x"}}
{"id": "b", "values": [1, 0]}

{"id": "c", "values": [1, 1]}
`
	ds, err := Load(strings.NewReader(input), FormatJSONL, false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	pc, ok := ds.Points.(*types.PointCloud)
	if !ok {
		t.Fatalf("expected point cloud, got %T", ds.Points)
	}
	if pc.N != 3 || pc.Dim != 2 {
		t.Errorf("shape = %dx%d, want 3x2", pc.N, pc.Dim)
	}
	if ds.ID(2) != "c" {
		t.Errorf("ID(2) = %q, want c", ds.ID(2))
	}
	if ds.Metadata[0]["label"] != "x" {
		t.Errorf("metadata not preserved: %v", ds.Metadata[0])
	}
}

func TestLoadJSONLBareArrays(t *testing.T) {
	ds, err := Load(strings.NewReader("[0, 1, 2]\n[2, 1, 0]\n"), FormatJSONL, false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ds.IDs != nil {
		t.Errorf("expected no ids, got %v", ds.IDs)
	}
	if ds.ID(1) != "1" {
		t.Errorf("ID(1) = %q, want index fallback", ds.ID(1))
	}
}

func TestLoadJSONLMalformed(t *testing.T) {
	_, err := Load(strings.NewReader("[0, 1]\n{not json}\n"), FormatJSONL, false)
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("expected line 2 error, got %v", err)
	}
}

func TestLoadCSV(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantN   int
		wantDim int
		wantID  string
	}{
		{"plain", "0,1\n1,0\n0.5,0.5\n", 3, 2, "2"},
		{"header", "x,y\n0,1\n1,0\n", 2, 2, "1"},
		{"id column", "id,x,y,z\np1,0,1,2\np2,1,0,2\n", 2, 3, "p2"},
		{"comments", "# generated\n0,1\n1,0\n", 2, 2, "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := Load(strings.NewReader(tt.input), FormatCSV, false)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			pc := ds.Points.(*types.PointCloud)
			if pc.N != tt.wantN || pc.Dim != tt.wantDim {
				t.Errorf("shape = %dx%d, want %dx%d", pc.N, pc.Dim, tt.wantN, tt.wantDim)
			}
			if got := ds.ID(tt.wantN - 1); got != tt.wantID {
				t.Errorf("last id = %q, want %q", got, tt.wantID)
			}
		})
	}
}

func TestLoadCSVErrors(t *testing.T) {
	if _, err := Load(strings.NewReader("0,1\n1,abc\n"), FormatCSV, false); err == nil {
		t.Error("expected parse error")
	}
	if _, err := Load(strings.NewReader("0,1\n1\n"), FormatCSV, false); !errors.Is(err, types.ErrShape) {
		t.Errorf("expected ErrShape for ragged rows, got %v", err)
	}
	if _, err := Load(strings.NewReader(""), FormatCSV, false); !errors.Is(err, ErrNoVectors) {
		t.Errorf("expected ErrNoVectors, got %v", err)
	}
}

func TestLoadDistanceMatrix(t *testing.T) {
	ds, err := Load(strings.NewReader("0,1,2\n1,0,1\n2,1,0\n"), FormatCSV, true)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	dm, ok := ds.Points.(*types.DistanceMatrix)
	if !ok {
		t.Fatalf("expected distance matrix, got %T", ds.Points)
	}
	if dm.At(0, 2) != 2 {
		t.Errorf("At(0,2) = %v, want 2", dm.At(0, 2))
	}

	_, err = Load(strings.NewReader("[0, 1]\n[3, 0]\n"), FormatJSONL, true)
	if !errors.Is(err, types.ErrAsymmetric) {
		t.Errorf("expected ErrAsymmetric, got %v", err)
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Format
		err  bool
	}{
		{"points.jsonl", FormatJSONL, false},
		{"points.NDJSON", FormatJSONL, false},
		{"points.csv", FormatCSV, false},
		{"points.parquet", "", true},
	}
	for _, tt := range tests {
		got, err := FormatFromPath(tt.path)
		if (err != nil) != tt.err {
			t.Errorf("FormatFromPath(%q) error = %v", tt.path, err)
		}
		if got != tt.want {
			t.Errorf("FormatFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestWriteRoundTrip(t *testing.T) {
	pc, _ := types.NewPointCloud([][]float64{{0.25, -1}, {3, 4.5}})
	ds := &Dataset{IDs: []string{"a", "b"}, Points: pc}

	for _, format := range []Format{FormatJSONL, FormatCSV} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			var err error
			if format == FormatJSONL {
				err = WriteJSONL(&buf, ds)
			} else {
				err = WriteCSV(&buf, ds)
			}
			if err != nil {
				t.Fatalf("write: %v", err)
			}

			back, err := Load(&buf, format, false)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			got := back.Points.(*types.PointCloud)
			for i := range pc.Data {
				if got.Data[i] != pc.Data[i] {
					t.Fatalf("value %d = %v, want %v", i, got.Data[i], pc.Data[i])
				}
			}
			if back.ID(1) != "b" {
				t.Errorf("ID(1) = %q, want b", back.ID(1))
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.csv")
	if err := os.WriteFile(path, []byte("0,1\n1,0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	ds, err := LoadFile(path, false)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if ds.Len() != 2 {
		t.Errorf("Len = %d, want 2", ds.Len())
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.csv"), false); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFromVectors(t *testing.T) {
	ds, err := FromVectors([]string{"x", "y"}, [][]float32{{1, 2}, {3, 4}}, nil)
	if err != nil {
		t.Fatalf("FromVectors: %v", err)
	}
	pc := ds.Points.(*types.PointCloud)
	if pc.Row(1)[1] != 4 {
		t.Errorf("Row(1) = %v", pc.Row(1))
	}

	if _, err := FromVectors(nil, nil, nil); !errors.Is(err, ErrNoVectors) {
		t.Errorf("expected ErrNoVectors, got %v", err)
	}
	if _, err := FromVectors(nil, [][]float32{{1, 2}, {3}}, nil); !errors.Is(err, types.ErrShape) {
		t.Errorf("expected ErrShape, got %v", err)
	}
}

type fakeSource struct {
	ds  *Dataset
	err error
}

func (f *fakeSource) Neighborhood(context.Context, string, int) (*Dataset, error) {
	return f.ds, f.err
}

func (f *fakeSource) Close() error { return nil }

func TestFetch(t *testing.T) {
	ds, _ := FromVectors([]string{"seed"}, [][]float32{{1, 0}}, nil)

	got, err := Fetch(context.Background(), &fakeSource{ds: ds}, nil, "qdrant", "seed", 10)
	if err != nil || got != ds {
		t.Fatalf("Fetch = %v, %v", got, err)
	}

	if _, err := Fetch(context.Background(), &fakeSource{ds: ds}, nil, "qdrant", "", 10); !errors.Is(err, ErrMissingSeed) {
		t.Errorf("expected ErrMissingSeed, got %v", err)
	}

	_, err = Fetch(context.Background(), &fakeSource{err: ErrNotFound}, nil, "pinecone", "nope", 10)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected wrapped ErrNotFound, got %v", err)
	}
}
