package source

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Siddhant-K-code/projcoords/pkg/types"
)

// Format identifies an input file layout.
type Format string

// Supported formats.
const (
	FormatJSONL Format = "jsonl"
	FormatCSV   Format = "csv"
)

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson", ".json":
		return FormatJSONL, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %q (expected .jsonl or .csv)", ErrUnsupportedInput, filepath.Ext(path))
	}
}

// LoadFile reads a point cloud, or a distance matrix when distances is set,
// from path.
func LoadFile(path string, distances bool) (*Dataset, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return Load(file, format, distances)
}

// Load reads a dataset from r.
func Load(r io.Reader, format Format, distances bool) (*Dataset, error) {
	var (
		ids  []string
		rows [][]float64
		meta []map[string]interface{}
		err  error
	)
	switch format {
	case FormatJSONL:
		ids, rows, meta, err = readJSONL(r)
	case FormatCSV:
		ids, rows, err = readCSV(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedInput, format)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoVectors
	}

	ds := &Dataset{IDs: ids, Metadata: meta}
	if distances {
		ds.Points, err = types.NewDistanceMatrix(rows)
	} else {
		ds.Points, err = types.NewPointCloud(rows)
	}
	if err != nil {
		return nil, err
	}
	return ds, nil
}

// jsonPoint is one JSONL record. Lines may also be bare arrays.
type jsonPoint struct {
	ID       string                 `json:"id"`
	Values   []float64              `json:"values"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

func readJSONL(r io.Reader) ([]string, [][]float64, []map[string]interface{}, error) {
	scanner := bufio.NewScanner(r)

	// Increase buffer for large lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 64*1024*1024)

	var (
		ids     []string
		rows    [][]float64
		meta    []map[string]interface{}
		labeled bool
		lineNo  int
	)
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var p jsonPoint
		if line[0] == '[' {
			if err := json.Unmarshal(line, &p.Values); err != nil {
				return nil, nil, nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
		} else if err := json.Unmarshal(line, &p); err != nil {
			return nil, nil, nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if p.ID != "" || p.Metadata != nil {
			labeled = true
		}

		ids = append(ids, p.ID)
		rows = append(rows, p.Values)
		meta = append(meta, p.Metadata)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, nil, err
	}

	if !labeled {
		return nil, rows, nil, nil
	}
	return ids, rows, meta, nil
}

// readCSV parses numeric rows. A non-numeric first row is a header; a
// header whose first column is "id" marks that column as labels.
func readCSV(r io.Reader) ([]string, [][]float64, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var (
		ids     []string
		rows    [][]float64
		idCol   bool
		lineNum int
	)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		lineNum++

		if lineNum == 1 && !numeric(record) {
			idCol = len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), "id")
			continue
		}

		cells := record
		if idCol {
			ids = append(ids, record[0])
			cells = record[1:]
		}
		row := make([]float64, len(cells))
		for i, cell := range cells {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("row %d column %d: %w", lineNum, i+1, err)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	return ids, rows, nil
}

func numeric(record []string) bool {
	for _, cell := range record {
		if _, err := strconv.ParseFloat(strings.TrimSpace(cell), 64); err != nil {
			return false
		}
	}
	return true
}

// WriteJSONL writes a point cloud as one {"id","values"} record per line.
func WriteJSONL(w io.Writer, ds *Dataset) error {
	pc, ok := ds.Points.(*types.PointCloud)
	if !ok {
		return fmt.Errorf("%w: only point clouds can be written", ErrUnsupportedInput)
	}

	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for i := 0; i < pc.N; i++ {
		rec := jsonPoint{ID: ds.ID(i), Values: pc.Row(i)}
		if i < len(ds.Metadata) {
			rec.Metadata = ds.Metadata[i]
		}
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteCSV writes a point cloud with an id column and a header row.
func WriteCSV(w io.Writer, ds *Dataset) error {
	pc, ok := ds.Points.(*types.PointCloud)
	if !ok {
		return fmt.Errorf("%w: only point clouds can be written", ErrUnsupportedInput)
	}

	cw := csv.NewWriter(w)
	header := make([]string, pc.Dim+1)
	header[0] = "id"
	for k := 0; k < pc.Dim; k++ {
		header[k+1] = fmt.Sprintf("x%d", k)
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	record := make([]string, pc.Dim+1)
	for i := 0; i < pc.N; i++ {
		record[0] = ds.ID(i)
		for k, v := range pc.Row(i) {
			record[k+1] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
