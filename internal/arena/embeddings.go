package arena

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

// LoadEmbeddings reads the embedding matrix at path, one row per battle.
func LoadEmbeddings(path string) (*mat.Dense, error) {
	f, err := open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rc, name, err := decompress(path, f)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	if strings.EqualFold(filepath.Ext(name), ".json") {
		var rows [][]float64
		if err := json.NewDecoder(rc).Decode(&rows); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return fromRows(rows, path)
	}

	r, err := npyio.NewReader(rc)
	if err != nil {
		return nil, fmt.Errorf("read npy header %s: %w", path, err)
	}
	shape := r.Header.Descr.Shape
	if len(shape) != 2 {
		return nil, fmt.Errorf("%s: expected a 2-d matrix, got shape %v", path, shape)
	}
	nrows, ncols := shape[0], shape[1]
	if nrows == 0 || ncols == 0 {
		return nil, fmt.Errorf("%s: empty embedding matrix", path)
	}

	var data []float64
	switch r.Header.Descr.Type {
	case "<f8", "f8", "float64":
		if err := r.Read(&data); err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	case "<f4", "f4", "float32":
		var f32 []float32
		if err := r.Read(&f32); err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		data = make([]float64, len(f32))
		for i, v := range f32 {
			data[i] = float64(v)
		}
	default:
		return nil, fmt.Errorf("%s: unsupported dtype %q", path, r.Header.Descr.Type)
	}
	if len(data) != nrows*ncols {
		return nil, fmt.Errorf("%s: %d values for shape %v", path, len(data), shape)
	}

	if r.Header.Descr.Fortran {
		return mat.DenseCopyOf(mat.NewDense(ncols, nrows, data).T()), nil
	}
	return mat.NewDense(nrows, ncols, data), nil
}

func fromRows(rows [][]float64, path string) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%s: empty embedding matrix", path)
	}
	ncols := len(rows[0])
	data := make([]float64, 0, len(rows)*ncols)
	for i, row := range rows {
		if len(row) != ncols {
			return nil, fmt.Errorf("%s: row %d has %d columns, want %d", path, i, len(row), ncols)
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(rows), ncols, data), nil
}
