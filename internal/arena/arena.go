// Package arena loads historical battles and their prompt embeddings from
// disk. Battles come as a JSON array or newline-delimited JSON, optionally
// gzip or zstd compressed; embeddings come as a NumPy .npy matrix or a JSON
// array of rows.
package arena

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/Miguel57216/LLM-Route/internal/rating"
)

// DataNotFoundError reports a missing dataset or embedding file.
type DataNotFoundError struct {
	Path string
	Err  error
}

func (e *DataNotFoundError) Error() string {
	return fmt.Sprintf("expected data file not found at path: %s", e.Path)
}

func (e *DataNotFoundError) Unwrap() error { return e.Err }

func open(path string) (*os.File, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &DataNotFoundError{Path: path, Err: err}
	}
	return f, err
}

// decompress wraps r according to the file's last extension and returns the
// remaining name used for format detection.
func decompress(path string, r io.Reader) (io.ReadCloser, string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".gz":
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, "", fmt.Errorf("gzip %s: %w", path, err)
		}
		return zr, strings.TrimSuffix(path, filepath.Ext(path)), nil
	case ".zst", ".zstd":
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, "", fmt.Errorf("zstd %s: %w", path, err)
		}
		return zr.IOReadCloser(), strings.TrimSuffix(path, filepath.Ext(path)), nil
	default:
		return io.NopCloser(r), path, nil
	}
}

// LoadBattles reads the battle dataset at path. A ".json" name is a single
// JSON array; anything else is sniffed and falls back to JSON lines.
func LoadBattles(path string) ([]rating.Battle, error) {
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

	br := bufio.NewReader(rc)
	var battles []rating.Battle
	if strings.EqualFold(filepath.Ext(name), ".json") || startsWithArray(br) {
		battles, err = decodeArray(br, path)
	} else {
		battles, err = decodeLines(br, path)
	}
	if err != nil {
		return nil, err
	}
	if err := validate(battles); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return battles, nil
}

func validate(battles []rating.Battle) error {
	for i, b := range battles {
		if b.ModelA == "" || b.ModelB == "" {
			return fmt.Errorf("row %d: model_a and model_b are required", i)
		}
		if b.Winner == "" {
			return fmt.Errorf("row %d: winner is required", i)
		}
	}
	return nil
}

func startsWithArray(br *bufio.Reader) bool {
	for {
		b, err := br.Peek(1)
		if err != nil {
			return false
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n':
			_, _ = br.ReadByte()
		default:
			return b[0] == '['
		}
	}
}

func decodeArray(r io.Reader, path string) ([]rating.Battle, error) {
	var battles []rating.Battle
	if err := json.NewDecoder(r).Decode(&battles); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return battles, nil
}

func decodeLines(r io.Reader, path string) ([]rating.Battle, error) {
	var battles []rating.Battle
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var b rating.Battle
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("parse %s line %d: %w", path, line, err)
		}
		battles = append(battles, b)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return battles, nil
}
