// Package index builds and loads the on-disk glossary index: an ordered
// metadata file and a dense vectors file that must stay 1:1 by position.
package index

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"postrag/internal/domain"
)

var vectorsMagic = [4]byte{'P', 'R', 'V', 'X'}

// LoadGlossary reads the glossary source. YAML and JSON lists of
// {text, translation} are both accepted.
func LoadGlossary(path string) ([]domain.GlossEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []domain.GlossEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing glossary %s: %w", path, err)
	}
	for i, e := range entries {
		if e.Term == "" {
			return nil, fmt.Errorf("glossary %s: entry %d has empty text", path, i)
		}
	}
	return entries, nil
}

// WriteMeta stores the ordered entries as a JSON array.
func WriteMeta(path string, entries []domain.GlossEntry) error {
	if entries == nil {
		entries = []domain.GlossEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadMeta loads the ordered entries written by WriteMeta.
func ReadMeta(path string) ([]domain.GlossEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []domain.GlossEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return entries, nil
}

// WriteVectors stores rows as: magic, uint32 count, uint32 dim, then
// little-endian float32 values row by row.
func WriteVectors(path string, vectors [][]float64) error {
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), dim)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	header := make([]byte, 12)
	copy(header, vectorsMagic[:])
	binary.LittleEndian.PutUint32(header[4:], uint32(len(vectors)))
	binary.LittleEndian.PutUint32(header[8:], uint32(dim))
	if _, err := w.Write(header); err != nil {
		f.Close()
		return err
	}
	buf := make([]byte, 4)
	for _, v := range vectors {
		for _, x := range v {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(x)))
			if _, err := w.Write(buf); err != nil {
				f.Close()
				return err
			}
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadVectors loads a file written by WriteVectors.
func ReadVectors(path string) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := bufio.NewReader(f)
	header := make([]byte, 12)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("reading %s header: %w", path, err)
	}
	if [4]byte(header[:4]) != vectorsMagic {
		return nil, fmt.Errorf("%s: bad magic %q", path, header[:4])
	}
	count := int(binary.LittleEndian.Uint32(header[4:]))
	dim := int(binary.LittleEndian.Uint32(header[8:]))
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	// the header is checked against the file size before anything is allocated
	body := fi.Size() - int64(len(header))
	fits := count == 0 && body == 0
	if dim > 0 {
		row := int64(dim) * 4
		fits = body%row == 0 && body/row == int64(count)
	}
	if !fits {
		return nil, fmt.Errorf("%s: header declares %d x %d vectors, file body has %d bytes: %w",
			path, count, dim, body, domain.ErrIndexMismatch)
	}
	if count == 0 {
		return [][]float64{}, nil
	}
	vectors := make([][]float64, count)
	buf := make([]byte, 4*dim)
	for i := range vectors {
		if _, err := io.ReadFull(r, buf); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%s: truncated at row %d: %w", path, i, domain.ErrIndexMismatch)
			}
			return nil, err
		}
		row := make([]float64, dim)
		for j := range row {
			row[j] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[4*j:])))
		}
		vectors[i] = row
	}
	return vectors, nil
}
