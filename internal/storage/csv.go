// Package storage persists the raw and processed datasets as CSV
// artifacts. Writes are atomic: content goes to a temp path first and
// is renamed into place, so a crash mid-write never leaves a
// half-written file visible to downstream consumers.
package storage

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"pokedex-pipeline/internal/dataset"
)

// SaveRaw writes the staging artifact so a transform-only re-run does
// not have to re-crawl. Columns are the declared raw field set; the
// first column is the identifier.
func SaveRaw(ds dataset.RawDataset, path string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := make([]string, 0, len(dataset.RawFields)+1)
	header = append(header, "id")
	for _, f := range dataset.RawFields {
		header = append(header, string(f))
	}
	if err := w.Write(header); err != nil {
		return err
	}

	row := make([]string, len(header))
	for _, record := range ds {
		row = row[:0]
		row = append(row, record.ID)
		for _, f := range dataset.RawFields {
			row = append(row, record.Fields[f])
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return atomicWrite(path, buf.Bytes())
}

// LoadRaw reads a staging artifact back. Columns outside the declared
// raw field set are ignored; declared columns absent from the file
// stay at the Missing sentinel.
func LoadRaw(path string) (dataset.RawDataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read raw artifact header: %w", err)
	}
	if len(header) == 0 || header[0] != "id" {
		return nil, fmt.Errorf("raw artifact %s: first column must be \"id\"", path)
	}

	declared := map[dataset.Field]bool{}
	for _, f := range dataset.RawFields {
		declared[f] = true
	}

	var out dataset.RawDataset
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		record := dataset.NewRawRecord(row[0])
		for i := 1; i < len(header) && i < len(row); i++ {
			field := dataset.Field(header[i])
			if declared[field] {
				record.Fields[field] = row[i]
			}
		}
		out = append(out, record)
	}
	return out, nil
}

// SaveProcessed writes the processed artifact, the sole contract with
// the visualization layer.
func SaveProcessed(ds dataset.ProcessedDataset, path string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(dataset.ProcessedHeader); err != nil {
		return err
	}
	for _, record := range ds {
		if err := w.Write(record.Row()); err != nil {
			return err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return atomicWrite(path, buf.Bytes())
}

func atomicWrite(path string, contents []byte) error {
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	err = os.WriteFile(tmp, contents, 0644)
	if err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
