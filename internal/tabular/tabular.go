// Package tabular provides row streams for batch imports.
//
// A Source hands out a Rows stream of raw string cells. Next returns io.EOF
// once the stream is exhausted; callers must not assume anything about rows
// they have not read yet. Release tells the source that its data is no longer
// needed.
package tabular

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

type (
	Rows interface {
		// Next returns the next row's cells, or io.EOF when exhausted.
		Next() ([]string, error)
		Close() error
	}

	Source interface {
		Name() string
		Open(ctx context.Context) (Rows, error)
		// Release is called once, after the source's rows were persisted.
		Release(ctx context.Context) error
	}
)

// CSVRows streams records from comma separated text. Rows may have any
// number of fields.
type CSVRows struct {
	r      *csv.Reader
	closer io.Closer
}

func NewCSVRows(r io.Reader) *CSVRows {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	rows := &CSVRows{r: cr}
	if c, ok := r.(io.Closer); ok {
		rows.closer = c
	}
	return rows
}

func (c *CSVRows) Next() ([]string, error) {
	rec, err := c.r.Read()
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	if err != nil {
		line, _ := c.r.FieldPos(0)
		return nil, fmt.Errorf("read csv line %d: %w", line, err)
	}
	return rec, nil
}

func (c *CSVRows) Close() error {
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

// SliceRows streams rows that are already in memory.
type SliceRows struct {
	rows [][]string
	pos  int
}

func NewSliceRows(rows [][]string) *SliceRows {
	return &SliceRows{rows: rows}
}

func (s *SliceRows) Next() ([]string, error) {
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.pos]
	s.pos++
	return row, nil
}

func (s *SliceRows) Close() error { return nil }
