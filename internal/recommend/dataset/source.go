// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package dataset

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Interaction is one user-item event.
type Interaction struct {
	UserID    string  `json:"user_id"`
	ItemID    string  `json:"item_id"`
	Timestamp float64 `json:"timestamp"`
}

// Source reads interactions from some storage.
type Source interface {
	Read(ctx context.Context) ([]Interaction, error)
}

// Format is the layout of an interaction file.
type Format string

const (
	FormatJSONL Format = "jsonl"
	FormatCSV   Format = "csv"
	FormatTSV   Format = "tsv"
)

// Fields names the user, item and timestamp columns (or JSON keys).
type Fields struct {
	User      string `koanf:"user" json:"user"`
	Item      string `koanf:"item" json:"item"`
	Timestamp string `koanf:"timestamp" json:"timestamp"`
}

// DefaultFields returns the column names used when none are configured.
func DefaultFields() Fields {
	return Fields{User: "user_id", Item: "item_id", Timestamp: "timestamp"}
}

// ErrMissingField is returned when a record lacks a configured field.
var ErrMissingField = errors.New("missing field")

// FileSource reads interactions from a JSON Lines, CSV or TSV file.
type FileSource struct {
	Path   string
	Format Format
	Fields Fields
}

// Read parses the whole file.
func (s *FileSource) Read(ctx context.Context) ([]Interaction, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open interactions: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	fields := s.Fields
	if fields == (Fields{}) {
		fields = DefaultFields()
	}
	switch s.Format {
	case FormatJSONL:
		return readJSONL(ctx, f, s.Path, fields)
	case FormatCSV:
		return readDelimited(ctx, f, s.Path, ',', fields)
	case FormatTSV:
		return readDelimited(ctx, f, s.Path, '\t', fields)
	default:
		return nil, fmt.Errorf("unsupported interaction format %q", s.Format)
	}
}

func readJSONL(ctx context.Context, r io.Reader, name string, fields Fields) ([]Interaction, error) {
	var out []Interaction
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if line%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var record map[string]any
		dec := json.NewDecoder(strings.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&record); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", name, line, err)
		}
		in, err := interactionFromMap(record, fields)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", name, line, err)
		}
		out = append(out, in)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return out, nil
}

func interactionFromMap(record map[string]any, fields Fields) (Interaction, error) {
	var in Interaction
	var err error
	if in.UserID, err = stringField(record, fields.User); err != nil {
		return in, err
	}
	if in.ItemID, err = stringField(record, fields.Item); err != nil {
		return in, err
	}
	ts, err := stringField(record, fields.Timestamp)
	if err != nil {
		return in, err
	}
	in.Timestamp, err = strconv.ParseFloat(ts, 64)
	if err != nil {
		return in, fmt.Errorf("timestamp %q: %w", ts, err)
	}
	return in, nil
}

func stringField(record map[string]any, key string) (string, error) {
	v, ok := record[key]
	if !ok || v == nil {
		return "", fmt.Errorf("%q: %w", key, ErrMissingField)
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case bool:
		return strconv.FormatBool(x), nil
	default:
		return "", fmt.Errorf("%q has unsupported type %T", key, v)
	}
}

func readDelimited(ctx context.Context, r io.Reader, name string, comma rune, fields Fields) ([]Interaction, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.ReuseRecord = true
	if comma == '\t' {
		cr.LazyQuotes = true
	}

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", name, err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(h)] = i
	}
	idx := make([]int, 3)
	for i, key := range []string{fields.User, fields.Item, fields.Timestamp} {
		c, ok := cols[key]
		if !ok {
			return nil, fmt.Errorf("%s: column %q: %w", name, key, ErrMissingField)
		}
		idx[i] = c
	}

	var out []Interaction
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", name, line, err)
		}
		if line%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		ts, err := strconv.ParseFloat(strings.TrimSpace(rec[idx[2]]), 64)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: timestamp: %w", name, line, err)
		}
		out = append(out, Interaction{
			UserID:    strings.TrimSpace(rec[idx[0]]),
			ItemID:    strings.TrimSpace(rec[idx[1]]),
			Timestamp: ts,
		})
	}
	return out, nil
}

// SliceSource serves interactions held in memory.
type SliceSource []Interaction

// Read returns a copy of the slice.
func (s SliceSource) Read(context.Context) ([]Interaction, error) {
	out := make([]Interaction, len(s))
	copy(out, s)
	return out, nil
}
