// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package storage

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/tomtom215/cclsrec/internal/recommend"
	"github.com/tomtom215/cclsrec/internal/recommend/model"
)

// Tensor is one named parameter matrix in row-major order.
type Tensor struct {
	Name string
	Rows int
	Cols int
	Data []float64
}

// Checkpoint is the serializable state of a trained model.
type Checkpoint struct {
	Config recommend.ModelConfig
	Info   recommend.DataInfo

	// Items maps internal item ids to external ids; Items[0] is the pad token.
	Items []string

	Params []Tensor

	Epoch   int
	Metrics map[string]float64
}

// NewCheckpoint captures the parameters of m together with its vocabulary.
func NewCheckpoint(m *model.Model, items []string, epoch int, metrics map[string]float64) (*Checkpoint, error) {
	info := m.Info()
	if len(items) != info.NItems {
		return nil, fmt.Errorf("vocabulary has %d items, model has %d: %w", len(items), info.NItems, recommend.ErrShapeMismatch)
	}
	snap := m.Params().Snapshot()
	names := make([]string, 0, len(snap))
	for name := range snap {
		names = append(names, name)
	}
	sort.Strings(names)

	c := &Checkpoint{
		Config:  m.Config(),
		Info:    info,
		Items:   append([]string(nil), items...),
		Params:  make([]Tensor, 0, len(names)),
		Epoch:   epoch,
		Metrics: metrics,
	}
	for _, name := range names {
		d := snap[name]
		r, cols := d.Dims()
		c.Params = append(c.Params, Tensor{Name: name, Rows: r, Cols: cols, Data: d.RawMatrix().Data})
	}
	return c, nil
}

// Restore rebuilds the model and loads the saved parameters into it.
func (c *Checkpoint) Restore() (*model.Model, error) {
	// Initial weights are overwritten, any seed will do.
	m, err := model.New(c.Config, c.Info, rand.New(rand.NewSource(1))) //nolint:gosec // not security sensitive
	if err != nil {
		return nil, fmt.Errorf("rebuild model: %w", err)
	}
	src := make(map[string]*mat.Dense, len(c.Params))
	for _, t := range c.Params {
		if t.Rows*t.Cols != len(t.Data) || t.Rows < 1 || t.Cols < 1 {
			return nil, fmt.Errorf("parameter %q: %d values for %dx%d: %w", t.Name, len(t.Data), t.Rows, t.Cols, recommend.ErrShapeMismatch)
		}
		src[t.Name] = mat.NewDense(t.Rows, t.Cols, append([]float64(nil), t.Data...))
	}
	if err := m.Params().Load(src); err != nil {
		return nil, fmt.Errorf("load parameters: %w", err)
	}
	return m, nil
}

// SaveCheckpoint stores c as version of name, filling the size fields of meta.
//
//nolint:gocritic // meta passed by value is acceptable for this write operation
func (s *Store) SaveCheckpoint(ctx context.Context, name string, version int, c *Checkpoint, meta Metadata) error {
	meta.Epoch = c.Epoch
	meta.Metrics = c.Metrics
	meta.NItems = c.Info.NItems
	meta.NParams = 0
	for _, t := range c.Params {
		meta.NParams += len(t.Data)
	}
	return s.Save(ctx, name, version, c, meta)
}

// LoadCheckpoint reads version of name; version 0 loads the latest.
func (s *Store) LoadCheckpoint(ctx context.Context, name string, version int) (*Checkpoint, *Metadata, error) {
	var c Checkpoint
	meta, err := s.Load(ctx, name, version, &c)
	if err != nil {
		return nil, nil, err
	}
	return &c, meta, nil
}
