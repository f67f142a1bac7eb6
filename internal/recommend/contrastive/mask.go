// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package contrastive

import (
	"fmt"
	"sync"

	"github.com/tomtom215/cclsrec/internal/recommend"
)

// Partner returns the row paired with r in a stacked batch of 2n rows:
// row i of the first view pairs with row i+n of the second and vice versa.
func Partner(r, n int) int {
	if r < n {
		return r + n
	}
	return r - n
}

// CorrelatedMask marks the negatives of a 2N x 2N similarity matrix: every
// entry except the diagonal and the positive pair of each row.
type CorrelatedMask struct {
	n     int
	keep  []bool
	index [][]int
}

// NewCorrelatedMask builds the mask for n pairs.
func NewCorrelatedMask(n int) (*CorrelatedMask, error) {
	if n < 1 {
		return nil, fmt.Errorf("correlated mask for %d pairs: %w", n, recommend.ErrShapeMismatch)
	}
	size := 2 * n
	m := &CorrelatedMask{n: n, keep: make([]bool, size*size), index: make([][]int, size)}
	for r := 0; r < size; r++ {
		p := Partner(r, n)
		row := make([]int, 0, size-1)
		row = append(row, p)
		for c := 0; c < size; c++ {
			if c == r || c == p {
				continue
			}
			m.keep[r*size+c] = true
			row = append(row, c)
		}
		m.index[r] = row
	}
	return m, nil
}

// N returns the number of pairs.
func (m *CorrelatedMask) N() int { return m.n }

// Keep reports whether entry (r, c) is a negative.
func (m *CorrelatedMask) Keep(r, c int) bool { return m.keep[r*2*m.n+c] }

// Positive returns the column holding row r's positive.
func (m *CorrelatedMask) Positive(r int) int { return m.index[r][0] }

// Negatives returns the 2N-2 negative columns of row r in ascending order.
// The slice must not be modified.
func (m *CorrelatedMask) Negatives(r int) []int { return m.index[r][1:] }

// gatherIndex returns, per row, the positive column followed by the negatives.
func (m *CorrelatedMask) gatherIndex() [][]int { return m.index }

// MaskCache memoizes correlated masks by pair count. It is safe for
// concurrent use.
type MaskCache struct {
	mu    sync.Mutex
	masks map[int]*CorrelatedMask
}

// NewMaskCache creates a cache pre-populated for the nominal batch size.
func NewMaskCache(nominal int) (*MaskCache, error) {
	c := &MaskCache{masks: make(map[int]*CorrelatedMask)}
	if _, err := c.Get(nominal); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns the mask for n pairs, building it on first use.
func (c *MaskCache) Get(n int) (*CorrelatedMask, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.masks[n]; ok {
		return m, nil
	}
	m, err := NewCorrelatedMask(n)
	if err != nil {
		return nil, err
	}
	c.masks[n] = m
	return m, nil
}

// Len returns the number of cached masks.
func (c *MaskCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.masks)
}
