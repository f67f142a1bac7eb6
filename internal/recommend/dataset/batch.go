// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package dataset

import (
	"fmt"
	"math/rand"

	"github.com/tomtom215/cclsrec/internal/recommend"
)

// MakeBatch pads the examples' histories into a batch with their targets as
// PosItems.
func MakeBatch(examples []Example, info recommend.DataInfo) *recommend.Batch {
	b := &recommend.Batch{
		ItemSeq:    make([][]int, len(examples)),
		ItemSeqLen: make([]int, len(examples)),
		PosItems:   make([]int, len(examples)),
	}
	for i, ex := range examples {
		hist := ex.History
		if len(hist) > info.MaxSeqLength {
			hist = hist[len(hist)-info.MaxSeqLength:]
		}
		row := make([]int, info.MaxSeqLength)
		copy(row, hist)
		b.ItemSeq[i] = row
		b.ItemSeqLen[i] = len(hist)
		b.PosItems[i] = ex.Target
	}
	return b
}

// SampleNegative draws an item uniformly from 1..nItems-1 other than pos.
// nItems must be at least 3.
func SampleNegative(rng *rand.Rand, nItems, pos int) int {
	for {
		id := 1 + rng.Intn(nItems-1)
		if id != pos {
			return id
		}
	}
}

// Iterator yields shuffled training batches. The final batch may be smaller.
type Iterator struct {
	examples  []Example
	info      recommend.DataInfo
	batchSize int
	negatives bool
	rng       *rand.Rand

	order []int
	pos   int
}

// NewIterator creates an iterator; call Reset before each epoch.
func NewIterator(examples []Example, info recommend.DataInfo, batchSize int, negatives bool, rng *rand.Rand) (*Iterator, error) {
	if batchSize < 1 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	if rng == nil {
		return nil, recommend.ErrNoRandomSource
	}
	if negatives && info.NItems < 3 {
		return nil, fmt.Errorf("negative sampling needs at least two real items, got %d", info.NItems-1)
	}
	order := make([]int, len(examples))
	for i := range order {
		order[i] = i
	}
	return &Iterator{examples: examples, info: info, batchSize: batchSize, negatives: negatives, rng: rng, order: order}, nil
}

// Reset shuffles the examples and rewinds to the first batch.
func (it *Iterator) Reset() {
	it.rng.Shuffle(len(it.order), func(i, j int) { it.order[i], it.order[j] = it.order[j], it.order[i] })
	it.pos = 0
}

// NumBatches returns the number of batches per epoch.
func (it *Iterator) NumBatches() int {
	return (len(it.examples) + it.batchSize - 1) / it.batchSize
}

// Next returns the next batch, or false at the end of the epoch.
func (it *Iterator) Next() (*recommend.Batch, bool) {
	if it.pos >= len(it.order) {
		return nil, false
	}
	end := min(it.pos+it.batchSize, len(it.order))
	chunk := make([]Example, 0, end-it.pos)
	for _, i := range it.order[it.pos:end] {
		chunk = append(chunk, it.examples[i])
	}
	it.pos = end

	b := MakeBatch(chunk, it.info)
	if it.negatives {
		b.NegItems = make([]int, len(chunk))
		for i, ex := range chunk {
			b.NegItems[i] = SampleNegative(it.rng, it.info.NItems, ex.Target)
		}
	}
	return b, true
}

// Batches splits examples, in order, into evaluation batches.
func Batches(examples []Example, info recommend.DataInfo, size int) []*recommend.Batch {
	var out []*recommend.Batch
	for start := 0; start < len(examples); start += size {
		end := min(start+size, len(examples))
		out = append(out, MakeBatch(examples[start:end], info))
	}
	return out
}
