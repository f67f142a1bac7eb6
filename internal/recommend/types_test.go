// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package recommend

import (
	"errors"
	"testing"
)

func validBatch() *Batch {
	return &Batch{
		ItemSeq:    [][]int{{1, 2, 0}, {3, 0, 0}},
		ItemSeqLen: []int{2, 1},
		PosItems:   []int{3, 4},
	}
}

func TestBatchValidate(t *testing.T) {
	info := DataInfo{NItems: 5, MaxSeqLength: 3}

	tests := []struct {
		name   string
		modify func(b *Batch)
		want   error
	}{
		{"valid", func(b *Batch) {}, nil},
		{"empty", func(b *Batch) { b.ItemSeq = nil; b.ItemSeqLen = nil; b.PosItems = nil }, ErrShapeMismatch},
		{"length count mismatch", func(b *Batch) { b.ItemSeqLen = []int{2} }, ErrShapeMismatch},
		{"narrow row", func(b *Batch) { b.ItemSeq[1] = []int{3, 0} }, ErrRaggedBatch},
		{"wide row", func(b *Batch) { b.ItemSeq[0] = []int{1, 2, 0, 0} }, ErrRaggedBatch},
		{"zero length", func(b *Batch) { b.ItemSeqLen[1] = 0 }, ErrSequenceLength},
		{"length beyond width", func(b *Batch) { b.ItemSeqLen[0] = 4 }, ErrSequenceLength},
		{"item out of range", func(b *Batch) { b.ItemSeq[0][0] = 5 }, ErrItemOutOfRange},
		{"negative item", func(b *Batch) { b.ItemSeq[0][1] = -1 }, ErrItemOutOfRange},
		{"target out of range", func(b *Batch) { b.PosItems[1] = 9 }, ErrItemOutOfRange},
		{"short negatives", func(b *Batch) { b.NegItems = []int{1} }, ErrShapeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validBatch()
			tt.modify(b)
			err := b.Validate(info)
			if tt.want == nil {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDataInfoValidate(t *testing.T) {
	tests := []struct {
		name    string
		info    DataInfo
		wantErr bool
	}{
		{"valid", DataInfo{NItems: 2, MaxSeqLength: 1}, false},
		{"pad only", DataInfo{NItems: 1, MaxSeqLength: 5}, true},
		{"zero length", DataInfo{NItems: 10, MaxSeqLength: 0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.info.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
