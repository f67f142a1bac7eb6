// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package augment

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tomtom215/cclsrec/internal/recommend"
)

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name    string
		ratio   float64
		maxLen  int
		wantErr bool
	}{
		{"valid", 0.2, 10, false},
		{"zero ratio", 0, 10, true},
		{"one ratio", 1, 10, true},
		{"negative ratio", -0.1, 10, true},
		{"zero length", 0.2, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.ratio, tt.maxLen, 2)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// isSubsequence reports whether sub (ignoring trailing pads) appears in order in row.
func isSubsequence(sub, row []int) bool {
	j := 0
	for _, id := range sub {
		if id == recommend.PadID {
			break
		}
		for j < len(row) && row[j] != id {
			j++
		}
		if j == len(row) {
			return false
		}
		j++
	}
	return true
}

func TestViewsAreOrderedPaddedSubsequences(t *testing.T) {
	aug, err := New(0.3, 8, 3)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	items := [][]int{
		{5, 3, 9, 1, 7, 0, 0, 0},
		{2, 0, 0, 0, 0, 0, 0, 0},
		{1, 2, 3, 4, 5, 6, 7, 8},
	}
	rng := rand.New(rand.NewSource(1))
	for _, fn := range []func(context.Context, *rand.Rand, [][]int) ([][]int, error){aug.KeepMajority, aug.KeepMinority} {
		views, err := fn(context.Background(), rng, items)
		if err != nil {
			t.Fatalf("augment error = %v", err)
		}
		for i, v := range views {
			if len(v) != 8 {
				t.Errorf("view %d width = %d, want 8", i, len(v))
			}
			if !isSubsequence(v, items[i]) {
				t.Errorf("view %d = %v is not a subsequence of %v", i, v, items[i])
			}
			seenPad := false
			for _, id := range v {
				if id == recommend.PadID {
					seenPad = true
				} else if seenPad {
					t.Errorf("view %d = %v has a real item after padding", i, v)
				}
			}
		}
	}
}

func TestDeterministicAcrossWorkers(t *testing.T) {
	items := make([][]int, 64)
	for i := range items {
		items[i] = make([]int, 20)
		for j := range items[i] {
			items[i][j] = 1 + (i*7+j)%50
		}
	}

	var want [][]int
	for _, workers := range []int{1, 4, 16} {
		aug, err := New(0.5, 20, workers)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		got, err := aug.KeepMajority(context.Background(), rand.New(rand.NewSource(42)), items)
		if err != nil {
			t.Fatalf("KeepMajority() error = %v", err)
		}
		if want == nil {
			want = got
			continue
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("workers=%d output differs (-want +got):\n%s", workers, diff)
		}
	}
}

func TestKeepRatios(t *testing.T) {
	const (
		ratio = 0.2
		rows  = 400
		width = 50
	)
	aug, err := New(ratio, width, 4)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	items := make([][]int, rows)
	for i := range items {
		items[i] = make([]int, width)
		for j := range items[i] {
			items[i][j] = j + 1
		}
	}

	count := func(views [][]int) float64 {
		n := 0
		for _, v := range views {
			for _, id := range v {
				if id != recommend.PadID {
					n++
				}
			}
		}
		return float64(n) / float64(rows*width)
	}

	rng := rand.New(rand.NewSource(7))
	major, err := aug.KeepMajority(context.Background(), rng, items)
	if err != nil {
		t.Fatalf("KeepMajority() error = %v", err)
	}
	minor, err := aug.KeepMinority(context.Background(), rng, items)
	if err != nil {
		t.Fatalf("KeepMinority() error = %v", err)
	}

	// 20000 Bernoulli draws: 0.02 is more than 10 standard deviations.
	if got := count(major); math.Abs(got-(1-ratio)) > 0.02 {
		t.Errorf("KeepMajority kept fraction = %f, want about %f", got, 1-ratio)
	}
	if got := count(minor); math.Abs(got-ratio) > 0.02 {
		t.Errorf("KeepMinority kept fraction = %f, want about %f", got, ratio)
	}
}

func TestPadItemsNeverKept(t *testing.T) {
	aug, err := New(0.01, 6, 2)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	items := [][]int{{4, 5, 0, 0, 0, 0}}
	views, err := aug.KeepMajority(context.Background(), rand.New(rand.NewSource(3)), items)
	if err != nil {
		t.Fatalf("KeepMajority() error = %v", err)
	}
	for j := 2; j < 6; j++ {
		if views[0][j] != recommend.PadID {
			t.Errorf("position %d = %d, want pad", j, views[0][j])
		}
	}
}

func TestAugmentErrors(t *testing.T) {
	aug, err := New(0.2, 4, 2)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	tests := []struct {
		name  string
		rng   *rand.Rand
		items [][]int
		want  error
	}{
		{"no rng", nil, [][]int{{1, 2, 0, 0}}, recommend.ErrNoRandomSource},
		{"empty", rand.New(rand.NewSource(1)), nil, recommend.ErrShapeMismatch},
		{"ragged", rand.New(rand.NewSource(1)), [][]int{{1, 2, 0, 0}, {1, 2}}, recommend.ErrRaggedBatch},
		{"too long", rand.New(rand.NewSource(1)), [][]int{{1, 2, 3, 4, 5}}, recommend.ErrRaggedBatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := aug.KeepMinority(context.Background(), tt.rng, tt.items); !errors.Is(err, tt.want) {
				t.Errorf("KeepMinority() error = %v, want %v", err, tt.want)
			}
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := aug.KeepMajority(ctx, rand.New(rand.NewSource(1)), [][]int{{1, 2, 3, 4}}); !errors.Is(err, context.Canceled) {
		t.Errorf("KeepMajority() with canceled context error = %v, want context.Canceled", err)
	}
}
