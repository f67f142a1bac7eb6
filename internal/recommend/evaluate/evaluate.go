// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

// Package evaluate computes full-ranking metrics for next-item prediction.
package evaluate

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/tomtom215/cclsrec/internal/recommend"
	"github.com/tomtom215/cclsrec/internal/recommend/dataset"
)

// Options controls an evaluation run.
type Options struct {
	// Ks are the cutoffs reported for every metric.
	Ks []int `koanf:"ks" json:"ks" validate:"min=1,dive,min=1"`

	// BatchSize is the number of sequences scored per call.
	BatchSize int `koanf:"batch_size" json:"batch_size" validate:"min=1"`

	// ExcludeHistory removes items of the input history from the ranking.
	ExcludeHistory bool `koanf:"exclude_history" json:"exclude_history"`
}

// DefaultOptions returns the evaluation defaults.
func DefaultOptions() Options {
	return Options{Ks: []int{5, 10, 20}, BatchSize: 256, ExcludeHistory: false}
}

// Metrics maps names such as "ndcg@10" to their mean over examples.
type Metrics map[string]float64

// Key returns the metric name for a measure at cutoff k.
func Key(measure string, k int) string { return measure + "@" + strconv.Itoa(k) }

// String renders the metrics in sorted order.
func (m Metrics) String() string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%.4f", k, m[k])
	}
	return strings.Join(parts, " ")
}

// Evaluate scores every example against the full catalog and averages
// Hit@K, NDCG@K and MRR@K. The pad item never ranks.
func Evaluate(ctx context.Context, p recommend.Predictor, examples []dataset.Example, opts Options) (Metrics, error) {
	if len(opts.Ks) == 0 || opts.BatchSize < 1 {
		return nil, fmt.Errorf("evaluation needs cutoffs and a positive batch size")
	}
	if len(examples) == 0 {
		return nil, fmt.Errorf("no examples to evaluate")
	}
	info := p.Info()

	sums := make(Metrics, 3*len(opts.Ks))
	for start := 0; start < len(examples); start += opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunk := examples[start:min(start+opts.BatchSize, len(examples))]
		scores, err := p.PredictFullCatalog(dataset.MakeBatch(chunk, info))
		if err != nil {
			return nil, fmt.Errorf("score examples %d-%d: %w", start, start+len(chunk)-1, err)
		}
		for i, ex := range chunk {
			row := scores.RawRowView(i)
			rank := Rank(row, ex.Target, excluded(ex, opts.ExcludeHistory))
			for _, k := range opts.Ks {
				if rank > k {
					continue
				}
				sums[Key("hit", k)]++
				sums[Key("ndcg", k)] += 1 / math.Log2(float64(rank)+1)
				sums[Key("mrr", k)] += 1 / float64(rank)
			}
		}
	}

	out := make(Metrics, 3*len(opts.Ks))
	n := float64(len(examples))
	for _, k := range opts.Ks {
		for _, m := range []string{"hit", "ndcg", "mrr"} {
			out[Key(m, k)] = sums[Key(m, k)] / n
		}
	}
	return out, nil
}

func excluded(ex dataset.Example, history bool) map[int]struct{} {
	out := map[int]struct{}{recommend.PadID: {}}
	if history {
		for _, id := range ex.History {
			if id != ex.Target {
				out[id] = struct{}{}
			}
		}
	}
	return out
}

// Rank returns the 1-based position of target among the scored items that
// are not excluded: one plus the number of items scoring strictly higher.
func Rank(scores []float64, target int, exclude map[int]struct{}) int {
	t := scores[target]
	rank := 1
	for id, s := range scores {
		if id == target {
			continue
		}
		if _, skip := exclude[id]; skip {
			continue
		}
		if s > t || math.IsNaN(t) {
			rank++
		}
	}
	return rank
}
