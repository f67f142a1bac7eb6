// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package recommend

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/cclsrec/internal/cache"
)

// Engine answers recommendation requests with the currently loaded model.
// It is safe for concurrent use.
type Engine struct {
	config EngineConfig
	logger zerolog.Logger

	// Loaded model, replaced wholesale by Swap.
	mu        sync.RWMutex
	predictor Predictor
	itemIDs   []string
	itemIndex map[string]int
	version   int
	loadedAt  time.Time

	history HistoryLookup

	requestCount atomic.Int64
	cacheHits    atomic.Int64
	cacheMisses  atomic.Int64
	errorCount   atomic.Int64

	responses *cache.LRU[*Response]
}

// EngineStats is a snapshot of engine counters.
type EngineStats struct {
	Requests     int64     `json:"requests"`
	CacheHits    int64     `json:"cache_hits"`
	CacheMisses  int64     `json:"cache_misses"`
	Errors       int64     `json:"errors"`
	ModelVersion int       `json:"model_version"`
	LoadedAt     time.Time `json:"loaded_at"`
	NItems       int       `json:"n_items"`
}

// NewEngine creates an engine with no model loaded.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(cfg EngineConfig, logger zerolog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Engine{
		config:    cfg,
		logger:    logger.With().Str("component", "engine").Logger(),
		responses: cache.NewLRU[*Response](cfg.CacheMaxEntries, cfg.CacheTTL),
	}, nil
}

// SetHistoryLookup sets the store used to resolve Request.UserID.
func (e *Engine) SetHistoryLookup(h HistoryLookup) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = h
}

// Swap replaces the loaded model. itemIDs maps internal item ids to external
// ids and must have one entry per catalog column (index 0 is the pad).
func (e *Engine) Swap(p Predictor, itemIDs []string, version int) error {
	info := p.Info()
	if len(itemIDs) != info.NItems {
		return fmt.Errorf("vocabulary has %d items, model expects %d: %w", len(itemIDs), info.NItems, ErrShapeMismatch)
	}
	index := make(map[string]int, len(itemIDs))
	for id := 1; id < len(itemIDs); id++ {
		index[itemIDs[id]] = id
	}

	e.mu.Lock()
	e.predictor = p
	e.itemIDs = itemIDs
	e.itemIndex = index
	e.version = version
	e.loadedAt = time.Now()
	e.mu.Unlock()

	e.clearCache()
	e.logger.Info().
		Int("version", version).
		Int("n_items", info.NItems).
		Int("max_seq_length", info.MaxSeqLength).
		Msg("model loaded")
	return nil
}

// Version returns the loaded model version, or 0 when nothing is loaded.
func (e *Engine) Version() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.version
}

// Ready reports whether a model is loaded.
func (e *Engine) Ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.predictor != nil
}

// Recommend returns the top-K next items for the request's history.
//
//nolint:gocritic // hugeParam: req passed by value for simplicity
func (e *Engine) Recommend(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	e.requestCount.Add(1)
	req = e.prepareRequest(req)

	e.mu.RLock()
	predictor, itemIDs, index, version, history := e.predictor, e.itemIDs, e.itemIndex, e.version, e.history
	e.mu.RUnlock()
	if predictor == nil {
		e.errorCount.Add(1)
		return nil, ErrModelNotReady
	}

	if len(req.Items) == 0 && req.UserID != "" && history != nil {
		items, err := history.Get(ctx, req.UserID)
		if err != nil {
			e.errorCount.Add(1)
			return nil, fmt.Errorf("load history for user %s: %w", req.UserID, err)
		}
		req.Items = items
	}

	key := e.cacheKey(req, version)
	if resp := e.tryGetCachedResponse(key, start); resp != nil {
		return resp, nil
	}

	ids, unknown := resolveItems(req.Items, index)
	if len(ids) == 0 {
		e.errorCount.Add(1)
		return nil, fmt.Errorf("%d items given, %d unknown: %w", len(req.Items), unknown, ErrEmptyHistory)
	}

	info := predictor.Info()
	batch := singleSequenceBatch(ids, info.MaxSeqLength)
	predStart := time.Now()
	scores, err := predictor.PredictFullCatalog(batch)
	if err != nil {
		e.errorCount.Add(1)
		return nil, fmt.Errorf("predict: %w", err)
	}
	predTime := time.Since(predStart)

	exclude := e.buildExclusionSet(req, ids, index)
	items := topK(scores.RawRowView(0), req.K, exclude, itemIDs)

	resp := &Response{
		Items: items,
		Metadata: ResponseMetadata{
			ModelVersion:   version,
			HistoryLength:  len(ids),
			UnknownItems:   unknown,
			LatencyMS:      float64(time.Since(start).Microseconds()) / 1000,
			GeneratedAt:    time.Now(),
			PredictionTime: predTime,
		},
	}
	e.cacheResponse(key, resp)

	e.logger.Debug().
		Int("k", req.K).
		Int("history", len(ids)).
		Int("unknown", unknown).
		Dur("prediction_time", predTime).
		Msg("recommendation generated")
	return resp, nil
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() EngineStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	stats := EngineStats{
		Requests:     e.requestCount.Load(),
		CacheHits:    e.cacheHits.Load(),
		CacheMisses:  e.cacheMisses.Load(),
		Errors:       e.errorCount.Load(),
		ModelVersion: e.version,
		LoadedAt:     e.loadedAt,
	}
	if e.predictor != nil {
		stats.NItems = e.predictor.Info().NItems
	}
	return stats
}

//nolint:gocritic // hugeParam: req passed by value for simplicity
func (e *Engine) prepareRequest(req Request) Request {
	if req.K <= 0 {
		req.K = e.config.DefaultK
	}
	if req.K > e.config.MaxK {
		req.K = e.config.MaxK
	}
	return req
}

// resolveItems maps external ids to internal ids, dropping unknown ones.
func resolveItems(items []string, index map[string]int) (ids []int, unknown int) {
	ids = make([]int, 0, len(items))
	for _, item := range items {
		id, ok := index[item]
		if !ok {
			unknown++
			continue
		}
		ids = append(ids, id)
	}
	return ids, unknown
}

// singleSequenceBatch keeps the most recent maxLen items and pads the rest.
func singleSequenceBatch(ids []int, maxLen int) *Batch {
	if len(ids) > maxLen {
		ids = ids[len(ids)-maxLen:]
	}
	row := make([]int, maxLen)
	copy(row, ids)
	return &Batch{ItemSeq: [][]int{row}, ItemSeqLen: []int{len(ids)}}
}

//nolint:gocritic // hugeParam: req passed by value for simplicity
func (e *Engine) buildExclusionSet(req Request, history []int, index map[string]int) map[int]struct{} {
	exclude := map[int]struct{}{PadID: {}}
	if !req.IncludeHistory {
		for _, id := range history {
			exclude[id] = struct{}{}
		}
	}
	for _, item := range req.Exclude {
		if id, ok := index[item]; ok {
			exclude[id] = struct{}{}
		}
	}
	return exclude
}

// topK returns the k best-scoring items not in exclude. Ties break on the
// lower internal id so results are deterministic.
func topK(scores []float64, k int, exclude map[int]struct{}, itemIDs []string) []ScoredItem {
	candidates := make([]int, 0, len(scores))
	for id, s := range scores {
		if _, skip := exclude[id]; skip || math.IsNaN(s) {
			continue
		}
		candidates = append(candidates, id)
	}
	sort.Slice(candidates, func(a, b int) bool {
		sa, sb := scores[candidates[a]], scores[candidates[b]]
		if sa != sb {
			return sa > sb
		}
		return candidates[a] < candidates[b]
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	out := make([]ScoredItem, len(candidates))
	for i, id := range candidates {
		out[i] = ScoredItem{ItemID: itemIDs[id], Score: scores[id], Rank: i + 1}
	}
	return out
}

// cacheKey generates a cache key for a request.
//
//nolint:gocritic // hugeParam: req passed by value for simplicity
func (e *Engine) cacheKey(req Request, version int) string {
	var b strings.Builder
	b.WriteString("rec:v")
	b.WriteString(strconv.Itoa(version))
	b.WriteString(":k")
	b.WriteString(strconv.Itoa(req.K))
	b.WriteString(":h")
	b.WriteString(strconv.FormatBool(req.IncludeHistory))
	b.WriteString(":i=")
	b.WriteString(strings.Join(req.Items, ","))
	b.WriteString(":x=")
	b.WriteString(strings.Join(req.Exclude, ","))
	return b.String()
}

func (e *Engine) tryGetCachedResponse(key string, start time.Time) *Response {
	if !e.config.CacheEnabled {
		return nil
	}
	resp := e.checkCache(key)
	if resp == nil {
		e.cacheMisses.Add(1)
		return nil
	}
	e.cacheHits.Add(1)
	resp.Metadata.CacheHit = true
	resp.Metadata.LatencyMS = float64(time.Since(start).Microseconds()) / 1000
	return resp
}

// checkCache returns a copy of a live cached response, or nil.
func (e *Engine) checkCache(key string) *Response {
	cached, ok := e.responses.Get(key)
	if !ok {
		return nil
	}
	items := make([]ScoredItem, len(cached.Items))
	copy(items, cached.Items)
	return &Response{Items: items, Metadata: cached.Metadata}
}

func (e *Engine) cacheResponse(key string, resp *Response) {
	if !e.config.CacheEnabled {
		return
	}
	e.responses.Add(key, resp)
}

// clearCache removes all cached entries.
func (e *Engine) clearCache() {
	e.responses.Clear()
	e.logger.Debug().Msg("cache cleared")
}
