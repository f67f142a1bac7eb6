// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package server

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/cclsrec/internal/recommend"
	"github.com/tomtom215/cclsrec/internal/recommend/model"
	"github.com/tomtom215/cclsrec/internal/recommend/storage"
)

func saveTestCheckpoint(t *testing.T, s *storage.Store, version int, seed int64) {
	t.Helper()
	cfg := recommend.DefaultModelConfig()
	cfg.NLayers = 1
	cfg.HiddenSize = 8
	cfg.InnerSize = 16
	cfg.TrainBatchSize = 4
	m, err := model.New(cfg, idPredictor{}.Info(), rand.New(rand.NewSource(seed)))
	if err != nil {
		t.Fatalf("model.New() error = %v", err)
	}
	c, err := storage.NewCheckpoint(m, testItems, version, map[string]float64{"ndcg@10": 0.1})
	if err != nil {
		t.Fatalf("NewCheckpoint() error = %v", err)
	}
	if err := s.SaveCheckpoint(context.Background(), "cclsrec", version, c, storage.Metadata{RunID: "test"}); err != nil {
		t.Fatalf("SaveCheckpoint() error = %v", err)
	}
}

func TestReloaderSwapsNewerCheckpoints(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	engine, err := recommend.NewEngine(recommend.DefaultEngineConfig(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	r := NewReloader(store, engine, "cclsrec", ReloaderConfig{}, zerolog.Nop())
	ctx := context.Background()

	version, err := r.Reload(ctx)
	if err != nil || version != 0 || engine.Ready() {
		t.Fatalf("Reload() on empty store = %d, %v (ready %v)", version, err, engine.Ready())
	}

	// A second store instance stands in for the training process.
	writer, err := storage.NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	saveTestCheckpoint(t, writer, 1, 1)
	if version, err = r.Reload(ctx); err != nil || version != 1 {
		t.Fatalf("Reload() = %d, %v, want 1", version, err)
	}
	if !engine.Ready() || engine.Version() != 1 {
		t.Fatalf("engine ready=%v version=%d", engine.Ready(), engine.Version())
	}

	resp, err := engine.Recommend(ctx, recommend.Request{Items: []string{"a", "b"}, K: 3})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(resp.Items) != 3 {
		t.Errorf("got %d items, want 3", len(resp.Items))
	}

	if version, err = r.Reload(ctx); err != nil || version != 1 {
		t.Errorf("Reload() without a newer version = %d, %v", version, err)
	}

	saveTestCheckpoint(t, writer, 2, 2)
	if version, err = r.Reload(ctx); err != nil || version != 2 || engine.Version() != 2 {
		t.Errorf("Reload() = %d, %v, engine version %d; want 2", version, err, engine.Version())
	}
}

// brokenSource always advertises version 1 and fails to load it.
type brokenSource struct{ loads int }

func (b *brokenSource) Refresh() error { return nil }
func (b *brokenSource) Latest(string) (int, bool) { return 1, true }
func (b *brokenSource) LoadCheckpoint(context.Context, string, int) (*storage.Checkpoint, *storage.Metadata, error) {
	b.loads++
	return nil, nil, storage.ErrChecksumMismatch
}

func TestReloaderCircuitBreaker(t *testing.T) {
	src := &brokenSource{}
	engine, err := recommend.NewEngine(recommend.DefaultEngineConfig(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	r := NewReloader(src, engine, "cclsrec", ReloaderConfig{TripAfter: 2, OpenTimeout: time.Hour}, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := r.Reload(ctx); !errors.Is(err, storage.ErrChecksumMismatch) {
			t.Fatalf("attempt %d error = %v, want checksum mismatch", i, err)
		}
	}
	if _, err := r.Reload(ctx); !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("Reload() with open breaker error = %v, want ErrOpenState", err)
	}
	if src.loads != 2 {
		t.Errorf("source loaded %d times, want 2", src.loads)
	}
	if engine.Ready() {
		t.Error("engine should still have no model")
	}
}
