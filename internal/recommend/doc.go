// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

// Package recommend holds the shared vocabulary of the CCLSRec recommender and
// the serving engine built on top of a trained model.
//
// # Architecture
//
// The model predicts the next item a user will interact with from the ordered
// list of items they interacted with so far. The pieces live in subpackages:
//
//   - nn: embeddings, transformer layers and the masked/free sequence encoders
//   - augment: random keep-majority / keep-minority sub-sequence views
//   - contrastive: InfoNCE loss and alignment/uniformity diagnostics
//   - model: the CCLSRec model (training loss and scoring)
//   - optim: Adam optimizer
//   - dataset, evaluate, trainer: data preparation, ranking metrics, epoch loop
//   - storage: versioned checkpoints
//   - history: persisted user histories used at serving time
//
// This package only defines what those pieces share: ModelConfig, Batch,
// DataInfo, the sentinel errors and the Engine that answers recommendation
// requests against whichever model version is currently loaded.
//
// Every random draw (initialization, dropout, augmentation, negative
// sampling, shuffling) comes from a *rand.Rand the caller seeds, so a run is
// reproducible from training.seed. Shape and length problems surface as the
// sentinel errors below, wrapped with the offending values.
//
// # Usage
//
//	m, err := model.New(cfg, info, rand.New(rand.NewSource(42)))
//	if err != nil {
//	    return err
//	}
//	engine, err := recommend.NewEngine(recommend.DefaultEngineConfig(), logger)
//	if err != nil {
//	    return err
//	}
//	if err := engine.Swap(m, itemIDs, 1); err != nil {
//	    return err
//	}
//
//	resp, err := engine.Recommend(ctx, recommend.Request{
//	    Items: []string{"i12", "i7", "i31"},
//	    K:     10,
//	})
//
// # Thread Safety
//
// Engine is safe for concurrent use. Predictions take a shared lock on the
// loaded model; Swap takes the exclusive lock and clears the response cache.
package recommend
