// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

// Package storage keeps trained checkpoints on local disk, one file per
// version of a named model. The serve command polls Latest to hot-reload;
// evaluate and models read older versions by number.
//
// A file named {name}_v{version}.gob.gz holds a gob-encoded envelope of
// Metadata and the gzip-compressed gob payload. Metadata carries the SHA-256
// of the uncompressed payload; Load returns ErrChecksumMismatch when it does
// not match. Writes go to a temporary file in the same directory and are
// renamed into place.
//
//	store, err := storage.NewStore(cfg.Storage.Dir)
//	if err != nil {
//	    return err
//	}
//	ckpt, err := storage.NewCheckpoint(m, ds.Vocab.Items(), epoch, metrics)
//	if err != nil {
//	    return err
//	}
//	err = store.SaveCheckpoint(ctx, cfg.Storage.Name, version, ckpt, storage.Metadata{})
//
//	loaded, meta, err := store.LoadCheckpoint(ctx, cfg.Storage.Name, 0) // latest
//
// A Store is safe for concurrent use inside one process. Separate processes
// see each other's writes after Refresh.
package storage
