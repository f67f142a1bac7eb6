// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

/*
Package config loads the CCLSRec configuration.

# Configuration Sources

Values are layered, later layers winning:

 1. struct defaults (Default)
 2. a YAML file: the --config flag, CCLSREC_CONFIG, or the first of
    DefaultConfigPaths that exists
 3. environment variables with the CCLSREC_ prefix

Environment names map onto keys by dropping the prefix, lower-casing and
turning a double underscore into a dot:

	CCLSREC_MODEL__HIDDEN_SIZE=128        -> model.hidden_size
	CCLSREC_TRAINING__EVAL__KS=5,10,20    -> training.eval.ks
	CCLSREC_SERVER__CORS_ORIGINS=a,b      -> server.cors_origins

# Sections

  - logging: level, format, caller, timestamp
  - data: interaction source (file or duckdb), field names, k-core filter,
    max_seq_length
  - model: CCLSRec hyperparameters
  - training: epochs, batch size, optimizer, evaluation and early stopping
  - storage: checkpoint directory and series name
  - history: badger directory for user histories
  - server: listen address, timeouts, CORS, rate limit, reload interval and
    engine cache

# Validation

Load checks struct tags with go-playground/validator and then the
cross-field rules of each section (for example that model.n_heads divides
model.hidden_size). The first failure is returned.
*/
package config
