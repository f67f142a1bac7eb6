// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

// Package main is the cclsrec command line tool.
//
// CCLSRec trains a Transformer sequential recommender with a contrastive
// objective over masked and unmasked views of each user's history, and
// serves next-item recommendations from the trained checkpoints.
//
// # Commands
//
//	cclsrec train           train a model and store the best checkpoint
//	cclsrec evaluate        evaluate a stored checkpoint on the test split
//	cclsrec import-history  load recent user histories into the history store
//	cclsrec models          list stored checkpoints
//	cclsrec serve           run the recommendation API
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority wins):
//   - Environment variables with the CCLSREC_ prefix
//   - Config file (--config, CCLSREC_CONFIG or ./cclsrec.yaml)
//   - Built-in defaults
package main

func main() {
	Execute()
}
