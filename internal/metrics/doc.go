// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

/*
Package metrics defines the Prometheus collectors of CCLSRec.

Collectors are package-level and registered with the default registry through
promauto. Callers use the Record* helpers rather than touching collectors
directly.

# Training

  - cclsrec_train_steps_total
  - cclsrec_train_step_duration_seconds
  - cclsrec_train_loss{component} (total, primary, guidance, free)
  - cclsrec_train_contrastive{branch, term} (alignment and uniformity)
  - cclsrec_train_grad_norm
  - cclsrec_train_epochs_total
  - cclsrec_eval_metric{split, metric}
  - cclsrec_checkpoints_saved_total

# Serving

  - cclsrec_api_requests_total{method, endpoint, status}
  - cclsrec_api_request_duration_seconds{method, endpoint}
  - cclsrec_api_active_requests
  - cclsrec_api_rate_limit_hits_total{endpoint}
  - cclsrec_recommendations_total{result}
  - cclsrec_prediction_duration_seconds
  - cclsrec_model_version
  - cclsrec_model_reloads_total{result}
  - cclsrec_circuit_breaker_state{name}
  - cclsrec_circuit_breaker_transitions_total{name, from, to}

Scrape them from the serve command:

	curl http://localhost:8080/metrics
*/
package metrics
