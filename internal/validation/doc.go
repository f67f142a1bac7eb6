// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

// Package validation provides struct validation using go-playground/validator v10.
//
// A single validator instance is shared by the configuration loader and the
// HTTP handlers so that struct metadata is parsed once. Field names in errors
// come from the json tag, then the koanf tag, so messages use the same names
// as request bodies and config files:
//
//	type HistoryRequest struct {
//	    Items []string `json:"items" validate:"required,min=1,dive,required"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidationFailed,
//	        "request validation failed", verr.Details())
//	    return
//	}
//
// Nested fields are reported by their path, e.g. "server.engine.max_k" or
// "items[2]".
package validation
