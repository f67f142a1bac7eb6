// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package config

import (
	"errors"
	"fmt"

	"github.com/tomtom215/cclsrec/internal/validation"
)

// errMissingSource is returned when the selected data source lacks its location.
var errMissingSource = errors.New("data source location is required")

// Validate checks struct tags and then the cross-field rules of every
// section.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}
	checks := []func() error{
		c.validateData,
		c.Model.Validate,
		c.Training.Validate,
		c.Server.Engine.Validate,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateData() error {
	switch c.Data.Source {
	case SourceFile:
		if c.Data.Path == "" {
			return fmt.Errorf("data.path: %w", errMissingSource)
		}
	case SourceDuckDB:
		if c.Data.DuckDB.Relation == "" {
			return fmt.Errorf("data.duckdb.relation: %w", errMissingSource)
		}
	}
	if c.History.MaxLength != c.Data.MaxSeqLength {
		return fmt.Errorf("history.max_length (%d) must equal data.max_seq_length (%d)", c.History.MaxLength, c.Data.MaxSeqLength)
	}
	return nil
}
