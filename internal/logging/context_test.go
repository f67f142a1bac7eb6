// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	if len(a) != 8 {
		t.Errorf("NewRunID() = %q, want 8 characters", a)
	}
	if a == b {
		t.Errorf("NewRunID() returned %q twice", a)
	}
}

func TestContextIDs(t *testing.T) {
	ctx := context.Background()
	if RunIDFromContext(ctx) != "" || RequestIDFromContext(ctx) != "" {
		t.Error("empty context should carry no ids")
	}
	ctx = ContextWithRunID(ctx, "run1")
	ctx = ContextWithRequestID(ctx, "req1")
	if got := RunIDFromContext(ctx); got != "run1" {
		t.Errorf("RunIDFromContext() = %q", got)
	}
	if got := RequestIDFromContext(ctx); got != "req1" {
		t.Errorf("RequestIDFromContext() = %q", got)
	}
}

func TestCtx(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	var buf bytes.Buffer
	ctx := ContextWithLogger(context.Background(), NewTestLogger(&buf))
	ctx = ContextWithRunID(ctx, "abcd1234")

	Ctx(ctx).Info().Msg("checkpoint saved")

	out := buf.String()
	if !strings.Contains(out, `"run_id":"abcd1234"`) || strings.Contains(out, "request_id") {
		t.Errorf("output = %q", out)
	}
}

func TestLoggerFromContextFallback(t *testing.T) {
	restoreGlobals(t)
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	l := LoggerFromContext(context.Background())
	l.Info().Msg("global")
	if !strings.Contains(buf.String(), "global") {
		t.Errorf("fallback did not use the global logger: %q", buf.String())
	}
}
