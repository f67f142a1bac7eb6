// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package logging

import (
	"context"
	"encoding/hex"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type ctxKey int

const (
	runIDKey ctxKey = iota
	requestIDKey
	loggerKey
)

func fromContext[T any](ctx context.Context, key ctxKey) (T, bool) {
	v, ok := ctx.Value(key).(T)
	return v, ok
}

// NewRunID returns a short id correlating the log lines of one training or
// evaluation run.
func NewRunID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:4])
}

// ContextWithRunID attaches a run id.
func ContextWithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext returns the run id, or "".
func RunIDFromContext(ctx context.Context) string {
	id, _ := fromContext[string](ctx, runIDKey)
	return id
}

// ContextWithRequestID attaches an HTTP request id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request id, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := fromContext[string](ctx, requestIDKey)
	return id
}

// ContextWithLogger stores logger in ctx.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func ContextWithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext returns the stored logger, falling back to the global
// one.
func LoggerFromContext(ctx context.Context) zerolog.Logger {
	if l, ok := fromContext[zerolog.Logger](ctx, loggerKey); ok {
		return l
	}
	return Logger()
}

// Ctx returns the context logger annotated with whichever of run_id and
// request_id ctx carries.
//
//	logging.Ctx(ctx).Info().Int("version", v).Msg("checkpoint saved")
func Ctx(ctx context.Context) *zerolog.Logger {
	fields := make(map[string]any, 2)
	if id := RunIDFromContext(ctx); id != "" {
		fields["run_id"] = id
	}
	if id := RequestIDFromContext(ctx); id != "" {
		fields["request_id"] = id
	}
	l := LoggerFromContext(ctx)
	if len(fields) > 0 {
		l = l.With().Fields(fields).Logger()
	}
	return &l
}
