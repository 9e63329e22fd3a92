package vexora

import (
	"context"
	"log/slog"
)

// DiscardHandler is a slog.Handler that drops every record. Components take
// an optional *slog.Logger and default to a discard logger so callers opt in
// to logging explicitly.
type DiscardHandler struct{}

func (DiscardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (DiscardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d DiscardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d DiscardHandler) WithGroup(string) slog.Handler           { return d }

// NopLogger returns a logger that discards all output.
func NopLogger() *slog.Logger {
	return slog.New(DiscardHandler{})
}
