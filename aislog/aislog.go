// Package aislog provides the station's structured, slot-tagged logging.
// Every entry carries the current (i_87B, i_88B) slot pair so log lines
// can be correlated with the TDMA schedule they were emitted under.
package aislog

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"aisnet/slotclock"
)

// New builds a colorized, human-readable slog.Logger writing to w (or
// os.Stdout when w is nil).
func New(w *os.File) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	handler := tint.NewHandler(w, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.StampMilli,
	})
	return slog.New(handler)
}

// WithSlots returns a logger with the current minute-scale slot pair
// attached as structured fields, for call sites that log in reaction to a
// specific slot (transmission, reception, cleanup eviction).
func WithSlots(l *slog.Logger) *slog.Logger {
	i87, i88 := slotclock.CurrentIndices()
	return l.With(slog.Int("slot_87b", i87), slog.Int("slot_88b", i88))
}
