package lotteryd

import (
	"log/slog"
	"sort"

	"blocklotto/core/events"
	"blocklotto/core/types"
)

// eventRenderer is implemented by engine events that carry a canonical
// attribute rendering.
type eventRenderer interface {
	Event() *types.Event
}

// LogEmitter publishes engine events to the structured log so operators and
// downstream collectors observe every state transition. Attributes are
// emitted in sorted key order to keep log lines stable.
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter wraps the supplied logger. A nil logger falls back to the
// process default.
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger}
}

// Emit implements events.Emitter.
func (l *LogEmitter) Emit(ev events.Event) {
	if l == nil || ev == nil {
		return
	}
	attrs := []any{slog.String("event", ev.EventType())}
	if rendered, ok := ev.(eventRenderer); ok {
		if payload := rendered.Event(); payload != nil {
			keys := make([]string, 0, len(payload.Attributes))
			for key := range payload.Attributes {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				attrs = append(attrs, slog.String(key, payload.Attributes[key]))
			}
		}
	}
	l.logger.Info("lottery event", attrs...)
}

var _ events.Emitter = (*LogEmitter)(nil)
