// Package notify delivers user-facing messages, the console equivalent of a toast.
package notify

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notifier shows a message to the user. Implementations must not block.
type Notifier interface {
	Info(ctx context.Context, msg string)
	Error(ctx context.Context, msg string, err error)
}

// LogNotifier writes notifications through zerolog. The logger attached to ctx wins over the
// notifier's own, so request-scoped fields are kept.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Default notifies through the global logger.
func Default() *LogNotifier {
	return &LogNotifier{logger: log.Logger}
}

func (n *LogNotifier) Info(ctx context.Context, msg string) {
	n.from(ctx).Info().Str("notify", string(LevelInfo)).Msg(msg)
}

func (n *LogNotifier) Error(ctx context.Context, msg string, err error) {
	n.from(ctx).Error().Err(err).Str("notify", string(LevelError)).Msg(msg)
}

func (n *LogNotifier) from(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled && l != zerolog.DefaultContextLogger {
			return l
		}
	}
	return &n.logger
}

// Notification is one recorded message.
type Notification struct {
	Level   Level
	Message string
	Err     error
}

// Recorder keeps every notification, for tests and for frontends that render them later.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Info(_ context.Context, msg string) {
	r.add(Notification{Level: LevelInfo, Message: msg})
}

func (r *Recorder) Error(_ context.Context, msg string, err error) {
	r.add(Notification{Level: LevelError, Message: msg, Err: err})
}

func (r *Recorder) add(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// All returns a copy of the notifications in the order they were made.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// Count returns how many notifications of level were made.
func (r *Recorder) Count(level Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, it := range r.items {
		if it.Level == level {
			n++
		}
	}
	return n
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}

// Multi fans out to every notifier in order.
type Multi []Notifier

func (m Multi) Info(ctx context.Context, msg string) {
	for _, n := range m {
		n.Info(ctx, msg)
	}
}

func (m Multi) Error(ctx context.Context, msg string, err error) {
	for _, n := range m {
		n.Error(ctx, msg, err)
	}
}
