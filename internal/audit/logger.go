package audit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Entry represents a structured audit event.
type Entry struct {
	ActorID    string         `json:"actor_id,omitempty"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	ResourceID string         `json:"resource_id"`
	IPAddress  string         `json:"ip_address,omitempty"`
	UserAgent  string         `json:"user_agent,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Sink stores audit entries.
type Sink interface {
	AppendAudit(ctx context.Context, entry Entry) error
	ListAudit(ctx context.Context, limit int) ([]Entry, error)
}

// Logger writes audit entries into a Sink.
type Logger struct {
	sink   Sink
	logger *zap.Logger
}

// New constructs a Logger. A nil sink only logs.
func New(sink Sink, logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{sink: sink, logger: logger}
}

// Record persists an audit entry, logging failures but not interrupting flows.
func (l *Logger) Record(ctx context.Context, entry Entry) {
	if l == nil || entry.Action == "" {
		return
	}
	entry = applyMeta(ctx, entry)
	entry.OccurredAt = timeOrDefault(entry.OccurredAt)

	l.logger.Info("audit",
		zap.String("action", entry.Action),
		zap.String("resource", entry.Resource),
		zap.String("resource_id", entry.ResourceID),
		zap.String("actor_id", entry.ActorID),
	)
	if l.sink == nil {
		return
	}
	if err := l.sink.AppendAudit(ctx, entry); err != nil {
		l.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

// ListRecent retrieves most recent entries for debugging/ops.
func (l *Logger) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	if l.sink == nil {
		return nil, nil
	}
	return l.sink.ListAudit(ctx, limit)
}

func timeOrDefault(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

// RequestMeta describes who triggered an audited action.
type RequestMeta struct {
	ActorID   string
	IPAddress string
	UserAgent string
}

type metaContextKey struct{}

// WithRequestMeta stores caller metadata that Record applies to entries
// missing it.
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, metaContextKey{}, meta)
}

// RequestMetaFromContext returns metadata stored by WithRequestMeta.
func RequestMetaFromContext(ctx context.Context) (RequestMeta, bool) {
	meta, ok := ctx.Value(metaContextKey{}).(RequestMeta)
	return meta, ok
}

func applyMeta(ctx context.Context, entry Entry) Entry {
	meta, ok := RequestMetaFromContext(ctx)
	if !ok {
		return entry
	}
	if entry.ActorID == "" {
		entry.ActorID = meta.ActorID
	}
	if entry.IPAddress == "" {
		entry.IPAddress = meta.IPAddress
	}
	if entry.UserAgent == "" {
		entry.UserAgent = meta.UserAgent
	}
	return entry
}
