package webhook

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Entry is one audit record for a handled webhook request.
type Entry struct {
	Webhook     string
	Method      string
	SourceIP    string
	UserAgent   string
	ContentType string
	Success     bool
	Error       string
	BodyBytes   int
	Duration    time.Duration
}

// Auditor writes audit records for webhook traffic off the request path.
// Record never blocks and never fails the request: when the queue is full
// the entry is dropped, which loses a log line but keeps the sender's
// response time bounded.
type Auditor struct {
	entries chan Entry
	log     *zap.Logger
}

func NewAuditor(cfg Config, log *zap.Logger) *Auditor {
	return &Auditor{
		entries: make(chan Entry, cfg.AuditQueueSize),
		log:     log,
	}
}

// Record queues an audit entry without blocking.
func (a *Auditor) Record(e Entry) {
	select {
	case a.entries <- e:
	default:
		a.log.Warn("audit queue full, dropping entry", zap.String("webhook", e.Webhook))
	}
}

// Run drains the audit queue until ctx is cancelled, then flushes whatever
// is still buffered.
func (a *Auditor) Run(ctx context.Context) error {
	for {
		select {
		case e := <-a.entries:
			a.write(e)
		case <-ctx.Done():
			for {
				select {
				case e := <-a.entries:
					a.write(e)
				default:
					return nil
				}
			}
		}
	}
}

func (a *Auditor) write(e Entry) {
	fields := []zap.Field{
		zap.String("webhook", e.Webhook),
		zap.String("method", e.Method),
		zap.String("source_ip", e.SourceIP),
		zap.String("user_agent", e.UserAgent),
		zap.String("content_type", e.ContentType),
		zap.Bool("success", e.Success),
		zap.Int("body_bytes", e.BodyBytes),
		zap.Duration("duration", e.Duration),
	}
	if e.Error != "" {
		fields = append(fields, zap.String("error", e.Error))
	}
	a.log.Info("webhook audit", fields...)
}
