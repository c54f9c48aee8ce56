package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/ingest-buddy/internal/core/domain"
	"github.com/kirillkom/ingest-buddy/internal/infrastructure/resilience"
)

const DefaultSubject = "books.ingested"

type publisher interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

// Notifier announces ingested books on a NATS subject. Sample text is not
// part of the payload.
type Notifier struct {
	conn     publisher
	subject  string
	executor *resilience.Executor
	logger   *slog.Logger
	now      func() time.Time
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

type bookIngestedEvent struct {
	OriginalFilename  string    `json:"original_filename"`
	TruncatedFilename string    `json:"truncated_filename"`
	FileHash          string    `json:"filehash"`
	MetadataTitle     string    `json:"metadata_title,omitempty"`
	MetadataAuthor    string    `json:"metadata_author,omitempty"`
	IngestedAt        time.Time `json:"ingested_at"`
}

func New(url, subject string, options Options) (*Notifier, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 10
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("ingest-buddy"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return newNotifier(conn, subject, options.ResilienceExecutor, logger), nil
}

func newNotifier(conn publisher, subject string, executor *resilience.Executor, logger *slog.Logger) *Notifier {
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		conn:     conn,
		subject:  subject,
		executor: executor,
		logger:   logger,
		now:      time.Now,
	}
}

// Close flushes buffered messages before closing the connection.
func (n *Notifier) Close() {
	if n.conn == nil {
		return
	}
	if err := n.conn.FlushTimeout(5 * time.Second); err != nil {
		n.logger.Warn("nats_flush_failed", "error", err)
	}
	n.conn.Close()
}

func (n *Notifier) PublishBookIngested(ctx context.Context, rec domain.BookRecord) error {
	payload, err := json.Marshal(bookIngestedEvent{
		OriginalFilename:  rec.OriginalFilename,
		TruncatedFilename: rec.TruncatedFilename,
		FileHash:          rec.FileHash,
		MetadataTitle:     rec.MetadataTitle,
		MetadataAuthor:    rec.MetadataAuthor,
		IngestedAt:        n.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal book event: %w", err)
	}

	call := func(_ context.Context) error {
		if err := n.conn.Publish(n.subject, payload); err != nil {
			return typePublishError(fmt.Errorf("nats publish: %w", err))
		}
		return nil
	}

	if n.executor == nil {
		return call(ctx)
	}
	return typePublishError(n.executor.Execute(ctx, "nats.publish", call, resilience.DomainClassifier))
}
