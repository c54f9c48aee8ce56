package nats

import (
	"context"
	"errors"

	"github.com/kirillkom/ingest-buddy/internal/core/domain"
	"github.com/kirillkom/ingest-buddy/internal/infrastructure/resilience"
	"github.com/nats-io/nats.go"
)

// typePublishError maps client errors onto domain kinds so the executor can
// decide with resilience.DomainClassifier: connection trouble is temporary,
// payload and subject errors are ours and never count against the breaker.
func typePublishError(err error) error {
	switch {
	case err == nil:
		return nil
	case domain.IsKind(err, domain.ErrTemporary), domain.IsKind(err, domain.ErrInvalidInput):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case resilience.IsCircuitOpen(err),
		errors.Is(err, nats.ErrNoServers),
		errors.Is(err, nats.ErrTimeout),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrDisconnected),
		errors.Is(err, nats.ErrReconnectBufExceeded):
		return domain.WrapError(domain.ErrTemporary, "nats publish", err)
	case errors.Is(err, nats.ErrMaxPayload), errors.Is(err, nats.ErrBadSubject):
		return domain.WrapError(domain.ErrInvalidInput, "nats publish", err)
	default:
		return err
	}
}
