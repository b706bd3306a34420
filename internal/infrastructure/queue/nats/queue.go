package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/frmf-pipeline/internal/core/domain"
	"github.com/kirillkom/frmf-pipeline/internal/infrastructure/resilience"
)

const DefaultQueueGroup = "workers"

// Queue carries SubmissionRef messages. Publishing is fire-and-forget: a
// successful publish only means the server accepted the message.
type Queue struct {
	conn       *nats.Conn
	subject    string
	queueGroup string
	executor   *resilience.Executor
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

type Options struct {
	ClientName           string
	QueueGroup           string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
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
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	clientName := options.ClientName
	if clientName == "" {
		clientName = "frmf-pipeline"
	}
	queueGroup := strings.TrimSpace(options.QueueGroup)
	if queueGroup == "" {
		queueGroup = DefaultQueueGroup
	}

	conn, err := nats.Connect(
		url,
		nats.Name(clientName),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:       conn,
		subject:    subject,
		queueGroup: queueGroup,
		executor:   options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishSubmissionStored(ctx context.Context, ref domain.SubmissionRef) error {
	payload, err := encodeSubmissionRef(ref)
	if err != nil {
		return err
	}

	call := func(_ context.Context) error {
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded("nats publish", err)
	}
	return nil
}

// TriggerPipeline re-drives a stored submission through the worker pool.
func (q *Queue) TriggerPipeline(ctx context.Context, ref domain.SubmissionRef) error {
	return q.PublishSubmissionStored(ctx, ref)
}

// SubscribeSubmissionStored blocks until ctx is done. Messages are spread
// across the queue group, so each submission reaches one worker.
func (q *Queue) SubscribeSubmissionStored(ctx context.Context, handler func(context.Context, domain.SubmissionRef) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, q.queueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		ref, err := decodeSubmissionRef(msg.Data)
		if err != nil {
			slog.Warn("queue_message_dropped", "subject", msg.Subject, "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, ref); err != nil {
			slog.Error("worker_handler_failed", "request_id", ref.RequestID, "key", ref.Key, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func encodeSubmissionRef(ref domain.SubmissionRef) ([]byte, error) {
	if strings.TrimSpace(ref.Key) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "encode submission ref", errors.New("key is required"))
	}
	payload, err := json.Marshal(ref)
	if err != nil {
		return nil, fmt.Errorf("marshal submission ref: %w", err)
	}
	return payload, nil
}

func decodeSubmissionRef(data []byte) (domain.SubmissionRef, error) {
	var ref domain.SubmissionRef
	if err := json.Unmarshal(data, &ref); err != nil {
		return domain.SubmissionRef{}, domain.WrapError(domain.ErrInvalidInput, "decode submission ref", err)
	}
	if strings.TrimSpace(ref.Key) == "" {
		return domain.SubmissionRef{}, domain.WrapError(domain.ErrInvalidInput, "decode submission ref", errors.New("key is required"))
	}
	if ref.RequestID == "" {
		ref.RequestID = domain.IDFromKey(ref.Key)
	}
	return ref, nil
}
