// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/bureau-foundation/catchup/lib/codec"
	"github.com/bureau-foundation/catchup/trigger"
)

// Publisher is the part of *nats.Conn the notifier uses.
type Publisher interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

// NATSConfig configures Connect.
type NATSConfig struct {
	URL           string
	Name          string
	SubjectPrefix string
	Logger        *slog.Logger
}

// NATSNotifier publishes firings as CBOR messages.
type NATSNotifier struct {
	publisher Publisher
	prefix    string
	conn      *nats.Conn
	logger    *slog.Logger
}

// Connect dials the NATS server. The connection reconnects forever;
// publishes during an outage are buffered by the client.
func Connect(config NATSConfig) (*NATSNotifier, error) {
	if config.URL == "" {
		return nil, errors.New("notify: NATS URL is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	conn, err := nats.Connect(config.URL,
		nats.Name(config.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(500*time.Millisecond),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(3*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			logger.Info("nats reconnected", "url", conn.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("notify: connecting to %s: %w", config.URL, err)
	}
	notifier := NewNATSNotifier(conn, config.SubjectPrefix, logger)
	notifier.conn = conn
	return notifier, nil
}

// NewNATSNotifier publishes through an existing publisher.
func NewNATSNotifier(publisher Publisher, subjectPrefix string, logger *slog.Logger) *NATSNotifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &NATSNotifier{
		publisher: publisher,
		prefix:    strings.TrimSuffix(subjectPrefix, "."),
		logger:    logger,
	}
}

// Subject returns the subject a feature's firings are published on.
func (n *NATSNotifier) Subject(feature string) string {
	return n.prefix + "." + feature
}

// Notify publishes the firing and waits for the server to accept it.
func (n *NATSNotifier) Notify(ctx context.Context, firing trigger.Firing) error {
	payload, err := codec.Marshal(firing)
	if err != nil {
		return fmt.Errorf("notify: encoding firing: %w", err)
	}
	subject := n.Subject(firing.Feature)
	if err := n.publisher.Publish(subject, payload); err != nil {
		return fmt.Errorf("notify: publishing to %s: %w", subject, err)
	}
	if err := n.publisher.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("notify: flushing %s: %w", subject, err)
	}
	n.logger.Debug("firing published", "subject", subject, "user_id", firing.User, "room_id", firing.Room)
	return nil
}

// Close drains the connection opened by Connect.
func (n *NATSNotifier) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Drain()
}

var _ trigger.Notifier = (*NATSNotifier)(nil)
