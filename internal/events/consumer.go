// Driftline - Social Feed Recommendation Engine
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/driftline/driftline/internal/config"
	"github.com/driftline/driftline/internal/metrics"
)

// EventStore persists raw engagement events. Inserts are idempotent on the
// event ID, which makes JetStream redelivery harmless.
type EventStore interface {
	InsertEngagementEvent(ctx context.Context, eventID, postID, userID, kind string, occurredAt time.Time) error
}

// SuccessRecorder credits exploration successes to the bandit counters.
type SuccessRecorder interface {
	RecordSuccess(entityType, entityID string) error
}

// banditEntityPost mirrors the feed package's post entity type without
// importing it; events only needs the key prefix.
const banditEntityPost = "post"

// Consumer reads engagement events from JetStream through a watermill
// router and lands them in storage. Handler failures are retried with
// backoff; the durable consumer resumes from the last ack after a restart.
type Consumer struct {
	router     *message.Router
	subscriber message.Subscriber
	store      EventStore
	bandit     SuccessRecorder
	logger     zerolog.Logger
}

// NewConsumer creates a JetStream consumer for the configured topic.
// bandit may be nil when no exploration store is wired.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewConsumer(cfg *config.NATSConfig, store EventStore, bandit SuccessRecorder, logger zerolog.Logger) (*Consumer, error) {
	componentLogger := logger.With().Str("component", "events").Logger()
	wmLog := newWatermillLogger(componentLogger)

	subscriber, err := newSubscriber(cfg, wmLog)
	if err != nil {
		return nil, err
	}

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 30 * time.Second}, wmLog)
	if err != nil {
		return nil, fmt.Errorf("create event router: %w", err)
	}

	c := &Consumer{
		router:     router,
		subscriber: subscriber,
		store:      store,
		bandit:     bandit,
		logger:     componentLogger,
	}

	router.AddMiddleware(middleware.Recoverer)
	retry := middleware.Retry{
		MaxRetries:      cfg.RetryCount,
		InitialInterval: cfg.RetryInterval,
		MaxInterval:     time.Minute,
		Multiplier:      2.0,
		Logger:          wmLog,
	}
	router.AddMiddleware(retry.Middleware)

	router.AddNoPublisherHandler(
		"engagement-events",
		cfg.Topic,
		subscriber,
		c.handle,
	)

	return c, nil
}

// newSubscriber builds a durable JetStream subscriber with queue-group load
// balancing across instances.
func newSubscriber(cfg *config.NATSConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
	}

	ackWait := time.Duration(cfg.AckWaitSec) * time.Second
	subOpts := []natsgo.SubOpt{
		natsgo.MaxDeliver(cfg.RetryCount + 1),
		natsgo.AckWait(ackWait),
		natsgo.DeliverNew(),
	}

	wmConfig := wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: cfg.Subscribers,
		AckWaitTimeout:   ackWait,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:         false,
			AutoProvision:    true,
			AckAsync:         false,
			SubscribeOptions: subOpts,
			DurablePrefix:    cfg.DurableName,
		},
	}

	sub, err := wmNats.NewSubscriber(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create jetstream subscriber: %w", err)
	}
	return sub, nil
}

// Serve runs the router until the context is canceled. It satisfies the
// supervisor's service interface.
func (c *Consumer) Serve(ctx context.Context) error {
	return c.router.Run(ctx)
}

func (c *Consumer) String() string { return "engagement-consumer" }

// Close shuts down the router and subscriber.
func (c *Consumer) Close() error {
	if err := c.router.Close(); err != nil {
		return err
	}
	return c.subscriber.Close()
}

// handle processes one event message. A returned error nacks the message
// for retry; malformed payloads are dropped after counting, since retrying
// them can never succeed.
func (c *Consumer) handle(msg *message.Message) error {
	event, err := UnmarshalEvent(msg.Payload)
	if err != nil {
		metrics.EventsFailed.WithLabelValues("malformed").Inc()
		c.logger.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("dropping malformed engagement event")
		return nil
	}
	if err := event.Validate(); err != nil {
		metrics.EventsFailed.WithLabelValues("invalid").Inc()
		c.logger.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("dropping invalid engagement event")
		return nil
	}

	ctx := msg.Context()
	if err := c.store.InsertEngagementEvent(ctx, event.EventID, event.PostID, event.UserID, event.Kind, event.OccurredAt); err != nil {
		metrics.EventsFailed.WithLabelValues(event.Kind).Inc()
		return fmt.Errorf("store engagement event %s: %w", event.EventID, err)
	}

	if c.bandit != nil && event.Explore && event.IsPositive() {
		if err := c.bandit.RecordSuccess(banditEntityPost, event.PostID); err != nil {
			// Counters are advisory; the event itself is already durable.
			c.logger.Warn().Err(err).Str("post_id", event.PostID).Msg("recording exploration success failed")
		}
	}

	metrics.EventsConsumed.WithLabelValues(event.Kind).Inc()
	return nil
}
