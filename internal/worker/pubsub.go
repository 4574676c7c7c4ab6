package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Job types accepted on the subscription.
const (
	JobAlertCheck   = "alert_check"
	JobPruneHistory = "prune_history"
)

// JobMessage is the published job envelope.
type JobMessage struct {
	JobType string `json:"job_type"`
}

// PubSubConfig wires a PubSubHandler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	CheckJob         *CheckJob
	PruneJob         *PruneJob
	Logger           zerolog.Logger
}

// PubSubHandler triggers monitoring jobs from Pub/Sub messages, for
// deployments where a scheduler publishes ticks instead of running cron
// in-process. Each message names a job type; the payload carries nothing
// else.
type PubSubHandler struct {
	client     *pubsub.Client
	subscriber *pubsub.Subscriber
	subName    string
	jobs       map[string]func(context.Context) error
	logger     zerolog.Logger
}

// NewPubSubHandler creates a handler bound to one subscription.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = 4
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:     client,
		subscriber: subscriber,
		subName:    cfg.SubscriptionName,
		jobs: map[string]func(context.Context) error{
			JobAlertCheck: func(ctx context.Context) error {
				_, err := cfg.CheckJob.Run(ctx)
				return err
			},
			JobPruneHistory: func(ctx context.Context) error {
				_, err := cfg.PruneJob.Run(ctx)
				return err
			},
		},
		logger: cfg.Logger,
	}, nil
}

// Start blocks, processing messages until the context is canceled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().Str("subscription", h.subName).Msg("starting pubsub handler")
	return h.subscriber.Receive(ctx, h.handleMessage)
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	start := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	var job JobMessage
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		logger.Error().Err(err).Msg("failed to parse message")
		msg.Nack()
		return
	}

	run, ok := h.jobs[job.JobType]
	if !ok {
		logger.Warn().Str("job_type", job.JobType).Msg("unknown job type")
		msg.Ack() // ack unknown messages to prevent redelivery
		return
	}

	if err := run(ctx); err != nil {
		logger.Error().Err(err).Str("job_type", job.JobType).Msg("job failed")
		msg.Nack()
		return
	}

	logger.Info().
		Str("job_type", job.JobType).
		Dur("duration", time.Since(start)).
		Msg("job completed")
	msg.Ack()
}
