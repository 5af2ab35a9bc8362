package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/laudenbachm/mbbs-launcher/internal/model"
)

const (
	// DefaultSubjectPrefix is used when no prefix is configured
	DefaultSubjectPrefix = "mbbs"

	streamMaxAge     = 24 * time.Hour // Keep events for 24 hours
	streamMaxMsgs    = -1             // Unlimited messages
	operationTimeout = 10 * time.Second
)

// ErrUnknownEvent is returned for events without a subject mapping
var ErrUnknownEvent = errors.New("unknown event type")

// NATSPublisher exports launcher events to a JetStream stream. It implements
// model.Emitter; publish failures are logged and never reach the emitter.
type NATSPublisher struct {
	js     nats.JetStreamContext
	logger *zap.Logger
	prefix string
	stream string
}

// NewNATSPublisher creates the events stream if needed and returns a
// publisher for it
func NewNATSPublisher(ctx context.Context, js nats.JetStreamContext, prefix string, logger *zap.Logger) (*NATSPublisher, error) {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	p := &NATSPublisher{
		js:     js,
		logger: logger.Named("nats-publisher"),
		prefix: prefix,
		stream: strings.ToUpper(strings.ReplaceAll(prefix, ".", "_")) + "_EVENTS",
	}

	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	if err := p.setupStream(ctx); err != nil {
		return nil, fmt.Errorf("failed to setup stream: %w", err)
	}
	return p, nil
}

func (p *NATSPublisher) setupStream(ctx context.Context) error {
	_, err := p.js.StreamInfo(p.stream, nats.Context(ctx))
	if err == nil {
		p.logger.Info("Stream already exists", zap.String("stream", p.stream))
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return err
	}

	_, err = p.js.AddStream(&nats.StreamConfig{
		Name:     p.stream,
		Subjects: p.Subjects(),
		Storage:  nats.FileStorage,
		MaxAge:   streamMaxAge,
		MaxMsgs:  streamMaxMsgs,
	}, nats.Context(ctx))
	if err != nil {
		if errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return nil
		}
		return err
	}

	p.logger.Info("Stream created successfully", zap.String("stream", p.stream))
	return nil
}

// Stream returns the name of the JetStream stream events are stored in
func (p *NATSPublisher) Stream() string {
	return p.stream
}

// Subjects lists the subjects the events stream captures. The stream must not
// capture <prefix>.cmd.*, or it would acknowledge control requests before the
// launcher answers them.
func (p *NATSPublisher) Subjects() []string {
	return []string{
		p.subject("countdown", ">"),
		p.subject("launch", ">"),
		p.subject("cancelled"),
		p.subject("status", ">"),
		p.subject("crashed", ">"),
		p.subject("primary", ">"),
	}
}

// Subject returns the subject an event is published on
func (p *NATSPublisher) Subject(event model.Event) (string, error) {
	switch e := event.(type) {
	case model.CountdownProgress:
		return p.subject("countdown", e.ProgramID), nil
	case model.LaunchResult:
		return p.subject("launch", e.ProgramID), nil
	case model.AllCancelled:
		return p.subject("cancelled"), nil
	case model.StatusChanged:
		return p.subject("status", e.ProgramID), nil
	case model.ProgramCrashed:
		return p.subject("crashed", e.ProgramID), nil
	case model.PrimaryCrashed:
		return p.subject("primary", "crashed"), nil
	default:
		return "", fmt.Errorf("%w: %T", ErrUnknownEvent, event)
	}
}

func (p *NATSPublisher) subject(tokens ...string) string {
	return p.prefix + "." + strings.Join(tokens, ".")
}

// Publish sends one event and waits for the stream acknowledgement
func (p *NATSPublisher) Publish(ctx context.Context, event model.Event) error {
	subject, err := p.Subject(event)
	if err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := nats.NewMsg(subject)
	msg.Header.Set("Event-Type", string(event.Type()))
	msg.Data = data

	if _, err := p.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Emit implements model.Emitter
func (p *NATSPublisher) Emit(event model.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	if err := p.Publish(ctx, event); err != nil {
		p.logger.Error("Failed to export event",
			zap.String("event", string(event.Type())),
			zap.Error(err))
	}
}
