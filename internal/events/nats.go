package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mcoot/typerace-go/internal/model"
)

// NATSConfig holds NATS connection settings
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns sensible defaults for NATS configuration
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "typerace.races",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// NATSPublisher publishes race events with core NATS
type NATSPublisher struct {
	nc     *nats.Conn
	config NATSConfig
	logger *slog.Logger
}

// Ensure NATSPublisher implements Publisher
var _ Publisher = (*NATSPublisher)(nil)

// NewNATSPublisher connects to NATS
func NewNATSPublisher(cfg NATSConfig, logger *slog.Logger) (*NATSPublisher, error) {
	logger = logger.With(slog.String("component", "nats-publisher"))

	opts := []nats.Option{
		nats.Name("typerace"),
		nats.Timeout(cfg.Timeout),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Error("NATS disconnected", slog.Any("error", err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.Error("NATS error", slog.Any("error", err))
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	logger.Info("connected to NATS",
		slog.String("url", nc.ConnectedUrl()),
		slog.String("subject_prefix", cfg.SubjectPrefix))

	return &NATSPublisher{nc: nc, config: cfg, logger: logger}, nil
}

// Publish sends the event on <prefix>.<race id>.<type>
func (p *NATSPublisher) Publish(ctx context.Context, event model.RaceEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := buildMsg(p.config.SubjectPrefix, event)
	if err != nil {
		return err
	}

	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish to NATS: %w", err)
	}

	p.logger.Debug("published race event", slog.String("subject", msg.Subject))
	return nil
}

// Close drains pending publishes and closes the connection
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return err
	}
	return nil
}

// Subject returns the subject an event is published on
func Subject(prefix string, raceID model.RaceID, eventType model.EventType) string {
	return fmt.Sprintf("%s.%s.%s", prefix, raceID, eventType)
}

func buildMsg(prefix string, event model.RaceEvent) (*nats.Msg, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	return &nats.Msg{
		Subject: Subject(prefix, event.RaceID, event.Type),
		Data:    data,
		Header: nats.Header{
			"Event-Type": []string{string(event.Type)},
			"Race-ID":    []string{string(event.RaceID)},
		},
	}, nil
}
