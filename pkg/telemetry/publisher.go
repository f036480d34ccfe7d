package telemetry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"ai-support-router-be/internal/pkg/logger"
	"ai-support-router-be/pkg/events"
	natsbus "ai-support-router-be/pkg/nats"
)

// TopicTurnReports is the in-process topic carrying one message per turn.
const TopicTurnReports = "turn_reports"

// Publisher fans turn reports out to the in-process bus (consumed by the
// telemetry websocket hub) and, when configured, to NATS for other processes.
// NATS failures are logged, never surfaced to the turn.
type Publisher struct {
	pubSub *gochannel.GoChannel
	nats   *natsbus.Publisher
	log    logger.ILogger
}

func NewPublisher(pubSub *gochannel.GoChannel, nats *natsbus.Publisher, log logger.ILogger) *Publisher {
	return &Publisher{pubSub: pubSub, nats: nats, log: log}
}

// PublishTurnReport emits the report on both buses.
func (p *Publisher) PublishTurnReport(ctx context.Context, report TurnReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal turn report: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := p.pubSub.Publish(TopicTurnReports, msg); err != nil {
		return fmt.Errorf("publish turn report: %w", err)
	}

	if p.nats != nil {
		var payloadMap map[string]interface{}
		if err := json.Unmarshal(payload, &payloadMap); err == nil {
			if err := p.nats.Publish(ctx, events.NewTurnCompleted(payloadMap)); err != nil {
				p.log.Warn("telemetry", "nats publish failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
	return nil
}

// Subscribe returns the in-process stream of turn report messages.
func (p *Publisher) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return p.pubSub.Subscribe(ctx, TopicTurnReports)
}
