// Package escalation hands queries that found no service over to the human helpline.
package escalation

import (
	"context"

	apperrors "service-discovery/internal/common/errors"
	"service-discovery/internal/common/logger"
	"service-discovery/internal/orchestrator"
)

const subject = "Citizen query needs human assistance"

// Publisher publishes a JSON message to a topic.
type Publisher interface {
	PublishJSON(ctx context.Context, topicARN, subject string, payload interface{}, attrs map[string]string) (string, error)
}

// SNSEscalator publishes escalations to the helpline topic.
type SNSEscalator struct {
	publisher Publisher
	topicARN  string
	logger    logger.Logger
}

func NewSNSEscalator(publisher Publisher, topicARN string, log logger.Logger) *SNSEscalator {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &SNSEscalator{
		publisher: publisher,
		topicARN:  topicARN,
		logger:    log.WithFields(map[string]interface{}{"component": "escalation"}),
	}
}

func (s *SNSEscalator) Escalate(ctx context.Context, e orchestrator.Escalation) error {
	id, err := s.publisher.PublishJSON(ctx, s.topicARN, subject, e, map[string]string{
		"category": string(e.Category),
		"region":   e.Region,
		"reason":   e.Reason,
	})
	if err != nil {
		return apperrors.NewEscalationFailedError(err).
			WithMetadata("requestId", e.RequestID)
	}
	s.logger.Info("Escalated query to helpline", map[string]interface{}{
		"requestId": e.RequestID,
		"sessionId": e.SessionID,
		"messageId": id,
	})
	return nil
}

// Noop drops escalations. Used when escalation is disabled.
type Noop struct{}

func (Noop) Escalate(context.Context, orchestrator.Escalation) error { return nil }
