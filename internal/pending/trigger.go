package pending

import (
	"context"
	"encoding/json"
	"fmt"
)

// Trigger is the reconciliation extension point. It is fired when a
// credential whose jti matches a pending record is submitted; promoting the
// pending mitigation onto the contra-indicator is left to the receiver.
type Trigger interface {
	Fire(ctx context.Context, rec Record, sub Submission) error
}

// NopTrigger drops every notification.
type NopTrigger struct{}

func (NopTrigger) Fire(context.Context, Record, Submission) error { return nil }

// Sender publishes a message body with string attributes.
type Sender interface {
	Send(ctx context.Context, messageBody string, attributes map[string]string) error
}

// QueueTrigger hands matched pending records to a reconciliation queue.
type QueueTrigger struct {
	sender Sender
}

func NewQueueTrigger(sender Sender) *QueueTrigger {
	return &QueueTrigger{sender: sender}
}

// ReconciliationMessage is the queue payload.
type ReconciliationMessage struct {
	VcJti           string        `json:"vcJti"`
	UserID          string        `json:"userId,omitempty"`
	MitigatedCi     string        `json:"mitigatedCi"`
	MitigationCodes []string      `json:"mitigationCodes"`
	RequestMethod   RequestMethod `json:"requestMethod"`
	JourneyID       string        `json:"journeyId,omitempty"`
}

func (q *QueueTrigger) Fire(ctx context.Context, rec Record, sub Submission) error {
	body, err := json.Marshal(ReconciliationMessage{
		VcJti:           rec.VcJti,
		UserID:          rec.UserID,
		MitigatedCi:     rec.MitigatedCi,
		MitigationCodes: rec.MitigationCodes,
		RequestMethod:   rec.RequestMethod,
		JourneyID:       sub.JourneyID,
	})
	if err != nil {
		return fmt.Errorf("marshal reconciliation message: %w", err)
	}
	attrs := map[string]string{
		"vc_jti":     rec.VcJti,
		"journey_id": sub.JourneyID,
	}
	if err := q.sender.Send(ctx, string(body), attrs); err != nil {
		return fmt.Errorf("enqueue reconciliation: %w", err)
	}
	return nil
}
