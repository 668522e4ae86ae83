package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"listing-service/models"
	awspkg "listing-service/pkg/aws"
)

// Event types published on listing changes.
const (
	EventListingCreated = "listing.created"
	EventListingUpdated = "listing.updated"
	EventListingDeleted = "listing.deleted"
)

// EventPublisher announces listing changes to other systems.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, listing *models.Listing) error
}

// ListingEvent is the JSON message body.
type ListingEvent struct {
	EventType  string          `json:"eventType"`
	OccurredAt time.Time       `json:"occurredAt"`
	Listing    *models.Listing `json:"listing"`
}

// SNSEventPublisher publishes listing events to one SNS topic.
type SNSEventPublisher struct {
	client   awspkg.SNSPublisher
	topicArn string
}

func NewSNSEventPublisher(client awspkg.SNSPublisher, topicArn string) *SNSEventPublisher {
	return &SNSEventPublisher{client: client, topicArn: topicArn}
}

func (p *SNSEventPublisher) Publish(ctx context.Context, eventType string, listing *models.Listing) error {
	body, err := json.Marshal(ListingEvent{
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		Listing:    listing,
	})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return p.client.Publish(ctx, p.topicArn, body, map[string]string{"eventType": eventType})
}
