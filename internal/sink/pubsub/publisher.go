// Package pubsub mirrors result records to a Google Cloud Pub/Sub topic.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/JakeFAU/hotel-harvester/internal/harvest"
)

// Message attribute keys.
const (
	AttrDestination = "destination"
	AttrRunID       = "run_id"
)

// Publisher publishes every appended record as one Pub/Sub message.
type Publisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	runID  string
}

// Dial connects to Pub/Sub and returns a Publisher for topicID.
func Dial(ctx context.Context, projectID, topicID, runID string) (*Publisher, error) {
	if projectID == "" || topicID == "" {
		return nil, fmt.Errorf("pubsub project id and topic are required")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	p := New(client.Topic(topicID), runID)
	p.client = client
	return p, nil
}

// New wraps an existing topic handle.
func New(topic *pubsub.Topic, runID string) *Publisher {
	return &Publisher{topic: topic, runID: runID}
}

// Append marshals record to JSON and publishes it, waiting for the server ack.
func (p *Publisher) Append(ctx context.Context, destination string, record any) error {
	if p.topic == nil {
		return fmt.Errorf("pubsub topic is not configured: %w", harvest.ErrSink)
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w: %w", harvest.ErrSink, err)
	}
	msg := &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			AttrDestination: destination,
			AttrRunID:       p.runID,
		},
	}
	if _, err := p.topic.Publish(ctx, msg).Get(ctx); err != nil {
		return fmt.Errorf("publish message: %w: %w", harvest.ErrSink, err)
	}
	return nil
}

// Close flushes pending messages and releases the client.
func (p *Publisher) Close() error {
	if p.topic != nil {
		p.topic.Stop()
	}
	if p.client != nil {
		if err := p.client.Close(); err != nil {
			return fmt.Errorf("close pubsub client: %w", err)
		}
	}
	return nil
}
