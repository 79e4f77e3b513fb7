// Package ingest consumes image-analysis results from the pipeline queue
// and turns them into registered items. The queue decouples the vision
// service from persistence: an analyzer outage only delays registration, it
// never loses captures.
package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/jongsul/lostfound/internal/service"
	"github.com/jongsul/lostfound/internal/store"
)

// Client is the subset of the SQS API the consumer uses.
type Client interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Message is the payload the analyzer pipeline publishes per capture.
type Message struct {
	FileURL    string `json:"file_url"`
	DeviceName string `json:"device_name"`
	Location   string `json:"location"`
	LockerID   *int64 `json:"locker_id"`
	Analysis   struct {
		Category    string   `json:"category"`
		Description string   `json:"description"`
		Confidence  *float64 `json:"confidence"`
	} `json:"analysis_result"`
}

// Consumer polls the queue and registers items through the lifecycle service.
type Consumer struct {
	client   Client
	queueURL string
	svc      *service.Service
}

// NewConsumer creates a queue consumer.
func NewConsumer(client Client, queueURL string, svc *service.Service) *Consumer {
	return &Consumer{client: client, queueURL: queueURL, svc: svc}
}

// NewConsumerFromConfig creates a consumer backed by a real SQS client.
func NewConsumerFromConfig(cfg aws.Config, queueURL string, svc *service.Service) *Consumer {
	return NewConsumer(sqs.NewFromConfig(cfg), queueURL, svc)
}

// Run long-polls the queue until the context is cancelled. Receive errors
// back off briefly instead of spinning.
func (c *Consumer) Run(ctx context.Context) {
	slog.Info("ingest consumer started", "queue", c.queueURL)
	for {
		if err := c.poll(ctx); err != nil {
			if ctx.Err() != nil {
				slog.Info("ingest consumer stopped")
				return
			}
			slog.Error("ingest poll failed", "error", err)
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				slog.Info("ingest consumer stopped")
				return
			}
		}
	}
}

func (c *Consumer) poll(ctx context.Context) error {
	out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: 10,
		WaitTimeSeconds:     20,
	})
	if err != nil {
		return err
	}

	for _, msg := range out.Messages {
		if err := c.handle(ctx, aws.ToString(msg.Body)); err != nil {
			// Leave the message for redelivery; the visibility timeout
			// retries transient DB failures, the DLQ catches poison ones.
			slog.Error("ingest message failed", "error", err)
			continue
		}
		_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      aws.String(c.queueURL),
			ReceiptHandle: msg.ReceiptHandle,
		})
		if err != nil {
			slog.Warn("deleting ingest message failed", "error", err)
		}
	}
	return nil
}

func (c *Consumer) handle(ctx context.Context, body string) error {
	var msg Message
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return err
	}

	item, err := c.svc.RegisterItem(ctx, store.CreateItemParams{
		PhotoURL:    msg.FileURL,
		DeviceName:  msg.DeviceName,
		Location:    msg.Location,
		LockerID:    msg.LockerID,
		Description: msg.Analysis.Description,
	}, msg.Analysis.Category, msg.Analysis.Confidence)
	if err != nil {
		return err
	}

	slog.Info("ingested item", "item", item.ID, "category", msg.Analysis.Category,
		"device", msg.DeviceName)
	return nil
}
