// Package locker publishes actuator commands to the physical locker network
// over the AWS IoT data plane. Commands are fire-and-forget: the database
// state is authoritative and a lost command only means someone walks over
// and opens the door with the master key.
package locker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iotdataplane"
	"github.com/aws/aws-sdk-go-v2/service/iotdataplane/types"
)

// PublishTimeout bounds a single publish so a slow broker cannot hold up a
// request that has already committed.
const PublishTimeout = 3 * time.Second

// Client is the subset of the IoT data-plane API the dispatcher uses.
type Client interface {
	Publish(ctx context.Context, params *iotdataplane.PublishInput, optFns ...func(*iotdataplane.Options)) (*iotdataplane.PublishOutput, error)
}

// Dispatcher publishes locker commands on per-device topics under a
// configurable prefix (default "locker").
type Dispatcher struct {
	client      Client
	topicPrefix string
}

// New creates a dispatcher. An empty topicPrefix defaults to "locker".
func New(client Client, topicPrefix string) *Dispatcher {
	if topicPrefix == "" {
		topicPrefix = "locker"
	}
	return &Dispatcher{client: client, topicPrefix: topicPrefix}
}

// NewFromConfig creates a dispatcher backed by a real IoT data-plane client.
func NewFromConfig(cfg aws.Config, topicPrefix string) *Dispatcher {
	return New(iotdataplane.NewFromConfig(cfg), topicPrefix)
}

type command struct {
	Action   string `json:"action"`
	LockerID int64  `json:"locker_id"`
	Code     string `json:"code,omitempty"`
}

// Open commands the device to unlock the given locker.
func (d *Dispatcher) Open(ctx context.Context, deviceName string, lockerID int64) error {
	return d.publish(ctx, deviceName, command{Action: "OPEN", LockerID: lockerID})
}

// Close commands the device to re-lock the given locker. The consumed
// pickup code rides along so the controller can log which handover it ends.
func (d *Dispatcher) Close(ctx context.Context, deviceName string, lockerID int64, code string) error {
	return d.publish(ctx, deviceName, command{Action: "CLOSE", LockerID: lockerID, Code: code})
}

func (d *Dispatcher) publish(ctx context.Context, deviceName string, cmd command) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encoding locker command: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, PublishTimeout)
	defer cancel()

	topic := fmt.Sprintf("%s/control/%s", d.topicPrefix, deviceName)
	_, err = d.client.Publish(ctx, &iotdataplane.PublishInput{
		Topic:                  aws.String(topic),
		Qos:                    1,
		Payload:                payload,
		PayloadFormatIndicator: types.PayloadFormatIndicatorUtf8Data,
	})
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}
