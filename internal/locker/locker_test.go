package locker

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/iotdataplane"
)

// fakeClient records published messages.
type fakeClient struct {
	inputs []*iotdataplane.PublishInput
}

func (f *fakeClient) Publish(_ context.Context, params *iotdataplane.PublishInput, _ ...func(*iotdataplane.Options)) (*iotdataplane.PublishOutput, error) {
	f.inputs = append(f.inputs, params)
	return &iotdataplane.PublishOutput{}, nil
}

func TestOpenPublishesCommand(t *testing.T) {
	client := &fakeClient{}
	d := New(client, "")

	if err := d.Open(context.Background(), "kiosk-1", 3); err != nil {
		t.Fatalf("Open: %v", err)
	}

	if len(client.inputs) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(client.inputs))
	}
	in := client.inputs[0]
	if *in.Topic != "locker/control/kiosk-1" {
		t.Errorf("expected topic 'locker/control/kiosk-1', got %q", *in.Topic)
	}
	if in.Qos != 1 {
		t.Errorf("expected QoS 1, got %d", in.Qos)
	}

	var cmd struct {
		Action   string `json:"action"`
		LockerID int64  `json:"locker_id"`
		Code     string `json:"code"`
	}
	if err := json.Unmarshal(in.Payload, &cmd); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if cmd.Action != "OPEN" || cmd.LockerID != 3 {
		t.Errorf("unexpected command: %+v", cmd)
	}
	if cmd.Code != "" {
		t.Error("open commands carry no code")
	}
}

func TestClosePublishesCode(t *testing.T) {
	client := &fakeClient{}
	d := New(client, "campus")

	if err := d.Close(context.Background(), "kiosk-2", 7, "123456"); err != nil {
		t.Fatalf("Close: %v", err)
	}

	in := client.inputs[0]
	if *in.Topic != "campus/control/kiosk-2" {
		t.Errorf("expected prefixed topic, got %q", *in.Topic)
	}

	var cmd struct {
		Action   string `json:"action"`
		LockerID int64  `json:"locker_id"`
		Code     string `json:"code"`
	}
	json.Unmarshal(in.Payload, &cmd)
	if cmd.Action != "CLOSE" || cmd.LockerID != 7 || cmd.Code != "123456" {
		t.Errorf("unexpected command: %+v", cmd)
	}
}
