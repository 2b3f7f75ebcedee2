package mq

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

func TestMessage(t *testing.T) {
	at := time.Date(2026, 11, 1, 8, 0, 0, 0, time.FixedZone("TPE", 8*3600))
	msg, err := message(map[string]any{"bookingId": "b-1"}, at)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if msg.ContentType != "application/json" || msg.DeliveryMode != amqp.Persistent {
		t.Fatalf("unexpected headers: %+v", msg)
	}
	if msg.MessageId == "" || msg.Timestamp.Location() != time.UTC {
		t.Fatalf("id=%q ts=%v", msg.MessageId, msg.Timestamp)
	}
	var body map[string]string
	if err := json.Unmarshal(msg.Body, &body); err != nil || body["bookingId"] != "b-1" {
		t.Fatalf("body=%s err=%v", msg.Body, err)
	}

	if _, err := message(make(chan int), at); err == nil {
		t.Fatalf("expected marshal error")
	}
}

func TestNop(t *testing.T) {
	if err := (Nop{}).PublishJSON(context.Background(), "reservation.reserved", struct{}{}); err != nil {
		t.Fatalf("nop: %v", err)
	}
}
