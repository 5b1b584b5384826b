//go:build integration

package events

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/ppiankov/triggerscope/internal/model"
)

func TestIntegration_BatchEventDelivered(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set, skipping integration test")
	}

	client, err := Connect(context.Background(), url, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer client.Close()

	received := make(chan BatchEvent, 1)
	sub, err := client.conn.Subscribe("triggerscope.test.>", func(msg *nats.Msg) {
		var ev BatchEvent
		if err := json.Unmarshal(msg.Data, &ev); err == nil {
			received <- ev
		}
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	NewNotifier(client, "triggerscope.test", "run-it", nil).
		BatchCompleted([]model.ConsolidatedTrigger{{Category: model.CategoryFear, Title: "x"}}, 0, 1)

	select {
	case ev := <-received:
		if ev.RunID != "run-it" || ev.Triggers != 1 {
			t.Errorf("unexpected event %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}
