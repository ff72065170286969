package eventbus

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/friendsincode/vanir_energy/internal/events"
)

type fakeRemote struct {
	mu   sync.Mutex
	subs []string
	data [][]byte
}

func (f *fakeRemote) Publish(subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, subject)
	f.data = append(f.data, append([]byte(nil), data...))
	return nil
}

func (f *fakeRemote) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func newTestBridge(remote remoteConn) *NATSBus {
	bus := &NATSBus{
		logger: zerolog.Nop(),
		local:  events.NewBus(),
		remote: remote,
		nodeID: "node-a",
	}
	bus.startForwarding()
	return bus
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestBridgeForwardsLocalEvents(t *testing.T) {
	remote := &fakeRemote{}
	bridge := newTestBridge(remote)
	defer bridge.Close()

	bridge.local.Publish(events.EventTimelineApplied, events.Payload{"session_id": "s1"})

	waitFor(t, func() bool { return remote.count() == 1 }, "event never reached NATS")

	remote.mu.Lock()
	subject, data := remote.subs[0], remote.data[0]
	remote.mu.Unlock()

	if subject != "vanir.events.timeline.applied" {
		t.Fatalf("unexpected subject %q", subject)
	}
	var envelope natsMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.EventType != events.EventTimelineApplied {
		t.Fatalf("unexpected event type %q", envelope.EventType)
	}
	if envelope.NodeID != "node-a" {
		t.Fatalf("unexpected node id %q", envelope.NodeID)
	}
	if envelope.Payload["session_id"] != "s1" {
		t.Fatalf("unexpected payload %v", envelope.Payload)
	}
	if envelope.MessageID == "" {
		t.Fatal("expected a message id")
	}
}

func TestBridgeInjectsRemoteEventsWithoutEcho(t *testing.T) {
	remote := &fakeRemote{}
	bridge := newTestBridge(remote)

	sub := bridge.local.Subscribe(events.EventScheduleUpdate)

	data, err := json.Marshal(natsMessage{
		EventType: events.EventScheduleUpdate,
		Payload:   events.Payload{"device_id": "d1"},
		NodeID:    "node-b",
		MessageID: "m1",
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	bridge.handleRemote(&nats.Msg{Subject: "vanir.events.schedule.update", Data: data})

	select {
	case payload := <-sub:
		if payload["device_id"] != "d1" {
			t.Fatalf("unexpected payload %v", payload)
		}
		if payload[originKey] != "node-b" {
			t.Fatalf("expected origin marker, got %v", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("remote event never reached the local bus")
	}

	// Close drains the forwarders, so any echo would already be recorded.
	bridge.local.Unsubscribe(events.EventScheduleUpdate, sub)
	_ = bridge.Close()
	if remote.count() != 0 {
		t.Fatalf("remote event was echoed back to NATS: %v", remote.subs)
	}
}

func TestBridgeDropsItsOwnEvents(t *testing.T) {
	remote := &fakeRemote{}
	bridge := newTestBridge(remote)
	defer bridge.Close()

	sub := bridge.local.Subscribe(events.EventTimelineReset)
	defer bridge.local.Unsubscribe(events.EventTimelineReset, sub)

	data, err := json.Marshal(natsMessage{
		EventType: events.EventTimelineReset,
		Payload:   events.Payload{"session_id": "loop"},
		NodeID:    "node-a",
		MessageID: "m2",
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	bridge.handleRemote(&nats.Msg{Subject: "vanir.events.timeline.reset", Data: data})

	select {
	case payload := <-sub:
		t.Fatalf("own event looped back into the local bus: %v", payload)
	case <-time.After(50 * time.Millisecond):
	}
}
