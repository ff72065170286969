/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus bridges the in-process event bus to NATS so other
// dashboard instances and consumers see timeline events.
package eventbus

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/friendsincode/vanir_energy/internal/events"
)

const subjectPrefix = "vanir.events."

// originKey marks payloads injected from another node so the forwarders do
// not echo them back onto NATS.
const originKey = "origin_node"

// forwardedEvents lists the local event types mirrored onto NATS subjects.
var forwardedEvents = []events.EventType{
	events.EventTimelineApplied,
	events.EventTimelineRejected,
	events.EventApplyFailed,
	events.EventTimelineReset,
	events.EventSessionCreated,
	events.EventFetchFailed,
	events.EventScheduleUpdate,
}

// remoteConn is the subset of *nats.Conn the outbound path needs.
type remoteConn interface {
	Publish(subject string, data []byte) error
}

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL           string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		MaxReconnects: -1, // Unlimited
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// NATSBus mirrors local bus publications onto NATS subjects and re-publishes
// remote events into the local bus. It subscribes to the local bus itself, so
// existing publishers need no wiring changes. Falls back to local-only
// operation when NATS is unreachable.
type NATSBus struct {
	logger zerolog.Logger
	local  *events.Bus
	conn   *nats.Conn
	remote remoteConn
	sub    *nats.Subscription
	nodeID string

	localSubs map[events.EventType]events.Subscriber
	wg        sync.WaitGroup
}

// natsMessage is the wire envelope for one event.
type natsMessage struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"`
}

// NewNATSBus connects the local bus to a NATS server. A connection failure is
// non-fatal: events stay in-process and a warning is logged.
func NewNATSBus(cfg NATSConfig, local *events.Bus, logger zerolog.Logger) (*NATSBus, error) {
	bus := &NATSBus{
		logger: logger.With().Str("component", "eventbus").Logger(),
		local:  local,
		nodeID: generateNodeID(),
	}

	conn, err := nats.Connect(cfg.URL,
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			bus.logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			bus.logger.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		bus.logger.Warn().Err(err).Str("url", cfg.URL).Msg("NATS unavailable, events stay in-process")
		return bus, nil
	}
	bus.conn = conn
	bus.remote = conn

	sub, err := conn.Subscribe(subjectPrefix+">", bus.handleRemote)
	if err != nil {
		bus.logger.Warn().Err(err).Msg("NATS subscribe failed, events stay in-process")
	} else {
		bus.sub = sub
	}

	bus.startForwarding()

	bus.logger.Info().Str("url", cfg.URL).Str("node_id", bus.nodeID).Msg("NATS event bridge connected")
	return bus, nil
}

// startForwarding subscribes to every forwarded event type on the local bus
// and mirrors publications onto the matching NATS subject.
func (nb *NATSBus) startForwarding() {
	nb.localSubs = make(map[events.EventType]events.Subscriber, len(forwardedEvents))
	for _, eventType := range forwardedEvents {
		ch := nb.local.Subscribe(eventType)
		nb.localSubs[eventType] = ch
		nb.wg.Add(1)
		go nb.forward(eventType, ch)
	}
}

// forward drains one local subscription until Close unsubscribes it.
func (nb *NATSBus) forward(eventType events.EventType, ch events.Subscriber) {
	defer nb.wg.Done()
	for payload := range ch {
		// Skip events this bridge injected from another node.
		if origin, ok := payload[originKey].(string); ok && origin != "" {
			continue
		}
		nb.publishRemote(eventType, payload)
	}
}

func (nb *NATSBus) publishRemote(eventType events.EventType, payload events.Payload) {
	data, err := json.Marshal(natsMessage{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now(),
		NodeID:    nb.nodeID,
		MessageID: uuid.NewString(),
	})
	if err != nil {
		nb.logger.Warn().Err(err).Msg("failed to marshal event for NATS")
		return
	}

	if err := nb.remote.Publish(subjectPrefix+string(eventType), data); err != nil {
		nb.logger.Warn().Err(err).Str("event", string(eventType)).Msg("NATS publish failed")
	}
}

// handleRemote re-publishes events from other nodes into the local bus. The
// payload carries the sender's node ID so the forwarders leave it alone.
func (nb *NATSBus) handleRemote(msg *nats.Msg) {
	var envelope natsMessage
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		nb.logger.Debug().Err(err).Msg("dropping malformed NATS event")
		return
	}
	if envelope.NodeID == nb.nodeID {
		return
	}
	if envelope.Payload == nil {
		envelope.Payload = events.Payload{}
	}
	envelope.Payload[originKey] = envelope.NodeID
	nb.local.Publish(envelope.EventType, envelope.Payload)
}

// Close stops the forwarders, drains the subscription, and closes the NATS
// connection.
func (nb *NATSBus) Close() error {
	for eventType, ch := range nb.localSubs {
		nb.local.Unsubscribe(eventType, ch)
	}
	nb.wg.Wait()
	nb.localSubs = nil

	if nb.sub != nil {
		_ = nb.sub.Unsubscribe()
	}
	if nb.conn != nil {
		nb.conn.Close()
	}
	return nil
}

func generateNodeID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "vanir"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}
