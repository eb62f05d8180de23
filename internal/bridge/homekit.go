package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattiagosetto9/ha-voice-manager/internal/infrastructure/mqtt"
)

// ErrBridgeUnavailable is returned when a live-sync publish cannot reach
// the HomeKit bridge.
var ErrBridgeUnavailable = errors.New("bridge: homekit bridge unavailable")

// Transport is the MQTT surface the bridge publisher needs. Satisfied by
// *mqtt.Client.
type Transport interface {
	PublishRetained(topic string, payload []byte) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
	Topics() mqtt.Topics
}

// Logger defines the logging interface used by the publisher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// status mirrors the availability message the HomeKit bridge publishes on
// its status topic.
type status struct {
	Status    string    `json:"status"`
	AppliedAt time.Time `json:"applied_at,omitempty"`
}

// HomeKitPublisher delivers desired-state payloads to the HomeKit bridge.
//
// Payloads go out retained on the desired topic, so the bridge converges
// on the last committed state even if it was offline during the commit.
// The publisher also watches the bridge's own status topic; LastSeenOnline
// feeds the panel's bridge indicator.
type HomeKitPublisher struct {
	transport Transport
	logger    Logger

	mu         sync.RWMutex
	online     bool
	lastOnline time.Time
}

// NewHomeKitPublisher creates a publisher and subscribes to the bridge's
// status topic for availability tracking.
func NewHomeKitPublisher(transport Transport, logger Logger) (*HomeKitPublisher, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	p := &HomeKitPublisher{transport: transport, logger: logger}

	topic := transport.Topics().HomeKitBridgeStatus()
	if err := transport.Subscribe(topic, 1, p.handleStatus); err != nil {
		return nil, fmt.Errorf("subscribing to bridge status: %w", err)
	}
	return p, nil
}

// handleStatus tracks bridge availability from its status messages.
func (p *HomeKitPublisher) handleStatus(topic string, payload []byte) error {
	var s status
	if err := json.Unmarshal(payload, &s); err != nil {
		return fmt.Errorf("decoding bridge status: %w", err)
	}

	p.mu.Lock()
	p.online = s.Status == "online"
	if p.online {
		p.lastOnline = time.Now().UTC()
	}
	p.mu.Unlock()

	p.logger.Debug("homekit bridge status", "status", s.Status)
	return nil
}

// Online reports whether the bridge currently advertises itself as up.
func (p *HomeKitPublisher) Online() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.online
}

// LastSeenOnline returns when the bridge last reported online, zero if
// never.
func (p *HomeKitPublisher) LastSeenOnline() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastOnline
}

// PublishDesired sends a desired-state payload to the bridge.
//
// The broker connection is the availability gate: the bridge itself may
// lag behind, but a retained publish to a live broker is durable, so only
// a dead broker fails the commit.
func (p *HomeKitPublisher) PublishDesired(ctx context.Context, payload []byte) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("publishing desired state: %w", ctx.Err())
	default:
	}

	if !p.transport.IsConnected() {
		return fmt.Errorf("%w: broker not connected", ErrBridgeUnavailable)
	}

	topic := p.transport.Topics().HomeKitDesired()
	if err := p.transport.PublishRetained(topic, payload); err != nil {
		return fmt.Errorf("%w: %w", ErrBridgeUnavailable, err)
	}

	p.logger.Info("homekit desired state published", "bytes", len(payload))
	return nil
}
