package influxdb

import (
	"errors"
	"testing"
	"time"

	"github.com/mattiagosetto9/ha-voice-manager/internal/infrastructure/config"
	"github.com/mattiagosetto9/ha-voice-manager/internal/profile"
)

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect(disabled) = %v, want ErrDisabled", err)
	}
}

func TestWrites_NoOpWhenDisconnected(t *testing.T) {
	// A zero client is never connected; every write helper must return
	// without touching the nil write API.
	c := &Client{}

	c.WriteCommitMetric(profile.Google, 10, 5, time.Second, true)
	c.WriteSafetyViolation(profile.Alexa, "path_traversal")
	c.WritePoint("custom", map[string]string{"a": "b"}, map[string]interface{}{"v": 1})

	if c.IsConnected() {
		t.Error("zero client must report disconnected")
	}
}

func TestClose_NilClient(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on zero client = %v", err)
	}
	c.Flush()
}
