package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/mattiagosetto9/ha-voice-manager/internal/profile"
)

// WriteCommitMetric records one commit pipeline run.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - profileID: The committed profile
//   - entities: Total entities in the catalog at commit time
//   - exposed: Entities exposed after resolution
//   - duration: Wall time of the full pipeline
//   - success: Whether the commit landed
func (c *Client) WriteCommitMetric(profileID profile.ID, entities, exposed int, duration time.Duration, success bool) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"commits",
		map[string]string{
			"profile": string(profileID),
		},
		map[string]interface{}{
			"entities":    entities,
			"exposed":     exposed,
			"duration_ms": duration.Milliseconds(),
			"success":     success,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteSafetyViolation records a blocked artifact write: a path traversal
// attempt or an unsafe construct in generated content.
func (c *Client) WriteSafetyViolation(profileID profile.ID, kind string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"safety_violations",
		map[string]string{
			"profile": string(profileID),
			"kind":    kind,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
