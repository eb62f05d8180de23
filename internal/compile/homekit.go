package compile

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mattiagosetto9/ha-voice-manager/internal/profile"
	"github.com/mattiagosetto9/ha-voice-manager/internal/resolve"
)

// homekitSupportedDomains are the entity domains the HomeKit bridge can
// represent as accessories. Entities outside these domains are dropped
// from the payload regardless of the resolved decision.
var homekitSupportedDomains = map[string]bool{
	"alarm_control_panel": true,
	"binary_sensor":       true,
	"button":              true,
	"camera":              true,
	"climate":             true,
	"cover":               true,
	"fan":                 true,
	"humidifier":          true,
	"input_boolean":       true,
	"lawn_mower":          true,
	"light":               true,
	"lock":                true,
	"scene":               true,
	"script":              true,
	"sensor":              true,
	"switch":              true,
	"valve":               true,
	"water_heater":        true,
}

// HomeKitSupportedDomains returns the supported domain list, sorted, for
// the management panel.
func HomeKitSupportedDomains() []string {
	out := make([]string, 0, len(homekitSupportedDomains))
	for d := range homekitSupportedDomains {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// HomeKitPayload is the live-sync message published to the bridge. It
// carries the complete desired exposure, not a delta: the bridge
// reconciles against whatever it currently serves.
type HomeKitPayload struct {
	Entities []HomeKitEntity `json:"entities"`
}

// HomeKitEntity is one accessory in the desired state.
type HomeKitEntity struct {
	EntityID string `json:"entity_id"`
	Name     string `json:"name,omitempty"`
}

// HomeKitCompiler renders the live-sync payload. HomeKit has no generated
// file: exposure reaches the bridge over MQTT and takes effect without a
// platform restart.
type HomeKitCompiler struct{}

// NewHomeKitCompiler creates the HomeKit payload compiler.
func NewHomeKitCompiler() *HomeKitCompiler {
	return &HomeKitCompiler{}
}

// Backend returns the profile this compiler serves.
func (c *HomeKitCompiler) Backend() profile.ID { return profile.HomeKit }

// Compile renders the payload for one resolved exposure set.
func (c *HomeKitCompiler) Compile(rs *profile.RuleSet, result resolve.Result) (*Artifact, error) {
	payload := HomeKitPayload{Entities: []HomeKitEntity{}}

	if rs.Settings.Enabled {
		for _, e := range result.Exposed() {
			if !homekitSupportedDomains[e.Domain] {
				continue
			}
			entity := HomeKitEntity{EntityID: e.EntityID}
			if e.Aliased {
				entity.Name = e.VoiceName
			}
			payload.Entities = append(payload.Entities, entity)
		}
	}

	content, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling homekit payload: %w", err)
	}
	return &Artifact{Backend: profile.HomeKit, Content: content, LiveSync: true}, nil
}
