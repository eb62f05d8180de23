package compile

import (
	"fmt"

	"github.com/mattiagosetto9/ha-voice-manager/internal/profile"
	"github.com/mattiagosetto9/ha-voice-manager/internal/resolve"
)

// GoogleCompiler renders the google_assistant package file. Exposure is
// compiled explicitly: expose_by_default is pinned to false and every
// exposed entity gets its own entity_config entry, so the artifact states
// the full decision set rather than relying on platform defaults.
type GoogleCompiler struct {
	path string
}

// NewGoogleCompiler creates a compiler writing to the given path, relative
// to the platform config root.
func NewGoogleCompiler(path string) *GoogleCompiler {
	return &GoogleCompiler{path: path}
}

// Backend returns the profile this compiler serves.
func (c *GoogleCompiler) Backend() profile.ID { return profile.Google }

// Compile renders the artifact for one resolved exposure set.
func (c *GoogleCompiler) Compile(rs *profile.RuleSet, result resolve.Result) (*Artifact, error) {
	if !rs.Settings.Enabled {
		return &Artifact{Backend: profile.Google, Path: c.path, Content: renderDisabled()}, nil
	}
	if rs.Settings.ProjectID == "" {
		return nil, fmt.Errorf("%w: google profile enabled without a project id", ErrSettingsIncomplete)
	}

	ga := mapNode()
	addPair(ga, "project_id", strNode(rs.Settings.ProjectID))
	if rs.Settings.ServiceAccountPath != "" {
		addPair(ga, "service_account", strNode(rs.Settings.ServiceAccountPath))
	}
	addPair(ga, "report_state", boolNode(rs.Settings.ReportState))
	if rs.Settings.SecureDevicesPIN != "" {
		addPair(ga, "secure_devices_pin", quotedNode(rs.Settings.SecureDevicesPIN))
	}
	addPair(ga, "expose_by_default", boolNode(false))

	entityConfig := mapNode()
	for _, e := range result.Exposed() {
		entry := mapNode()
		addPair(entry, "expose", boolNode(true))
		if e.Aliased {
			addPair(entry, "name", strNode(e.VoiceName))
		}
		addPair(entityConfig, e.EntityID, entry)
	}
	addPair(ga, "entity_config", entityConfig)

	root := mapNode()
	addPair(root, "google_assistant", ga)

	content, err := renderDocument(root)
	if err != nil {
		return nil, err
	}
	return &Artifact{Backend: profile.Google, Path: c.path, Content: content}, nil
}
