package compile

import (
	"github.com/mattiagosetto9/ha-voice-manager/internal/profile"
	"github.com/mattiagosetto9/ha-voice-manager/internal/resolve"
)

// AlexaCompiler renders the alexa smart_home package file. Alexa's filter
// takes an explicit entity list, so the resolved exposure set compiles to
// filter.include_entities plus per-entity name overrides.
type AlexaCompiler struct {
	path string
}

// NewAlexaCompiler creates a compiler writing to the given path, relative
// to the platform config root.
func NewAlexaCompiler(path string) *AlexaCompiler {
	return &AlexaCompiler{path: path}
}

// Backend returns the profile this compiler serves.
func (c *AlexaCompiler) Backend() profile.ID { return profile.Alexa }

// Compile renders the artifact for one resolved exposure set.
func (c *AlexaCompiler) Compile(rs *profile.RuleSet, result resolve.Result) (*Artifact, error) {
	if !rs.Settings.Enabled {
		return &Artifact{Backend: profile.Alexa, Path: c.path, Content: renderDisabled()}, nil
	}

	include := seqNode()
	entityConfig := mapNode()
	for _, e := range result.Exposed() {
		include.Content = append(include.Content, strNode(e.EntityID))
		if e.Aliased {
			entry := mapNode()
			addPair(entry, "name", strNode(e.VoiceName))
			addPair(entityConfig, e.EntityID, entry)
		}
	}

	filter := mapNode()
	addPair(filter, "include_entities", include)

	smartHome := mapNode()
	addPair(smartHome, "filter", filter)
	if len(entityConfig.Content) > 0 {
		addPair(smartHome, "entity_config", entityConfig)
	}

	alexa := mapNode()
	addPair(alexa, "smart_home", smartHome)

	root := mapNode()
	addPair(root, "alexa", alexa)

	content, err := renderDocument(root)
	if err != nil {
		return nil, err
	}
	return &Artifact{Backend: profile.Alexa, Path: c.path, Content: content}, nil
}
