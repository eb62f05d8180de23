package compile

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/mattiagosetto9/ha-voice-manager/internal/profile"
	"github.com/mattiagosetto9/ha-voice-manager/internal/resolve"
)

// ErrSettingsIncomplete is returned when a profile is enabled but lacks a
// required assistant setting, such as the Google project ID.
var ErrSettingsIncomplete = errors.New("compile: assistant settings incomplete")

// header is written at the top of every generated file so operators do not
// hand-edit output that the next commit will overwrite.
const header = "Managed by ha-voice-manager. Do not edit: this file is regenerated on every commit."

// Artifact is one compiled output for a backend. File-backed artifacts
// carry a path relative to the platform config root; live-sync artifacts
// carry a payload for the bridge instead.
type Artifact struct {
	Backend  profile.ID
	Path     string
	Content  []byte
	LiveSync bool
}

// Compiler translates a resolved exposure set into one backend's artifact.
// Compilation is pure: same rule set and resolution in, byte-identical
// artifact out.
type Compiler interface {
	Backend() profile.ID
	Compile(rs *profile.RuleSet, result resolve.Result) (*Artifact, error)
}

// Compilers returns one compiler per backend, keyed by profile.
func Compilers(googlePath, alexaPath string) map[profile.ID]Compiler {
	return map[profile.ID]Compiler{
		profile.Google:  NewGoogleCompiler(googlePath),
		profile.Alexa:   NewAlexaCompiler(alexaPath),
		profile.HomeKit: NewHomeKitCompiler(),
	}
}

// yaml.Node constructors. Mapping nodes keep insertion order when
// marshalled, which is what makes the output deterministic; plain
// map[string]any marshalling is not.

func strNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func boolNode(v bool) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: fmt.Sprintf("%t", v)}
}

func quotedNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v, Style: yaml.DoubleQuotedStyle}
}

func mapNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

func seqNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
}

func addPair(m *yaml.Node, key string, value *yaml.Node) {
	m.Content = append(m.Content, strNode(key), value)
}

// renderDocument marshals a root mapping under the managed-file header.
func renderDocument(root *yaml.Node) ([]byte, error) {
	root.HeadComment = header
	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshalling artifact: %w", err)
	}
	return out, nil
}

// renderDisabled produces the artifact body for a disabled profile: the
// header alone, so the platform loads an empty package and the previous
// exposure disappears.
func renderDisabled() []byte {
	return []byte("# " + header + "\n# Integration disabled in the voice manager.\n")
}
