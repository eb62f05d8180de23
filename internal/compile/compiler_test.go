package compile

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/mattiagosetto9/ha-voice-manager/internal/catalog"
	"github.com/mattiagosetto9/ha-voice-manager/internal/profile"
	"github.com/mattiagosetto9/ha-voice-manager/internal/resolve"
	"github.com/mattiagosetto9/ha-voice-manager/internal/safety"
)

func testResolution(t *testing.T, rs *profile.RuleSet) resolve.Result {
	t.Helper()
	return resolve.Resolve(rs, []catalog.Entity{
		{EntityID: "automation.morning", Domain: "automation", FriendlyName: "Morning"},
		{EntityID: "camera.front", Domain: "camera", FriendlyName: "Front Camera"},
		{EntityID: "light.ceiling", Domain: "light", FriendlyName: "Ceiling Light"},
		{EntityID: "light.lamp", Domain: "light", FriendlyName: "Lamp"},
	})
}

func enabledRuleSet(id profile.ID) *profile.RuleSet {
	rs := profile.NewRuleSet(id)
	rs.Settings.Enabled = true
	rs.Settings.ProjectID = "my-project"
	return rs
}

func TestGoogleCompiler(t *testing.T) {
	rs := enabledRuleSet(profile.Google)
	rs.Settings.ReportState = true
	rs.Settings.SecureDevicesPIN = "0042"
	rs.SetDomainRule("camera", profile.DecisionSuppress)
	rs.SetOverride(profile.EntityOverride{EntityID: "light.lamp", Prefix: "Living Room "})

	c := NewGoogleCompiler("packages/generated_google_assistant.yaml")
	artifact, err := c.Compile(rs, testResolution(t, rs))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if artifact.Path != "packages/generated_google_assistant.yaml" || artifact.LiveSync {
		t.Errorf("artifact = %+v, want file-backed google path", artifact)
	}

	var parsed struct {
		GoogleAssistant struct {
			ProjectID        string `yaml:"project_id"`
			ReportState      bool   `yaml:"report_state"`
			SecureDevicesPIN string `yaml:"secure_devices_pin"`
			ExposeByDefault  bool   `yaml:"expose_by_default"`
			EntityConfig     map[string]struct {
				Expose bool   `yaml:"expose"`
				Name   string `yaml:"name"`
			} `yaml:"entity_config"`
		} `yaml:"google_assistant"`
	}
	if err := yaml.Unmarshal(artifact.Content, &parsed); err != nil {
		t.Fatalf("artifact is not valid YAML: %v", err)
	}

	ga := parsed.GoogleAssistant
	if ga.ProjectID != "my-project" || !ga.ReportState || ga.SecureDevicesPIN != "0042" {
		t.Errorf("settings block = %+v", ga)
	}
	if ga.ExposeByDefault {
		t.Error("expose_by_default must be pinned to false")
	}
	if _, ok := ga.EntityConfig["camera.front"]; ok {
		t.Error("suppressed entity leaked into entity_config")
	}
	if e := ga.EntityConfig["light.lamp"]; !e.Expose || e.Name != "Living Room Lamp" {
		t.Errorf("light.lamp entry = %+v", e)
	}
	if e := ga.EntityConfig["light.ceiling"]; !e.Expose || e.Name != "" {
		t.Errorf("unaliased entity must expose without a name, got %+v", e)
	}

	// Numeric-looking PIN must survive as a string.
	if !bytes.Contains(artifact.Content, []byte(`secure_devices_pin: "0042"`)) {
		t.Error("secure_devices_pin lost its quoting")
	}
}

func TestGoogleCompiler_SettingsGate(t *testing.T) {
	rs := profile.NewRuleSet(profile.Google)
	rs.Settings.Enabled = true

	c := NewGoogleCompiler("packages/out.yaml")
	if _, err := c.Compile(rs, testResolution(t, rs)); !errors.Is(err, ErrSettingsIncomplete) {
		t.Errorf("enabled without project id = %v, want ErrSettingsIncomplete", err)
	}
}

func TestCompile_DisabledProfileRendersEmptyPackage(t *testing.T) {
	rs := profile.NewRuleSet(profile.Google)

	artifact, err := NewGoogleCompiler("packages/out.yaml").Compile(rs, testResolution(t, rs))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	var parsed map[string]any
	if err := yaml.Unmarshal(artifact.Content, &parsed); err != nil {
		t.Fatalf("disabled artifact is not valid YAML: %v", err)
	}
	if len(parsed) != 0 {
		t.Errorf("disabled artifact should be comment-only, got %v", parsed)
	}
}

func TestAlexaCompiler(t *testing.T) {
	rs := enabledRuleSet(profile.Alexa)
	rs.FilterMode = profile.FilterInclude
	rs.SetDomainRule("light", profile.DecisionExpose)
	rs.SetOverride(profile.EntityOverride{EntityID: "light.lamp", Alias: "Reading Lamp"})

	artifact, err := NewAlexaCompiler("packages/generated_alexa.yaml").Compile(rs, testResolution(t, rs))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	var parsed struct {
		Alexa struct {
			SmartHome struct {
				Filter struct {
					IncludeEntities []string `yaml:"include_entities"`
				} `yaml:"filter"`
				EntityConfig map[string]struct {
					Name string `yaml:"name"`
				} `yaml:"entity_config"`
			} `yaml:"smart_home"`
		} `yaml:"alexa"`
	}
	if err := yaml.Unmarshal(artifact.Content, &parsed); err != nil {
		t.Fatalf("artifact is not valid YAML: %v", err)
	}

	sh := parsed.Alexa.SmartHome
	want := []string{"light.ceiling", "light.lamp"}
	if len(sh.Filter.IncludeEntities) != 2 ||
		sh.Filter.IncludeEntities[0] != want[0] || sh.Filter.IncludeEntities[1] != want[1] {
		t.Errorf("include_entities = %v, want %v", sh.Filter.IncludeEntities, want)
	}
	if e := sh.EntityConfig["light.lamp"]; e.Name != "Reading Lamp" {
		t.Errorf("light.lamp name = %q, want alias", e.Name)
	}
	if _, ok := sh.EntityConfig["light.ceiling"]; ok {
		t.Error("unaliased entity should have no entity_config entry")
	}
}

func TestHomeKitCompiler(t *testing.T) {
	rs := enabledRuleSet(profile.HomeKit)
	rs.SetOverride(profile.EntityOverride{EntityID: "light.lamp", Alias: "Reading Lamp"})

	artifact, err := NewHomeKitCompiler().Compile(rs, testResolution(t, rs))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if !artifact.LiveSync || artifact.Path != "" {
		t.Errorf("homekit artifact must be live-sync with no path, got %+v", artifact)
	}

	content := string(artifact.Content)
	// automation is not a supported accessory domain and must be dropped
	// even though the exclude-mode default exposes it.
	if strings.Contains(content, "automation.morning") {
		t.Error("unsupported domain leaked into the homekit payload")
	}
	for _, want := range []string{"light.lamp", "light.ceiling", "camera.front", "Reading Lamp"} {
		if !strings.Contains(content, want) {
			t.Errorf("payload missing %q", want)
		}
	}
}

func TestCompile_Deterministic(t *testing.T) {
	for id, c := range Compilers("packages/g.yaml", "packages/a.yaml") {
		rs := enabledRuleSet(id)
		rs.SetOverride(profile.EntityOverride{EntityID: "light.lamp", Alias: "Lamp A"})
		rs.SetDomainRule("camera", profile.DecisionSuppress)

		first, err := c.Compile(rs, testResolution(t, rs))
		if err != nil {
			t.Fatalf("%s: Compile() error = %v", id, err)
		}
		second, err := c.Compile(rs, testResolution(t, rs))
		if err != nil {
			t.Fatalf("%s: second Compile() error = %v", id, err)
		}
		if !bytes.Equal(first.Content, second.Content) {
			t.Errorf("%s: repeat compilation is not byte-identical", id)
		}
	}
}

func TestCompile_OutputPassesSafetyScan(t *testing.T) {
	for id, c := range Compilers("packages/g.yaml", "packages/a.yaml") {
		rs := enabledRuleSet(id)
		rs.SetOverride(profile.EntityOverride{EntityID: "light.lamp", Alias: "Lamp"})

		artifact, err := c.Compile(rs, testResolution(t, rs))
		if err != nil {
			t.Fatalf("%s: Compile() error = %v", id, err)
		}
		if err := safety.ValidateContent(artifact.Content); err != nil {
			t.Errorf("%s: generated artifact failed the safety scan: %v", id, err)
		}
	}
}

func TestHomeKitSupportedDomains_Sorted(t *testing.T) {
	domains := HomeKitSupportedDomains()
	if len(domains) == 0 {
		t.Fatal("no supported domains")
	}
	for i := 1; i < len(domains); i++ {
		if domains[i-1] >= domains[i] {
			t.Errorf("domains not sorted: %q before %q", domains[i-1], domains[i])
		}
	}
	if !homekitSupportedDomains["light"] || homekitSupportedDomains["automation"] {
		t.Error("unexpected supported-domain membership")
	}
}
