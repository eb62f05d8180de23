package mqtt

import "fmt"

// DefaultTopicPrefix is the base of the voiceman topic hierarchy when the
// bridge config does not override it.
const DefaultTopicPrefix = "voiceman"

// Topics builds voiceman MQTT topics. Using the builders keeps topic
// naming consistent between the manager and the HomeKit bridge.
//
//	topics := mqtt.NewTopics("")
//	topics.HomeKitDesired() // "voiceman/homekit/desired"
type Topics struct {
	prefix string
}

// NewTopics creates a topic builder with the given prefix. An empty prefix
// selects DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// SystemStatus returns the manager's own status topic. The LWT and
// graceful shutdown messages land here.
//
// Example: voiceman/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.prefix)
}

// HomeKitDesired returns the topic carrying the desired HomeKit exposure.
// Published retained so a restarting bridge picks up the last commit.
//
// Example: voiceman/homekit/desired
func (t Topics) HomeKitDesired() string {
	return fmt.Sprintf("%s/homekit/desired", t.prefix)
}

// HomeKitBridgeStatus returns the topic the HomeKit bridge reports its own
// availability and applied state on.
//
// Example: voiceman/homekit/status
func (t Topics) HomeKitBridgeStatus() string {
	return fmt.Sprintf("%s/homekit/status", t.prefix)
}
