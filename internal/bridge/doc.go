// Package bridge delivers committed HomeKit exposure to the bridge
// process over MQTT.
//
// HomeKit has no generated file: commits publish the full desired state
// retained, and the bridge reconciles whenever it is up. Availability is
// tracked from the bridge's status topic so the panel can show whether
// live sync is actually landing.
package bridge
