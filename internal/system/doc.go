// Package system wraps the platform's supervisory REST endpoints.
//
// The manager never restarts the platform on its own: commits write files
// and return, and the operator decides when to check the configuration
// and restart. This package supplies those two explicit actions with
// bounded timeouts and bearer-token auth.
package system
