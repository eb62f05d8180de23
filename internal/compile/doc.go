// Package compile turns resolved exposure sets into backend artifacts.
//
// Google and Alexa compile to package files in the two configuration
// dialects the platform loads at startup; HomeKit compiles to a live-sync
// payload the bridge applies without a restart. Compilation is
// deterministic: YAML output is built from explicit node trees so
// identical inputs always produce byte-identical files, which keeps
// repeat commits idempotent on disk.
package compile
