// Package panel serves the management web UI as an embedded asset.
//
// The panel is embedded into the Go binary using the go:embed directive,
// eliminating any runtime dependency on external files. The Handler
// function returns an http.Handler that serves these assets with SPA
// fallback routing: if a requested file does not exist, index.html is
// served so that client-side routing works correctly.
//
// Cache-control headers are set to no-cache so operators always see the
// panel version matching the running binary.
package panel
