// Package catalog supplies the read-only entity registry the exposure
// resolver works over.
//
// The catalog is owned by the automation platform, not by the voice
// manager: HTTPProvider pulls it from the platform's REST API with a
// bounded timeout and short-lived cache, StaticProvider serves a fixed
// list for tests and headless operation.
package catalog
