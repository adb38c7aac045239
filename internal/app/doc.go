// Package app is the composition root for giftlist.
//
// Run loads configuration, opens the structured log file and the configured
// gift store, then wires the pieces:
//
//	store.GiftStore ──> live.Reader ──> state.Store ──> ui.Model
//	                                                      │
//	store.GiftStore <── order.Writer <── flow.Controller <┘
//
// The UI and the optional Prometheus endpoint run under one errgroup. When the
// visitor quits, the UI cancels the group context and the metrics server shuts
// down; the reader is stopped and the store closed on the way out.
//
// With Options.SeedPath set, Run only inserts the catalog into the store and
// returns.
package app
