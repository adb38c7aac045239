// Package ui provides the terminal front end for giftlist, built on Bubble
// Tea.
//
// # Pages
//
// The Model renders whichever page the flow.Controller is on:
//
//   - home: event title, hosts, date and invitation message
//   - login: name and e-mail form with per-field validation messages
//   - gifts: the live list of unpurchased gifts with multi-select
//   - summary: visitor details and the finalised selection; enter confirms
//   - thankyou: confirmation for the visitor; enter starts over
//
// All navigation goes through the controller, so the UI cannot reach a page
// the transition table does not allow.
//
// # Live Data
//
// Entering the gift page starts the live.Reader; leaving it stops the reader,
// so at most one subscription is open. The Model never reads the store
// directly. A tick re-reads state.Store while the gift page shows, the same
// producer/consumer split the rest of the app uses.
//
// The confirmation commit runs in a tea.Cmd; a spinner shows while it is in
// flight and further enter presses are ignored.
//
// # Key Bindings
//
//   - enter: Continue / confirm / start over
//   - esc: Go back
//   - tab, shift+tab: Move between form fields
//   - j/k, g/G: Move through the gift list
//   - space: Select or unselect the highlighted gift
//   - r: Reload the gift list after an error
//   - T: Cycle theme (saved to prefs)
//   - ?: Toggle help
//   - ctrl+c: Quit
package ui
