// Package state holds the gift list shared between the live reader and the
// UI.
//
// The reader goroutine is the single writer: every snapshot delivered by the
// store's live query lands in Store.Update. The UI polls Store.Snapshot on its
// own tick and renders whatever it finds, so neither side blocks the other.
//
// Update keeps the last good list when the live query reports an error and
// counts consecutive failures; IsOffline turns true after two in a row.
// Snapshot returns copies, so the UI may hold on to one while the reader keeps
// writing.
//
// The zero Store is ready to use and reports Loading until the first list
// arrives.
package state
