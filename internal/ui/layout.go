package ui

import "time"

// Layout limits.
const (
	// contentWidth caps the width of page bodies on wide terminals.
	contentWidth = 72

	// helpWidth is the width of the help modal.
	helpWidth = 40

	// minListRows is the fewest gift rows shown even on short terminals.
	minListRows = 3
)

// DefaultUIInterval is how often the UI re-reads the shared gift list.
const DefaultUIInterval = 250 * time.Millisecond
