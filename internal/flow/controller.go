// Package flow drives the visitor through the registry pages:
// home, login, gifts, summary and thankyou. The Controller owns the session
// data (profile and selection) and only moves between pages along the
// transition table.
package flow

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/five82/giftlist/internal/gift"
	"github.com/five82/giftlist/internal/store"
)

var ErrCommitInFlight = errors.New("a confirmation is already in progress")

// Confirmer commits a reservation. *order.Writer implements it.
type Confirmer interface {
	Confirm(ctx context.Context, purchaser string, items []gift.Selected) error
}

// Controller is safe for concurrent use.
type Controller struct {
	confirmer     Confirmer
	commitTimeout time.Duration
	logger        *slog.Logger

	mu        sync.Mutex
	state     State
	profile   gift.Profile
	selection *gift.Selection
	finalized []gift.Selected
	taken     []gift.Selected
	lastErr   error
	inFlight  bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithCommitTimeout bounds each confirmation commit. Zero waits forever.
func WithCommitTimeout(d time.Duration) Option {
	return func(c *Controller) { c.commitTimeout = d }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewController starts at the home page with an empty session.
func NewController(confirmer Confirmer, opts ...Option) *Controller {
	c := &Controller{
		confirmer: confirmer,
		logger:    slog.New(slog.DiscardHandler),
		state:     StateHome,
		selection: gift.NewSelection(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// fire applies ev and logs the move. Callers hold mu.
func (c *Controller) fire(ev Event) error {
	to, err := Next(c.state, ev)
	if err != nil {
		return err
	}
	c.logger.Debug("page transition", "from", c.state, "to", to, "event", ev)
	c.state = to
	return nil
}

// Start leaves the landing page.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateHome {
		return &TransitionError{From: c.state, Event: EventNext}
	}
	return c.fire(EventNext)
}

// Identify validates the visitor's details and opens the gift list. A
// *gift.ProfileError leaves the flow on the login page.
func (c *Controller) Identify(name, email string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateLogin {
		return &TransitionError{From: c.state, Event: EventNext}
	}
	p, err := gift.NewProfile(name, email)
	if err != nil {
		c.lastErr = err
		return err
	}
	c.profile = p
	c.lastErr = nil
	return c.fire(EventNext)
}

// Toggle flips g in the working selection and reports its new membership.
// Outside the gift page it does nothing.
func (c *Controller) Toggle(g gift.Gift) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateGifts {
		return c.selection.Has(g.ID)
	}
	c.lastErr = nil
	return c.selection.Toggle(g)
}

func (c *Controller) IsSelected(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection.Has(id)
}

func (c *Controller) SelectionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection.Count()
}

// Continue finalises the selection and moves to the summary. An empty
// selection returns gift.ErrEmptySelection and stays put.
func (c *Controller) Continue() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateGifts {
		return &TransitionError{From: c.state, Event: EventNext}
	}
	items, err := c.selection.Finalize()
	if err != nil {
		c.lastErr = err
		return err
	}
	c.finalized = items
	c.taken = nil
	c.lastErr = nil
	return c.fire(EventNext)
}

// Back returns to the previous page. The working selection is kept.
func (c *Controller) Back() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight {
		return ErrCommitInFlight
	}
	if err := c.fire(EventBack); err != nil {
		return err
	}
	c.lastErr = nil
	return nil
}

// Confirm commits the finalised selection under the visitor's name. The lock
// is released for the duration of the commit; concurrent calls get
// ErrCommitInFlight. Gifts lost to another visitor are dropped from the
// selection so a retry reserves the remainder.
func (c *Controller) Confirm(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateSummary {
		c.mu.Unlock()
		return &TransitionError{From: c.state, Event: EventNext}
	}
	if c.inFlight {
		c.mu.Unlock()
		return ErrCommitInFlight
	}
	if len(c.finalized) == 0 {
		c.lastErr = gift.ErrEmptySelection
		c.mu.Unlock()
		return gift.ErrEmptySelection
	}
	c.inFlight = true
	c.taken = nil
	purchaser := c.profile.Name
	items := slices.Clone(c.finalized)
	c.mu.Unlock()

	if c.commitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.commitTimeout)
		defer cancel()
	}
	err := c.confirmer.Confirm(ctx, purchaser, items)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
	if err != nil {
		c.lastErr = err
		var taken *store.TakenError
		if errors.As(err, &taken) {
			c.dropTaken(taken.IDs)
		}
		return err
	}
	c.lastErr = nil
	return c.fire(EventNext)
}

// dropTaken removes ids from both the working and finalised selections and
// remembers them for display. Callers hold mu.
func (c *Controller) dropTaken(ids []string) {
	c.selection.Remove(ids...)
	kept := c.finalized[:0]
	for _, it := range c.finalized {
		if slices.Contains(ids, it.ID) {
			c.taken = append(c.taken, it)
			continue
		}
		kept = append(kept, it)
	}
	c.finalized = kept
}

// Restart discards the session and returns to the landing page. It is only
// offered on the thank-you page.
func (c *Controller) Restart() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fire(EventRestart); err != nil {
		return err
	}
	c.profile = gift.Profile{}
	c.selection.Clear()
	c.finalized = nil
	c.taken = nil
	c.lastErr = nil
	return nil
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Profile() gift.Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile
}

// Finalized returns the gifts on the summary page.
func (c *Controller) Finalized() []gift.Selected {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.finalized)
}

// Taken returns the gifts the last confirmation lost to another visitor.
func (c *Controller) Taken() []gift.Selected {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.taken)
}

func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Controller) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}
