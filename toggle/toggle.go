// Package toggle implements the optimistic membership toggle used by the
// story list UI. Each controller tracks one story's membership in one
// relation collection as a small state machine: confirmed member, confirmed
// not-member, or pending with a target state and a revert state. The
// displayed state flips immediately on toggle; the confirming store call
// runs in the background and a hard failure reverts the flip.
package toggle

import (
	"context"
	"errors"
	"sync"

	"newsdesk/models"
	"newsdesk/pocketbase"
	"newsdesk/relations"
)

// Store is the slice of the relation adapter the controller needs.
// *relations.Adapter implements it.
type Store interface {
	Add(ctx context.Context, sess *pocketbase.Session, story models.Story) error
	Remove(ctx context.Context, sess *pocketbase.Session, storyID int64) error
}

// Outcome is the eventual result of one toggle. State is the displayed state
// after reconciliation; Err is set only for hard store failures, after the
// optimistic flip has been reverted.
type Outcome struct {
	State bool
	Err   error
}

// Snapshot is a point-in-time view of the state machine.
type Snapshot struct {
	Displayed bool
	Confirmed bool
	Pending   bool
}

// Controller is the per-story toggle state machine. Safe for concurrent use,
// though overlapping toggles race at the store and their network effects are
// not ordered; only the newest toggle's completion is applied.
type Controller struct {
	adapter Store
	story   models.Story

	mu         sync.Mutex
	confirmed  bool
	displayed  bool
	pending    bool
	generation uint64
}

// New seeds a controller with the server-known membership state, as resolved
// by the membership map at render time.
func New(adapter Store, story models.Story, member bool) *Controller {
	return &Controller{
		adapter:   adapter,
		story:     story,
		confirmed: member,
		displayed: member,
	}
}

// State returns the current snapshot.
func (c *Controller) State() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{Displayed: c.displayed, Confirmed: c.confirmed, Pending: c.pending}
}

// Toggle flips the displayed state and starts the confirming Add or Remove.
// The returned bool is the optimistic state for immediate rendering; the
// channel resolves with the reconciled outcome. Anonymous sessions are
// rejected synchronously with ErrUnauthorized: no state change, no network
// call.
//
// Benign adapter outcomes (duplicate add, remove of an absent relation)
// confirm the target state. A hard store failure reverts the displayed state
// to the last confirmed one. A completion that has been superseded by a
// newer toggle is discarded.
func (c *Controller) Toggle(ctx context.Context, sess *pocketbase.Session) (bool, <-chan Outcome, error) {
	if !sess.Authenticated() {
		c.mu.Lock()
		displayed := c.displayed
		c.mu.Unlock()
		return displayed, nil, relations.ErrUnauthorized
	}

	c.mu.Lock()
	target := !c.displayed
	revertTo := c.confirmed
	c.displayed = target
	c.pending = true
	c.generation++
	generation := c.generation
	c.mu.Unlock()

	done := make(chan Outcome, 1)
	go func() {
		var err error
		if target {
			err = c.adapter.Add(ctx, sess, c.story)
			if errors.Is(err, relations.ErrDuplicate) {
				err = nil
			}
		} else {
			err = c.adapter.Remove(ctx, sess, c.story.ID)
			if errors.Is(err, relations.ErrNotFound) {
				err = nil
			}
		}

		c.mu.Lock()
		if generation == c.generation {
			c.pending = false
			if err != nil {
				c.displayed = revertTo
			} else {
				c.confirmed = target
			}
		} else {
			// A newer toggle owns the state now; drop this completion.
			err = nil
		}
		state := c.displayed
		c.mu.Unlock()

		done <- Outcome{State: state, Err: err}
	}()

	return target, done, nil
}
