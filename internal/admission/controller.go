package admission

import (
	"sync"

	"github.com/tubebeam/tubebeam/internal/model"
)

// DefaultLimit is the number of simultaneous jobs a single user may hold
const DefaultLimit = 1

type flightKey struct {
	requester int64
	media     string
}

// Controller tracks active slots per requester plus an in-flight set per
// (requester, media) pair. It is the only owner of both tables.
type Controller struct {
	mu       sync.Mutex
	limit    int
	counts   map[int64]int
	inflight map[flightKey]struct{}
}

// Slot is a reservation against a requester's concurrency budget. Release
// is idempotent: cancellation and natural completion may race to release
// the same slot.
type Slot struct {
	c         *Controller
	requester int64
	media     string
	once      sync.Once
}

// NewController creates a controller with the given per-user limit; values
// below 1 fall back to DefaultLimit.
func NewController(limit int) *Controller {
	if limit < 1 {
		limit = DefaultLimit
	}
	return &Controller{
		limit:    limit,
		counts:   make(map[int64]int),
		inflight: make(map[flightKey]struct{}),
	}
}

// TryAdmit reserves a slot or rejects the request. Rejection priority:
// an identical in-flight request wins over the concurrency limit, so the
// user sees "already downloading" rather than a generic limit message.
func (c *Controller) TryAdmit(requesterID int64, mediaID string) (*Slot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := flightKey{requester: requesterID, media: mediaID}
	if _, ok := c.inflight[key]; ok {
		return nil, &model.AlreadyInProgressError{RequesterID: requesterID, MediaID: mediaID}
	}

	if count := c.counts[requesterID]; count >= c.limit {
		return nil, &model.ConcurrencyLimitError{RequesterID: requesterID, Count: count, Limit: c.limit}
	}

	c.inflight[key] = struct{}{}
	c.counts[requesterID]++

	return &Slot{c: c, requester: requesterID, media: mediaID}, nil
}

// Release frees the slot. Releasing an already-released slot is a no-op.
func (c *Controller) Release(slot *Slot) {
	if slot == nil {
		return
	}
	slot.once.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		delete(c.inflight, flightKey{requester: slot.requester, media: slot.media})
		if c.counts[slot.requester] > 1 {
			c.counts[slot.requester]--
		} else {
			delete(c.counts, slot.requester)
		}
	})
}

// Release frees the slot. Releasing twice is a no-op.
func (s *Slot) Release() {
	if s == nil {
		return
	}
	s.c.Release(s)
}

// Active returns the number of slots currently held by a requester
func (c *Controller) Active(requesterID int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[requesterID]
}
