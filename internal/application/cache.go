package application

import (
	"sync"
	"time"

	"github.com/mgrist/acm-roster/internal/domain/model"
)

// RosterCache owns the canonical roster and its derived views. The roster is
// replaced whole; views are computed lazily on first access after a
// replacement and memoized until the next one. All methods are safe for
// concurrent use.
type RosterCache struct {
	mu      sync.Mutex
	now     func() time.Time
	members []model.Member
	loaded  bool

	// Derived views; nil until computed. Subscription and expiry are
	// partitioned in one pass each so both halves share a snapshot.
	subscribers    []model.Member
	nonSubscribers []model.Member
	current        []model.Member
	expired        []model.Member
	subsComputed   bool
	expiryComputed bool
}

// NewRosterCache creates an empty, unloaded cache. now supplies the date used
// to split current from expired members.
func NewRosterCache(now func() time.Time) *RosterCache {
	if now == nil {
		now = time.Now
	}
	return &RosterCache{now: now, members: []model.Member{}}
}

// Replace swaps in a freshly loaded roster and invalidates every derived view.
func (c *RosterCache) Replace(members []model.Member) {
	if members == nil {
		members = []model.Member{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.members = members
	c.loaded = true
	c.invalidateLocked()
}

// Invalidate clears the derived views without touching the roster.
func (c *RosterCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked()
}

// Reset empties the cache and marks it unloaded.
func (c *RosterCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.members = []model.Member{}
	c.loaded = false
	c.invalidateLocked()
}

func (c *RosterCache) invalidateLocked() {
	c.subscribers, c.nonSubscribers = nil, nil
	c.current, c.expired = nil, nil
	c.subsComputed, c.expiryComputed = false, false
}

// Loaded reports whether a roster has been loaded since creation or Reset.
func (c *RosterCache) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Members returns the roster as loaded. Callers must not modify it.
func (c *RosterCache) Members() []model.Member {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.members
}

// Subscribers returns members with an active ACM subscription.
func (c *RosterCache) Subscribers() []model.Member {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.partitionSubscriptionsLocked()
	return c.subscribers
}

// NonSubscribers returns members without an active ACM subscription.
func (c *RosterCache) NonSubscribers() []model.Member {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.partitionSubscriptionsLocked()
	return c.nonSubscribers
}

// Current returns members whose membership has not expired as of today.
func (c *RosterCache) Current() []model.Member {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.partitionExpiryLocked()
	return c.current
}

// Expired returns members whose expire date is before today.
func (c *RosterCache) Expired() []model.Member {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.partitionExpiryLocked()
	return c.expired
}

// partitionSubscriptionsLocked splits on the activeMember column. Values other
// than Yes and No belong to neither view.
func (c *RosterCache) partitionSubscriptionsLocked() {
	if c.subsComputed {
		return
	}

	subs, non := []model.Member{}, []model.Member{}
	for _, m := range c.members {
		switch m.Subscription {
		case model.SubscriptionYes:
			subs = append(subs, m)
		case model.SubscriptionNo:
			non = append(non, m)
		}
	}

	c.subscribers, c.nonSubscribers = subs, non
	c.subsComputed = true
}

func (c *RosterCache) partitionExpiryLocked() {
	if c.expiryComputed {
		return
	}

	current, expired := partitionByExpiry(c.members, model.Today(c.now()))
	c.current, c.expired = current, expired
	c.expiryComputed = true
}

// partitionByExpiry splits members into current and expired as of today.
// Every member lands in exactly one half.
func partitionByExpiry(members []model.Member, today time.Time) (current, expired []model.Member) {
	current, expired = []model.Member{}, []model.Member{}
	for _, m := range members {
		if m.IsExpiredOn(today) {
			expired = append(expired, m)
		} else {
			current = append(current, m)
		}
	}
	return current, expired
}
