package application

import (
	"slices"

	"github.com/mgrist/acm-roster/internal/domain/model"
)

// roster returns the cache if the session is established. Slices handed out
// of the cache are shared, so exported methods return copies.
func (c *Chapter) roster() (*RosterCache, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != model.SessionAuthenticated {
		return nil, model.ErrNotAuthenticated
	}
	return c.cache, nil
}

// AllMembers returns the whole roster.
func (c *Chapter) AllMembers() ([]model.Member, error) {
	r, err := c.roster()
	if err != nil {
		return nil, err
	}
	return slices.Clone(r.Members()), nil
}

// MemberByID returns the first member whose number matches id, or nil.
// id may be a string, any integer type, a Member or a *Member.
func (c *Chapter) MemberByID(id any) (*model.Member, error) {
	r, err := c.roster()
	if err != nil {
		return nil, err
	}

	key, ok := model.MemberIDOf(id)
	if !ok {
		return nil, nil
	}
	for _, m := range r.Members() {
		if m.HasID(key) {
			return &m, nil
		}
	}
	return nil, nil
}

// MemberByEmail returns the first member with exactly this email, or nil.
func (c *Chapter) MemberByEmail(email string) (*model.Member, error) {
	r, err := c.roster()
	if err != nil {
		return nil, err
	}
	if email == "" {
		return nil, nil
	}
	for _, m := range r.Members() {
		if m.Email == email {
			return &m, nil
		}
	}
	return nil, nil
}

// MembersByFirstName returns members with exactly this first name.
func (c *Chapter) MembersByFirstName(name string) ([]model.Member, error) {
	return c.filter(func(m model.Member) bool { return m.FirstName == name })
}

// MembersByLastName returns members with exactly this last name.
func (c *Chapter) MembersByLastName(name string) ([]model.Member, error) {
	return c.filter(func(m model.Member) bool { return m.LastName == name })
}

// MembersByType returns members of the given type.
func (c *Chapter) MembersByType(t model.MemberType) ([]model.Member, error) {
	return c.filter(func(m model.Member) bool { return m.Type == t })
}

func (c *Chapter) filter(keep func(model.Member) bool) ([]model.Member, error) {
	r, err := c.roster()
	if err != nil {
		return nil, err
	}
	out := []model.Member{}
	for _, m := range r.Members() {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out, nil
}

// Subscribers returns members with an active ACM subscription.
func (c *Chapter) Subscribers() ([]model.Member, error) {
	r, err := c.roster()
	if err != nil {
		return nil, err
	}
	return slices.Clone(r.Subscribers()), nil
}

// NonSubscribers returns members without an active ACM subscription.
func (c *Chapter) NonSubscribers() ([]model.Member, error) {
	r, err := c.roster()
	if err != nil {
		return nil, err
	}
	return slices.Clone(r.NonSubscribers()), nil
}

// CurrentMembers returns members whose membership has not expired.
func (c *Chapter) CurrentMembers() ([]model.Member, error) {
	r, err := c.roster()
	if err != nil {
		return nil, err
	}
	return slices.Clone(r.Current()), nil
}

// ExpiredMembers returns members whose membership expired before today.
func (c *Chapter) ExpiredMembers() ([]model.Member, error) {
	r, err := c.roster()
	if err != nil {
		return nil, err
	}
	return slices.Clone(r.Expired()), nil
}

// IsMember reports whether ref identifies a member of the roster.
func (c *Chapter) IsMember(ref any) (bool, error) {
	m, err := c.MemberByID(ref)
	if err != nil {
		return false, err
	}
	return m != nil, nil
}

// IsActiveMember reports whether ref identifies a member with an active ACM
// subscription.
func (c *Chapter) IsActiveMember(ref any) (bool, error) {
	m, err := c.MemberByID(ref)
	if err != nil {
		return false, err
	}
	return m != nil && m.IsSubscriber(), nil
}

// IsOfficer reports whether ref identifies a chapter officer.
func (c *Chapter) IsOfficer(ref any) (bool, error) {
	m, err := c.MemberByID(ref)
	if err != nil {
		return false, err
	}
	return m != nil && m.IsOfficer(), nil
}

// ChapterSize returns the number of members on the roster.
func (c *Chapter) ChapterSize() (int, error) {
	return c.count((*RosterCache).Members)
}

// ACMSubSize returns the number of subscribers.
func (c *Chapter) ACMSubSize() (int, error) {
	return c.count((*RosterCache).Subscribers)
}

// InactiveSize returns the number of expired members.
func (c *Chapter) InactiveSize() (int, error) {
	return c.count((*RosterCache).Expired)
}

// ActiveSize returns the number of current members.
func (c *Chapter) ActiveSize() (int, error) {
	return c.count((*RosterCache).Current)
}

func (c *Chapter) count(view func(*RosterCache) []model.Member) (int, error) {
	r, err := c.roster()
	if err != nil {
		return 0, err
	}
	return len(view(r)), nil
}
