package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Member is one row of the chapter roster export. Members are value objects;
// a reload replaces the whole set.
type Member struct {
	MemberNumber string
	FirstName    string
	LastName     string
	Email        string
	Affiliation  string
	Type         MemberType
	DateAdded    time.Time // Local calendar date; zero when the panel left it blank.
	ExpireDate   time.Time // Local calendar date; zero when the panel left it blank.
	Subscription Subscription
}

// FullName returns "First Last".
func (m Member) FullName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

// IsSubscriber reports whether the member has an active ACM subscription.
func (m Member) IsSubscriber() bool {
	return m.Subscription == SubscriptionYes
}

// IsOfficer reports whether the member holds a chapter office. Regular
// members and faculty sponsors are not officers.
func (m Member) IsOfficer() bool {
	return m.Type != MemberTypeChapterMember && m.Type != MemberTypeFacultySponsor
}

// IsExpiredOn reports whether the membership expired before today. A member
// whose expire date equals today is still current, and so is a member with
// no expire date.
func (m Member) IsExpiredOn(today time.Time) bool {
	if m.ExpireDate.IsZero() {
		return false
	}
	return m.ExpireDate.Before(today)
}

// HasID reports whether id identifies this member. Surrounding whitespace is
// ignored and all-digit identifiers compare numerically, so "01001" and
// "1001" match.
func (m Member) HasID(id string) bool {
	return SameMemberID(m.MemberNumber, id)
}

// SameMemberID compares two member numbers loosely.
func SameMemberID(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	na, errA := strconv.ParseUint(a, 10, 64)
	nb, errB := strconv.ParseUint(b, 10, 64)
	return errA == nil && errB == nil && na == nb
}

// MemberIDOf extracts a member number from a lookup reference: a string, any
// integer type, a Member or a *Member. ok is false for empty, zero, nil or
// unsupported references.
func MemberIDOf(ref any) (id string, ok bool) {
	switch v := ref.(type) {
	case nil:
		return "", false
	case string:
		id = v
	case Member:
		id = v.MemberNumber
	case *Member:
		if v == nil {
			return "", false
		}
		id = v.MemberNumber
	case int, int8, int16, int32, int64:
		n, _ := strconv.ParseInt(fmt.Sprint(v), 10, 64)
		if n == 0 {
			return "", false
		}
		id = strconv.FormatInt(n, 10)
	case uint, uint8, uint16, uint32, uint64:
		id = fmt.Sprint(v)
		if id == "0" {
			return "", false
		}
	default:
		return "", false
	}

	id = strings.TrimSpace(id)
	return id, id != ""
}

// Today returns the local calendar date of t at midnight.
func Today(t time.Time) time.Time {
	t = t.In(time.Local)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
}
