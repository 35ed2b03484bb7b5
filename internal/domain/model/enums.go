package model

// MemberType is the chapter role reported by the panel. Values outside the
// constants below are organization-defined and kept verbatim.
type MemberType string

const (
	MemberTypeChapterMember  MemberType = "Chapter Member"
	MemberTypeChair          MemberType = "Chair"
	MemberTypeViceChair      MemberType = "Vice Chair"
	MemberTypeTreasurer      MemberType = "Treasurer"
	MemberTypeSecretary      MemberType = "Secretary"
	MemberTypeFacultySponsor MemberType = "Faculty Sponsor"
)

// Subscription is the panel's activeMember column: whether the member holds a
// current ACM subscription.
type Subscription string

const (
	SubscriptionYes Subscription = "Yes"
	SubscriptionNo  Subscription = "No"
)

// SessionState is the authentication state of a panel session.
type SessionState string

const (
	SessionUnauthenticated SessionState = "unauthenticated"
	SessionAuthenticated   SessionState = "authenticated"
)

// RefreshTrigger records what started a roster reload.
type RefreshTrigger string

const (
	TriggerLogin     RefreshTrigger = "login"     // Eager reload that completes a login.
	TriggerManual    RefreshTrigger = "manual"    // Caller asked for a refresh.
	TriggerScheduled RefreshTrigger = "scheduled" // Refresher ticker.
	TriggerReauth    RefreshTrigger = "reauth"    // Reload after a silent re-login.
)
