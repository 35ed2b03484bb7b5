package model

// Session holds the correlation pair the panel issues on login. Both values
// change on every login and are required on every export request.
type Session struct {
	CFID    string
	CFToken string
}

// Valid reports whether both correlation values are present.
func (s Session) Valid() bool {
	return s.CFID != "" && s.CFToken != ""
}
