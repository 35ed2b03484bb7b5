package model

// Credential is the panel login pair. It is only ever held in plaintext while
// a login request is being built.
type Credential struct {
	Username string
	Password string
}

// IsZero reports whether either half of the credential is missing.
func (c Credential) IsZero() bool {
	return c.Username == "" || c.Password == ""
}
