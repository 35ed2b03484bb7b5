// Package acmtest provides an in-process fake of the ACM chapter panel for
// tests.
package acmtest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/mgrist/acm-roster/internal/adapter/driven/acm"
)

// Panel serves the login form and the roster export. It issues a new token
// pair on every successful login; only the latest pair is accepted by the
// export until ExpireSession is called.
type Panel struct {
	server *httptest.Server

	mu       sync.Mutex
	username string
	password string
	roster   string
	status   int
	cfid     string
	cftoken  string
	logins   int
	exports  int
}

// NewPanel starts a panel that accepts the given credential and serves roster
// as the export body. The server is closed by Close.
func NewPanel(username, password, roster string) *Panel {
	p := &Panel{username: username, password: password, roster: roster}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+acm.DefaultLoginPath, p.handleLogin)
	mux.HandleFunc("GET "+acm.DefaultExportPath, p.handleExport)
	p.server = httptest.NewServer(mux)
	return p
}

// URL returns the base URL of the panel.
func (p *Panel) URL() string { return p.server.URL }

// Client returns an HTTP client configured for the panel.
func (p *Panel) Client() *http.Client { return p.server.Client() }

// Close shuts the panel down.
func (p *Panel) Close() { p.server.Close() }

// SetRoster replaces the export body.
func (p *Panel) SetRoster(roster string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roster = roster
}

// FailExports makes the export answer status until called again with 0.
func (p *Panel) FailExports(status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = status
}

// ExpireSession invalidates the tokens issued by the last login.
func (p *Panel) ExpireSession() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfid, p.cftoken = "", ""
}

// SetPassword changes the accepted password.
func (p *Panel) SetPassword(password string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.password = password
}

// Logins returns the number of login attempts received.
func (p *Panel) Logins() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logins
}

// Exports returns the number of export requests received.
func (p *Panel) Exports() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exports
}

func (p *Panel) handleLogin(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logins++

	if err := r.ParseForm(); err != nil ||
		r.PostForm.Get("username") != p.username ||
		r.PostForm.Get("password") != p.password {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>Invalid login</body></html>"))
		return
	}

	p.cfid = fmt.Sprintf("%d", 100000+p.logins)
	p.cftoken = fmt.Sprintf("tok-%d", p.logins)

	w.Header().Set("Location", fmt.Sprintf("/public/chapters/admin.cfm?CFID=%s&CFTOKEN=%s", p.cfid, p.cftoken))
	w.WriteHeader(http.StatusMultipleChoices)
}

func (p *Panel) handleExport(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exports++

	if p.status != 0 {
		http.Error(w, http.StatusText(p.status), p.status)
		return
	}

	q := r.URL.Query()
	if p.cfid == "" || q.Get("CFID") != p.cfid || q.Get("CFTOKEN") != p.cftoken {
		http.Redirect(w, r, acm.DefaultLoginPath, http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	_, _ = w.Write([]byte(p.roster))
}
