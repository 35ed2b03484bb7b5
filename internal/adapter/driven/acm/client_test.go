package acm_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgrist/acm-roster/internal/adapter/driven/acm"
	"github.com/mgrist/acm-roster/internal/domain/model"
)

const rosterCSV = `Member Number,First Name,Last Name,Email,Affiliation,Member Type,Date Added,Expire Date,Active Member
1001,Ann,Lee,ann@x.com,U1,Chapter Member,2023-01-01,2030-01-01,Yes
1002,Bo,Kim,bo@x.com,U1,Chair,2023-02-01,2030-01-01,No
`

// newTestClient creates a Client backed by the given httptest handler.
func newTestClient(t *testing.T, handler http.Handler) (*acm.Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := acm.NewClientWithHTTPClient(server.Client(), acm.Endpoints{BaseURL: server.URL})
	require.NoError(t, err)

	return client, server
}

func TestLogin_RedirectCarriesTokens(t *testing.T) {
	var gotUser, gotPass, gotContentType string

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, acm.DefaultLoginPath, r.URL.Path)
		require.NoError(t, r.ParseForm())
		gotUser = r.PostForm.Get("username")
		gotPass = r.PostForm.Get("password")
		gotContentType = r.Header.Get("Content-Type")

		w.Header().Set("Location", "/public/chapters/admin.cfm?CFID=123456&CFTOKEN=abc-def-789")
		w.WriteHeader(http.StatusMultipleChoices)
	})

	client, _ := newTestClient(t, handler)
	session, err := client.Login(context.Background(), model.Credential{Username: "chair", Password: "pw&=1"})

	require.NoError(t, err)
	assert.Equal(t, "123456", session.CFID)
	assert.Equal(t, "abc-def-789", session.CFToken)
	assert.Equal(t, "chair", gotUser)
	assert.Equal(t, "pw&=1", gotPass, "form values must be url-encoded")
	assert.Equal(t, "application/x-www-form-urlencoded", gotContentType)
}

func TestLogin_AnyRedirectStatusSucceeds(t *testing.T) {
	for _, status := range []int{http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther} {
		handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Location", "https://elsewhere.example/index.cfm?cftoken=tok&cfid=42")
			w.WriteHeader(status)
		})

		client, _ := newTestClient(t, handler)
		session, err := client.Login(context.Background(), model.Credential{Username: "u", Password: "p"})

		require.NoError(t, err, "status %d", status)
		assert.Equal(t, model.Session{CFID: "42", CFToken: "tok"}, session, "keys are matched case-insensitively, in any order")
	}
}

func TestLogin_RejectedCredentials(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html>Invalid login</html>"))
	})

	client, _ := newTestClient(t, handler)
	_, err := client.Login(context.Background(), model.Credential{Username: "u", Password: "bad"})

	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrAuthentication)
	assert.NotErrorIs(t, err, model.ErrTransport)
}

func TestLogin_RedirectWithoutTokens(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Location", "/public/chapters/login.cfm?error=1")
		w.WriteHeader(http.StatusFound)
	})

	client, _ := newTestClient(t, handler)
	_, err := client.Login(context.Background(), model.Credential{Username: "u", Password: "p"})

	assert.ErrorIs(t, err, model.ErrAuthentication)
}

func TestLogin_TransportFailure(t *testing.T) {
	client, server := newTestClient(t, http.NotFoundHandler())
	server.Close()

	_, err := client.Login(context.Background(), model.Credential{Username: "u", Password: "p"})

	assert.ErrorIs(t, err, model.ErrTransport)
	assert.NotErrorIs(t, err, model.ErrAuthentication)
}

func TestLogin_Timeout(t *testing.T) {
	release := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })

	hc := server.Client()
	hc.Timeout = 50 * time.Millisecond
	client, err := acm.NewClientWithHTTPClient(hc, acm.Endpoints{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.Login(context.Background(), model.Credential{Username: "u", Password: "p"})
	assert.ErrorIs(t, err, model.ErrTransport)
}

func TestExportRoster_SendsTokensAndDecodes(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, acm.DefaultExportPath, r.URL.Path)

		q := r.URL.Query()
		assert.Equal(t, "111", q.Get("CFID"))
		assert.Equal(t, "222", q.Get("CFTOKEN"))
		assert.Equal(t, "csv", q.Get("format"))
		assert.Equal(t, "exclude", q.Get("expired"))

		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(rosterCSV))
	})

	client, _ := newTestClient(t, handler)
	members, err := client.ExportRoster(context.Background(), model.Session{CFID: "111", CFToken: "222"})

	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "1001", members[0].MemberNumber)
	assert.Equal(t, model.MemberTypeChair, members[1].Type)
}

func TestExportRoster_StaleSession(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{name: "redirect to login", status: http.StatusFound},
		{name: "unauthorized", status: http.StatusUnauthorized},
		{name: "forbidden", status: http.StatusForbidden},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Location", "/public/chapters/login.cfm")
				w.WriteHeader(tc.status)
			})

			client, _ := newTestClient(t, handler)
			_, err := client.ExportRoster(context.Background(), model.Session{CFID: "1", CFToken: "2"})

			assert.ErrorIs(t, err, model.ErrSessionExpired)
			assert.ErrorIs(t, err, model.ErrTransport)
		})
	}
}

func TestExportRoster_ServerError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	client, _ := newTestClient(t, handler)
	_, err := client.ExportRoster(context.Background(), model.Session{CFID: "1", CFToken: "2"})

	assert.ErrorIs(t, err, model.ErrTransport)
	assert.False(t, errors.Is(err, model.ErrSessionExpired))
}

func TestExportRoster_HTMLInsteadOfCSV(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>\n<body>Please log in</body>\n</html>\n"))
	})

	client, _ := newTestClient(t, handler)
	_, err := client.ExportRoster(context.Background(), model.Session{CFID: "1", CFToken: "2"})

	assert.ErrorIs(t, err, model.ErrParse)
}

func TestExportRoster_MissingTokens(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("server should not be called without tokens")
	})

	client, _ := newTestClient(t, handler)
	_, err := client.ExportRoster(context.Background(), model.Session{})

	assert.ErrorIs(t, err, model.ErrSessionExpired)
}

func TestNewClientWithHTTPClient_InvalidBaseURL(t *testing.T) {
	_, err := acm.NewClientWithHTTPClient(http.DefaultClient, acm.Endpoints{BaseURL: "not a url"})
	assert.Error(t, err)
}

func TestNewClient_Defaults(t *testing.T) {
	client, err := acm.NewClient(acm.Endpoints{}, 0)
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestLogin_RedirectTokenKeys(t *testing.T) {
	tests := []struct {
		name      string
		location  string
		wantID    string
		wantToken string
	}{
		{
			name:      "exact keys win over case variants",
			location:  "/admin.cfm?cfid=lower&CFID=exact&cftoken=lower&CFTOKEN=exact",
			wantID:    "exact",
			wantToken: "exact",
		},
		{
			name:      "case-insensitive fallback",
			location:  "/admin.cfm?CfId=7&cftoken=t-7",
			wantID:    "7",
			wantToken: "t-7",
		},
		{
			name:      "malformed unrelated parameter",
			location:  "/admin.cfm?CFID=9&CFTOKEN=t-9&next=%zz",
			wantID:    "9",
			wantToken: "t-9",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Location", tc.location)
				w.WriteHeader(http.StatusFound)
			})

			client, _ := newTestClient(t, handler)
			for range 5 {
				session, err := client.Login(context.Background(), model.Credential{Username: "u", Password: "p"})
				require.NoError(t, err)
				assert.Equal(t, tc.wantID, session.CFID)
				assert.Equal(t, tc.wantToken, session.CFToken)
			}
		})
	}
}

func TestExportRoster_RevalidatesCachedExport(t *testing.T) {
	var (
		mu      sync.Mutex
		exports int
		body    = rosterCSV
	)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		exports++

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Cache-Control", "max-age=3600")
		_, _ = w.Write([]byte(body))
	})

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := acm.NewClient(acm.Endpoints{BaseURL: server.URL}, time.Second)
	require.NoError(t, err)

	session := model.Session{CFID: "1", CFToken: "2"}
	members, err := client.ExportRoster(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, "1001", members[0].MemberNumber)

	mu.Lock()
	body = strings.Replace(rosterCSV, "1001,Ann", "1003,Ann", 1)
	mu.Unlock()

	members, err = client.ExportRoster(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, "1003", members[0].MemberNumber, "a max-age response must not hide a changed roster")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, exports)
}

func TestExportRoster_NotModifiedUsesCachedBody(t *testing.T) {
	var (
		mu          sync.Mutex
		exports     int
		conditional int
	)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		exports++

		w.Header().Set("ETag", `"roster-v1"`)
		w.Header().Set("Cache-Control", "max-age=3600")
		if r.Header.Get("If-None-Match") == `"roster-v1"` {
			conditional++
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(rosterCSV))
	})

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := acm.NewClient(acm.Endpoints{BaseURL: server.URL}, time.Second)
	require.NoError(t, err)

	session := model.Session{CFID: "1", CFToken: "2"}
	for range 2 {
		members, err := client.ExportRoster(context.Background(), session)
		require.NoError(t, err)
		assert.Len(t, members, 2)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, exports)
	assert.Equal(t, 1, conditional)
}

func TestNewClientWithHTTPClient_Timeout(t *testing.T) {
	client, err := acm.NewClientWithHTTPClient(&http.Client{}, acm.Endpoints{})
	require.NoError(t, err)
	assert.Equal(t, acm.DefaultTimeout, client.Timeout())

	client, err = acm.NewClientWithHTTPClient(&http.Client{Timeout: 5 * time.Second}, acm.Endpoints{})
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, client.Timeout())
}
