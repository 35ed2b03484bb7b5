package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgrist/acm-roster/chapter"
	"github.com/mgrist/acm-roster/internal/adapter/driven/acm/acmtest"
)

const rosterCSV = `Member Number,First Name,Last Name,Email,Affiliation,Member Type,Date Added,Expire Date,Active Member
1001,Ann,Lee,ann@school.edu,State U,Chair,2024-09-01,2099-09-01,Yes
1002,Bob,Ng,bob@school.edu,State U,Chapter Member,2024-09-01,2001-03-14,No
1003,Cy,Ray,cy@school.edu,State U,Faculty Sponsor,2020-01-15,2099-03-15,Yes
1004,Di,Lee,di@school.edu,State U,Treasurer,2025-01-10,,No
`

func TestMain(m *testing.M) {
	pterm.DisableStyling()
	os.Exit(m.Run())
}

// setupEnv starts a fake panel and points the ACMROSTER_* environment at it.
func setupEnv(t *testing.T) *acmtest.Panel {
	t.Helper()

	panel := acmtest.NewPanel("chair", "s3cret", rosterCSV)
	t.Cleanup(panel.Close)

	t.Setenv("ACMROSTER_BASE_URL", panel.URL())
	t.Setenv("ACMROSTER_USERNAME", "chair")
	t.Setenv("ACMROSTER_PASSWORD", "s3cret")
	t.Setenv("ACMROSTER_JOURNAL_PATH", filepath.Join(t.TempDir(), "journal.db"))
	t.Setenv("ACMROSTER_REFRESH_INTERVAL", "0s")
	t.Setenv("ACMROSTER_LISTEN_ADDR", "127.0.0.1:8080")
	t.Setenv("ACMROSTER_LOG_LEVEL", "error")
	return panel
}

// execute runs the CLI with args and returns stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMembers(t *testing.T) {
	setupEnv(t)

	tests := []struct {
		name    string
		args    []string
		want    []string
		notWant []string
	}{
		{"all", nil, []string{"Ann Lee", "Bob Ng", "Cy Ray", "Di Lee", "NUMBER"}, nil},
		{"expired view", []string{"--view", "expired"}, []string{"Bob Ng"}, []string{"Ann Lee", "Di Lee"}},
		{"last name and view", []string{"--last-name", "Lee", "--view", "subscribers"}, []string{"Ann Lee"}, []string{"Di Lee", "Cy Ray"}},
		{"type", []string{"--type", "Faculty Sponsor"}, []string{"Cy Ray"}, []string{"Ann Lee"}},
		{"no match", []string{"--first-name", "ann"}, []string{"No members match."}, []string{"Ann Lee"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, "", append([]string{"members"}, tt.args...)...)
			require.NoError(t, err)
			for _, s := range tt.want {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.notWant {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestMembers_InvalidView(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "", "members", "--view", "officers")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --view")
}

func TestMember(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "", "member", "01001")
	require.NoError(t, err)
	assert.Contains(t, out, "Ann Lee")
	assert.Contains(t, out, "Chair")
	assert.Contains(t, out, "2099-09-01")

	out, err = execute(t, "", "member", "1004")
	require.NoError(t, err)
	assert.Contains(t, out, "Treasurer")

	_, err = execute(t, "", "member", "9999")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "member 9999 not found")
}

func TestStats(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "", "stats")
	require.NoError(t, err)
	assert.Regexp(t, `Members\s*\|\s*4`, out)
	assert.Regexp(t, `ACM subscribers\s*\|\s*2`, out)
	assert.Regexp(t, `Current\s*\|\s*3`, out)
	assert.Regexp(t, `Expired\s*\|\s*1`, out)
}

func TestWrongPassword(t *testing.T) {
	panel := setupEnv(t)
	t.Setenv("ACMROSTER_PASSWORD", "wrong")

	_, err := execute(t, "", "stats")
	require.ErrorIs(t, err, chapter.ErrAuthentication)
	assert.Zero(t, panel.Exports())
}

func TestPromptsForMissingCredentials(t *testing.T) {
	setupEnv(t)
	t.Setenv("ACMROSTER_USERNAME", "")
	t.Setenv("ACMROSTER_PASSWORD", "")

	old := readPassword
	t.Cleanup(func() { readPassword = old })
	readPassword = func(int) ([]byte, error) { return []byte("s3cret"), nil }

	out, err := execute(t, "chair\n", "stats")
	require.NoError(t, err)
	assert.Regexp(t, `Members\s*\|\s*4`, out)
}

func TestPasswordPromptFails(t *testing.T) {
	setupEnv(t)
	t.Setenv("ACMROSTER_PASSWORD", "")

	old := readPassword
	t.Cleanup(func() { readPassword = old })
	readPassword = func(int) ([]byte, error) { return nil, errors.New("inappropriate ioctl for device") }

	_, err := execute(t, "", "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ACMROSTER_PASSWORD")
}

func TestHistory(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "", "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No refreshes recorded.")

	_, err = execute(t, "", "stats")
	require.NoError(t, err)

	out, err = execute(t, "", "history", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "login")
	assert.Contains(t, out, "ok")
}

func TestHistory_RequiresJournal(t *testing.T) {
	setupEnv(t)
	t.Setenv("ACMROSTER_JOURNAL_PATH", "")

	_, err := execute(t, "", "history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ACMROSTER_JOURNAL_PATH")
}

func TestInvalidConfig(t *testing.T) {
	setupEnv(t)
	t.Setenv("ACMROSTER_REQUEST_TIMEOUT", "0s")

	_, err := execute(t, "", "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ACMROSTER_REQUEST_TIMEOUT")
}

func TestServe(t *testing.T) {
	panel := setupEnv(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	t.Setenv("ACMROSTER_LISTEN_ADDR", addr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := newRootCmd()
	cmd.SetArgs([]string{"serve"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	base := fmt.Sprintf("http://%s", addr)
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/api/v1/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := http.Get(base + "/api/v1/stats")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(base+"/api/v1/refresh", "application/json", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, panel.Exports())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("serve did not shut down")
	}
}
