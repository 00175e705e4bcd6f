package cmd

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/banner-cli/internal/config"
	"github.com/xkilldash9x/banner-cli/internal/portal"
)

// fakeTerminal replaces the terminal hooks for the duration of a test.
func fakeTerminal(t *testing.T, terminal bool, password string, readErr error) {
	t.Helper()
	origFd, origIsTerminal, origRead := stdinFd, isTerminal, readPassword
	t.Cleanup(func() { stdinFd, isTerminal, readPassword = origFd, origIsTerminal, origRead })

	stdinFd = func() int { return 42 }
	isTerminal = func(fd int) bool { return terminal && fd == 42 }
	readPassword = func(int) ([]byte, error) { return []byte(password), readErr }
}

func TestPromptPassword(t *testing.T) {
	t.Run("reads from the terminal", func(t *testing.T) {
		fakeTerminal(t, true, "s3cret", nil)
		var w bytes.Buffer

		pw, err := promptPassword(&w, "900123")
		require.NoError(t, err)
		assert.Equal(t, "s3cret", pw)
		assert.Equal(t, "Password for 900123: \n", w.String())
	})

	t.Run("not a terminal", func(t *testing.T) {
		fakeTerminal(t, false, "", nil)

		_, err := promptPassword(io.Discard, "900123")
		require.Error(t, err)
		assert.Contains(t, err.Error(), config.PasswordEnvVar)
	})

	t.Run("read failure", func(t *testing.T) {
		fakeTerminal(t, true, "", errors.New("tty gone"))

		_, err := promptPassword(io.Discard, "900123")
		assert.ErrorContains(t, err, "tty gone")
	})

	t.Run("empty password", func(t *testing.T) {
		fakeTerminal(t, true, "", nil)

		_, err := promptPassword(io.Discard, "900123")
		assert.Error(t, err)
	})
}

func TestOpenSession_PromptsWithoutEnvPassword(t *testing.T) {
	fp := newFakePortal(t, nil)

	orig := passwordPrompt
	t.Cleanup(func() { passwordPrompt = orig })
	var asked string
	passwordPrompt = func(_ io.Writer, username string) (string, error) {
		asked = username
		return testPassword, nil
	}

	cfg := config.NewDefaultConfig()
	cfg.SetPortalBaseURL(fp.server.URL + "/")
	cfg.SetPortalUsername("900123")
	cfg.ThrottleCfg.MinInterval = time.Millisecond

	session, err := openSession(t.Context(), cfg, io.Discard, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "900123", asked)
	assert.Equal(t, testMiddle, session.MiddlePath())
	assert.Equal(t, portal.StateAuthenticated, session.State())
	assert.Equal(t, testPassword, cfg.Portal().Password)
}

func TestOpenSession_PromptFailureStopsBeforeLogin(t *testing.T) {
	fp := newFakePortal(t, nil)

	orig := passwordPrompt
	t.Cleanup(func() { passwordPrompt = orig })
	passwordPrompt = func(io.Writer, string) (string, error) { return "", errors.New("no tty") }

	cfg := config.NewDefaultConfig()
	cfg.SetPortalBaseURL(fp.server.URL)
	cfg.SetPortalUsername("900123")
	cfg.SetPortalPassword("")

	_, err := openSession(t.Context(), cfg, io.Discard, zaptest.NewLogger(t))
	require.ErrorContains(t, err, "no tty")

	fp.mu.Lock()
	defer fp.mu.Unlock()
	assert.Empty(t, fp.logins)
}
