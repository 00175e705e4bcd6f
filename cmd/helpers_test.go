package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/banner-cli/internal/config"
	"github.com/xkilldash9x/banner-cli/internal/portal"
)

const (
	testMiddle   = "/pls/prod"
	testPassword = "hunter2"
)

const termsPage = `<html><body><form action="/pls/prod/bwcklibs.P_StoreTerm">
<select name="term_in">
<option value="">None</option>
<option value="201609">Fall 2016</option>
<option value="201701">Spring 2017</option>
</select></form></body></html>`

const addDropPage = `<html><body>
<form action="/pls/prod/bwckcoms.P_Regs" method="post">
<input type="hidden" name="term_in" value="">
<input type="hidden" name="CRN_IN" value="DUMMY">
<input type="text" name="CRN_IN" value="">
<input type="text" name="CRN_IN" value="">
<input type="text" name="CRN_IN" value="">
<input type="submit" name="REG_BTN" value="Submit Changes">
</form></body></html>`

const okPage = `<html><body>Current Schedule</body></html>`

// rejectPage builds an error table rejecting the given codes as FULL.
func rejectPage(codes ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><table summary="This layout table is used to present Registration Errors.">`)
	b.WriteString(`<tr><th>Status</th><th>CRN</th><th>Subj</th><th>Crse</th></tr>`)
	for _, c := range codes {
		fmt.Fprintf(&b, `<tr><td>Course %[1]s</td><td>%[1]s</td><td>FULL</td><td>Closed</td></tr>`, c)
	}
	b.WriteString(`</table></body></html>`)
	return b.String()
}

// fakePortal serves a minimal Banner deployment under testMiddle.
type fakePortal struct {
	server *httptest.Server
	// results maps a term to the page returned for its submission.
	results map[string]string
	// statuses maps a term to a non-200 status for its submission.
	statuses map[string]int

	mu          sync.Mutex
	logins      []url.Values
	submissions []url.Values
	pages       []portal.Page
}

func newFakePortal(t *testing.T, results map[string]string) *fakePortal {
	t.Helper()
	fp := &fakePortal{results: results}
	fp.server = httptest.NewServer(http.HandlerFunc(fp.handle))
	t.Cleanup(fp.server.Close)
	return fp
}

func (fp *fakePortal) handle(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, testMiddle+"/") {
		http.NotFound(w, r)
		return
	}
	_ = r.ParseForm()
	page := portal.Page(strings.TrimPrefix(r.URL.Path, testMiddle))
	fp.mu.Lock()
	fp.pages = append(fp.pages, page)
	fp.mu.Unlock()

	switch page {
	case portal.PageHome:
		_, _ = io.WriteString(w, "<html><body>Login</body></html>")
	case portal.PageLogin:
		fp.mu.Lock()
		fp.logins = append(fp.logins, r.PostForm)
		fp.mu.Unlock()
		if r.PostForm.Get("PIN") == testPassword {
			http.SetCookie(w, &http.Cookie{Name: portal.DefaultSessionCookie, Value: "abc", Path: "/"})
		}
		_, _ = io.WriteString(w, "<html><body>Main Menu</body></html>")
	case portal.PageListTerms:
		if _, err := r.Cookie(portal.DefaultSessionCookie); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, termsPage)
	case portal.PageStoreTerm:
		_, _ = io.WriteString(w, "<html><body>Term stored</body></html>")
	case portal.PageAddDrop:
		_, _ = io.WriteString(w, addDropPage)
	case portal.PageRegister:
		fp.mu.Lock()
		fp.submissions = append(fp.submissions, r.PostForm)
		fp.mu.Unlock()
		term := r.PostForm.Get("term_in")
		if status, ok := fp.statuses[term]; ok {
			w.WriteHeader(status)
			return
		}
		result, ok := fp.results[term]
		if !ok {
			result = okPage
		}
		_, _ = io.WriteString(w, result)
	default:
		http.NotFound(w, r)
	}
}

func (fp *fakePortal) recordedSubmissions() []url.Values {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return append([]url.Values(nil), fp.submissions...)
}

// requestedPages returns the pages hit so far, in order, keeping only those in keep.
func (fp *fakePortal) requestedPages(keep ...portal.Page) []portal.Page {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	var out []portal.Page
	for _, p := range fp.pages {
		for _, k := range keep {
			if p == k {
				out = append(out, p)
			}
		}
	}
	return out
}

// submittedCodes returns the non-empty CRN_IN values of a submission, skipping the DUMMY row.
func submittedCodes(form url.Values) []string {
	var codes []string
	for _, v := range form["CRN_IN"] {
		if v != "" && v != "DUMMY" {
			codes = append(codes, v)
		}
	}
	return codes
}

// writeConfig writes a config file pointing at baseURL with a minimal
// throttle interval and exports the password.
func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	t.Setenv(config.PasswordEnvVar, testPassword)

	content := fmt.Sprintf(`portal:
  base_url: %s
  username: "900123"
  middle_paths: ["/pls/owa_prod", "%s"]
throttle:
  min_interval: 1ms
`, baseURL, testMiddle)
	path := filepath.Join(t.TempDir(), "banner.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// runCommand executes a fresh command tree and captures its output.
func runCommand(args ...string) (string, string, error) {
	root := NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}
