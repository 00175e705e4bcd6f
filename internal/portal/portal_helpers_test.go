package portal

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/banner-cli/internal/network"
)

const (
	testMiddle = "/pls/prod"
	testTerm   = "201609"
	menuPage   = "/twbkwbis.P_GenMenu"
)

const termListHTML = `<html><body>
<form action="/pls/prod/bwcklibs.P_StoreTerm" method="post">
<select name="term_in" id="term_id">
<option value="">None</option>
<option value="201609">Fall 2016</option>
<option value="201701" SELECTED>Spring 2017 (View only)
</select>
<input type="submit" value="Submit">
</form></body></html>`

// addDropHTML mimics a Banner add/drop page: a decoy form, hidden placeholder
// rows, two empty CRN slots inside a layout table and several submit buttons.
const addDropHTML = `<html><body>
<form action="%[1]s/bwskfreg.P_AltPin" method="post"><input type="hidden" name="term_in" value="201609"></form>
<form action="%[1]s/bwckcoms.P_Regs" method="post" onSubmit="return checkSubmit()">
<input type="hidden" name="term_in" value="201609">
<input type="hidden" name="RSTS_IN" value="DUMMY">
<input type="hidden" name="assoc_term_in" value="DUMMY">
<input type="hidden" name="CRN_IN" value="DUMMY">
<table class="dataentrytable" summary="This layout table is used for direct course entry.">
<tr><td><input type="hidden" name="RSTS_IN" value="RW"><input type="text" name="CRN_IN" size="8" maxlength="5"></td></tr>
<tr><td><input type="hidden" name="RSTS_IN" value="RW"><input type="text" name="CRN_IN" size="8" maxlength="5" value=""></td></tr>
</table>
<select name="grade_mode"><option value="S">Standard<option value="P">Pass</select>
<input type="submit" name="REG_BTN" value="Submit Changes">
<input type="SUBMIT" name="REG_BTN" value="Class Search">
<input type="hidden" value="unnamed">
</form></body></html>`

const successHTML = `<html><body><table summary="This layout table holds the registration summary."><tr><td>Current Schedule</td></tr></table></body></html>`

const oneErrorHTML = `<html><body>
<table summary="This layout table is used to present Registration Errors." class="datadisplaytable">
<caption class="captiontext">Registration Add Errors</caption>
<tr><th>Status</th><th>CRN</th><th>Subj</th><th>Crse</th><th>Sec</th><th>Level</th><th>Cred</th><th>Grade Mode</th><th>Title</th></tr>
<tr><td>CourseA</td><td>12345</td><td>FULL</td><td>Section Closed</td><td>001</td><td>UG</td><td>3.000</td><td>Standard</td><td>Intro</td></tr>
</table></body></html>`

// fakePortal is a scriptable Banner portal served by httptest.
type fakePortal struct {
	server *httptest.Server

	middle         string
	cookieName     string
	cookieValue    string
	redirectLogin  bool
	date           string
	termsHTML      string
	termsStatus    int
	addDropHTML    string
	resultHTML     string
	registerStatus int

	mu            sync.Mutex
	hits          map[Page]int
	loginForms    []string
	registerForms []string
	addDropTerms  []string
	referers      []string
	pages         []string
}

func newFakePortal(t *testing.T, opts ...func(*fakePortal)) *fakePortal {
	t.Helper()
	fp := &fakePortal{
		middle:         testMiddle,
		cookieName:     DefaultSessionCookie,
		cookieValue:    "SESS-1234",
		date:           "Thu, 01 Sep 2016 21:00:00 GMT",
		termsHTML:      termListHTML,
		termsStatus:    http.StatusOK,
		addDropHTML:    fmt.Sprintf(addDropHTML, testMiddle),
		resultHTML:     successHTML,
		registerStatus: http.StatusOK,
		hits:           make(map[Page]int),
	}
	for _, opt := range opts {
		opt(fp)
	}
	fp.server = httptest.NewServer(http.HandlerFunc(fp.handle))
	t.Cleanup(fp.server.Close)
	return fp
}

func (fp *fakePortal) URL() string { return fp.server.URL }

func (fp *fakePortal) handle(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, fp.middle+"/") {
		http.NotFound(w, r)
		return
	}
	page := Page(strings.TrimPrefix(r.URL.Path, fp.middle))
	body, _ := io.ReadAll(r.Body)

	fp.mu.Lock()
	fp.hits[page]++
	fp.pages = append(fp.pages, string(page))
	fp.referers = append(fp.referers, r.Header.Get("Referer"))
	fp.mu.Unlock()

	switch page {
	case PageHome:
		_, _ = io.WriteString(w, "<html><body>Enter your Student ID and PIN</body></html>")

	case PageLogin:
		fp.mu.Lock()
		fp.loginForms = append(fp.loginForms, string(body))
		fp.mu.Unlock()
		if fp.cookieName != "" {
			http.SetCookie(w, &http.Cookie{Name: fp.cookieName, Value: fp.cookieValue, Path: "/"})
		}
		if fp.date != "" {
			w.Header().Set("Date", fp.date)
		} else {
			// A nil value suppresses the Date header net/http would add.
			w.Header()["Date"] = nil
		}
		if fp.redirectLogin {
			http.Redirect(w, r, fp.middle+menuPage, http.StatusFound)
			return
		}
		_, _ = io.WriteString(w, "<html><body>Main Menu</body></html>")

	case menuPage:
		_, _ = io.WriteString(w, "<html><body>Main Menu</body></html>")

	case PageListTerms:
		w.WriteHeader(fp.termsStatus)
		_, _ = io.WriteString(w, fp.termsHTML)

	case PageStoreTerm:
		_, _ = io.WriteString(w, "<html><body>Term stored</body></html>")

	case PageAddDrop:
		fp.mu.Lock()
		fp.addDropTerms = append(fp.addDropTerms, string(body))
		fp.mu.Unlock()
		_, _ = io.WriteString(w, fp.addDropHTML)

	case PageRegister:
		fp.mu.Lock()
		fp.registerForms = append(fp.registerForms, string(body))
		fp.mu.Unlock()
		w.WriteHeader(fp.registerStatus)
		_, _ = io.WriteString(w, fp.resultHTML)

	default:
		http.NotFound(w, r)
	}
}

func (fp *fakePortal) hitCount(p Page) int {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return fp.hits[p]
}

// recorded returns a copy of one of the request logs.
func (fp *fakePortal) recorded(log *[]string) []string {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return append([]string(nil), *log...)
}

// newTestClient returns an unthrottled client with its own cookie jar.
func newTestClient(t *testing.T) *http.Client {
	t.Helper()
	cc := network.NewDefaultClientConfig()
	cc.Logger = zap.NewNop()
	client := network.NewClient(cc)
	t.Cleanup(client.CloseIdleConnections)
	return client
}

// fakeClock returns a fixed time and fires After immediately, recording the requested waits.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	waits []time.Duration
	// block makes After return a channel that never fires.
	block bool
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waits = append(c.waits, d)
	ch := make(chan time.Time, 1)
	if !c.block {
		ch <- c.now.Add(d)
	}
	return ch
}

func (c *fakeClock) recordedWaits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.waits...)
}

func newTestOptions(t *testing.T, fp *fakePortal, clk *fakeClock) Options {
	t.Helper()
	return Options{
		BaseURL:     fp.URL(),
		MiddlePaths: []string{"/pls/owa_prod", testMiddle},
		Credentials: Credentials{Username: "jdoe", Password: "123456"},
		Client:      newTestClient(t),
		Clock:       clk,
		Logger:      zaptest.NewLogger(t),
	}
}

// newTestSession opens a session against fp with the clock at 20:55 UTC on the portal's date.
func newTestSession(t *testing.T, fp *fakePortal) (*Session, *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: time.Date(2016, 9, 1, 20, 55, 0, 0, time.UTC)}
	s, err := New(t.Context(), newTestOptions(t, fp, clk))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, clk
}
