package portal

// Page identifies one of the portal pages the engine talks to. Its value is
// the path relative to the resolved middle path.
type Page string

const (
	PageHome      Page = "/twbkwbis.P_WWWLogin"
	PageLogin     Page = "/twbkwbis.P_ValLogin"
	PageListTerms Page = "/bwskflib.P_SelDefTerm"
	PageStoreTerm Page = "/bwcklibs.P_StoreTerm"
	PageRegister  Page = "/bwckcoms.P_Regs"
	PageAddDrop   Page = "/bwskfreg.P_AltPin"
)

// DefaultMiddlePaths are probed in order when no candidates are configured.
var DefaultMiddlePaths = []string{"/pls/owa_prod", "/pls/prod"}

// DefaultSessionCookie is the cookie Banner sets on a successful login.
const DefaultSessionCookie = "SESSID"

// Path returns the page path relative to the middle path.
func (p Page) Path() string { return string(p) }

var pageNames = map[Page]string{
	PageHome:      "home",
	PageLogin:     "login",
	PageListTerms: "list_terms",
	PageStoreTerm: "store_term",
	PageRegister:  "register",
	PageAddDrop:   "add_drop",
}

// String returns a short name suitable for log fields.
func (p Page) String() string {
	if name, ok := pageNames[p]; ok {
		return name
	}
	return string(p)
}
