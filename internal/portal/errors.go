package portal

import "errors"

var (
	// ErrConfiguration means the portal could not be reached under any candidate middle path.
	ErrConfiguration = errors.New("portal configuration error")
	// ErrAuthentication means the login did not produce a session cookie, or the session is not live.
	ErrAuthentication = errors.New("authentication failed")
	// ErrFormNotFound means the add/drop page has no form posting to the register page.
	ErrFormNotFound = errors.New("registration form not found")
	// ErrInvalidTime means a scheduled time was not in HH:MM form.
	ErrInvalidTime = errors.New("invalid time of day")
	// ErrInvalidRequest means a registration request is missing its term or codes.
	ErrInvalidRequest = errors.New("invalid registration request")
)
