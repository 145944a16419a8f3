package users

import (
	"fmt"
	"strings"
)

// PageSize is the fixed number of users requested per page.
const PageSize = 10

// User is a record held by the backend. IDs are assigned by the backend and
// never change.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Input carries the editable fields of a user.
type Input struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,simpleemail"`
}

// Normalize trims surrounding whitespace from every field.
func (in Input) Normalize() Input {
	return Input{Name: strings.TrimSpace(in.Name), Email: strings.TrimSpace(in.Email)}
}

// Page is one slice of the backend user listing.
type Page struct {
	Users []User
	// HasMore is the backend's claim; absent claims default to true.
	HasMore bool
	// Total is the backend total, or -1 when the backend omitted it.
	Total int
	// NextStart is the backend's next offset, or 0 when omitted.
	NextStart int
}

// SearchResult is the response of a search request.
type SearchResult struct {
	Users []User
	Total int
	// Notice carries an explanatory message the proxy attaches when search is
	// degraded; it is not a failure.
	Notice string
}

// APIError is a non-success answer relayed by the proxy.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("users api: status %d: %s", e.Status, e.Message)
}

// SafeMessage implements shared.SafeMessager.
func (e *APIError) SafeMessage() string {
	return e.Message
}
