package customers

import (
	"context"
	"strings"
	"time"
)

const (
	// FetchLimit bounds the window fetched on every load (offset 0).
	FetchLimit = 1000
	// PlaceholderPhoto is assigned to customers on their first save.
	PlaceholderPhoto = "placeholderProfileImage"
)

// Customer is a single contact shown in the list.
type Customer struct {
	ID          string
	DisplayName string
	Phone       string
	Email       string
	Company     string
	Address     string
	PhotoURL    string
	Creator     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsNew reports whether the customer has never been saved.
func (c Customer) IsNew() bool {
	return strings.TrimSpace(c.ID) == ""
}

// DataSource is the persistence capability behind the list.
type DataSource interface {
	GetItems(ctx context.Context, offset, limit int) ([]Customer, error)
	// SaveItem upserts by ID.
	SaveItem(ctx context.Context, c *Customer) error
	DeleteItem(ctx context.Context, id string) error
}

// DetailScreen is pushed when a customer is created or edited.
type DetailScreen struct {
	Customer Customer
}

// Editing reports whether the screen edits an existing customer.
func (s DetailScreen) Editing() bool {
	return !s.Customer.IsNew()
}

// Navigator pushes screens onto the navigation stack.
type Navigator interface {
	Push(ctx context.Context, screen DetailScreen) error
}

// Prompt is a yes/no question shown to the user.
type Prompt struct {
	Title   string
	Message string
	Accept  string
	Cancel  string
}

// Prompter asks the user to confirm a Prompt.
type Prompter interface {
	Confirm(ctx context.Context, p Prompt) (bool, error)
}

// Dialer places phone calls.
type Dialer interface {
	CanDial() bool
	Dial(ctx context.Context, number string) error
}

// SaveRequest is published by the detail screen when the user submits a form.
type SaveRequest struct {
	Customer Customer
}

// DeleteRequest is published by the detail screen when the user removes a customer.
type DeleteRequest struct {
	Customer Customer
}

// OutcomeKind tags the result of a processed change request.
type OutcomeKind int

const (
	Created OutcomeKind = iota
	Updated
	Deleted
)

func (k OutcomeKind) String() string {
	switch k {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Outcome reports what a save or delete request did.
type Outcome struct {
	Kind     OutcomeKind
	Customer Customer
	Err      error
}
