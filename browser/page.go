package browser

import (
	"context"
	"time"
)

// SelectOption is one entry of a <select> element.
type SelectOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Page is the minimal surface automation code needs from a browser tab.
// Selectors accept CSS plus two portal-specific forms: "text=X" matches an
// element whose own text contains X, and "tag:has-text('X')" matches a tag
// whose subtree text contains X.
type Page interface {
	// Navigate loads url and waits for the document to be ready.
	Navigate(ctx context.Context, url string) error
	// URL returns the current location.
	URL(ctx context.Context) (string, error)
	// Title returns the current document title.
	Title(ctx context.Context) (string, error)

	// Exists reports whether at least one element matches selector.
	Exists(ctx context.Context, selector string) (bool, error)
	// WaitVisible blocks until selector is visible or timeout passes.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error

	// Click clicks the first match of selector.
	Click(ctx context.Context, selector string) error
	// ClickAndNavigate clicks and waits for the resulting navigation.
	ClickAndNavigate(ctx context.Context, selector string) error
	// ClickAt clicks at viewport coordinates.
	ClickAt(ctx context.Context, x, y float64) error

	// Fill clears the matched input and types value into it.
	Fill(ctx context.Context, selector, value string) error
	// Check sets a checkbox state and fires a change event.
	Check(ctx context.Context, selector string, checked bool) error
	// SelectByValue picks a <select> option by value and fires change.
	SelectByValue(ctx context.Context, selector, value string) error

	// Options lists the entries of a <select>.
	Options(ctx context.Context, selector string) ([]SelectOption, error)
	// Value returns the current value of an input or select.
	Value(ctx context.Context, selector string) (string, error)
	// Text returns the trimmed text content of the first match.
	Text(ctx context.Context, selector string) (string, error)
	// TextAll returns the trimmed text of every match.
	TextAll(ctx context.Context, selector string) ([]string, error)

	// Eval runs a JavaScript expression and unmarshals the result into out.
	// Pass a nil out to discard the result.
	Eval(ctx context.Context, expression string, out any) error

	// ElementScreenshot captures a PNG of the first match.
	ElementScreenshot(ctx context.Context, selector string) ([]byte, error)

	// Close releases the tab.
	Close() error
}
