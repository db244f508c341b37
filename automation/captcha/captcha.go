// Package captcha solves the login captcha, either through a paid solving
// service or by waiting for a human to type it into the visible browser.
package captcha

import "context"

// Provider solves a text captcha from its PNG image, base64 encoded.
type Provider interface {
	// SolveText returns the captcha text or an error when the service
	// could not produce a solution.
	SolveText(ctx context.Context, imageBase64 string) (string, error)

	// Name identifies the provider in logs and reports.
	Name() string
}
