// Package apperr defines the route-level error taxonomy. Handlers wrap these
// sentinels with eris and the HTTP layer maps them to status codes.
package apperr

import "github.com/rotisserie/eris"

var (
	// ErrUnauthenticated means no valid session accompanied the request.
	ErrUnauthenticated = eris.New("unauthenticated")

	// ErrForbidden means the authenticated user is not a party to the resource.
	ErrForbidden = eris.New("forbidden")

	// ErrNotFound means the resource id does not resolve.
	ErrNotFound = eris.New("not found")

	// ErrInvalidArgument means a request field is missing or malformed.
	ErrInvalidArgument = eris.New("invalid argument")

	// ErrUpstreamUnavailable means the chart/score service is unreachable or
	// returned a non-2xx response.
	ErrUpstreamUnavailable = eris.New("upstream unavailable")

	// ErrRateLimited means a per-resource cooldown has not elapsed.
	ErrRateLimited = eris.New("rate limited")
)
