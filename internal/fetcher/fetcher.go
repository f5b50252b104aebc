// Package fetcher provides the rate-limited HTTP transport used by API clients.
package fetcher

import (
	"context"
	"net/http"
	"net/url"
)

// Fetcher defines the JSON request/response operations API clients rely on.
// Implementations never retry; a failed call is reported to the caller.
type Fetcher interface {
	// GetJSON issues a GET with an optional bearer token and decodes the JSON response into out.
	GetJSON(ctx context.Context, rawURL, bearer string, out any) error

	// PostJSON encodes in as the request body, POSTs it with an optional bearer
	// token and decodes the JSON response into out.
	PostJSON(ctx context.Context, rawURL, bearer string, in, out any) error

	// PostForm POSTs a urlencoded form with extra headers and decodes the JSON response into out.
	PostForm(ctx context.Context, rawURL string, form url.Values, header http.Header, out any) error
}
