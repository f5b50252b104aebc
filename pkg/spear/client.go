// Package spear provides a client for the SPEAR public planning API.
package spear

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/spear-sync/internal/fetcher"
)

// DefaultBaseURL is the SPEAR REST API root.
const DefaultBaseURL = "https://www.spear.land.vic.gov.au/spear/api/v1"

// ErrNoData is returned when a response lacks its data field. SPEAR answers
// requests made with a missing or expired token this way instead of with 401.
var ErrNoData = eris.New("spear: response has no data")

// ErrNoToken is returned when the token endpoint answers without an access token.
var ErrNoToken = eris.New("spear: token response has no access_token")

// Client defines the SPEAR API operations.
type Client interface {
	// Token performs the public password grant and returns a bearer token.
	Token(ctx context.Context) (string, error)
	// SearchSites lists the responsible authorities visible to the public search.
	SearchSites(ctx context.Context, token string) ([]Site, error)
	// SearchApplications returns one page of a site's applications starting at startRow.
	SearchApplications(ctx context.Context, token string, siteID, startRow int) (*SearchPage, error)
	// ApplicationDetail looks up an application by its SPEAR reference.
	ApplicationDetail(ctx context.Context, token, reference string) (*ApplicationDetail, error)
	// ApplicationSummary fetches the summary for an internal application id.
	ApplicationSummary(ctx context.Context, token string, applicationID int64) (*ApplicationSummary, error)
	// InfoURL returns the public detail URL for a reference.
	InfoURL(reference string) string
}

// Credentials holds the fixed public password-grant parameters.
type Credentials struct {
	Username  string
	Password  string
	ClientID  string
	Scope     string
	BasicAuth string // value of the Basic authorization header, without the scheme
}

// DefaultCredentials returns the anonymous public credentials used by the SPEAR web UI.
func DefaultCredentials() Credentials {
	return Credentials{
		Username:  "public",
		ClientID:  "clientapp",
		Scope:     "spear_rest_api",
		BasicAuth: "Y2xpZW50YXBwOg==",
	}
}

// Option configures the SPEAR client.
type Option func(*httpClient)

// WithBaseURL sets a custom API base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithInfoBaseURL sets the base used to build public info URLs.
func WithInfoBaseURL(u string) Option {
	return func(c *httpClient) {
		c.infoBaseURL = strings.TrimRight(u, "/")
	}
}

// WithCredentials overrides the password-grant credentials.
func WithCredentials(creds Credentials) Option {
	return func(c *httpClient) {
		c.creds = creds
	}
}

type httpClient struct {
	fetcher     fetcher.Fetcher
	baseURL     string
	infoBaseURL string
	creds       Credentials
}

// NewClient creates a SPEAR client on top of the given fetcher.
func NewClient(f fetcher.Fetcher, opts ...Option) Client {
	c := &httpClient{
		fetcher: f,
		baseURL: DefaultBaseURL,
		creds:   DefaultCredentials(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.infoBaseURL == "" {
		c.infoBaseURL = c.baseURL
	}
	return c
}

func (c *httpClient) Token(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("username", c.creds.Username)
	form.Set("password", c.creds.Password)
	form.Set("grant_type", "password")
	form.Set("client_id", c.creds.ClientID)
	form.Set("scope", c.creds.Scope)

	header := http.Header{}
	header.Set("Authorization", "Basic "+c.creds.BasicAuth)

	var resp tokenResponse
	if err := c.fetcher.PostForm(ctx, c.baseURL+"/oauth/token", form, header, &resp); err != nil {
		return "", eris.Wrap(err, "spear: token")
	}
	if resp.AccessToken == "" {
		return "", eris.Wrap(ErrNoToken, "spear: token")
	}
	return resp.AccessToken, nil
}

func (c *httpClient) SearchSites(ctx context.Context, token string) ([]Site, error) {
	req := siteSearchRequest{Data: siteSearchFilter{
		SearchType:       "publicsearch",
		SearchTypeFilter: "all",
	}}

	var resp envelope[[]Site]
	if err := c.fetcher.PostJSON(ctx, c.baseURL+"/site/search", token, req, &resp); err != nil {
		return nil, eris.Wrap(err, "spear: site search")
	}
	if resp.Data == nil {
		return nil, eris.Wrap(ErrNoData, "spear: site search")
	}
	return *resp.Data, nil
}

func (c *httpClient) SearchApplications(ctx context.Context, token string, siteID, startRow int) (*SearchPage, error) {
	var resp envelope[SearchPage]
	err := c.fetcher.PostJSON(ctx, c.baseURL+"/applicationlist/publicSearch", token, newPublicSearch(siteID, startRow), &resp)
	if err != nil {
		return nil, eris.Wrapf(err, "spear: public search site %d row %d", siteID, startRow)
	}
	if resp.Data == nil {
		return nil, eris.Wrapf(ErrNoData, "spear: public search site %d row %d", siteID, startRow)
	}
	return resp.Data, nil
}

func (c *httpClient) ApplicationDetail(ctx context.Context, token, reference string) (*ApplicationDetail, error) {
	var resp envelope[ApplicationDetail]
	if err := c.fetcher.GetJSON(ctx, c.detailURL(c.baseURL, reference), token, &resp); err != nil {
		return nil, eris.Wrapf(err, "spear: application detail %s", reference)
	}
	// A payload without an application id cannot lead to a summary.
	if resp.Data == nil || resp.Data.ApplicationID == 0 {
		return nil, eris.Wrapf(ErrNoData, "spear: application detail %s", reference)
	}
	return resp.Data, nil
}

func (c *httpClient) ApplicationSummary(ctx context.Context, token string, applicationID int64) (*ApplicationSummary, error) {
	u := fmt.Sprintf("%s/applications/%d/summary", c.baseURL, applicationID)

	var resp envelope[ApplicationSummary]
	if err := c.fetcher.GetJSON(ctx, u, token, &resp); err != nil {
		return nil, eris.Wrapf(err, "spear: application summary %d", applicationID)
	}
	if resp.Data == nil {
		return nil, eris.Wrapf(ErrNoData, "spear: application summary %d", applicationID)
	}
	return resp.Data, nil
}

func (c *httpClient) InfoURL(reference string) string {
	return c.detailURL(c.infoBaseURL, reference)
}

func (c *httpClient) detailURL(base, reference string) string {
	return fmt.Sprintf("%s/applications/retrieve/%s?publicView=true", base, url.PathEscape(reference))
}
