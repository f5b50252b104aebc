package spear

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/spear-sync/internal/fetcher"
)

func newTestClient(t *testing.T, handler http.Handler) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{Timeout: 5 * time.Second, Rate: 1000, Burst: 100})
	return NewClient(f, WithBaseURL(srv.URL))
}

func TestToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth/token", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Basic Y2xpZW50YXBwOg==", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "public", r.PostForm.Get("username"))
		assert.Equal(t, "", r.PostForm.Get("password"))
		assert.Equal(t, "password", r.PostForm.Get("grant_type"))
		assert.Equal(t, "clientapp", r.PostForm.Get("client_id"))
		assert.Equal(t, "spear_rest_api", r.PostForm.Get("scope"))
		w.Write([]byte(`{"access_token":"abc","token_type":"bearer"}`))
	})

	tok, err := newTestClient(t, mux).Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)
}

func TestToken_Missing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth/token", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"invalid_grant"}`))
	})

	_, err := newTestClient(t, mux).Token(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoToken))
}

func TestSearchSites(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /site/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		req, err := fetcher.DecodeJSONObject[siteSearchRequest](r.Body)
		require.NoError(t, err)
		assert.Equal(t, "publicsearch", req.Data.SearchType)
		assert.Equal(t, "all", req.Data.SearchTypeFilter)
		assert.Nil(t, req.Data.SearchText)
		w.Write([]byte(`{"data":[{"id":12,"name":"Alpine Shire"},{"id":40,"name":"Yarra"}]}`))
	})

	sites, err := newTestClient(t, mux).SearchSites(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, sites, 2)
	assert.Equal(t, 12, sites[0].ID)
	assert.Equal(t, "Yarra", sites[1].Name)
}

func TestSearchSites_NoData(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /site/search", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"unauthorised"}`))
	})

	_, err := newTestClient(t, mux).SearchSites(context.Background(), "stale")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoData))
}

func TestSearchApplications(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /applicationlist/publicSearch", func(w http.ResponseWriter, r *http.Request) {
		req, err := fetcher.DecodeJSONObject[publicSearchRequest](r.Body)
		require.NoError(t, err)
		assert.Equal(t, 7, req.Data.ResponsibleAuthoritySiteID)
		assert.Equal(t, 35, req.Data.ApplicationListSearchRequest.StartRow)
		assert.Equal(t, "SPEAR_REF", req.Data.ApplicationListSearchRequest.SortField)
		assert.Equal(t, "ALL", req.Data.Tab)
		w.Write([]byte(`{"data":{"numFound":36,"resultRows":[
			{"spearReference":"S000001A","property":"1 High St","submittedDate":"16/06/2024","applicationTypeDisplay":"Planning Permit"},
			{"spearReference":"S000002B","property":"2 High St","submittedDate":null,"applicationTypeDisplay":"Subdivision"}
		]}}`))
	})

	page, err := newTestClient(t, mux).SearchApplications(context.Background(), "tok", 7, 35)
	require.NoError(t, err)
	assert.Equal(t, 36, page.NumFound)
	require.Len(t, page.ResultRows, 2)
	require.NotNil(t, page.ResultRows[0].SubmittedDate)
	assert.Equal(t, "16/06/2024", *page.ResultRows[0].SubmittedDate)
	assert.Nil(t, page.ResultRows[1].SubmittedDate)
	assert.Equal(t, "Subdivision", page.ResultRows[1].ApplicationTypeDisplay)
}

func TestApplicationDetailAndSummary(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		switch r.URL.Path {
		case "/applications/retrieve/S000001A":
			assert.Equal(t, "true", r.URL.Query().Get("publicView"))
			w.Write([]byte(`{"data":{"applicationId":991}}`))
		case "/applications/991/summary":
			w.Write([]byte(`{"data":{"intendedUse":"Two lot subdivision"}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
	c := newTestClient(t, handler)

	detail, err := c.ApplicationDetail(context.Background(), "tok", "S000001A")
	require.NoError(t, err)
	assert.Equal(t, int64(991), detail.ApplicationID)

	summary, err := c.ApplicationSummary(context.Background(), "tok", detail.ApplicationID)
	require.NoError(t, err)
	assert.Equal(t, "Two lot subdivision", summary.IntendedUse)
}

func TestApplicationSummary_NoData(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /applications/{id}/summary", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":null}`))
	})

	_, err := newTestClient(t, mux).ApplicationSummary(context.Background(), "tok", 5)
	assert.True(t, errors.Is(err, ErrNoData))
}

func TestApplicationDetail_MissingApplicationID(t *testing.T) {
	for name, body := range map[string]string{
		"no data":    `{"status":"unauthorised"}`,
		"empty data": `{"data":{}}`,
		"zero id":    `{"data":{"applicationId":0}}`,
		"null id":    `{"data":{"applicationId":null}}`,
	} {
		t.Run(name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/applications/retrieve/S000001A" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				w.Write([]byte(body))
			})

			detail, err := newTestClient(t, handler).ApplicationDetail(context.Background(), "tok", "S000001A")
			assert.Nil(t, detail)
			assert.True(t, errors.Is(err, ErrNoData))
		})
	}
}

func TestInfoURL(t *testing.T) {
	c := NewClient(fetcher.NewHTTPFetcher(fetcher.HTTPOptions{}))
	assert.Equal(t,
		"https://www.spear.land.vic.gov.au/spear/api/v1/applications/retrieve/S123456X?publicView=true",
		c.InfoURL("S123456X"))

	c = NewClient(fetcher.NewHTTPFetcher(fetcher.HTTPOptions{}),
		WithBaseURL("http://127.0.0.1:9999/"),
		WithInfoBaseURL("https://spear.example/api/v1"))
	assert.Equal(t, "https://spear.example/api/v1/applications/retrieve/R1?publicView=true", c.InfoURL("R1"))
}
