package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantalabs/vantage/internal/httpclient"
)

func TestHTTPFetchFuncSubstitutesKey(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"price": 150.0}`))
	}))
	defer srv.Close()

	client := httpclient.WrapClient(srv.Client())
	fetch := HTTPFetchFunc(client, srv.URL+"/quote/{key}")

	payload, err := fetch(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "/quote/AAPL", gotPath)

	fields, ok := payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 150.0, fields["price"])
}

func TestHTTPFetchFuncUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := httpclient.WrapClient(srv.Client())
	fetch := HTTPFetchFunc(client, srv.URL+"/quote/{key}")

	_, err := fetch(context.Background(), "AAPL")
	require.Error(t, err)
}

func TestCatalogBindHTTP(t *testing.T) {
	catalog := &Catalog{Sources: []CatalogEntry{
		{Name: "alpha_quotes", DataType: "price", URL: "https://api.example.com/quote/{key}"},
		{Name: "manual_source", DataType: "price"},
	}}

	funcs := catalog.BindHTTP(httpclient.WrapClient(http.DefaultClient))
	require.Len(t, funcs, 1)
	assert.Contains(t, funcs, "alpha_quotes")
	assert.NotContains(t, funcs, "manual_source")
}

func TestHTTPSourceThroughOrchestrator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"price": 150.0, "change_percent": 1.2}`))
	}))
	defer srv.Close()

	catalog := &Catalog{Sources: []CatalogEntry{
		{Name: "alpha_quotes", DataType: "price", Priority: 1, URL: srv.URL + "/quote/{key}"},
	}}

	o := newTestOrchestrator(t)
	funcs := catalog.BindHTTP(httpclient.WrapClient(srv.Client()))
	require.NoError(t, o.RegisterFromCatalog(catalog, funcs))

	res := o.Fetch(context.Background(), "price", "AAPL")
	require.True(t, res.Success)
	assert.Equal(t, "alpha_quotes", res.Source)
	assert.Equal(t, 1.0, res.Validation.Confidence)
}
