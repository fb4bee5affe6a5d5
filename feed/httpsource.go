package feed

import (
	"context"
	"strings"

	"github.com/vantalabs/vantage/internal/httpclient"
)

// HTTPFetchFunc builds a FetchFunc that GETs a JSON endpoint. The
// {key} placeholder in urlTemplate is replaced with the fetch key, so a
// catalog can describe per-ticker endpoints declaratively.
func HTTPFetchFunc(client *httpclient.SaferClient, urlTemplate string) FetchFunc {
	return func(ctx context.Context, key string) (interface{}, error) {
		url := strings.ReplaceAll(urlTemplate, "{key}", key)
		return client.GetJSON(ctx, url)
	}
}

// BindHTTP returns fetch functions for every catalog entry that
// declares a URL, keyed by source name. Entries without a URL are left
// for the caller to bind programmatically.
func (c *Catalog) BindHTTP(client *httpclient.SaferClient) map[string]FetchFunc {
	funcs := make(map[string]FetchFunc)
	for _, entry := range c.Sources {
		if entry.URL != "" {
			funcs[entry.Name] = HTTPFetchFunc(client, entry.URL)
		}
	}
	return funcs
}
