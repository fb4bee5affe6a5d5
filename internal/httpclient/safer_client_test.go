package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateURL(t *testing.T) {
	client := NewSaferClient(5 * time.Second)

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"public https", "https://api.example.com/quote", false},
		{"public http", "http://api.example.com/quote", false},
		{"file scheme", "file:///etc/passwd", true},
		{"ftp scheme", "ftp://example.com/data", true},
		{"localhost", "http://localhost:8080/", true},
		{"localhost subdomain", "http://api.localhost/", true},
		{"loopback ip", "http://127.0.0.1/", true},
		{"private 10 block", "http://10.0.0.5/", true},
		{"private 192.168 block", "http://192.168.1.1/", true},
		{"link local", "http://169.254.169.254/latest/meta-data/", true},
		{"credential injection", "http://evil.com@localhost/", true},
		{"missing hostname", "http:///path", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.ValidateURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsPrivateIP(t *testing.T) {
	private := []string{
		"10.1.2.3", "172.16.0.1", "192.168.0.1", "127.0.0.1",
		"169.254.1.1", "0.0.0.0", "224.0.0.1",
		"::1", "fe80::1", "fc00::1", "fd12::1", "2001:db8::1",
	}
	public := []string{"8.8.8.8", "1.1.1.1", "93.184.216.34", "2607:f8b0::1"}

	for _, s := range private {
		assert.True(t, isPrivateIP(net.ParseIP(s)), s)
	}
	for _, s := range public {
		assert.False(t, isPrivateIP(net.ParseIP(s)), s)
	}
}

func TestIsLocalhost(t *testing.T) {
	assert.True(t, isLocalhost("localhost"))
	assert.True(t, isLocalhost("LOCALHOST"))
	assert.True(t, isLocalhost("localhost.localdomain"))
	assert.True(t, isLocalhost("api.localhost"))
	assert.False(t, isLocalhost("example.com"))
	assert.False(t, isLocalhost("notlocalhost.com"))
}

func TestOptionsDisablePrivateIPBlocking(t *testing.T) {
	block := false
	client := NewSaferClientWithOptions(5*time.Second, SaferClientOptions{
		BlockPrivateIP: &block,
	})

	_, err := client.ValidateURL("http://localhost:8080/")
	assert.NoError(t, err)
}

func TestOptionsRestrictSchemes(t *testing.T) {
	client := NewSaferClientWithOptions(5*time.Second, SaferClientOptions{
		AllowedSchemes: []string{"https"},
	})

	_, err := client.ValidateURL("http://api.example.com/")
	assert.Error(t, err)
	_, err = client.ValidateURL("https://api.example.com/")
	assert.NoError(t, err)
}

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"price": 150.25, "currency": "USD"}`))
	}))
	defer srv.Close()

	client := WrapClient(srv.Client())
	payload, err := client.GetJSON(context.Background(), srv.URL)
	require.NoError(t, err)

	fields, ok := payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 150.25, fields["price"])
	assert.Equal(t, "USD", fields["currency"])
}

func TestGetJSONNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream rate limit", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := WrapClient(srv.Client())
	_, err := client.GetJSON(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 429")
}

func TestGetJSONInvalidBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	client := WrapClient(srv.Client())
	_, err := client.GetJSON(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}

func TestGetJSONBlockedURL(t *testing.T) {
	client := NewSaferClient(5 * time.Second)
	_, err := client.GetJSON(context.Background(), "http://127.0.0.1:9/")
	require.Error(t, err)
}

func TestDoBlocksPrivateTargets(t *testing.T) {
	client := NewSaferClient(5 * time.Second)

	req, err := http.NewRequest(http.MethodGet, "http://192.168.1.1/admin", nil)
	require.NoError(t, err)

	_, err = client.Do(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SSRF")
}
