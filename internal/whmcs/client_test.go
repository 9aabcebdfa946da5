package whmcs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, url string, httpClient *http.Client) *Client {
	t.Helper()

	client, err := NewClient(Config{
		APIURL:     url,
		Identifier: "test-id",
		Secret:     "test-secret",
		Timeout:    5 * time.Second,
		CacheTTL:   time.Minute,
		HTTPClient: httpClient,
	})
	require.NoError(t, err)

	// No real backoff waits in tests.
	client.sleep = func(context.Context, time.Duration) error { return nil }
	return client
}

func TestNewClientValidation(t *testing.T) {
	var validationErr *ValidationError

	_, err := NewClient(Config{Identifier: "id", Secret: "secret"})
	require.Error(t, err)
	assert.True(t, errors.As(err, &validationErr))

	_, err = NewClient(Config{APIURL: "http://example.com", Secret: "secret"})
	require.Error(t, err)
	assert.True(t, errors.As(err, &validationErr))

	_, err = NewClient(Config{APIURL: "http://example.com", Identifier: "id"})
	require.Error(t, err)
	assert.True(t, errors.As(err, &validationErr))
}

func TestFetchCatalogSendsAuthenticatedForm(t *testing.T) {
	var gotForm map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"identifier":   r.PostForm.Get("identifier"),
			"secret":       r.PostForm.Get("secret"),
			"action":       r.PostForm.Get("action"),
			"responsetype": r.PostForm.Get("responsetype"),
			"pid":          r.PostForm.Get("pid"),
		}
		fmt.Fprint(w, `{"result":"success","products":{"product":[]}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)

	_, err := client.FetchCatalog(context.Background(), map[string]string{"pid": "42"}, false)
	require.NoError(t, err)

	assert.Equal(t, "test-id", gotForm["identifier"])
	assert.Equal(t, "test-secret", gotForm["secret"])
	assert.Equal(t, "GetProducts", gotForm["action"])
	assert.Equal(t, "json", gotForm["responsetype"])
	assert.Equal(t, "42", gotForm["pid"])
}

func TestFetchCatalogNormalizesShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{
			name: "list of products",
			body: `{"result":"success","products":{"product":[{"pid":"1","name":"A"},{"pid":"2","name":"B"}]}}`,
			want: 2,
		},
		{
			name: "single product object",
			body: `{"result":"success","products":{"product":{"pid":"7","name":"Solo"}}}`,
			want: 1,
		},
		{
			name: "absent collection",
			body: `{"result":"success"}`,
			want: 0,
		},
		{
			name: "empty collection",
			body: `{"result":"success","products":{}}`,
			want: 0,
		},
		{
			name: "bare list",
			body: `{"result":"success","products":[{"pid":3,"name":"C"}]}`,
			want: 1,
		},
		{
			name: "malformed entries skipped",
			body: `{"result":"success","products":{"product":[{"pid":"1","name":"A"},"garbage",42]}}`,
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			client := newTestClient(t, server.URL, nil)

			products, err := client.FetchCatalog(context.Background(), nil, false)
			require.NoError(t, err)
			assert.Len(t, products, tt.want)
		})
	}
}

func TestFetchCatalogCoercesFields(t *testing.T) {
	body := `{"result":"success","products":{"product":[{
		"pid":"15","gid":"3","name":"VPS Small","description":"2 vCPU",
		"module":"virtualizor","stockcontrol":"1","qty":"8","retired":"0","order":"2",
		"pricing":{"USD":{"monthly":{"price":"9.95","setup":"0.00"},"annually":{"price":99.5,"setup":10}}}
	}]}}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)

	products, err := client.FetchCatalog(context.Background(), nil, false)
	require.NoError(t, err)
	require.Len(t, products, 1)

	p := products[0]
	assert.Equal(t, int64(15), p.ID)
	assert.Equal(t, int64(3), p.GroupID)
	assert.Equal(t, "VPS Small", p.Name)
	assert.True(t, p.StockControl)
	assert.Equal(t, 8, p.Quantity)
	assert.True(t, p.Available)
	assert.Equal(t, 2, p.Order)

	require.Contains(t, p.Pricing, "USD")
	assert.Equal(t, 9.95, p.Pricing["USD"]["monthly"].Price)
	assert.Equal(t, 0.0, p.Pricing["USD"]["monthly"].Setup)
	assert.Equal(t, 99.5, p.Pricing["USD"]["annually"].Price)
	assert.Equal(t, 10.0, p.Pricing["USD"]["annually"].Setup)
}

func TestFetchCatalogRetiredAndStockControlDefaults(t *testing.T) {
	body := `{"result":"success","products":{"product":[{"pid":"1","name":"A","retired":"1","stockcontrol":"0"}]}}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)

	products, err := client.FetchCatalog(context.Background(), nil, false)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.False(t, products[0].Available)
	assert.False(t, products[0].StockControl)
}

func TestFetchCatalogUsesCache(t *testing.T) {
	var hits int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		fmt.Fprint(w, `{"result":"success","products":{"product":[{"pid":"1","name":"A"}]}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)

	_, err := client.FetchCatalog(context.Background(), nil, true)
	require.NoError(t, err)
	_, err = client.FetchCatalog(context.Background(), nil, true)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	// Bypassing the cache forces a live request.
	_, err = client.FetchCatalog(context.Background(), nil, false)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestAuthErrorNotRetried(t *testing.T) {
	var hits int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		// WHMCS reports auth failures inside an HTTP 200 body.
		fmt.Fprint(w, `{"result":"error","message":"Invalid Identifier or Secret"}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)

	_, err := client.FetchCatalog(context.Background(), nil, false)
	require.Error(t, err)

	var authErr *AuthError
	assert.True(t, errors.As(err, &authErr))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestAPIErrorNotRetried(t *testing.T) {
	var hits int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		fmt.Fprint(w, `{"result":"error","message":"Invalid action requested"}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)

	_, err := client.FetchCatalog(context.Background(), nil, false)
	require.Error(t, err)

	var apiErr *APIError
	assert.True(t, errors.As(err, &apiErr))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestNonJSONResponseIsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>maintenance</html>")
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)

	_, err := client.FetchCatalog(context.Background(), nil, false)
	require.Error(t, err)

	var apiErr *APIError
	assert.True(t, errors.As(err, &apiErr))
}

func TestHTTPErrorStatusIsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)

	_, err := client.FetchCatalog(context.Background(), nil, false)
	require.Error(t, err)

	var apiErr *APIError
	assert.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

type fakeTimeoutError struct{}

func (fakeTimeoutError) Error() string   { return "i/o timeout" }
func (fakeTimeoutError) Timeout() bool   { return true }
func (fakeTimeoutError) Temporary() bool { return true }

func TestConnectionErrorRetriedUntilSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":"success","products":{"product":[{"pid":"1","name":"A"}]}}`)
	}))
	defer server.Close()

	var attempts int32
	transport := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		if atomic.AddInt32(&attempts, 1) <= 2 {
			return nil, errors.New("connection refused")
		}
		return http.DefaultTransport.RoundTrip(r)
	})

	client := newTestClient(t, server.URL, &http.Client{Transport: transport})

	products, err := client.FetchCatalog(context.Background(), nil, false)
	require.NoError(t, err)
	assert.Len(t, products, 1)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestConnectionErrorExhaustsAttemptCap(t *testing.T) {
	var attempts int32
	transport := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		atomic.AddInt32(&attempts, 1)
		return nil, errors.New("connection refused")
	})

	client := newTestClient(t, "http://localhost:1", &http.Client{Transport: transport})

	_, err := client.FetchCatalog(context.Background(), nil, false)
	require.Error(t, err)

	var connErr *ConnectionError
	assert.True(t, errors.As(err, &connErr))
	assert.Equal(t, int32(DefaultBackoff.MaxAttempts), atomic.LoadInt32(&attempts))
}

func TestTimeoutClassifiedAndRetried(t *testing.T) {
	var attempts int32
	transport := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		atomic.AddInt32(&attempts, 1)
		return nil, fakeTimeoutError{}
	})

	client := newTestClient(t, "http://localhost:1", &http.Client{Transport: transport})

	_, err := client.FetchCatalog(context.Background(), nil, false)
	require.Error(t, err)

	var timeoutErr *TimeoutError
	assert.True(t, errors.As(err, &timeoutErr))
	assert.Equal(t, int32(DefaultBackoff.MaxAttempts), atomic.LoadInt32(&attempts))
}

func TestFetchItemNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":"success","products":{"product":[]}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)

	product, err := client.FetchItem(context.Background(), 99, false)
	require.NoError(t, err)
	assert.Nil(t, product)
}

func TestFetchInventory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":"success","products":{"product":[{"pid":"5","name":"VPS","stockcontrol":"1","qty":"12"}]}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)

	snapshot, err := client.FetchInventory(context.Background(), 5, false)
	require.NoError(t, err)
	assert.Equal(t, int64(5), snapshot.ProductID)
	assert.Equal(t, "VPS", snapshot.Name)
	assert.True(t, snapshot.StockControl)
	assert.Equal(t, 12, snapshot.Quantity)
	assert.True(t, snapshot.Available)
	assert.False(t, snapshot.FetchedAt.IsZero())
}

func TestFetchInventoryMissingProduct(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":"success","products":{"product":[]}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)

	_, err := client.FetchInventory(context.Background(), 99, false)
	require.Error(t, err)

	var apiErr *APIError
	assert.True(t, errors.As(err, &apiErr))
}

func TestTestConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "1", r.PostForm.Get("limitnum"))
		fmt.Fprint(w, `{"result":"success","products":{"product":[]}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)
	assert.NoError(t, client.TestConnection(context.Background()))
}

func TestBackoffPolicyDelay(t *testing.T) {
	policy := BackoffPolicy{
		BaseDelay:   time.Second,
		Multiplier:  2,
		MaxDelay:    10 * time.Second,
		MaxAttempts: 6,
	}

	assert.Equal(t, time.Second, policy.Delay(1))
	assert.Equal(t, 2*time.Second, policy.Delay(2))
	assert.Equal(t, 4*time.Second, policy.Delay(3))
	assert.Equal(t, 8*time.Second, policy.Delay(4))
	assert.Equal(t, 10*time.Second, policy.Delay(5))
	assert.Equal(t, 10*time.Second, policy.Delay(6))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&ConnectionError{Err: errors.New("refused")}))
	assert.True(t, IsRetryable(&TimeoutError{Timeout: time.Second}))
	assert.False(t, IsRetryable(&AuthError{Message: "bad credentials"}))
	assert.False(t, IsRetryable(&APIError{Message: "bad action"}))
	assert.False(t, IsRetryable(&ValidationError{Message: "missing url"}))
	assert.False(t, IsRetryable(errors.New("plain")))
}
