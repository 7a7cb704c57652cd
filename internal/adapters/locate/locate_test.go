package locate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dkeye/GeoMeet/internal/core"
	"github.com/dkeye/GeoMeet/internal/domain"
)

func TestStatic(t *testing.T) {
	p, err := NewStatic(17.385, 78.486).Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Point{Lat: 17.385, Lon: 78.486}, p)

	var none *Static
	_, err = none.Locate(context.Background())
	assert.ErrorIs(t, err, core.ErrLocationUnavailable)
}

func TestWithTimeout(t *testing.T) {
	slow := core.LocatorFunc(func(ctx context.Context) (domain.Point, error) {
		<-ctx.Done()
		return domain.Point{}, ctx.Err()
	})
	_, err := WithTimeout(slow, 10*time.Millisecond).Locate(context.Background())
	assert.ErrorIs(t, err, core.ErrLocationTimeout)

	fast := NewStatic(1, 2)
	assert.Same(t, fast, WithTimeout(fast, 0))
	p, err := WithTimeout(fast, time.Second).Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Point{Lat: 1, Lon: 2}, p)
}

func TestIPAPI(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
		point  domain.Point
	}{
		{name: "success", status: 200, body: `{"status":"success","lat":17.38,"lon":78.48}`, point: domain.Point{Lat: 17.38, Lon: 78.48}},
		{name: "zero coordinates", status: 200, body: `{"status":"success","lat":0,"lon":0}`},
		{name: "lookup failed", status: 200, body: `{"status":"fail","message":"private range"}`, want: core.ErrLocationUnavailable},
		{name: "forbidden", status: 403, body: ``, want: core.ErrLocationDenied},
		{name: "server error", status: 500, body: ``, want: core.ErrLocationUnavailable},
		{name: "garbage", status: 200, body: `not json`, want: core.ErrLocationUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			p, err := NewIPAPI(srv.URL, srv.Client()).Locate(context.Background())
			if tc.want != nil {
				assert.ErrorIs(t, err, tc.want)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.point, p)
		})
	}
}

func TestIPAPI_DefaultClientIsInstrumented(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","lat":1.5,"lon":2.5}`))
	}))
	defer srv.Close()

	l := NewIPAPI(srv.URL, nil)
	assert.IsType(t, &otelhttp.Transport{}, l.client.Transport)

	p, err := l.Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Point{Lat: 1.5, Lon: 2.5}, p)
}

func TestIPAPI_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := WithTimeout(NewIPAPI(srv.URL, srv.Client()), 20*time.Millisecond).Locate(context.Background())
	assert.ErrorIs(t, err, core.ErrLocationTimeout)
}
