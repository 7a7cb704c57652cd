package locate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dkeye/GeoMeet/internal/core"
	"github.com/dkeye/GeoMeet/internal/domain"
)

const DefaultIPAPIURL = "http://ip-api.com/json/?fields=status,message,lat,lon"

type ipAPIResponse struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
}

// IPAPI approximates the device position from its public address using an
// ip-api compatible endpoint.
type IPAPI struct {
	url    string
	client *http.Client
}

func NewIPAPI(url string, client *http.Client) *IPAPI {
	if url == "" {
		url = DefaultIPAPIURL
	}
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &IPAPI{url: url, client: client}
}

func (l *IPAPI) Locate(ctx context.Context) (domain.Point, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return domain.Point{}, fmt.Errorf("%w: %v", core.ErrLocationUnavailable, err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.Point{}, core.ErrLocationTimeout
		}
		return domain.Point{}, fmt.Errorf("%w: %v", core.ErrLocationUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		return domain.Point{}, core.ErrLocationDenied
	case resp.StatusCode != http.StatusOK:
		return domain.Point{}, fmt.Errorf("%w: lookup returned %d", core.ErrLocationUnavailable, resp.StatusCode)
	}

	var body ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.Point{}, fmt.Errorf("%w: %v", core.ErrLocationUnavailable, err)
	}
	if body.Status != "success" || body.Lat == nil || body.Lon == nil {
		log.Debug().Str("module", "adapters.locate").Str("status", body.Status).Str("message", body.Message).Msg("ip lookup failed")
		return domain.Point{}, fmt.Errorf("%w: %s", core.ErrLocationUnavailable, body.Message)
	}
	return domain.Point{Lat: *body.Lat, Lon: *body.Lon}, nil
}
