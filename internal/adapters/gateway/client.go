// Package gateway talks to the remote room service over HTTP+JSON.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dkeye/GeoMeet/internal/core"
	"github.com/dkeye/GeoMeet/internal/domain"
	"github.com/dkeye/GeoMeet/internal/metrics"
)

const maxResponseBytes = 1 << 20

type Options struct {
	BaseURL string
	// Timeout of 0 means no client-side limit.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client implements core.RoomGateway. It never retries.
type Client struct {
	base *url.URL
	http *http.Client
}

var _ core.RoomGateway = (*Client)(nil)

func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("gateway base url is empty")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid gateway base url: %w", err)
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &Client{base: base, http: hc}, nil
}

func (c *Client) CreateRoom(ctx context.Context, password string) (domain.RoomID, error) {
	env, err := c.do(ctx, "createRoom", http.MethodPost, "/create-room", nil, createRoomRequest{Password: password})
	if err != nil {
		return "", err
	}
	if env.RoomID == "" {
		return "", core.NewRemoteError("createRoom", "Room service returned no room id")
	}
	return domain.RoomID(env.RoomID), nil
}

func (c *Client) JoinRoom(ctx context.Context, roomID domain.RoomID, clientID domain.ClientID, displayName, password string) error {
	_, err := c.do(ctx, "joinRoom", http.MethodPost, "/join-room", nil, joinRoomRequest{
		RoomID:      string(roomID),
		ClientID:    string(clientID),
		DisplayName: displayName,
		Password:    password,
	})
	return err
}

func (c *Client) PushLocation(ctx context.Context, roomID domain.RoomID, clientID domain.ClientID, displayName string, at domain.Point) error {
	_, err := c.do(ctx, "pushLocation", http.MethodPost, "/update-location", nil, locationRequest{
		RoomID:      string(roomID),
		ClientID:    string(clientID),
		DisplayName: displayName,
		Lat:         at.Lat,
		Lon:         at.Lon,
	})
	return err
}

func (c *Client) GetMembers(ctx context.Context, roomID domain.RoomID) (domain.Snapshot, error) {
	env, err := c.do(ctx, "getMembers", http.MethodGet, "/room-members", url.Values{"roomId": {string(roomID)}}, nil)
	if err != nil {
		return nil, err
	}
	if env.Members == nil {
		return domain.Snapshot{}, nil
	}
	return env.Members, nil
}

func (c *Client) FindVenues(ctx context.Context, q domain.VenueQuery) ([]domain.Venue, error) {
	env, err := c.do(ctx, "findVenues", http.MethodPost, "/find-venues", nil, venuesRequest{
		Keyword:   q.Keyword,
		Radius:    q.RadiusMeters,
		Locations: q.Centers,
	})
	if err != nil {
		return nil, err
	}
	if env.Venues == nil {
		return []domain.Venue{}, nil
	}
	return env.Venues, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body any) (*envelope, error) {
	env, err := c.roundTrip(ctx, op, method, path, query, body)
	metrics.GatewayRequests.WithLabelValues(op, metrics.Result(err)).Inc()
	if err != nil {
		log.Debug().Err(err).Str("module", "adapters.gateway").Str("op", op).Msg("remote call failed")
	}
	return env, err
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, query url.Values, body any) (*envelope, error) {
	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = query.Encode()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, core.NewRemoteError(op, err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, core.NewRemoteError(op, err.Error())
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &core.RemoteError{
			Op:      op,
			Message: fmt.Sprintf("unexpected response from room service (%d)", resp.StatusCode),
			Kind:    kindOf(resp.StatusCode),
		}
	}
	if resp.StatusCode/100 != 2 || !env.Success {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &core.RemoteError{Op: op, Message: msg, Kind: kindOf(resp.StatusCode)}
	}
	return &env, nil
}

func kindOf(status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return core.ErrAuthFailure
	case http.StatusNotFound:
		return core.ErrRoomNotFound
	default:
		return nil
	}
}
