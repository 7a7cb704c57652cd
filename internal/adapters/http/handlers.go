package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/GeoMeet/internal/app"
	"github.com/dkeye/GeoMeet/internal/config"
	"github.com/dkeye/GeoMeet/internal/core"
	"github.com/dkeye/GeoMeet/internal/domain"
)

type handlers struct {
	cfg     *config.Config
	session Session
}

type createRoomRequest struct {
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
}

type createRoomResponse struct {
	RoomID domain.RoomID `json:"roomId"`
	Link   string        `json:"link,omitempty"`
}

type joinRoomRequest struct {
	RoomID      domain.RoomID `json:"roomId"`
	DisplayName string        `json:"displayName"`
	Password    string        `json:"password"`
}

// locationRequest carries a browser reading. Without both coordinates the
// configured locator is used instead.
type locationRequest struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

type venuesRequest struct {
	Keyword string `json:"keyword"`
	Radius  int    `json:"radius"`
}

var errBadLocation = errors.New("lat and lon must be given together")

func (h *handlers) state(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.View())
}

func (h *handlers) identity(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"clientId": h.session.ClientID()})
}

func (h *handlers) shareLink(c *gin.Context) {
	link, err := h.session.ShareLink(h.cfg.ShareBaseURL)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"link": link})
}

func (h *handlers) createRoom(c *gin.Context) {
	var req createRoomRequest
	if !bind(c, &req) {
		return
	}
	roomID, err := h.session.CreateRoom(c.Request.Context(), h.displayName(req.DisplayName), req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := createRoomResponse{RoomID: roomID}
	if link, err := h.session.ShareLink(h.cfg.ShareBaseURL); err == nil {
		resp.Link = link
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *handlers) joinRoom(c *gin.Context) {
	var req joinRoomRequest
	if !bind(c, &req) {
		return
	}
	if err := h.session.JoinRoom(c.Request.Context(), req.RoomID, h.displayName(req.DisplayName), req.Password); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.session.View())
}

func (h *handlers) shareLocation(c *gin.Context) {
	var req locationRequest
	if !bind(c, &req) {
		return
	}

	var (
		at  domain.Point
		err error
	)
	switch {
	case req.Lat != nil && req.Lon != nil:
		at, err = h.session.ShareLocationAt(c.Request.Context(), domain.Point{Lat: *req.Lat, Lon: *req.Lon})
	case req.Lat == nil && req.Lon == nil:
		at, err = h.session.ShareLocation(c.Request.Context())
	default:
		err = errBadLocation
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, at)
}

func (h *handlers) findVenues(c *gin.Context) {
	var req venuesRequest
	if !bind(c, &req) {
		return
	}
	if req.Keyword == "" {
		req.Keyword = h.cfg.Venues.Keyword
	}
	if req.Radius <= 0 {
		req.Radius = h.cfg.Venues.Radius
	}
	venues, err := h.session.FindVenues(c.Request.Context(), req.Keyword, req.Radius)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"venues": venues})
}

func (h *handlers) displayName(name string) string {
	if name == "" {
		return h.cfg.DisplayName
	}
	return name
}

// bind decodes an optional JSON body. An empty body leaves v zeroed.
func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	return true
}

func writeError(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.Warn().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Int("status", status).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, app.ErrBusy), errors.Is(err, app.ErrNoActiveRoom):
		return http.StatusConflict
	case errors.Is(err, app.ErrClosed), errors.Is(err, core.ErrLocationUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, app.ErrEmptyRoomID),
		errors.Is(err, domain.ErrDisplayNameEmpty),
		errors.Is(err, domain.ErrDisplayNameTooLong),
		errors.Is(err, errBadLocation):
		return http.StatusBadRequest
	case core.IsPolicy(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrLocationDenied), errors.Is(err, core.ErrAuthFailure):
		return http.StatusForbidden
	case errors.Is(err, core.ErrLocationTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, core.ErrRoomNotFound):
		return http.StatusNotFound
	case core.IsRemote(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
