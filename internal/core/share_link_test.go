package core

import (
	"net/url"
	"testing"

	"github.com/dkeye/GeoMeet/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShareLink(t *testing.T) {
	link, err := ShareLink("https://meet.example/app?lang=en", domain.Room{ID: "r1", Password: "p w&"})
	require.NoError(t, err)

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "r1", u.Query().Get("room"))
	assert.Equal(t, "p w&", u.Query().Get("password"))
	assert.Equal(t, "en", u.Query().Get("lang"))
}

func TestShareLink_NoPassword(t *testing.T) {
	link, err := ShareLink("http://localhost:8080/?password=old", domain.Room{ID: "r2"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/?room=r2", link)
}

func TestShareLink_BadBase(t *testing.T) {
	_, err := ShareLink("://nope", domain.Room{ID: "r"})
	assert.Error(t, err)
}
