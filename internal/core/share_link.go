package core

import (
	"fmt"
	"net/url"

	"github.com/dkeye/GeoMeet/internal/domain"
)

// ShareLink encodes the room id and, if set, the password into the query of
// base. The password travels in plaintext.
func ShareLink(base string, room domain.Room) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid share base url: %w", err)
	}
	q := u.Query()
	q.Set("room", string(room.ID))
	if room.Password != "" {
		q.Set("password", room.Password)
	} else {
		q.Del("password")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
