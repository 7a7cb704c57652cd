package core

import (
	"fmt"
	"testing"

	"github.com/dkeye/GeoMeet/internal/domain"
	"github.com/stretchr/testify/assert"
)

func sharingSnapshot(n int) domain.Snapshot {
	s := make(domain.Snapshot, 0, n)
	for i := 0; i < n; i++ {
		id := domain.ClientID(fmt.Sprintf("c%d", i))
		s = append(s, domain.NewSharingMember(id, string(id), 17+float64(i)/10, 78+float64(i)/10))
	}
	return s
}

func TestClassify_Thresholds(t *testing.T) {
	want := map[int]domain.Status{
		0: domain.InsufficientParticipants,
		1: domain.InsufficientParticipants,
		2: domain.Ready,
		3: domain.Ready,
		4: domain.Ready,
		5: domain.Ready,
		6: domain.TooManyParticipants,
		9: domain.TooManyParticipants,
	}
	for n, status := range want {
		assert.Equal(t, status, Classify(sharingSnapshot(n)), "sharing=%d", n)
	}
}

func TestClassify_IgnoresMembersNotSharing(t *testing.T) {
	lat := 17.0
	s := domain.Snapshot{
		domain.NewSharingMember("a", "Ann", 17.0, 78.0),
		{ClientID: "b", Name: "Bob"},
		{ClientID: "c", Name: "Cid", Lat: &lat},
		{ClientID: "d", Name: "Dee"},
	}
	assert.Equal(t, domain.InsufficientParticipants, Classify(s))
	assert.Len(t, SharingPoints(s), 1)
}

func TestClassify_ZeroCoordinatesCountAsSharing(t *testing.T) {
	s := domain.Snapshot{
		domain.NewSharingMember("a", "Ann", 0, 0),
		domain.NewSharingMember("b", "Bob", 0, 78.0),
	}
	assert.Equal(t, domain.Ready, Classify(s))
}

func TestClassify_Deterministic(t *testing.T) {
	s := sharingSnapshot(4)
	first := Classify(s)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Classify(s))
	}
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "ready", domain.Ready.String())
	assert.Equal(t, "insufficient_participants", domain.InsufficientParticipants.String())
	assert.Equal(t, "too_many_participants", domain.TooManyParticipants.String())
}
