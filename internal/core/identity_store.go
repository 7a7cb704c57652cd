package core

import (
	"context"
	"sync"

	"github.com/dkeye/GeoMeet/internal/domain"
	"github.com/rs/zerolog/log"
)

const DefaultIdentityKey = "client_id"

// IdentityStore hands out the device identity, creating and persisting it
// on first use. Storage failures never fail the call: the identity is then
// only valid for the current process.
type IdentityStore struct {
	kv  KVStore
	key string

	mu sync.Mutex
	id domain.ClientID
}

func NewIdentityStore(kv KVStore, key string) *IdentityStore {
	if key == "" {
		key = DefaultIdentityKey
	}
	return &IdentityStore{kv: kv, key: key}
}

func (s *IdentityStore) GetOrCreate(ctx context.Context) domain.ClientID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id != "" {
		return s.id
	}

	v, ok, err := s.kv.Get(ctx, s.key)
	switch {
	case err != nil:
		// The stored identity may still exist; never overwrite it blindly.
		s.id = domain.NewClientID()
		log.Warn().Err(err).Str("module", "core.identity").Str("client_id", string(s.id)).Msg("identity read failed, valid for this session only")
		return s.id
	case ok && v != "":
		s.id = domain.ClientID(v)
		return s.id
	}

	id := domain.NewClientID()
	if err := s.kv.Set(ctx, s.key, string(id)); err != nil {
		log.Warn().Err(err).Str("module", "core.identity").Str("client_id", string(id)).Msg("identity not persisted, valid for this session only")
	} else {
		log.Info().Str("module", "core.identity").Str("client_id", string(id)).Msg("created identity")
	}
	s.id = id
	return s.id
}
