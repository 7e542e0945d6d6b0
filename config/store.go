package config

import (
	"context"
	"fmt"

	"github.com/vitalvas/cavage/httpsig"
)

// Store is an in-memory httpsig.ClientStore keyed by key id. It is
// read-only after construction.
type Store struct {
	clients map[string]httpsig.InboundClient
}

// NewStore indexes clients by key id. A later client replaces an earlier
// one with the same key id.
func NewStore(clients ...httpsig.InboundClient) *Store {
	s := &Store{clients: make(map[string]httpsig.InboundClient, len(clients))}
	for _, c := range clients {
		s.clients[c.KeyID] = c
	}

	return s
}

// LoadByKeyID returns the client registered for keyID.
func (s *Store) LoadByKeyID(_ context.Context, keyID string) (httpsig.InboundClient, error) {
	c, ok := s.clients[keyID]
	if !ok {
		return httpsig.InboundClient{}, fmt.Errorf("%w: %q", httpsig.ErrUnknownKeyID, keyID)
	}

	return c, nil
}

// Len returns the number of registered clients.
func (s *Store) Len() int { return len(s.clients) }
