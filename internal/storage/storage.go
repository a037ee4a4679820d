// Package storage persists guild, player and song records through a JSON
// datastore. Every method is an independent operation; callers treat failures
// as non-fatal and the engine logs rather than propagates them.
package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/keshon/datastore"
)

const (
	guildKeyPrefix  = "guild:"
	playerKeyPrefix = "player:"
	songKeyPrefix   = "song:"
)

type Storage struct {
	ds *datastore.DataStore

	// datastore serializes its own map access; this mutex additionally makes
	// our read-modify-write record updates atomic.
	mu sync.Mutex
}

func New(ctx context.Context, filePath string) (*Storage, error) {
	ds, err := datastore.New(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("open datastore: %w", err)
	}
	return &Storage{ds: ds}, nil
}

func (s *Storage) Close() error {
	return s.ds.Close()
}

// getRecord decodes the stored record for key into out, reporting whether one
// exists. Missing keys and undecodable records both read as absent.
func (s *Storage) getRecord(key string, out any) bool {
	found, err := s.ds.Get(key, out)
	return err == nil && found
}

func (s *Storage) putRecord(key string, value any) error {
	return s.ds.Set(key, value)
}
