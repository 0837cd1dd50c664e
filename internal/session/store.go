// Package session persists conversations between turns and serializes the turns of one
// session.
package session

import (
	"context"
	"time"

	"service-discovery/internal/models"
)

// Store persists sessions. Get returns a SESSION_NOT_FOUND error for unknown IDs, Lock
// returns SESSION_BUSY while another holder owns the lock.
type Store interface {
	Get(ctx context.Context, id string) (*models.Session, error)
	Put(ctx context.Context, s *models.Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
	Lock(ctx context.Context, id string, ttl time.Duration) (unlock func(), err error)
	Ping(ctx context.Context) error
}
