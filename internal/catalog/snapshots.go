package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"service-discovery/internal/models"

	"github.com/redis/go-redis/v9"
)

type snapshot struct {
	SavedAt  time.Time              `json:"savedAt"`
	Services []models.ServiceRecord `json:"services"`
}

// MemorySnapshots keeps snapshots in process. Entries do not expire.
type MemorySnapshots struct {
	mu    sync.RWMutex
	items map[string]snapshot
	now   func() time.Time
}

func NewMemorySnapshots() *MemorySnapshots {
	return &MemorySnapshots{items: make(map[string]snapshot), now: time.Now}
}

func (m *MemorySnapshots) Save(_ context.Context, key string, services []models.ServiceRecord) error {
	cp := append([]models.ServiceRecord(nil), services...)
	m.mu.Lock()
	m.items[key] = snapshot{SavedAt: m.now().UTC(), Services: cp}
	m.mu.Unlock()
	return nil
}

func (m *MemorySnapshots) Latest(_ context.Context, key string) ([]models.ServiceRecord, time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.items[key]
	if !ok {
		return nil, time.Time{}, false, nil
	}
	return append([]models.ServiceRecord(nil), s.Services...), s.SavedAt, true, nil
}

// RedisSnapshots stores each snapshot as a JSON value with a TTL.
type RedisSnapshots struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisSnapshots stores keys under prefix. A zero ttl keeps snapshots forever.
func NewRedisSnapshots(client redis.Cmdable, prefix string, ttl time.Duration) *RedisSnapshots {
	if prefix == "" {
		prefix = "catalog:snapshot:"
	}
	return &RedisSnapshots{client: client, prefix: prefix, ttl: ttl, now: time.Now}
}

func (r *RedisSnapshots) Save(ctx context.Context, key string, services []models.ServiceRecord) error {
	data, err := json.Marshal(snapshot{SavedAt: r.now().UTC(), Services: services})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := r.client.Set(ctx, r.prefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("save snapshot %s: %w", key, err)
	}
	return nil
}

func (r *RedisSnapshots) Latest(ctx context.Context, key string) ([]models.ServiceRecord, time.Time, bool, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("read snapshot %s: %w", key, err)
	}

	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, time.Time{}, false, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return s.Services, s.SavedAt, true, nil
}
