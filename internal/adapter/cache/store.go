package cache

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/seu-repo/voz-visible/internal/ports"
)

// Backend names accepted by NewStore.
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// NewStore builds the configured audio store. The redis backend needs a
// connected client; memory ignores dir.
func NewStore(backend, dir string, rdb *redis.Client, memoryMaxAge time.Duration, log *zap.Logger) (ports.AudioStore, error) {
	switch backend {
	case BackendFile, "":
		return NewFileStore(dir, log)
	case BackendRedis:
		if rdb == nil {
			return nil, fmt.Errorf("redis audio cache requires redis.url")
		}
		return NewRedisStore(rdb, log), nil
	case BackendMemory:
		return NewLocalStore(memoryMaxAge, time.Minute, log), nil
	default:
		return nil, fmt.Errorf("unknown audio cache backend %q", backend)
	}
}
