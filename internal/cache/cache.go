package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache defines the interface for byte-oriented caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key generates a cache key for an embedding input. The model name is part
// of the key because vectors from different models are not interchangeable.
func Key(model, text string) string {
	hash := sha256.Sum256([]byte(model + "\x00" + text))
	return "claimaudit:v1:" + hex.EncodeToString(hash[:])
}
