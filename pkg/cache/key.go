package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// KeyPrefix namespaces result cache keys.
const KeyPrefix = "projcoords"

// RequestKey derives a cache key from the JSON encoding of req. Requests
// that encode identically share a key.
func RequestKey(req any) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode cache key: %w", err)
	}
	sum := sha256.Sum256(data)
	return KeyPrefix + ":result:" + hex.EncodeToString(sum[:]), nil
}
