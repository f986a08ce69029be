package redisstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/JacobCoffee/go-api-auth/apikey"
)

// storedKey is the JSON wire form of a key record in redis.
type storedKey struct {
	ID         string         `json:"key_id"`
	Hash       string         `json:"key_hash"`
	Name       string         `json:"name"`
	Scopes     []string       `json:"scopes"`
	IsActive   bool           `json:"is_active"`
	CreatedAt  time.Time      `json:"created_at"`
	ExpiresAt  *time.Time     `json:"expires_at,omitempty"`
	LastUsedAt *time.Time     `json:"last_used_at,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// marshalKey serializes a record for storage.
func marshalKey(key apikey.Key) (string, error) {
	payload, errMarshal := json.Marshal(storedKey{
		ID:         key.ID,
		Hash:       key.Hash,
		Name:       key.Name,
		Scopes:     key.Scopes,
		IsActive:   key.IsActive,
		CreatedAt:  key.CreatedAt,
		ExpiresAt:  key.ExpiresAt,
		LastUsedAt: key.LastUsedAt,
		Metadata:   key.Metadata,
	})
	if errMarshal != nil {
		return "", fmt.Errorf("redisstore: marshal key: %w", errMarshal)
	}
	return string(payload), nil
}

// unmarshalKey deserializes a stored record.
func unmarshalKey(data string) (apikey.Key, error) {
	var stored storedKey
	if errUnmarshal := json.Unmarshal([]byte(data), &stored); errUnmarshal != nil {
		return apikey.Key{}, fmt.Errorf("redisstore: unmarshal key: %w", errUnmarshal)
	}
	return apikey.Key{
		ID:         stored.ID,
		Hash:       stored.Hash,
		Name:       stored.Name,
		Scopes:     stored.Scopes,
		IsActive:   stored.IsActive,
		CreatedAt:  stored.CreatedAt,
		ExpiresAt:  stored.ExpiresAt,
		LastUsedAt: stored.LastUsedAt,
		Metadata:   stored.Metadata,
	}, nil
}
