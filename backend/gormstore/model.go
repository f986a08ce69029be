package gormstore

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/JacobCoffee/go-api-auth/apikey"
)

// DefaultTableName is the table used when the config does not override it.
const DefaultTableName = "api_keys"

// KeyRecord is the relational row for an API key. The internal primary key
// is an auto-increment integer; the public id and the hash each carry their
// own unique index so either lookup path stays a single indexed read.
type KeyRecord struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Internal primary key.

	KeyID   string `gorm:"type:text;not null;uniqueIndex"` // Public identifier (UUID).
	KeyHash string `gorm:"type:text;not null;uniqueIndex"` // Hex digest of the raw key.

	Name   string         `gorm:"type:text;not null"`                // Display name.
	Scopes datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"` // Granted scopes in JSON.

	IsActive bool `gorm:"not null;default:true"` // Whether the key is enabled.

	CreatedAt  time.Time  `gorm:"not null"` // Creation timestamp.
	ExpiresAt  *time.Time // Optional expiration timestamp.
	LastUsedAt *time.Time // Last successful usage time.

	Metadata datatypes.JSON `gorm:"type:jsonb"` // Open metadata in JSON.
}

// TableName returns the default table name; stores with a custom table
// override it per query.
func (KeyRecord) TableName() string { return DefaultTableName }

// toRecord converts a domain key into a row.
func toRecord(key apikey.Key) (KeyRecord, error) {
	scopes := key.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	scopesJSON, errScopes := json.Marshal(scopes)
	if errScopes != nil {
		return KeyRecord{}, fmt.Errorf("gormstore: marshal scopes: %w", errScopes)
	}

	var metadataJSON datatypes.JSON
	if key.Metadata != nil {
		raw, errMetadata := json.Marshal(key.Metadata)
		if errMetadata != nil {
			return KeyRecord{}, fmt.Errorf("gormstore: marshal metadata: %w", errMetadata)
		}
		metadataJSON = raw
	}

	return KeyRecord{
		KeyID:      key.ID,
		KeyHash:    key.Hash,
		Name:       key.Name,
		Scopes:     scopesJSON,
		IsActive:   key.IsActive,
		CreatedAt:  key.CreatedAt,
		ExpiresAt:  key.ExpiresAt,
		LastUsedAt: key.LastUsedAt,
		Metadata:   metadataJSON,
	}, nil
}

// toKey converts a row back into a domain key.
func toKey(rec KeyRecord) (apikey.Key, error) {
	var scopes []string
	if len(rec.Scopes) > 0 {
		if errScopes := json.Unmarshal(rec.Scopes, &scopes); errScopes != nil {
			return apikey.Key{}, fmt.Errorf("gormstore: unmarshal scopes: %w", errScopes)
		}
	}

	var metadata map[string]any
	if len(rec.Metadata) > 0 {
		if errMetadata := json.Unmarshal(rec.Metadata, &metadata); errMetadata != nil {
			return apikey.Key{}, fmt.Errorf("gormstore: unmarshal metadata: %w", errMetadata)
		}
	}

	return apikey.Key{
		ID:         rec.KeyID,
		Hash:       rec.KeyHash,
		Name:       rec.Name,
		Scopes:     scopes,
		IsActive:   rec.IsActive,
		CreatedAt:  rec.CreatedAt,
		ExpiresAt:  rec.ExpiresAt,
		LastUsedAt: rec.LastUsedAt,
		Metadata:   metadata,
	}, nil
}
