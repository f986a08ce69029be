// Package gormstore provides a relational apikey.Backend on top of GORM,
// supporting PostgreSQL and SQLite.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/JacobCoffee/go-api-auth/apikey"
)

// Config holds construction-time options for a Store.
type Config struct {
	// DB is an existing GORM connection. The store treats it as shared
	// and never closes it.
	DB *gorm.DB
	// DSN is used to open a connection when DB is nil. A connection the
	// store opened itself is closed by Close.
	DSN string
	// TableName overrides the default "api_keys" table.
	TableName string
	// CreateTables runs schema migration at construction. Leave false
	// when external migration tooling owns the schema.
	CreateTables bool
}

// Store persists key records in a relational table.
type Store struct {
	db     *gorm.DB
	table  string
	ownsDB bool
}

// Statically assert the backend contract.
var _ apikey.Backend = (*Store)(nil)

// New validates cfg and constructs a Store.
func New(cfg Config) (*Store, error) {
	conn := cfg.DB
	ownsDB := false
	if conn == nil {
		if strings.TrimSpace(cfg.DSN) == "" {
			return nil, errors.New("gormstore: config: db or dsn is required")
		}
		opened, errOpen := Open(cfg.DSN)
		if errOpen != nil {
			return nil, errOpen
		}
		conn = opened
		ownsDB = true
	}

	table := strings.TrimSpace(cfg.TableName)
	if table == "" {
		table = DefaultTableName
	}

	s := &Store{db: conn, table: table, ownsDB: ownsDB}
	if cfg.CreateTables {
		if errMigrate := conn.Table(table).AutoMigrate(&KeyRecord{}); errMigrate != nil {
			return nil, fmt.Errorf("gormstore: migrate: %w", errMigrate)
		}
	}
	return s, nil
}

// query returns a table-scoped query with the caller's context attached.
func (s *Store) query(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table(s.table)
}

// Create inserts a new record, mapping the medium's uniqueness violation to
// ErrDuplicateKey. Concurrent creates with the same hash race here; the
// unique index guarantees exactly one wins.
func (s *Store) Create(ctx context.Context, key apikey.Key) (apikey.Key, error) {
	rec, errConvert := toRecord(key)
	if errConvert != nil {
		return apikey.Key{}, errConvert
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	if errCreate := s.query(ctx).Create(&rec).Error; errCreate != nil {
		if isDuplicateErr(errCreate) {
			return apikey.Key{}, fmt.Errorf("%w: %v", apikey.ErrDuplicateKey, errCreate)
		}
		return apikey.Key{}, fmt.Errorf("gormstore: create: %w", errCreate)
	}
	return toKey(rec)
}

// Get returns the record for a hash, if present.
func (s *Store) Get(ctx context.Context, hash string) (apikey.Key, bool, error) {
	return s.getWhere(ctx, "key_hash = ?", hash)
}

// GetByID returns the record for a public id, if present.
func (s *Store) GetByID(ctx context.Context, id string) (apikey.Key, bool, error) {
	return s.getWhere(ctx, "key_id = ?", id)
}

// getWhere fetches a single record matching the condition.
func (s *Store) getWhere(ctx context.Context, cond string, arg string) (apikey.Key, bool, error) {
	var rec KeyRecord
	err := s.query(ctx).Where(cond, arg).First(&rec).Error
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apikey.Key{}, false, nil
	default:
		return apikey.Key{}, false, fmt.Errorf("gormstore: get: %w", err)
	}
	key, errConvert := toKey(rec)
	if errConvert != nil {
		return apikey.Key{}, false, errConvert
	}
	return key, true, nil
}

// Update applies a patch to the record for a hash via read-modify-write.
func (s *Store) Update(ctx context.Context, hash string, patch apikey.KeyPatch) (apikey.Key, bool, error) {
	var rec KeyRecord
	err := s.query(ctx).Where("key_hash = ?", hash).First(&rec).Error
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apikey.Key{}, false, nil
	default:
		return apikey.Key{}, false, fmt.Errorf("gormstore: update: %w", err)
	}

	key, errConvert := toKey(rec)
	if errConvert != nil {
		return apikey.Key{}, false, errConvert
	}
	updatedRec, errConvert := toRecord(patch.Apply(key))
	if errConvert != nil {
		return apikey.Key{}, false, errConvert
	}

	updates := map[string]any{
		"name":         updatedRec.Name,
		"scopes":       updatedRec.Scopes,
		"is_active":    updatedRec.IsActive,
		"expires_at":   updatedRec.ExpiresAt,
		"last_used_at": updatedRec.LastUsedAt,
		"metadata":     updatedRec.Metadata,
	}
	if errUpdate := s.query(ctx).Where("key_hash = ?", hash).Updates(updates).Error; errUpdate != nil {
		return apikey.Key{}, false, fmt.Errorf("gormstore: update: %w", errUpdate)
	}

	updatedRec.ID = rec.ID
	updatedRec.KeyID = rec.KeyID
	updatedRec.KeyHash = rec.KeyHash
	updatedRec.CreatedAt = rec.CreatedAt
	updated, errConvert := toKey(updatedRec)
	if errConvert != nil {
		return apikey.Key{}, false, errConvert
	}
	return updated, true, nil
}

// Delete removes the record for a hash.
func (s *Store) Delete(ctx context.Context, hash string) (bool, error) {
	res := s.query(ctx).Where("key_hash = ?", hash).Delete(&KeyRecord{})
	if res.Error != nil {
		return false, fmt.Errorf("gormstore: delete: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// List returns records newest-created-first with offset/limit pagination.
func (s *Store) List(ctx context.Context, opts apikey.ListOptions) ([]apikey.Key, error) {
	query := s.query(ctx).Order("created_at DESC, key_id DESC")
	if opts.Offset > 0 {
		query = query.Offset(opts.Offset)
	}
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}

	var rows []KeyRecord
	if errFind := query.Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("gormstore: list: %w", errFind)
	}

	out := make([]apikey.Key, 0, len(rows))
	for _, rec := range rows {
		key, errConvert := toKey(rec)
		if errConvert != nil {
			return nil, errConvert
		}
		out = append(out, key)
	}
	return out, nil
}

// Revoke marks the record for a hash inactive. Rows already inactive still
// count as found, so revoking twice succeeds.
func (s *Store) Revoke(ctx context.Context, hash string) (bool, error) {
	res := s.query(ctx).Where("key_hash = ?", hash).Update("is_active", false)
	if res.Error != nil {
		return false, fmt.Errorf("gormstore: revoke: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// TouchLastUsed stamps the record's last-used time; absence is a no-op.
func (s *Store) TouchLastUsed(ctx context.Context, hash string) error {
	now := time.Now().UTC()
	if errUpdate := s.query(ctx).Where("key_hash = ?", hash).Update("last_used_at", &now).Error; errUpdate != nil {
		return fmt.Errorf("gormstore: touch last used: %w", errUpdate)
	}
	return nil
}

// Close releases the connection only when the store opened it itself.
func (s *Store) Close() error {
	if !s.ownsDB {
		return nil
	}
	sqlDB, errDB := s.db.DB()
	if errDB != nil {
		return fmt.Errorf("gormstore: close: %w", errDB)
	}
	return sqlDB.Close()
}

// isDuplicateErr reports whether an error is the storage medium's
// unique-violation, across the dialects Open supports.
func isDuplicateErr(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "constraint failed")
}
