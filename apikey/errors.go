package apikey

import "errors"

// ErrMalformedKey indicates a presented raw key is too short or otherwise
// not shaped like a generated key.
var ErrMalformedKey = errors.New("apikey: malformed key")

// ErrDuplicateKey indicates a create collided with an existing hash or id.
var ErrDuplicateKey = errors.New("apikey: duplicate key")

// ErrKeyNotFound indicates no record matches the presented key.
var ErrKeyNotFound = errors.New("apikey: key not found")

// ErrKeyRevoked indicates the key exists but has been revoked.
var ErrKeyRevoked = errors.New("apikey: key revoked")

// ErrKeyExpired indicates the key exists but its expiry has passed.
var ErrKeyExpired = errors.New("apikey: key expired")

// ErrInsufficientScope indicates the key lacks a required scope.
var ErrInsufficientScope = errors.New("apikey: insufficient scope")

// ErrScopeCycle indicates a scope hierarchy contains a cycle.
var ErrScopeCycle = errors.New("apikey: scope hierarchy cycle")
