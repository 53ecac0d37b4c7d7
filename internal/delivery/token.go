// Package delivery is the HTTP-facing side of the video core: capability
// tokens, manifest rewriting, identity, the authorization oracle contract,
// and the gateway handlers.
package delivery

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"lessonstream/internal/platform/kv"
)

// DefaultTokenTTL is how long a capability token stays valid.
const DefaultTokenTTL = 10 * time.Minute

const tokenKeyPrefix = "segtoken:"

// tokenPayload is the value object a capability token stands for. The store
// holds the serialized payload; the token string itself is an opaque digest.
type tokenPayload struct {
	LessonID  int64  `json:"lesson_id"`
	Segment   string `json:"segment"`
	UserID    int64  `json:"user_id"`
	ExpiresAt int64  `json:"expires_at"`
}

// TokenService issues and validates short-lived, single-purpose tokens bound
// to (lesson, segment, user). The expiring store is the source of truth: a
// forged token simply will not be found. The token value mixes a fresh nonce
// into a SHA-256 digest of the payload, so it is unguessable within the TTL
// window and unique per issuance.
type TokenService struct {
	store kv.Store
	ttl   time.Duration
	now   func() time.Time
}

// NewTokenService returns a TokenService over store. ttl <= 0 falls back to
// DefaultTokenTTL.
func NewTokenService(store kv.Store, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{store: store, ttl: ttl, now: time.Now}
}

// Issue mints a token for (lessonID, segment, userID) expiring after the TTL.
func (s *TokenService) Issue(lessonID int64, segment string, userID int64) (string, error) {
	payload := tokenPayload{
		LessonID:  lessonID,
		Segment:   segment,
		UserID:    userID,
		ExpiresAt: s.now().Add(s.ttl).Unix(),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode token payload: %w", err)
	}

	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("read secure random source: %w", err)
	}
	sum := sha256.Sum256(append(raw, nonce...))
	token := base64.RawURLEncoding.EncodeToString(sum[:])

	if err := s.store.Put(tokenKeyPrefix+token, raw, s.ttl); err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}
	return token, nil
}

// Validate reports whether token exists, is unexpired, and is bound to
// exactly (lessonID, segment, userID).
func (s *TokenService) Validate(token string, lessonID int64, segment string, userID int64) bool {
	if token == "" {
		return false
	}
	raw, ok, err := s.store.Get(tokenKeyPrefix + token)
	if err != nil || !ok {
		return false
	}
	var payload tokenPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return false
	}
	if payload.LessonID != lessonID || payload.Segment != segment || payload.UserID != userID {
		return false
	}
	return s.now().Unix() <= payload.ExpiresAt
}
