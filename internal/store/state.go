package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/luthfiadilal/front-end-CBT-sub000/internal/config"
	"github.com/luthfiadilal/front-end-CBT-sub000/internal/model"
)

// State is the typed layer over a Store. All persisted client state (token
// pair, per-exam attempt records, cached profile) goes through it; nothing
// else reads or writes raw keys.
type State struct {
	s Store
}

// NewState wraps a backend Store.
func NewState(s Store) *State {
	return &State{s: s}
}

// Open builds a State on the backend selected by cfg.StoreBackend.
func Open(ctx context.Context, cfg *config.Config) (*State, error) {
	var (
		s   Store
		err error
	)
	switch cfg.StoreBackend {
	case "memory":
		s = NewMemory()
	case "file":
		s, err = NewFile(cfg.StorePath)
	case "encrypted":
		s, err = NewEncrypted(cfg.StorePath, cfg.StorePassphrase)
	case "redis":
		s, err = NewRedis(ctx, cfg.RedisURL, "")
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	if err != nil {
		return nil, err
	}
	return NewState(s), nil
}

// Close releases the underlying backend.
func (st *State) Close() error {
	return st.s.Close()
}

// ─── Token pair ─────────────────────────────────────────────────────────────

// TokenPair returns the persisted credential pair, ok=false when logged out.
func (st *State) TokenPair() (model.TokenPair, bool, error) {
	var pair model.TokenPair
	ok, err := st.get(config.StoreKey.TokenPairKey(), &pair)
	return pair, ok, err
}

// SetTokenPair replaces both tokens in one write.
func (st *State) SetTokenPair(pair model.TokenPair) error {
	return st.set(config.StoreKey.TokenPairKey(), pair)
}

// ClearTokenPair removes the credential pair (logout).
func (st *State) ClearTokenPair() error {
	return st.s.Delete(config.StoreKey.TokenPairKey())
}

// ─── Attempt record ─────────────────────────────────────────────────────────

// AttemptRecord returns the persisted session record for an exam.
func (st *State) AttemptRecord(examID string) (model.AttemptRecord, bool, error) {
	var rec model.AttemptRecord
	ok, err := st.get(config.StoreKey.AttemptRecordKey(examID), &rec)
	return rec, ok, err
}

// SetAttemptRecord persists the session record for an exam.
func (st *State) SetAttemptRecord(examID string, rec model.AttemptRecord) error {
	return st.set(config.StoreKey.AttemptRecordKey(examID), rec)
}

// ClearAttemptRecord removes the session record for an exam.
func (st *State) ClearAttemptRecord(examID string) error {
	return st.s.Delete(config.StoreKey.AttemptRecordKey(examID))
}

// ─── Profile snapshot ───────────────────────────────────────────────────────

// Profile returns the cached profile snapshot captured at login.
func (st *State) Profile() (model.Profile, bool, error) {
	var p model.Profile
	ok, err := st.get(config.StoreKey.ProfileKey(), &p)
	return p, ok, err
}

// SetProfile caches the profile snapshot.
func (st *State) SetProfile(p model.Profile) error {
	return st.set(config.StoreKey.ProfileKey(), p)
}

// ClearProfile removes the cached profile.
func (st *State) ClearProfile() error {
	return st.s.Delete(config.StoreKey.ProfileKey())
}

// ClearAll wipes authentication state (logout). Attempt records are keyed
// per exam and cleared by their own lifecycle.
func (st *State) ClearAll() error {
	if err := st.ClearTokenPair(); err != nil {
		return err
	}
	return st.ClearProfile()
}

// ─── Internal helpers ───────────────────────────────────────────────────────

func (st *State) get(key string, dst any) (bool, error) {
	raw, ok, err := st.s.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode state %q: %w", key, err)
	}
	return true, nil
}

func (st *State) set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode state %q: %w", key, err)
	}
	return st.s.Set(key, raw)
}
