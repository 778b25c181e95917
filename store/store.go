// Package store implements the Escrow Store of spec.md §4.4: durable,
// encrypted-at-rest persistence of escrow records and per-role multisig
// blobs, with transactional status/phase transitions.
//
// The backing engine is github.com/ChainSafe/chaindb (the teacher's own
// persistence dependency, used in protocol/swap/manager.go), itself backed
// by github.com/dgraph-io/badger/v3. Each escrow record is serialized and
// written as a single KV entry, so a single Put is the transaction boundary:
// illegal transitions are rejected before the Put ever happens, under a
// per-escrow lock that makes the whole read-modify-write atomic from the
// caller's point of view (spec.md §4.4 "Status transitions execute in a
// single database transaction").
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ChainSafe/chaindb"
	logging "github.com/ipfs/go-log"

	"github.com/athanor-escrow/escrowd/cryptoutil"
	"github.com/athanor-escrow/escrowd/escrow"
	"github.com/athanor-escrow/escrowd/escrowerr"
)

var log = logging.Logger("store")

// Store is the persistence contract of spec.md §4.4.
type Store interface {
	Insert(ctx context.Context, e *escrow.Escrow) error
	Load(ctx context.Context, id escrow.ID) (*escrow.Escrow, error)
	UpdateStatus(ctx context.Context, id escrow.ID, from, to escrow.Status, now time.Time) error
	UpdatePhase(ctx context.Context, id escrow.ID, from, to escrow.MultisigPhase, now time.Time) error
	SetMultisigAddress(ctx context.Context, id escrow.ID, address string, now time.Time) error
	SetTransactionHash(ctx context.Context, id escrow.ID, txHash string, now time.Time) error
	SetArbiterDecision(ctx context.Context, id escrow.ID, decision *escrow.ArbiterDecision, now time.Time) error

	StoreWalletBlob(ctx context.Context, id escrow.ID, role escrow.Role, blob []byte) error
	LoadWalletBlob(ctx context.Context, id escrow.ID, role escrow.Role) ([]byte, error)
	EraseWalletBlob(ctx context.Context, id escrow.ID, role escrow.Role) error

	ListExpired(ctx context.Context, asOf time.Time) ([]*escrow.Escrow, error)
	ListExpiringWithin(ctx context.Context, now time.Time, window time.Duration) ([]*escrow.Escrow, error)

	Close() error
}

// record is the on-disk representation of one escrow, keyed by escrow ID.
type record struct {
	Escrow escrow.Escrow `json:"escrow"`
}

// chaindbStore implements Store over a chaindb.Database.
type chaindbStore struct {
	db  chaindb.Database
	key []byte // process-wide 256-bit AES-GCM key for wallet blobs

	// locks serializes read-modify-write sequences per escrow ID, giving
	// the illusion of a per-escrow transaction over a plain KV store.
	locksMu sync.Mutex
	locks   map[escrow.ID]*sync.Mutex
}

// New constructs a Store backed by chaindb, encrypting per-role wallet blobs
// with encryptionKey (spec.md §4.4, §5).
func New(db chaindb.Database, encryptionKey []byte) (Store, error) {
	if len(encryptionKey) != cryptoutil.KeySize {
		return nil, fmt.Errorf("store: encryption key must be %d bytes, got %d", cryptoutil.KeySize, len(encryptionKey))
	}
	return &chaindbStore{
		db:    db,
		key:   encryptionKey,
		locks: make(map[escrow.ID]*sync.Mutex),
	}, nil
}

func (s *chaindbStore) lockFor(id escrow.ID) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func escrowKey(id escrow.ID) []byte {
	return append([]byte("escrow/"), id[:]...)
}

func blobKey(id escrow.ID, role escrow.Role) []byte {
	return append(append([]byte("blob/"), id[:]...), []byte("/"+string(role))...)
}

func (s *chaindbStore) readRecord(id escrow.ID) (*record, error) {
	raw, err := s.db.Get(escrowKey(id))
	if errors.Is(err, chaindb.ErrKeyNotFound) {
		return nil, escrowerr.New(escrowerr.KindNotFound, "escrow %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: failed to read escrow %s: %w", id, err)
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("store: failed to decode escrow %s: %w", id, err)
	}
	return &rec, nil
}

func (s *chaindbStore) writeRecord(rec *record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: failed to encode escrow %s: %w", rec.Escrow.ID, err)
	}
	return s.db.Put(escrowKey(rec.Escrow.ID), raw)
}

// Insert persists a brand-new escrow.
func (s *chaindbStore) Insert(_ context.Context, e *escrow.Escrow) error {
	if err := escrow.ValidateAmount(e.AmountAtomic); err != nil {
		return escrowerr.Wrap(escrowerr.KindValidation, err, "invalid escrow")
	}

	lock := s.lockFor(e.ID)
	lock.Lock()
	defer lock.Unlock()

	if has, err := s.db.Has(escrowKey(e.ID)); err == nil && has {
		return escrowerr.New(escrowerr.KindValidation, "escrow %s already exists", e.ID)
	}

	return s.writeRecord(&record{Escrow: *e})
}

// Load returns a copy of the escrow with the given ID.
func (s *chaindbStore) Load(_ context.Context, id escrow.ID) (*escrow.Escrow, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	rec, err := s.readRecord(id)
	if err != nil {
		return nil, err
	}
	e := rec.Escrow
	return &e, nil
}

// UpdateStatus performs a guarded status transition, rejecting it (no
// effect) if the escrow's current status doesn't match `from` or if
// (from, to) isn't in the legal-transition set (spec.md §4.4, §8).
func (s *chaindbStore) UpdateStatus(_ context.Context, id escrow.ID, from, to escrow.Status, now time.Time) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	rec, err := s.readRecord(id)
	if err != nil {
		return err
	}

	if rec.Escrow.Status != from {
		return escrowerr.New(
			escrowerr.KindIllegalTransition,
			"escrow %s is in status %s, not %s", id, rec.Escrow.Status, from,
		)
	}
	if !escrow.CanTransition(from, to) {
		return escrowerr.New(escrowerr.KindIllegalTransition, "transition %s -> %s is not permitted", from, to)
	}

	rec.Escrow.Status = to
	rec.Escrow.LastActivityAt = now

	if err := s.writeRecord(rec); err != nil {
		return err
	}
	log.Infof("escrow %s: status %s -> %s", id, from, to)
	return nil
}

// UpdatePhase advances the multisig setup phase, rejecting non-adjacent or
// regressive phase changes (spec.md §4.1.4 idempotent persistence).
func (s *chaindbStore) UpdatePhase(_ context.Context, id escrow.ID, from, to escrow.MultisigPhase, now time.Time) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	rec, err := s.readRecord(id)
	if err != nil {
		return err
	}

	if rec.Escrow.MultisigPhase != from {
		return escrowerr.New(
			escrowerr.KindIllegalTransition,
			"escrow %s is at phase %s, not %s", id, rec.Escrow.MultisigPhase, from,
		)
	}
	if !escrow.CanAdvancePhase(from, to) {
		return escrowerr.New(escrowerr.KindIllegalTransition, "phase advance %s -> %s is not permitted", from, to)
	}

	rec.Escrow.MultisigPhase = to
	rec.Escrow.LastActivityAt = now

	if err := s.writeRecord(rec); err != nil {
		return err
	}
	log.Debugf("escrow %s: phase %s -> %s", id, from, to)
	return nil
}

// SetMultisigAddress assigns the jointly-agreed address exactly once
// (spec.md §3, §8).
func (s *chaindbStore) SetMultisigAddress(_ context.Context, id escrow.ID, address string, now time.Time) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	rec, err := s.readRecord(id)
	if err != nil {
		return err
	}

	if err := rec.Escrow.SetMultisigAddress(address); err != nil {
		return escrowerr.Wrap(escrowerr.KindIllegalTransition, err, "escrow %s", id)
	}
	rec.Escrow.LastActivityAt = now

	return s.writeRecord(rec)
}

// SetTransactionHash records the settlement transaction hash once it is
// broadcast (spec.md §3).
func (s *chaindbStore) SetTransactionHash(_ context.Context, id escrow.ID, txHash string, now time.Time) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	rec, err := s.readRecord(id)
	if err != nil {
		return err
	}
	rec.Escrow.TransactionHash = txHash
	rec.Escrow.LastActivityAt = now
	return s.writeRecord(rec)
}

// SetArbiterDecision records the arbiter's structured decision (spec.md
// §4.6 import path step 3).
func (s *chaindbStore) SetArbiterDecision(_ context.Context, id escrow.ID, decision *escrow.ArbiterDecision, now time.Time) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	rec, err := s.readRecord(id)
	if err != nil {
		return err
	}
	rec.Escrow.ArbiterDecision = decision
	rec.Escrow.LastActivityAt = now
	return s.writeRecord(rec)
}

// StoreWalletBlob encrypts and persists a per-role multisig blob (spec.md
// §4.4 "encrypted with AES-GCM").
func (s *chaindbStore) StoreWalletBlob(_ context.Context, id escrow.ID, role escrow.Role, blob []byte) error {
	sealed, err := cryptoutil.Seal(s.key, blob)
	if err != nil {
		return fmt.Errorf("store: failed to encrypt wallet blob for %s/%s: %w", id, role, err)
	}
	return s.db.Put(blobKey(id, role), sealed)
}

// LoadWalletBlob decrypts and returns a previously-stored blob.
func (s *chaindbStore) LoadWalletBlob(_ context.Context, id escrow.ID, role escrow.Role) ([]byte, error) {
	sealed, err := s.db.Get(blobKey(id, role))
	if errors.Is(err, chaindb.ErrKeyNotFound) {
		return nil, escrowerr.New(escrowerr.KindNotFound, "no wallet blob for %s/%s", id, role)
	}
	if err != nil {
		return nil, fmt.Errorf("store: failed to read wallet blob for %s/%s: %w", id, role, err)
	}

	plain, err := cryptoutil.Open(s.key, sealed)
	if err != nil {
		return nil, fmt.Errorf("store: failed to decrypt wallet blob for %s/%s: %w", id, role, err)
	}
	return plain, nil
}

// EraseWalletBlob overwrites a blob with a tombstone and deletes it (spec.md
// §6.3 "SHOULD be overwritten with tombstone values and erased").
func (s *chaindbStore) EraseWalletBlob(_ context.Context, id escrow.ID, role escrow.Role) error {
	tombstone := []byte("erased")
	if err := s.db.Put(blobKey(id, role), tombstone); err != nil {
		return fmt.Errorf("store: failed to tombstone wallet blob for %s/%s: %w", id, role, err)
	}
	if err := s.db.Del(blobKey(id, role)); err != nil {
		return fmt.Errorf("store: failed to erase wallet blob for %s/%s: %w", id, role, err)
	}
	return nil
}

// ListExpired and ListExpiringWithin scan all escrow records. chaindb's
// iterator is used directly rather than maintaining a secondary expiry
// index, since the timeout monitor's 60-second cadence (spec.md §4.7) makes
// a full scan cheap relative to its own polling interval.
func (s *chaindbStore) ListExpired(_ context.Context, asOf time.Time) ([]*escrow.Escrow, error) {
	return s.scan(func(e *escrow.Escrow) bool {
		return !e.Status.IsTerminal() && !e.ExpiresAt.After(asOf)
	})
}

func (s *chaindbStore) ListExpiringWithin(_ context.Context, now time.Time, window time.Duration) ([]*escrow.Escrow, error) {
	deadline := now.Add(window)
	return s.scan(func(e *escrow.Escrow) bool {
		return !e.Status.IsTerminal() && e.ExpiresAt.After(now) && !e.ExpiresAt.After(deadline)
	})
}

func (s *chaindbStore) scan(match func(*escrow.Escrow) bool) ([]*escrow.Escrow, error) {
	iter := s.db.NewIterator()
	defer iter.Release()

	var out []*escrow.Escrow
	prefix := []byte("escrow/")
	for iter.Next() {
		key := iter.Key()
		if len(key) < len(prefix) || string(key[:len(prefix)]) != string(prefix) {
			continue
		}

		var rec record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			log.Warnf("store: skipping corrupt escrow record at key %x: %s", key, err)
			continue
		}

		e := rec.Escrow
		if match(&e) {
			out = append(out, &e)
		}
	}
	return out, nil
}

func (s *chaindbStore) Close() error {
	return s.db.Close()
}
