// Package dispatch implements DbDispatcher: a single request enum that
// switches on kind.Kind to pick a monomorphic ObjectStore method, adding
// the client-facing per-kind-group rules spec §4.3 layers on top of the
// otherwise fully generic store (original_source's
// src/server/server.rs db_server module plays the same role, matching
// on its DbRequest enum inside Server::handle_db_request).
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/covau-dev/covau/internal/kind"
	"github.com/covau-dev/covau/internal/store"
)

// Sentinel errors named after spec §6's error taxonomy
// ("OperationNotAllowed, ItemDoesNotSupportRefids, UnknownKind,
// NoSuchTransaction, TransactionInactive").
var (
	ErrOperationNotAllowed      = errors.New("dispatch: operation not allowed for this kind")
	ErrItemDoesNotSupportRefids = errors.New("dispatch: kind has no stable external refid")
	ErrUnknownKind              = errors.New("dispatch: unknown kind")
)

// noRefidKinds is the "no stable external refid" group (spec §4.3):
// GetByRefid/GetManyByRefid are rejected outright for these, even though
// internal/store could technically answer them for any kind that has
// rows in the refids table.
var noRefidKinds = map[kind.Kind]bool{
	kind.MmPlaylist:      true,
	kind.MmQueue:         true,
	kind.MmArtist:        true,
	kind.Playlist:        true,
	kind.Queue:           true,
	kind.ArtistBlacklist: true,
	kind.SongBlacklist:   true,
}

// Dispatcher is the single entry point the RPC layer calls into for
// every persistent operation.
type Dispatcher struct {
	store *store.ObjectStore
}

// New wraps an ObjectStore.
func New(s *store.ObjectStore) *Dispatcher {
	return &Dispatcher{store: s}
}

// Begin opens a transaction and returns its handle.
func (d *Dispatcher) Begin(ctx context.Context) (uint32, error) {
	return d.store.BeginTx(ctx)
}

// Commit closes a transaction, committing its writes.
func (d *Dispatcher) Commit(tid uint32) error {
	return mapTxErr(d.store.Commit(tid))
}

// Rollback closes a transaction, discarding its writes.
func (d *Dispatcher) Rollback(tid uint32) error {
	return mapTxErr(d.store.Rollback(tid))
}

func mapTxErr(err error) error {
	if errors.Is(err, store.ErrNoSuchTransaction) {
		return fmt.Errorf("%w: %v", store.ErrNoSuchTransaction, err)
	}
	return err
}

// requireTx rejects operations spec marks as mutating when no
// transaction handle was supplied (tid == 0): "mutating ops require an
// open transaction whose id matches" (spec §4.3).
func requireTx(tid uint32) error {
	if tid == 0 {
		return fmt.Errorf("%w: mutating operation requires an open transaction", store.ErrTransactionInactive)
	}
	return nil
}

// Insert stores a new object. LocalState kinds reject Insert outright
// (spec §4.3: "singletons; Insert and Delete fail with
// OperationNotAllowed").
func (d *Dispatcher) Insert(ctx context.Context, tid uint32, k kind.Kind, payload json.RawMessage) (int64, error) {
	if !k.Valid() {
		return 0, ErrUnknownKind
	}
	if k == kind.LocalState {
		return 0, ErrOperationNotAllowed
	}
	if err := requireTx(tid); err != nil {
		return 0, err
	}
	item, err := kind.Unmarshal(k, payload)
	if err != nil {
		return 0, err
	}
	return d.store.Insert(ctx, tid, k, item)
}

// InsertOrGet stores a new object or returns the id of an existing one
// sharing its first refid.
func (d *Dispatcher) InsertOrGet(ctx context.Context, tid uint32, k kind.Kind, payload json.RawMessage) (id int64, created bool, err error) {
	if !k.Valid() {
		return 0, false, ErrUnknownKind
	}
	if k == kind.LocalState {
		return 0, false, ErrOperationNotAllowed
	}
	if err := requireTx(tid); err != nil {
		return 0, false, err
	}
	item, err := kind.Unmarshal(k, payload)
	if err != nil {
		return 0, false, err
	}
	return d.store.InsertOrGet(ctx, tid, k, item)
}

// Update replaces an object's payload in place. expectedCounter must
// match the stored row's current update_counter or the call fails with
// store.ErrConflict (spec §3/§4.1's stale-write guard).
func (d *Dispatcher) Update(ctx context.Context, tid uint32, id int64, k kind.Kind, payload json.RawMessage, expectedCounter uint32) error {
	if !k.Valid() {
		return ErrUnknownKind
	}
	if err := requireTx(tid); err != nil {
		return err
	}
	item, err := kind.Unmarshal(k, payload)
	if err != nil {
		return err
	}
	return d.store.Update(ctx, tid, id, k, item, expectedCounter)
}

// UpdateMetadata replaces only an object's metadata blob, subject to
// the same expectedCounter conflict check as Update.
func (d *Dispatcher) UpdateMetadata(ctx context.Context, tid uint32, id int64, extra json.RawMessage, expectedCounter uint32) error {
	if err := requireTx(tid); err != nil {
		return err
	}
	return d.store.UpdateMetadata(ctx, tid, id, extra, expectedCounter)
}

// Delete removes an object. LocalState kinds reject Delete outright.
func (d *Dispatcher) Delete(ctx context.Context, tid uint32, id int64, k kind.Kind) error {
	if !k.Valid() {
		return ErrUnknownKind
	}
	if k == kind.LocalState {
		return ErrOperationNotAllowed
	}
	if err := requireTx(tid); err != nil {
		return err
	}
	return d.store.Delete(ctx, tid, id)
}

// GetByID fetches a single object of kind k by its internal id. Always
// allowed, including LocalState (spec §4.3: "Get* allowed").
func (d *Dispatcher) GetByID(ctx context.Context, tid uint32, k kind.Kind, id int64) (store.Stored, error) {
	if !k.Valid() {
		return store.Stored{}, ErrUnknownKind
	}
	return d.store.GetByID(ctx, tid, k, id)
}

// GetManyByID fetches multiple objects of kind k by internal id.
func (d *Dispatcher) GetManyByID(ctx context.Context, tid uint32, k kind.Kind, ids []int64) ([]store.Stored, error) {
	if !k.Valid() {
		return nil, ErrUnknownKind
	}
	return d.store.GetManyByID(ctx, tid, k, ids)
}

// GetByRefid fetches a single object of kind k by external refid.
// Rejected for the no-stable-refid kind group (spec §4.3).
func (d *Dispatcher) GetByRefid(ctx context.Context, tid uint32, k kind.Kind, refid string) (store.Stored, error) {
	if !k.Valid() {
		return store.Stored{}, ErrUnknownKind
	}
	if noRefidKinds[k] {
		return store.Stored{}, ErrItemDoesNotSupportRefids
	}
	return d.store.GetByRefid(ctx, tid, k, refid)
}

// GetManyByRefid fetches multiple objects of kind k by external refid.
// Rejected for the no-stable-refid kind group (spec §4.3).
func (d *Dispatcher) GetManyByRefid(ctx context.Context, tid uint32, k kind.Kind, refids []string) ([]store.Stored, error) {
	if !k.Valid() {
		return nil, ErrUnknownKind
	}
	if noRefidKinds[k] {
		return nil, ErrItemDoesNotSupportRefids
	}
	return d.store.GetManyByRefid(ctx, tid, k, refids)
}

// Search fuzzy-searches objects of kind k.
func (d *Dispatcher) Search(ctx context.Context, tid uint32, k kind.Kind, query string, limit int, continuation string) (store.SearchPage, error) {
	if !k.Valid() {
		return store.SearchPage{}, ErrUnknownKind
	}
	return d.store.Search(ctx, tid, k, query, limit, continuation)
}

// LinksFrom follows every link an object produces to its resolved
// targets.
func (d *Dispatcher) LinksFrom(ctx context.Context, tid uint32, id int64) ([]store.LinkedObject, error) {
	return d.store.LinksFrom(ctx, tid, id)
}

// LinksTo finds every object linking to the given external refid+kind.
func (d *Dispatcher) LinksTo(ctx context.Context, tid uint32, k kind.Kind, refid string) ([]store.Stored, error) {
	if !k.Valid() {
		return nil, ErrUnknownKind
	}
	return d.store.LinksTo(ctx, tid, k, refid)
}
