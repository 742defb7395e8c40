// Package store implements ObjectStore, the single generic persistence
// layer every kind's payload is read and written through (spec §4.1's
// "ObjectStore: kind-agnostic CRUD plus link-graph traversal"). It is
// grounded on internal/library's plain database/sql service pattern
// (original_source has no analogue: the Rust server keeps its db_server
// module entirely inside server.rs, dispatching on an enum rather than
// through a standalone storage type), generalized here from one
// hardcoded table to any kind.Item via internal/kind's Haystack/Refids/
// Links capability.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/covau-dev/covau/internal/kind"
)

// querier is the subset of *sql.DB / *sql.Tx that ObjectStore needs,
// letting every method run against either depending on whether the
// caller opened a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ObjectStore is the kind-agnostic CRUD and link-graph layer on top of
// the objects/refids/links tables.
type ObjectStore struct {
	db *sql.DB

	mu  sync.Mutex
	txs map[uint32]*sql.Tx
}

// New wraps an open database connection.
func New(db *sql.DB) *ObjectStore {
	return &ObjectStore{
		db:  db,
		txs: make(map[uint32]*sql.Tx),
	}
}

// Metadata is bookkeeping carried alongside an object's payload that is
// not itself part of the kind's Item shape (spec §4.1's "objects also
// carry a metadata blob: creation/update timestamps, and, for Updater
// rows, the points/done bookkeeping from the original UpdateItem<T>
// wrapper").
type Metadata struct {
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
	Extra     json.RawMessage `json:"extra,omitempty"`

	// UpdateCounter increments on every successful Update/UpdateMetadata
	// call and gates the next one: a caller must present the counter it
	// last observed, or the write is rejected with ErrConflict (spec
	// §3/§4.1's stale-write guard, original_source/src/db.rs's
	// DbMetadata.update_counter).
	UpdateCounter uint32 `json:"update_counter"`
}

// Stored is one fully-decoded row: its id, kind, payload and metadata.
type Stored struct {
	ID       int64
	Kind     kind.Kind
	Item     kind.Item
	Metadata Metadata
}

// LinkedObject is one hop of a link traversal: the target object plus
// the refid the link was resolved through.
type LinkedObject struct {
	Stored
	ToRefid string
}

// BeginTx opens a transaction and returns a handle (tid) the caller
// passes to every subsequent call that should run inside it. A tid of 0
// always means "no transaction, autocommit per statement" and is never
// issued by BeginTx.
func (s *ObjectStore) BeginTx(ctx context.Context) (uint32, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var tid uint32
	for {
		tid = rand.Uint32()
		if tid == 0 {
			continue
		}
		if _, exists := s.txs[tid]; !exists {
			break
		}
	}
	s.txs[tid] = tx
	return tid, nil
}

// Commit commits and closes the transaction identified by tid.
func (s *ObjectStore) Commit(tid uint32) error {
	tx, err := s.takeTx(tid)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Rollback aborts and closes the transaction identified by tid.
func (s *ObjectStore) Rollback(tid uint32) error {
	tx, err := s.takeTx(tid)
	if err != nil {
		return err
	}
	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("rolling back transaction: %w", err)
	}
	return nil
}

// takeTx removes and returns the transaction for tid, so Commit/Rollback
// can never be called twice on the same handle.
func (s *ObjectStore) takeTx(tid uint32) (*sql.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[tid]
	if !ok {
		return nil, ErrNoSuchTransaction
	}
	delete(s.txs, tid)
	return tx, nil
}

// exec resolves tid (0 for none) to the querier that statements run
// against.
func (s *ObjectStore) exec(tid uint32) (querier, error) {
	if tid == 0 {
		return s.db, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[tid]
	if !ok {
		return nil, ErrNoSuchTransaction
	}
	return tx, nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Insert stores a new object of kind k, deriving its refids and links
// rows from item's extractor methods, and returns its assigned id.
func (s *ObjectStore) Insert(ctx context.Context, tid uint32, k kind.Kind, item kind.Item) (int64, error) {
	q, err := s.exec(tid)
	if err != nil {
		return 0, err
	}
	return insert(ctx, q, k, item)
}

func insert(ctx context.Context, q querier, k kind.Kind, item kind.Item) (int64, error) {
	if !k.Valid() {
		return 0, fmt.Errorf("store: invalid kind %v", k)
	}
	payload, err := json.Marshal(item)
	if err != nil {
		return 0, fmt.Errorf("marshaling payload: %w", err)
	}
	meta := Metadata{CreatedAt: now(), UpdatedAt: now()}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return 0, fmt.Errorf("marshaling metadata: %w", err)
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO objects (kind, payload, metadata) VALUES (?, ?, ?)`,
		int(k), string(payload), string(metaBytes))
	if err != nil {
		return 0, fmt.Errorf("inserting object: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading inserted id: %w", err)
	}

	if err := writeRefidsAndLinks(ctx, q, id, k, item); err != nil {
		return 0, err
	}
	return id, nil
}

func writeRefidsAndLinks(ctx context.Context, q querier, id int64, k kind.Kind, item kind.Item) error {
	for _, refid := range item.Refids() {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO refids (refid, kind, object_id) VALUES (?, ?, ?)`,
			refid, int(k), id); err != nil {
			return fmt.Errorf("inserting refid %q: %w", refid, err)
		}
	}
	for _, link := range item.Links() {
		if _, err := q.ExecContext(ctx,
			`INSERT OR IGNORE INTO links (from_object_id, to_refid, to_kind) VALUES (?, ?, ?)`,
			id, link.ToRefid, int(link.ToKind)); err != nil {
			return fmt.Errorf("inserting link to %q: %w", link.ToRefid, err)
		}
	}
	return nil
}

func clearRefidsAndLinks(ctx context.Context, q querier, id int64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM refids WHERE object_id = ?`, id); err != nil {
		return fmt.Errorf("clearing refids: %w", err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM links WHERE from_object_id = ?`, id); err != nil {
		return fmt.Errorf("clearing links: %w", err)
	}
	return nil
}

// InsertOrGet returns the id of the existing object sharing item's first
// refid and kind, inserting a new one only if none exists. Used by the
// legacy importer (spec §4.1) so re-running an import is idempotent.
func (s *ObjectStore) InsertOrGet(ctx context.Context, tid uint32, k kind.Kind, item kind.Item) (id int64, created bool, err error) {
	q, err := s.exec(tid)
	if err != nil {
		return 0, false, err
	}

	refids := item.Refids()
	if len(refids) > 0 {
		existing, fetchErr := getByRefid(ctx, q, k, refids[0])
		if fetchErr == nil {
			return existing.ID, false, nil
		}
		if fetchErr != ErrNotFound {
			return 0, false, fetchErr
		}
	}

	id, err = insert(ctx, q, k, item)
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// Update replaces an object's payload in place, re-deriving its refids
// and links rows, and bumps its metadata's updated_at and
// update_counter. expectedCounter must match the stored row's current
// UpdateCounter or the write is rejected with ErrConflict, leaving the
// row untouched (spec §3/§4.1: "an update carrying a stale counter
// fails with a Conflict").
func (s *ObjectStore) Update(ctx context.Context, tid uint32, id int64, k kind.Kind, item kind.Item, expectedCounter uint32) error {
	q, err := s.exec(tid)
	if err != nil {
		return err
	}

	existing, err := getUntypedByID(ctx, q, id)
	if err != nil {
		return err
	}
	if existing.Metadata.UpdateCounter != expectedCounter {
		return ErrConflict
	}
	meta := existing.Metadata
	meta.UpdatedAt = now()
	meta.UpdateCounter++
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	result, err := q.ExecContext(ctx,
		`UPDATE objects SET kind = ?, payload = ?, metadata = ? WHERE id = ?`,
		int(k), string(payload), string(metaBytes), id)
	if err != nil {
		return fmt.Errorf("updating object: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}

	if err := clearRefidsAndLinks(ctx, q, id); err != nil {
		return err
	}
	return writeRefidsAndLinks(ctx, q, id, k, item)
}

// UpdateMetadata replaces only an object's metadata blob, leaving its
// payload, refids and links untouched. Used by the background updater
// to bump Updater rows' points/done bookkeeping without touching the
// Updater payload itself. Subject to the same expectedCounter conflict
// check as Update.
func (s *ObjectStore) UpdateMetadata(ctx context.Context, tid uint32, id int64, extra json.RawMessage, expectedCounter uint32) error {
	q, err := s.exec(tid)
	if err != nil {
		return err
	}

	existing, err := getUntypedByID(ctx, q, id)
	if err != nil {
		return err
	}
	if existing.Metadata.UpdateCounter != expectedCounter {
		return ErrConflict
	}
	meta := existing.Metadata
	meta.UpdatedAt = now()
	meta.UpdateCounter++
	meta.Extra = extra
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	result, err := q.ExecContext(ctx, `UPDATE objects SET metadata = ? WHERE id = ?`, string(metaBytes), id)
	if err != nil {
		return fmt.Errorf("updating metadata: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an object and its refids/links rows.
func (s *ObjectStore) Delete(ctx context.Context, tid uint32, id int64) error {
	q, err := s.exec(tid)
	if err != nil {
		return err
	}
	if err := clearRefidsAndLinks(ctx, q, id); err != nil {
		return err
	}
	result, err := q.ExecContext(ctx, `DELETE FROM objects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting object: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rawRow struct {
	ID      int64
	Kind    kind.Kind
	Payload string
	Meta    string
}

func scanRawRow(row interface{ Scan(...any) error }) (rawRow, error) {
	var r rawRow
	var k int
	if err := row.Scan(&r.ID, &k, &r.Payload, &r.Meta); err != nil {
		return rawRow{}, err
	}
	r.Kind = kind.Kind(k)
	return r, nil
}

func decodeRow(r rawRow) (Stored, error) {
	item, err := kind.Unmarshal(r.Kind, []byte(r.Payload))
	if err != nil {
		return Stored{}, fmt.Errorf("decoding object %d: %w", r.ID, err)
	}
	var meta Metadata
	if err := json.Unmarshal([]byte(r.Meta), &meta); err != nil {
		return Stored{}, fmt.Errorf("decoding metadata for object %d: %w", r.ID, err)
	}
	return Stored{ID: r.ID, Kind: r.Kind, Item: item, Metadata: meta}, nil
}

func getUntypedByID(ctx context.Context, q querier, id int64) (Stored, error) {
	row := q.QueryRowContext(ctx, `SELECT id, kind, payload, metadata FROM objects WHERE id = ?`, id)
	raw, err := scanRawRow(row)
	if err == sql.ErrNoRows {
		return Stored{}, ErrNotFound
	}
	if err != nil {
		return Stored{}, fmt.Errorf("fetching object %d: %w", id, err)
	}
	return decodeRow(raw)
}

// GetUntypedByID fetches an object by id without the caller needing to
// know its kind ahead of time (spec §4.1's "untyped fetch for generic
// clients, e.g. link-graph UIs that only know an id").
func (s *ObjectStore) GetUntypedByID(ctx context.Context, tid uint32, id int64) (Stored, error) {
	q, err := s.exec(tid)
	if err != nil {
		return Stored{}, err
	}
	return getUntypedByID(ctx, q, id)
}

// GetByID fetches an object, verifying it has the expected kind.
func (s *ObjectStore) GetByID(ctx context.Context, tid uint32, k kind.Kind, id int64) (Stored, error) {
	stored, err := s.GetUntypedByID(ctx, tid, id)
	if err != nil {
		return Stored{}, err
	}
	if stored.Kind != k {
		return Stored{}, ErrNotFound
	}
	return stored, nil
}

// GetManyByID fetches every object in ids, verifying each has kind k.
// Missing or mismatched-kind ids are silently omitted from the result,
// matching get_many's original semantics of streaming whatever is found.
func (s *ObjectStore) GetManyByID(ctx context.Context, tid uint32, k kind.Kind, ids []int64) ([]Stored, error) {
	q, err := s.exec(tid)
	if err != nil {
		return nil, err
	}
	out := make([]Stored, 0, len(ids))
	for _, id := range ids {
		raw, err := getUntypedByID(ctx, q, id)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		if raw.Kind != k {
			continue
		}
		out = append(out, raw)
	}
	return out, nil
}

func getByRefid(ctx context.Context, q querier, k kind.Kind, refid string) (Stored, error) {
	row := q.QueryRowContext(ctx,
		`SELECT o.id, o.kind, o.payload, o.metadata
		 FROM refids r JOIN objects o ON o.id = r.object_id
		 WHERE r.refid = ? AND r.kind = ?`, refid, int(k))
	raw, err := scanRawRow(row)
	if err == sql.ErrNoRows {
		return Stored{}, ErrNotFound
	}
	if err != nil {
		return Stored{}, fmt.Errorf("fetching by refid %q: %w", refid, err)
	}
	return decodeRow(raw)
}

// GetByRefid looks up the single object of kind k known by an external
// refid. internal/dispatch is responsible for rejecting this call
// outright for kinds with no stable external refid (spec §4.3); the
// store itself answers generically for any kind that has refids rows.
func (s *ObjectStore) GetByRefid(ctx context.Context, tid uint32, k kind.Kind, refid string) (Stored, error) {
	q, err := s.exec(tid)
	if err != nil {
		return Stored{}, err
	}
	return getByRefid(ctx, q, k, refid)
}

// GetManyByRefid looks up every object of kind k known by any of refids.
func (s *ObjectStore) GetManyByRefid(ctx context.Context, tid uint32, k kind.Kind, refids []string) ([]Stored, error) {
	q, err := s.exec(tid)
	if err != nil {
		return nil, err
	}
	out := make([]Stored, 0, len(refids))
	for _, refid := range refids {
		stored, err := getByRefid(ctx, q, k, refid)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, stored)
	}
	return out, nil
}

// LinksFrom returns every object id links to, by following id's Links()
// rows through the refids table.
func (s *ObjectStore) LinksFrom(ctx context.Context, tid uint32, id int64) ([]LinkedObject, error) {
	q, err := s.exec(tid)
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `SELECT to_refid, to_kind FROM links WHERE from_object_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("listing links from %d: %w", id, err)
	}
	defer rows.Close() //nolint:errcheck

	type target struct {
		refid string
		k     kind.Kind
	}
	var targets []target
	for rows.Next() {
		var t target
		var k int
		if err := rows.Scan(&t.refid, &k); err != nil {
			return nil, fmt.Errorf("scanning link: %w", err)
		}
		t.k = kind.Kind(k)
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]LinkedObject, 0, len(targets))
	for _, t := range targets {
		stored, err := getByRefid(ctx, q, t.k, t.refid)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, LinkedObject{Stored: stored, ToRefid: t.refid})
	}
	return out, nil
}

// LinksTo returns every object that links to the given refid+kind
// (spec §4.1's reverse traversal: "what points at this artist?").
func (s *ObjectStore) LinksTo(ctx context.Context, tid uint32, k kind.Kind, refid string) ([]Stored, error) {
	q, err := s.exec(tid)
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx,
		`SELECT DISTINCT from_object_id FROM links WHERE to_refid = ? AND to_kind = ?`, refid, int(k))
	if err != nil {
		return nil, fmt.Errorf("listing links to %q: %w", refid, err)
	}
	defer rows.Close() //nolint:errcheck

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning link source: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]Stored, 0, len(ids))
	for _, id := range ids {
		stored, err := getUntypedByID(ctx, q, id)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, stored)
	}
	return out, nil
}
