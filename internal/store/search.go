package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/covau-dev/covau/internal/kind"
	"github.com/google/btree"
	"github.com/sahilm/fuzzy"
)

// SearchPage is one page of ranked Search results plus the continuation
// token to pass back in for the next page (spec §4.1's "Search is
// paginated via an opaque continuation", replacing the original's
// sublime_fuzzy + intrusive_collections::RBTree ranking structure).
type SearchPage struct {
	Items        []Stored
	Continuation string
}

// searchHit is one ranked candidate, ordered into the btree by
// (-score, id) so ties break on insertion order (lowest id first) and
// the continuation cursor can resume exactly where the previous page
// stopped.
type searchHit struct {
	negScore int
	id       int64
	stored   Stored
}

func searchHitLess(a, b searchHit) bool {
	if a.negScore != b.negScore {
		return a.negScore < b.negScore
	}
	return a.id < b.id
}

// Search fuzzy-matches query against every object of kind k's Haystack
// and returns up to limit results ranked best-first.
//
// The candidate set is loaded and ranked in full on every call rather
// than maintained as a persistent index: ObjectStore's tables hold
// personal-library-scale data (thousands, not millions, of rows per
// kind), so a full scan plus in-memory fuzzy.Find stays fast enough
// that a dedicated search index would be premature.
func (s *ObjectStore) Search(ctx context.Context, tid uint32, k kind.Kind, query string, limit int, continuation string) (SearchPage, error) {
	q, err := s.exec(tid)
	if err != nil {
		return SearchPage{}, err
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := q.QueryContext(ctx, `SELECT id, kind, payload, metadata FROM objects WHERE kind = ?`, int(k))
	if err != nil {
		return SearchPage{}, fmt.Errorf("listing objects for search: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var stored []Stored
	var haystacks []string
	for rows.Next() {
		raw, err := scanRawRow(rows)
		if err != nil {
			return SearchPage{}, fmt.Errorf("scanning object for search: %w", err)
		}
		item, err := kind.Unmarshal(raw.Kind, []byte(raw.Payload))
		if err != nil {
			return SearchPage{}, fmt.Errorf("decoding object %d for search: %w", raw.ID, err)
		}
		var meta Metadata
		if err := json.Unmarshal([]byte(raw.Meta), &meta); err != nil {
			return SearchPage{}, fmt.Errorf("decoding metadata for object %d: %w", raw.ID, err)
		}
		stored = append(stored, Stored{ID: raw.ID, Kind: raw.Kind, Item: item, Metadata: meta})
		haystacks = append(haystacks, strings.Join(item.Haystack(), " "))
	}
	if err := rows.Err(); err != nil {
		return SearchPage{}, err
	}

	tree := btree.NewG(32, searchHitLess)
	if query == "" {
		for i, st := range stored {
			tree.ReplaceOrInsert(searchHit{negScore: -i, id: st.ID, stored: st})
		}
	} else {
		matches := fuzzy.Find(query, haystacks)
		for _, m := range matches {
			tree.ReplaceOrInsert(searchHit{negScore: -m.Score, id: stored[m.Index].ID, stored: stored[m.Index]})
		}
	}

	afterNegScore, afterID, hasCursor := decodeContinuation(continuation)

	var page []Stored
	var last searchHit
	have := 0
	tree.Ascend(func(hit searchHit) bool {
		if hasCursor {
			if hit.negScore < afterNegScore || (hit.negScore == afterNegScore && hit.id <= afterID) {
				return true
			}
		}
		if have >= limit {
			return false
		}
		page = append(page, hit.stored)
		last = hit
		have++
		return true
	})

	next := ""
	if have == limit {
		next = encodeContinuation(last.negScore, last.id)
	}

	return SearchPage{Items: page, Continuation: next}, nil
}

func encodeContinuation(negScore int, id int64) string {
	return fmt.Sprintf("%d|%d", negScore, id)
}

func decodeContinuation(tok string) (negScore int, id int64, ok bool) {
	if tok == "" {
		return 0, 0, false
	}
	parts := strings.SplitN(tok, "|", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	n, err1 := strconv.Atoi(parts[0])
	i, err2 := strconv.ParseInt(parts[1], 10, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return n, i, true
}
