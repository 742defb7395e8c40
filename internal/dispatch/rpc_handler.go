package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/covau-dev/covau/internal/kind"
	"github.com/covau-dev/covau/internal/rpc"
)

// dbRequest is the tagged union the browser sends over /serve/db,
// mirroring original_source/src/server/server.rs's db_server::DbRequest
// enum. Variant-specific fields are all folded into one struct (rather
// than Go's usual one-struct-per-variant) since every field here is a
// plain scalar or already-RawMessage value; there is no payload rich
// enough to warrant per-variant types the way kind.Item's Unmarshal
// dispatch does.
type dbRequest struct {
	Type string `json:"type"`

	TransactionID uint32   `json:"transaction_id,omitempty"`
	Typ           string   `json:"typ,omitempty"`
	ID            int64    `json:"id,omitempty"`
	Ids           []int64  `json:"ids,omitempty"`
	Refid         string   `json:"refid,omitempty"`
	Refids        []string `json:"refids,omitempty"`

	Item     json.RawMessage `json:"item,omitempty"`
	Metadata json.RawMessage `json:"metadata,omitempty"`

	// UpdateCounter is the caller's last-observed update_counter, checked
	// against the stored row by Update/UpdateMetadata (spec §3/§4.1's
	// stale-write guard).
	UpdateCounter uint32 `json:"update_counter,omitempty"`

	Query        string `json:"query,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	Continuation string `json:"continuation,omitempty"`
}

// insertItem is the shape Update/Delete send their `item` field as: an
// envelope carrying the kind's payload alongside the id that locates
// the row being replaced or removed.
type insertItem struct {
	ID   int64           `json:"id,omitempty"`
	Item json.RawMessage `json:"item"`
}

// Handler adapts Dispatcher's method set into an rpc.HandlerFunc,
// wiring /serve/db (spec §6) the same way original_source/server.rs's
// db_server module wires DbRequest::handle into its MessageServer.
func (d *Dispatcher) Handler() rpc.HandlerFunc {
	return func(ctx context.Context, alloc *rpc.IDAllocator, raw json.RawMessage) (json.RawMessage, error) {
		var req dbRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("decoding db request: %w", err)
		}

		switch req.Type {
		case "Begin":
			tid, err := d.Begin(ctx)
			return marshalReply(tid, err)

		case "Commit":
			return marshalReply(struct{}{}, d.Commit(req.TransactionID))

		case "Rollback":
			return marshalReply(struct{}{}, d.Rollback(req.TransactionID))

		case "Insert":
			k, err := kind.Parse(req.Typ)
			if err != nil {
				return nil, err
			}
			id, err := d.Insert(ctx, req.TransactionID, k, req.Item)
			return marshalReply(id, err)

		case "InsertOrGet":
			k, err := kind.Parse(req.Typ)
			if err != nil {
				return nil, err
			}
			id, created, err := d.InsertOrGet(ctx, req.TransactionID, k, req.Item)
			if err != nil {
				return nil, err
			}
			return marshalReply(struct {
				ID      int64 `json:"id"`
				Created bool  `json:"created"`
			}{id, created}, nil)

		case "Update":
			var item insertItem
			if err := json.Unmarshal(req.Item, &item); err != nil {
				return nil, fmt.Errorf("decoding Update item: %w", err)
			}
			k, err := kind.Parse(req.Typ)
			if err != nil {
				return nil, err
			}
			err = d.Update(ctx, req.TransactionID, item.ID, k, item.Item, req.UpdateCounter)
			return marshalReply(struct{}{}, err)

		case "UpdateMetadata":
			err := d.UpdateMetadata(ctx, req.TransactionID, req.ID, req.Metadata, req.UpdateCounter)
			return marshalReply(struct{}{}, err)

		case "Delete":
			var item insertItem
			if err := json.Unmarshal(req.Item, &item); err != nil {
				return nil, fmt.Errorf("decoding Delete item: %w", err)
			}
			k, err := kind.Parse(req.Typ)
			if err != nil {
				return nil, err
			}
			err = d.Delete(ctx, req.TransactionID, item.ID, k)
			return marshalReply(struct{}{}, err)

		case "Search":
			k, err := kind.Parse(req.Typ)
			if err != nil {
				return nil, err
			}
			page, err := d.Search(ctx, req.TransactionID, k, req.Query, req.Limit, req.Continuation)
			return marshalReply(page, err)

		case "GetByRefid":
			k, err := kind.Parse(req.Typ)
			if err != nil {
				return nil, err
			}
			item, err := d.GetByRefid(ctx, req.TransactionID, k, req.Refid)
			return marshalReply(item, err)

		case "GetManyByRefid":
			k, err := kind.Parse(req.Typ)
			if err != nil {
				return nil, err
			}
			items, err := d.GetManyByRefid(ctx, req.TransactionID, k, req.Refids)
			return marshalReply(items, err)

		case "GetById":
			k, err := kind.Parse(req.Typ)
			if err != nil {
				return nil, err
			}
			item, err := d.GetByID(ctx, req.TransactionID, k, req.ID)
			return marshalReply(item, err)

		case "GetManyById":
			k, err := kind.Parse(req.Typ)
			if err != nil {
				return nil, err
			}
			items, err := d.GetManyByID(ctx, req.TransactionID, k, req.Ids)
			return marshalReply(items, err)

		default:
			return nil, fmt.Errorf("dispatch: unknown db request type %q", req.Type)
		}
	}
}

func marshalReply(v any, err error) (json.RawMessage, error) {
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}
