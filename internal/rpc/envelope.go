// Package rpc implements the bidirectional WebSocket RPC fabric (spec
// §4.2): the wire envelope shared by both directions, Pattern A
// (MessageServer, client-originated) and Pattern B (FrontendClient,
// server-originated). Grounded on original_source/src/server/
// message_server.rs (Pattern A) and original_source/src/server/
// routes.rs's FrontendClient/RequestTracker (Pattern B).
package rpc

import (
	"encoding/json"
	"fmt"
)

// Envelope types, matching spec §4.2's wire shape:
// `{ id?: u32, type: "Request"|"OkOne"|"OkMany"|"Err", content: ... }`.
const (
	TypeRequest = "Request"
	TypeOkOne   = "OkOne"
	TypeOkMany  = "OkMany"
	TypeErr     = "Err"
)

// Envelope is the wire message exchanged over every RPC WebSocket
// connection in both directions.
type Envelope struct {
	ID      *uint32         `json:"id,omitempty"`
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

// ManyContent is OkMany's content shape: one item of a streaming reply,
// its terminal marker, and its 0-based sequence number.
type ManyContent struct {
	Data  json.RawMessage `json:"data"`
	Done  bool            `json:"done"`
	Index uint32          `json:"index"`
}

// ErrorMessage is Err's content shape.
type ErrorMessage struct {
	Message    string `json:"message"`
	StackTrace string `json:"stack_trace"`
}

func (e *ErrorMessage) Error() string { return e.Message }

func marshalEnvelope(id *uint32, typ string, payload any) (Envelope, error) {
	content, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshaling %s content: %w", typ, err)
	}
	return Envelope{ID: id, Type: typ, Content: content}, nil
}

func requestEnvelope(id uint32, payload any) (Envelope, error) {
	return marshalEnvelope(&id, TypeRequest, payload)
}

func okOneEnvelope(id uint32, payload any) (Envelope, error) {
	return marshalEnvelope(&id, TypeOkOne, payload)
}

func okManyEnvelope(id uint32, payload json.RawMessage, done bool, index uint32) (Envelope, error) {
	return marshalEnvelope(&id, TypeOkMany, ManyContent{Data: payload, Done: done, Index: index})
}

func errEnvelope(id *uint32, err error) Envelope {
	msg := ErrorMessage{Message: err.Error(), StackTrace: fmt.Sprintf("%+v", err)}
	content, _ := json.Marshal(msg)
	return Envelope{ID: id, Type: TypeErr, Content: content}
}
