// Package p2p defines the wire contract peers use to exchange transactions,
// blocks, and chain-status queries. It carries no transport: opening
// connections, gossiping, and stream handling belong to an external
// collaborator that speaks this contract (spec §1/§6).
package p2p

import (
	"encoding/json"
	"fmt"
)

// GossipSub topic names carried as documentation of the wire contract; no
// pubsub host is wired here.
const (
	TopicTransactions = "/klingnet/tx/1.0.0"
	TopicBlocks       = "/klingnet/block/1.0.0"
)

// Stream protocol IDs, likewise documentation-only.
const (
	BlockRequestProtocol = "/blockchain/blockrequest/1.0.0"
	StatusProtocol       = "/blockchain/status/1.0.0"
)

// ProtocolVersion is the wire protocol version this node speaks.
const ProtocolVersion uint32 = 1

// MessageType identifies the kind of payload carried by a Message.
type MessageType uint8

const (
	MsgUnknown MessageType = iota
	MsgTx
	MsgBlock
	MsgStatus
	MsgBlockRequest
)

// Message is the JSON envelope exchanged between peers. Payload holds the
// type-specific body, itself JSON-encoded, so a Message can be decoded
// without first knowing its Type.
type Message struct {
	Type    MessageType `json:"type"`
	Payload []byte      `json:"payload"`
}

// Decode reports the concrete type for m.Type, or ErrUnknownMessage if the
// tag is not one this version recognizes.
func (m Message) Decode() (any, error) {
	switch m.Type {
	case MsgTx:
		return m.Payload, nil
	case MsgBlock:
		return m.Payload, nil
	case MsgStatus:
		var s StatusResponse
		if err := json.Unmarshal(m.Payload, &s); err != nil {
			return nil, err
		}
		return s, nil
	case MsgBlockRequest:
		var r BlockRequest
		if err := json.Unmarshal(m.Payload, &r); err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("%w: tag %d", ErrUnknownMessage, m.Type)
	}
}

// ErrUnknownMessage is returned for a Message whose Type tag this version
// of the wire contract does not recognize.
var ErrUnknownMessage = fmt.Errorf("p2p: unknown message type")

// StatusResponse is the body of a StatusProtocol reply: a peer's chain tip.
type StatusResponse struct {
	Height  uint64 `json:"height"`
	TipHash string `json:"tip_hash"`
}

// BlockRequest is the body of a BlockRequestProtocol request: a contiguous
// range of block heights, [FromHeight, ToHeight].
type BlockRequest struct {
	FromHeight uint64 `json:"from_height"`
	ToHeight   uint64 `json:"to_height"`
}
