package chain

import (
	"github.com/Klingon-tech/klingnet-chain/pkg/block"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// EventType tags the variant carried by an Event (spec §6 dashboard stream).
type EventType string

// Dashboard event variants.
const (
	EventNodeInfo        EventType = "node_info"
	EventFinalizedBlock  EventType = "broadcast_finalized_block"
	EventHashRateUpdated EventType = "hash_rate_updated"
)

// NodeInfo summarizes current chain state for a dashboard.
type NodeInfo struct {
	Height     uint64
	TipHash    types.Hash
	Supply     uint64
	Difficulty uint64
}

// HashRateUpdate reports the miner's recent hash search throughput.
type HashRateUpdate struct {
	HashesPerSecond float64
}

// Event is one item on the chain's dashboard stream. Only the field
// matching Type is populated.
type Event struct {
	Type           EventType
	NodeInfo       *NodeInfo
	FinalizedBlock *block.Block
	HashRate       *HashRateUpdate
}

// Events returns the dashboard event channel. Consumers must keep up —
// emit is non-blocking and drops an event rather than stall digestion
// when the channel is full.
func (c *Chain) Events() <-chan Event {
	return c.events
}

func (c *Chain) emit(e Event) {
	if c.events == nil {
		return
	}
	select {
	case c.events <- e:
	default:
	}
}
