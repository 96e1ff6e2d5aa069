package endpoint

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"lzbridge/types"
)

type FailedPacket struct {
	Packet *types.Packet
	Reason string
}

// MemoryQueue is a PacketQueue kept in process memory
type MemoryQueue struct {
	mu        sync.Mutex
	nonces    map[pathKey]uint64
	queues    map[types.EndpointID][]*types.Packet
	delivered map[common.Hash]struct{}
	failed    []FailedPacket
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		nonces:    make(map[pathKey]uint64),
		queues:    make(map[types.EndpointID][]*types.Packet),
		delivered: make(map[common.Hash]struct{}),
	}
}

func (m *MemoryQueue) NextNonce(srcEid types.EndpointID, sender types.Peer, dstEid types.EndpointID, receiver types.Peer) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := pathKey{srcEid, sender, dstEid, receiver}
	m.nonces[key]++
	return m.nonces[key], nil
}

func (m *MemoryQueue) Push(packet *types.Packet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queues[packet.DstEid] = append(m.queues[packet.DstEid], packet)
	return nil
}

func (m *MemoryQueue) Pop(dstEid types.EndpointID) (*types.Packet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.queues[dstEid]
	if len(q) == 0 {
		return nil, nil
	}
	m.queues[dstEid] = q[1:]
	return q[0], nil
}

func (m *MemoryQueue) MarkDelivered(guid common.Hash) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.delivered[guid]; ok {
		return false, nil
	}
	m.delivered[guid] = struct{}{}
	return true, nil
}

func (m *MemoryQueue) MarkFailed(packet *types.Packet, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failed = append(m.failed, FailedPacket{Packet: packet, Reason: reason})
	return nil
}

func (m *MemoryQueue) Failed() []FailedPacket {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]FailedPacket(nil), m.failed...)
}

func (m *MemoryQueue) Pending(dstEid types.EndpointID) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.queues[dstEid])
}
