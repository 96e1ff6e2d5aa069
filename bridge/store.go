package bridge

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"lzbridge/types"
)

// OperationStore keeps bridge operation records. Source and destination
// adapters share one store so an operation can be followed end to end.
type OperationStore interface {
	UpsertBridgeOperation(op *types.BridgeOperation) error
	ChangeBridgeOperationStatus(op *types.BridgeOperation, prevStatus string) error
	FindBridgeOperationByGUID(guid string) (*types.BridgeOperation, error)
	FindAllBridgeOperationsByStatus(status string) ([]*types.BridgeOperation, error)
}

type MemoryStore struct {
	mu  sync.RWMutex
	ops map[string]*types.BridgeOperation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ops: make(map[string]*types.BridgeOperation)}
}

func (m *MemoryStore) UpsertBridgeOperation(op *types.BridgeOperation) error {
	if op == nil {
		return errors.New("null object to store")
	}
	if op.Status == "" {
		return errors.New("bridge operation cannot have empty status")
	}
	if op.ID == "" {
		op.ID = uuid.New().String()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *op
	m.ops[op.ID] = &cp
	return nil
}

func (m *MemoryStore) ChangeBridgeOperationStatus(op *types.BridgeOperation, prevStatus string) error {
	// status is a field of the record here, no sets to move it between
	return m.UpsertBridgeOperation(op)
}

func (m *MemoryStore) FindBridgeOperationByGUID(guid string) (*types.BridgeOperation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, op := range m.ops {
		if op.GUID == guid {
			cp := *op
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) FindAllBridgeOperationsByStatus(status string) ([]*types.BridgeOperation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ops := make([]*types.BridgeOperation, 0)
	for _, op := range m.ops {
		if op.Status == status {
			cp := *op
			ops = append(ops, &cp)
		}
	}
	return ops, nil
}
