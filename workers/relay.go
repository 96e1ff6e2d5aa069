package workers

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"lzbridge/bridge"
	"lzbridge/endpoint"
	"lzbridge/types"
)

// Relayer delivers queued packets to their destination endpoints
type Relayer interface {
	Relay(ctx context.Context) ([]endpoint.RelayResult, error)
}

func Worker_relay(ctx context.Context, relayer Relayer, store bridge.OperationStore, interval time.Duration, logger hclog.Logger) {
	logger = logger.Named("relay")
	logger.Info("relay worker started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("relay worker stopped")
			return
		case <-ticker.C:
			relayOnce(ctx, relayer, store, logger)
		}
	}
}

// relayOnce drains the queues and records rejected deliveries as failed
// operations. The source side of a failed operation has already committed,
// so it needs manual reconciliation.
func relayOnce(ctx context.Context, relayer Relayer, store bridge.OperationStore, logger hclog.Logger) int {
	results, err := relayer.Relay(ctx)
	if err != nil {
		logger.Error("relay failed", "err", err)
	}

	failed := 0
	for _, res := range results {
		if res.Err == nil {
			logger.Debug("packet delivered", "guid", res.Packet.GUID, "srcEid", res.Packet.SrcEid, "dstEid", res.Packet.DstEid)
			continue
		}
		if errors.Is(res.Err, types.ErrReplayedPacket) {
			logger.Debug("duplicate packet skipped", "guid", res.Packet.GUID)
			continue
		}

		failed++
		if err := markFailed(store, res.Packet, res.Err); err != nil {
			logger.Error("cannot mark bridge operation failed", "guid", res.Packet.GUID, "err", err)
		}
	}
	return failed
}

func markFailed(store bridge.OperationStore, packet *types.Packet, cause error) error {
	guid := packet.GUID.Hex()

	op, err := store.FindBridgeOperationByGUID(guid)
	if err != nil {
		return err
	}

	if op == nil {
		// the source record is missing, keep what the packet tells
		op = &types.BridgeOperation{
			ID:      uuid.New().String(),
			GUID:    guid,
			Status:  types.StatusFailed,
			SrcEid:  packet.SrcEid,
			DstEid:  packet.DstEid,
			Nonce:   packet.Nonce,
			TsFound: time.Now().Unix(),
		}
		op.AppendMessage(cause.Error())
		return store.UpsertBridgeOperation(op)
	}

	prev := op.Status
	op.Status = types.StatusFailed
	op.AppendMessage(cause.Error())
	return store.ChangeBridgeOperationStatus(op, prev)
}
