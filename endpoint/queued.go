package endpoint

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-hclog"

	"lzbridge/codec"
	"lzbridge/types"
)

// PacketQueue persists packets between the source commit and the destination
// delivery
type PacketQueue interface {
	NextNonce(srcEid types.EndpointID, sender types.Peer, dstEid types.EndpointID, receiver types.Peer) (uint64, error)
	Push(packet *types.Packet) error
	// Pop returns nil when nothing is queued for dstEid
	Pop(dstEid types.EndpointID) (*types.Packet, error)
	// MarkDelivered returns false if guid was already marked
	MarkDelivered(guid common.Hash) (bool, error)
	MarkFailed(packet *types.Packet, reason string) error
}

// Queued is the asynchronous endpoint: Send commits the packet to the queue
// and returns, delivery happens later through Deliver/Relay on the
// destination endpoint. Packets may arrive out of order or more than once,
// each GUID is delivered at most once.
type Queued struct {
	eid     types.EndpointID
	pricing pricing
	queue   PacketQueue

	routesMu  sync.RWMutex
	receivers map[common.Address]types.Receiver

	logger hclog.Logger
}

func NewQueued(eid types.EndpointID, fees FeeModel, queue PacketQueue, logger hclog.Logger) *Queued {
	return &Queued{
		eid:       eid,
		pricing:   pricing{model: fees},
		queue:     queue,
		receivers: make(map[common.Address]types.Receiver),
		logger:    logger.Named(fmt.Sprintf("endpoint-queued-%d", eid)),
	}
}

func (q *Queued) Eid() types.EndpointID { return q.eid }

func (q *Queued) SetReceiver(addr common.Address, r types.Receiver) {
	q.routesMu.Lock()
	defer q.routesMu.Unlock()

	q.receivers[addr] = r
}

func (q *Queued) SetGasPrice(gasPrice *big.Int) {
	q.pricing.setGasPrice(gasPrice)
}

func (q *Queued) FeeModel() FeeModel {
	return q.pricing.get()
}

func (q *Queued) Quote(params types.MessagingParams, sender common.Address) (types.MessagingFee, error) {
	return q.pricing.get().Quote(params.Message, params.Options, params.PayInLzToken)
}

func (q *Queued) Send(ctx context.Context, params types.MessagingParams, sender common.Address, value *big.Int) (types.MessagingReceipt, error) {
	fee, refund, err := checkPayment(q.pricing.get(), params, value)
	if err != nil {
		return types.MessagingReceipt{}, err
	}
	if err := ctx.Err(); err != nil {
		return types.MessagingReceipt{}, err
	}

	senderPeer := types.AddressToPeer(sender)
	nonce, err := q.queue.NextNonce(q.eid, senderPeer, params.DstEid, params.Receiver)
	if err != nil {
		return types.MessagingReceipt{}, fmt.Errorf("cannot reserve nonce: %w", err)
	}

	packet := &types.Packet{
		Nonce:    nonce,
		SrcEid:   q.eid,
		Sender:   senderPeer,
		DstEid:   params.DstEid,
		Receiver: params.Receiver,
		GUID:     codec.GUID(nonce, q.eid, senderPeer, params.DstEid, params.Receiver),
		Message:  params.Message,
		Options:  params.Options,
	}
	if err := q.queue.Push(packet); err != nil {
		return types.MessagingReceipt{}, fmt.Errorf("cannot queue packet: %w", err)
	}

	q.logger.Debug("packet queued", "guid", packet.GUID, "nonce", nonce, "dstEid", params.DstEid, "fee", fee.NativeFee)

	return types.MessagingReceipt{GUID: packet.GUID, Nonce: nonce, Fee: fee, Refund: refund}, nil
}

// Deliver runs lzReceive for a packet addressed to this endpoint. A receiver
// rejection marks the packet failed; it is not retried.
func (q *Queued) Deliver(ctx context.Context, packet *types.Packet) error {
	if packet.DstEid != q.eid {
		return fmt.Errorf("%w: packet for eid %d delivered to eid %d", types.ErrNoRoute, packet.DstEid, q.eid)
	}

	first, err := q.queue.MarkDelivered(packet.GUID)
	if err != nil {
		return err
	}
	if !first {
		return fmt.Errorf("%w: guid %s", types.ErrReplayedPacket, packet.GUID)
	}

	receiverAddr := types.PeerToAddress(packet.Receiver)
	q.routesMu.RLock()
	receiver, ok := q.receivers[receiverAddr]
	q.routesMu.RUnlock()

	if !ok {
		err = fmt.Errorf("%w: %s on eid %d", types.ErrUnknownReceiver, receiverAddr, q.eid)
	} else {
		err = receiver.LzReceive(ctx, packet.Origin(), packet.GUID, packet.Message)
	}

	if err != nil {
		if markErr := q.queue.MarkFailed(packet, err.Error()); markErr != nil {
			q.logger.Error("cannot mark packet failed", "guid", packet.GUID, "err", markErr)
		}
		return fmt.Errorf("lzReceive on eid %d: %w", q.eid, err)
	}

	return nil
}

// RelayResult describes one delivery attempt
type RelayResult struct {
	Packet *types.Packet
	Err    error
}

// Relay drains the queue for this endpoint and reports every attempt
func (q *Queued) Relay(ctx context.Context) ([]RelayResult, error) {
	var results []RelayResult

	for ctx.Err() == nil {
		packet, err := q.queue.Pop(q.eid)
		if err != nil {
			return results, err
		}
		if packet == nil {
			break
		}

		err = q.Deliver(ctx, packet)
		if err != nil {
			q.logger.Warn("packet delivery failed", "guid", packet.GUID, "srcEid", packet.SrcEid, "err", err)
		}
		results = append(results, RelayResult{Packet: packet, Err: err})
	}

	return results, nil
}
