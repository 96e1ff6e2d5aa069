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

type pathKey struct {
	srcEid   types.EndpointID
	sender   types.Peer
	dstEid   types.EndpointID
	receiver types.Peer
}

// Mock is an in-process endpoint that delivers synchronously: Send returns
// only after the destination receiver has accepted (or rejected) the message.
// A rejected delivery consumes no nonce and charges no fee, so the caller can
// roll back as if the whole thing was one transaction.
type Mock struct {
	eid     types.EndpointID
	pricing pricing

	// sends are serialized per endpoint, the way a chain orders its transactions
	sendMu    sync.Mutex
	outbound  map[pathKey]uint64
	collected *big.Int

	recvMu  sync.Mutex
	inbound map[pathKey]uint64

	routesMu  sync.RWMutex
	receivers map[common.Address]types.Receiver
	dest      map[common.Address]*Mock

	logger hclog.Logger
}

func NewMock(eid types.EndpointID, fees FeeModel, logger hclog.Logger) *Mock {
	return &Mock{
		eid:       eid,
		pricing:   pricing{model: fees},
		outbound:  make(map[pathKey]uint64),
		collected: new(big.Int),
		inbound:   make(map[pathKey]uint64),
		receivers: make(map[common.Address]types.Receiver),
		dest:      make(map[common.Address]*Mock),
		logger:    logger.Named(fmt.Sprintf("endpoint-mock-%d", eid)),
	}
}

func (m *Mock) Eid() types.EndpointID { return m.eid }

func (m *Mock) SetReceiver(addr common.Address, r types.Receiver) {
	m.routesMu.Lock()
	defer m.routesMu.Unlock()

	m.receivers[addr] = r
}

// SetDestLzEndpoint tells this endpoint which endpoint hosts receiver
func (m *Mock) SetDestLzEndpoint(receiver common.Address, dst *Mock) {
	m.routesMu.Lock()
	defer m.routesMu.Unlock()

	m.dest[receiver] = dst
}

func (m *Mock) SetGasPrice(gasPrice *big.Int) {
	m.pricing.setGasPrice(gasPrice)
}

func (m *Mock) FeeModel() FeeModel {
	return m.pricing.get()
}

func (m *Mock) CollectedFees() *big.Int {
	m.sendMu.Lock()
	defer m.sendMu.Unlock()

	return new(big.Int).Set(m.collected)
}

func (m *Mock) OutboundNonce(sender common.Address, dstEid types.EndpointID, receiver types.Peer) uint64 {
	m.sendMu.Lock()
	defer m.sendMu.Unlock()

	return m.outbound[pathKey{m.eid, types.AddressToPeer(sender), dstEid, receiver}]
}

func (m *Mock) InboundNonce(srcEid types.EndpointID, sender types.Peer, receiver common.Address) uint64 {
	m.recvMu.Lock()
	defer m.recvMu.Unlock()

	return m.inbound[pathKey{srcEid, sender, m.eid, types.AddressToPeer(receiver)}]
}

func (m *Mock) Quote(params types.MessagingParams, sender common.Address) (types.MessagingFee, error) {
	return m.pricing.get().Quote(params.Message, params.Options, params.PayInLzToken)
}

func (m *Mock) Send(ctx context.Context, params types.MessagingParams, sender common.Address, value *big.Int) (types.MessagingReceipt, error) {
	fee, refund, err := checkPayment(m.pricing.get(), params, value)
	if err != nil {
		return types.MessagingReceipt{}, err
	}

	receiverAddr := types.PeerToAddress(params.Receiver)
	m.routesMu.RLock()
	dst, ok := m.dest[receiverAddr]
	m.routesMu.RUnlock()
	if !ok {
		return types.MessagingReceipt{}, fmt.Errorf("%w: %s on eid %d", types.ErrNoRoute, receiverAddr, params.DstEid)
	}
	if dst.eid != params.DstEid {
		return types.MessagingReceipt{}, fmt.Errorf("%w: %s lives on eid %d, not %d", types.ErrNoRoute, receiverAddr, dst.eid, params.DstEid)
	}

	m.sendMu.Lock()
	defer m.sendMu.Unlock()

	senderPeer := types.AddressToPeer(sender)
	key := pathKey{m.eid, senderPeer, params.DstEid, params.Receiver}
	nonce := m.outbound[key] + 1
	packet := &types.Packet{
		Nonce:    nonce,
		SrcEid:   m.eid,
		Sender:   senderPeer,
		DstEid:   params.DstEid,
		Receiver: params.Receiver,
		GUID:     codec.GUID(nonce, m.eid, senderPeer, params.DstEid, params.Receiver),
		Message:  params.Message,
		Options:  params.Options,
	}

	if err := dst.Deliver(ctx, packet); err != nil {
		m.logger.Debug("delivery rejected", "guid", packet.GUID, "nonce", nonce, "err", err)
		return types.MessagingReceipt{}, err
	}

	m.outbound[key] = nonce
	m.collected.Add(m.collected, fee.NativeFee)

	m.logger.Debug("packet sent", "guid", packet.GUID, "nonce", nonce, "dstEid", params.DstEid, "fee", fee.NativeFee)

	return types.MessagingReceipt{GUID: packet.GUID, Nonce: nonce, Fee: fee, Refund: refund}, nil
}

// Deliver hands a packet to the registered receiver. Packets on a path must
// arrive in nonce order and exactly once.
func (m *Mock) Deliver(ctx context.Context, packet *types.Packet) error {
	if packet.DstEid != m.eid {
		return fmt.Errorf("%w: packet for eid %d delivered to eid %d", types.ErrNoRoute, packet.DstEid, m.eid)
	}

	receiverAddr := types.PeerToAddress(packet.Receiver)
	m.routesMu.RLock()
	receiver, ok := m.receivers[receiverAddr]
	m.routesMu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s on eid %d", types.ErrUnknownReceiver, receiverAddr, m.eid)
	}

	m.recvMu.Lock()
	defer m.recvMu.Unlock()

	key := pathKey{packet.SrcEid, packet.Sender, packet.DstEid, packet.Receiver}
	last := m.inbound[key]
	if packet.Nonce <= last {
		return fmt.Errorf("%w: nonce %d, last delivered %d", types.ErrReplayedPacket, packet.Nonce, last)
	}
	if packet.Nonce != last+1 {
		return fmt.Errorf("out of order packet: nonce %d, expected %d", packet.Nonce, last+1)
	}

	if err := receiver.LzReceive(ctx, packet.Origin(), packet.GUID, packet.Message); err != nil {
		return fmt.Errorf("lzReceive on eid %d: %w", m.eid, err)
	}

	m.inbound[key] = packet.Nonce
	return nil
}

func checkPayment(model FeeModel, params types.MessagingParams, value *big.Int) (types.MessagingFee, *big.Int, error) {
	if params.PayInLzToken {
		return types.MessagingFee{}, nil, fmt.Errorf("%w: paying in lz token is not accepted on send", types.ErrInsufficientFee)
	}

	fee, err := model.Quote(params.Message, params.Options, false)
	if err != nil {
		return types.MessagingFee{}, nil, err
	}

	if value == nil {
		value = new(big.Int)
	}
	if value.Cmp(fee.NativeFee) < 0 {
		return types.MessagingFee{}, nil, fmt.Errorf("%w: attached %s, required %s", types.ErrInsufficientFee, value, fee.NativeFee)
	}

	return fee, new(big.Int).Sub(value, fee.NativeFee), nil
}
