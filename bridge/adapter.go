package bridge

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"lzbridge/codec"
	"lzbridge/ledger"
	"lzbridge/lzoptions"
	"lzbridge/types"
)

// Mode decides what the adapter does with the local ledger
type Mode string

const (
	// lock into adapter custody on send, release on receive
	ModeLock Mode = "lock"
	// burn on send, mint on receive
	ModeMint Mode = "mint"
)

type Params struct {
	Name            string
	Address         common.Address
	Owner           common.Address
	Endpoint        types.Transport
	Ledger          *ledger.Ledger
	Mode            Mode
	SupportedAssets []*big.Int // defaults to asset 0 only
	Store           OperationStore
	Logger          hclog.Logger
}

// TxOpts identifies the caller and the native value attached to a call
type TxOpts struct {
	From  common.Address
	Value *big.Int
}

// Adapter is the bridge contract of one chain
type Adapter struct {
	name     string
	address  common.Address
	owner    common.Address
	endpoint types.Transport
	ledger   *ledger.Ledger
	mode     Mode
	assets   map[string]struct{}
	// local units -> shared decimals multiplier
	conversion *big.Int

	peersMu      sync.RWMutex
	peers        map[types.EndpointID]types.Peer
	peersVersion uint64

	store  OperationStore
	logger hclog.Logger
}

func New(p Params) (*Adapter, error) {
	if p.Endpoint == nil || p.Ledger == nil || p.Store == nil {
		return nil, errors.New("adapter needs an endpoint, a ledger and an operation store")
	}
	if p.Mode != ModeLock && p.Mode != ModeMint {
		return nil, fmt.Errorf("unknown adapter mode %q", p.Mode)
	}
	decimals := p.Ledger.Decimals()
	if decimals > types.SharedDecimals {
		return nil, fmt.Errorf("ledger %s has %d decimals, more than the shared %d", p.Ledger.Symbol(), decimals, types.SharedDecimals)
	}

	assets := make(map[string]struct{})
	if len(p.SupportedAssets) == 0 {
		assets["0"] = struct{}{}
	}
	for _, id := range p.SupportedAssets {
		assets[id.String()] = struct{}{}
	}

	logger := p.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	a := &Adapter{
		name:       p.Name,
		address:    p.Address,
		owner:      p.Owner,
		endpoint:   p.Endpoint,
		ledger:     p.Ledger,
		mode:       p.Mode,
		assets:     assets,
		conversion: new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(types.SharedDecimals-decimals)), nil),
		peers:      make(map[types.EndpointID]types.Peer),
		store:      p.Store,
		logger:     logger.Named(p.Name),
	}

	p.Endpoint.SetReceiver(p.Address, a)

	return a, nil
}

func (a *Adapter) Name() string              { return a.name }
func (a *Adapter) Address() common.Address   { return a.address }
func (a *Adapter) Owner() common.Address     { return a.owner }
func (a *Adapter) Mode() Mode                { return a.mode }
func (a *Adapter) Eid() types.EndpointID     { return a.endpoint.Eid() }
func (a *Adapter) Ledger() *ledger.Ledger    { return a.ledger }
func (a *Adapter) Endpoint() types.Transport { return a.endpoint }

// SetPeer records (or overwrites) the trusted adapter for eid. The remote
// side is not asked to reciprocate.
func (a *Adapter) SetPeer(caller common.Address, eid types.EndpointID, peer types.Peer) error {
	if caller != a.owner {
		return fmt.Errorf("%w: %s is not the owner of %s", types.ErrUnauthorized, caller, a.name)
	}

	a.peersMu.Lock()
	defer a.peersMu.Unlock()

	if prev, ok := a.peers[eid]; ok && prev == peer {
		return nil
	}
	a.peers[eid] = peer
	a.peersVersion++

	a.logger.Info("peer set", "eid", eid, "peer", peer, "version", a.peersVersion)
	return nil
}

func (a *Adapter) Peer(eid types.EndpointID) (types.Peer, bool) {
	a.peersMu.RLock()
	defer a.peersMu.RUnlock()

	peer, ok := a.peers[eid]
	return peer, ok
}

func (a *Adapter) PeersVersion() uint64 {
	a.peersMu.RLock()
	defer a.peersMu.RUnlock()

	return a.peersVersion
}

type PeerEntry struct {
	Eid  types.EndpointID `json:"eid"`
	Peer types.Peer       `json:"peer"`
}

// Peers returns the routing table sorted by eid, with its version
func (a *Adapter) Peers() ([]PeerEntry, uint64) {
	a.peersMu.RLock()
	defer a.peersMu.RUnlock()

	entries := make([]PeerEntry, 0, len(a.peers))
	for eid, peer := range a.peers {
		entries = append(entries, PeerEntry{Eid: eid, Peer: peer})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Eid < entries[j].Eid })

	return entries, a.peersVersion
}

// Quote returns the fee BridgeToken will require for the same arguments
func (a *Adapter) Quote(dstEid types.EndpointID, recipient common.Address, amount, assetID *big.Int,
	options []byte, payInLzToken bool) (types.MessagingFee, error) {
	params, err := a.buildParams(dstEid, recipient, amount, assetID, options)
	if err != nil {
		return types.MessagingFee{}, err
	}
	params.PayInLzToken = payInLzToken

	return a.endpoint.Quote(params, a.address)
}

// BridgeToken debits the caller and dispatches the transfer to the peer on
// dstEid. Debit and dispatch either both happen or neither does.
func (a *Adapter) BridgeToken(ctx context.Context, opts TxOpts, dstEid types.EndpointID, recipient common.Address,
	amount, assetID *big.Int, options []byte) (*types.BridgeOperation, error) {
	params, err := a.buildParams(dstEid, recipient, amount, assetID, options)
	if err != nil {
		return nil, err
	}

	fee, err := a.endpoint.Quote(params, a.address)
	if err != nil {
		return nil, err
	}
	value := opts.Value
	if value == nil {
		value = new(big.Int)
	}
	if value.Cmp(fee.NativeFee) < 0 {
		return nil, fmt.Errorf("%w: attached %s, required %s", types.ErrInsufficientFee, value, fee.NativeFee)
	}

	journal := a.ledger.Journal()
	if err := a.debit(journal, opts.From, amount); err != nil {
		return nil, err
	}

	op := &types.BridgeOperation{
		ID:            uuid.New().String(),
		SrcEid:        a.Eid(),
		DstEid:        dstEid,
		TsFound:       time.Now().Unix(),
		Amount:        new(big.Int).Mul(amount, a.conversion).String(),
		AssetID:       assetIDOrZero(assetID).String(),
		SourceAddress: opts.From.Hex(),
		DestAddress:   recipient.Hex(),
		Fee:           fee.NativeFee.String(),
	}

	receipt, err := a.endpoint.Send(ctx, params, a.address, value)
	if err != nil {
		journal.Revert()

		op.Status = types.StatusReverted
		op.AppendMessage(err.Error())
		if storeErr := a.store.UpsertBridgeOperation(op); storeErr != nil {
			a.logger.Error("cannot store reverted bridge operation", "err", storeErr)
		}

		updateSentMetrics(op.SrcEid, dstEid, types.StatusReverted)
		a.logger.Warn("bridge transfer reverted", "dstEid", dstEid, "from", opts.From, "amount", amount, "err", err)
		return nil, err
	}
	journal.Commit()

	op.GUID = receipt.GUID.Hex()
	op.Nonce = receipt.Nonce
	op.Fee = receipt.Fee.NativeFee.String()

	a.recordSent(op)
	updateSentMetrics(op.SrcEid, dstEid, types.StatusSent)

	a.logger.Info("bridge transfer sent",
		"guid", op.GUID, "dstEid", dstEid, "from", opts.From, "to", recipient, "amount", amount, "fee", op.Fee)

	return op, nil
}

// LzReceive is called by the endpoint with a message from a remote adapter
func (a *Adapter) LzReceive(ctx context.Context, origin types.Origin, guid common.Hash, message []byte) error {
	err := a.lzReceive(ctx, origin, guid, message)
	updateReceivedMetrics(origin.SrcEid, a.Eid(), err)
	return err
}

func (a *Adapter) lzReceive(_ context.Context, origin types.Origin, guid common.Hash, message []byte) error {
	peer, ok := a.Peer(origin.SrcEid)
	if !ok || peer != origin.Sender {
		a.logger.Warn("rejected message from untrusted sender", "srcEid", origin.SrcEid, "sender", origin.Sender)
		return fmt.Errorf("%w: %s on eid %d", types.ErrUntrustedSender, origin.Sender, origin.SrcEid)
	}

	payload, err := codec.DecodePayload(message)
	if err != nil {
		return err
	}
	if !a.supports(payload.AssetID) {
		return fmt.Errorf("%w: asset %s", types.ErrUnsupportedAsset, payload.AssetID)
	}

	local, remainder := new(big.Int).QuoRem(payload.Amount, a.conversion, new(big.Int))
	if remainder.Sign() != 0 || local.Sign() <= 0 {
		return fmt.Errorf("%w: amount %s not representable with %d decimals", types.ErrInvalidPayload, payload.Amount, a.ledger.Decimals())
	}

	status := types.StatusMinted
	if a.mode == ModeLock {
		status = types.StatusReleased
		err = a.ledger.Transfer(a.address, payload.Recipient, local)
	} else {
		err = a.ledger.Mint(a.address, payload.Recipient, local)
	}
	if err != nil {
		return err
	}

	a.recordReceived(origin, guid, payload, status)

	a.logger.Info("bridge transfer received",
		"guid", guid.Hex(), "srcEid", origin.SrcEid, "to", payload.Recipient, "amount", local, "status", status)

	return nil
}

func (a *Adapter) buildParams(dstEid types.EndpointID, recipient common.Address, amount, assetID *big.Int,
	options []byte) (types.MessagingParams, error) {
	if amount == nil || amount.Sign() <= 0 {
		return types.MessagingParams{}, fmt.Errorf("%w: %v", types.ErrInvalidAmount, amount)
	}
	assetID = assetIDOrZero(assetID)
	if !a.supports(assetID) {
		return types.MessagingParams{}, fmt.Errorf("%w: asset %s", types.ErrUnsupportedAsset, assetID)
	}

	peer, ok := a.Peer(dstEid)
	if !ok {
		return types.MessagingParams{}, fmt.Errorf("%w: eid %d", types.ErrUnknownPeer, dstEid)
	}

	if _, err := lzoptions.Decode(options); err != nil {
		return types.MessagingParams{}, err
	}

	wire := new(big.Int).Mul(amount, a.conversion)
	if wire.Cmp(math.MaxBig256) > 0 {
		return types.MessagingParams{}, fmt.Errorf("%w: %s %s is above the uint256 wire limit",
			types.ErrInvalidAmount, amount, a.ledger.Symbol())
	}

	message, err := codec.EncodePayload(codec.Payload{
		Recipient: recipient,
		Amount:    wire,
		AssetID:   assetID,
	})
	if err != nil {
		return types.MessagingParams{}, err
	}

	return types.MessagingParams{
		DstEid:   dstEid,
		Receiver: peer,
		Message:  message,
		Options:  options,
	}, nil
}

func (a *Adapter) debit(journal *ledger.Journal, from common.Address, amount *big.Int) error {
	if a.mode == ModeLock {
		return journal.TransferFrom(a.address, from, a.address, amount)
	}
	return journal.Burn(a.address, from, amount)
}

func (a *Adapter) supports(assetID *big.Int) bool {
	_, ok := a.assets[assetID.String()]
	return ok
}

// recordSent stores the source view. With a synchronous endpoint the
// destination has already recorded the operation by now.
func (a *Adapter) recordSent(op *types.BridgeOperation) {
	existing, err := a.store.FindBridgeOperationByGUID(op.GUID)
	if err != nil {
		a.logger.Error("cannot look up bridge operation", "guid", op.GUID, "err", err)
	}

	if existing != nil {
		op.ID = existing.ID
		op.Status = existing.Status
		existing.SourceAddress = op.SourceAddress
		existing.Fee = op.Fee
		existing.TsFound = op.TsFound
		err = a.store.ChangeBridgeOperationStatus(existing, existing.Status)
	} else {
		op.Status = types.StatusSent
		err = a.store.UpsertBridgeOperation(op)
	}
	if err != nil {
		a.logger.Error("cannot store sent bridge operation", "guid", op.GUID, "err", err)
	}
}

func (a *Adapter) recordReceived(origin types.Origin, guid common.Hash, payload *codec.Payload, status string) {
	existing, err := a.store.FindBridgeOperationByGUID(guid.Hex())
	if err != nil {
		a.logger.Error("cannot look up bridge operation", "guid", guid.Hex(), "err", err)
	}

	if existing != nil {
		prev := existing.Status
		existing.Status = status
		err = a.store.ChangeBridgeOperationStatus(existing, prev)
	} else {
		err = a.store.UpsertBridgeOperation(&types.BridgeOperation{
			ID:          uuid.New().String(),
			GUID:        guid.Hex(),
			Status:      status,
			SrcEid:      origin.SrcEid,
			DstEid:      a.Eid(),
			Nonce:       origin.Nonce,
			TsFound:     time.Now().Unix(),
			Amount:      payload.Amount.String(),
			AssetID:     payload.AssetID.String(),
			DestAddress: payload.Recipient.Hex(),
		})
	}
	if err != nil {
		a.logger.Error("cannot store received bridge operation", "guid", guid.Hex(), "err", err)
	}
}

func assetIDOrZero(id *big.Int) *big.Int {
	if id == nil {
		return new(big.Int)
	}
	return id
}
