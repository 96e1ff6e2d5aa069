package deploy

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"lzbridge/bridge"
	"lzbridge/config"
	"lzbridge/endpoint"
	"lzbridge/ledger"
	"lzbridge/types"
)

// Endpoint is what both endpoint flavours offer on top of the transport
type Endpoint interface {
	types.Transport
	SetGasPrice(gasPrice *big.Int)
	FeeModel() endpoint.FeeModel
}

type Options struct {
	// config.TransportMock or config.TransportQueued
	Transport string
	Owner     common.Address
	Fees      endpoint.FeeModel
	Store     bridge.OperationStore
	// required by the queued transport
	Queue  endpoint.PacketQueue
	Logger hclog.Logger
}

// Contract is one deployed point: its ledger, adapter and endpoint
type Contract struct {
	Point        config.Point
	TokenAddress common.Address
	Ledger       *ledger.Ledger
	Adapter      *bridge.Adapter
	Endpoint     Endpoint
}

// Environment holds every contract of a topology
type Environment struct {
	topology  config.Topology
	owner     common.Address
	transport string

	contracts map[string]*Contract
	byEid     map[types.EndpointID]*Contract

	// deployer nonce, addresses are derived as on a single chain
	nonceMu sync.Mutex
	nonce   uint64

	logger hclog.Logger
}

// New deploys a ledger, endpoint and adapter for every point, grants each
// adapter its ledger role and wires the connections.
func New(topology config.Topology, opts Options) (*Environment, error) {
	if err := topology.Validate(); err != nil {
		return nil, fmt.Errorf("invalid topology: %w", err)
	}
	if opts.Store == nil {
		return nil, errors.New("deploy needs an operation store")
	}
	if opts.Transport == config.TransportQueued && opts.Queue == nil {
		return nil, errors.New("queued transport needs a packet queue")
	}
	if opts.Transport != config.TransportMock && opts.Transport != config.TransportQueued {
		return nil, fmt.Errorf("unknown transport %q", opts.Transport)
	}

	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	env := &Environment{
		topology:  topology,
		owner:     opts.Owner,
		transport: opts.Transport,
		contracts: make(map[string]*Contract),
		byEid:     make(map[types.EndpointID]*Contract),
		logger:    logger.Named("deploy"),
	}

	for _, point := range topology.Contracts {
		c, err := env.deploy(point, opts, logger)
		if err != nil {
			return nil, fmt.Errorf("deploy %s: %w", point.ContractName, err)
		}
		env.contracts[point.ContractName] = c
		env.byEid[point.Eid] = c
	}

	if opts.Transport == config.TransportQueued {
		if err := env.dropStalePackets(opts.Queue, opts.Store); err != nil {
			return nil, fmt.Errorf("drop stale packets: %w", err)
		}
	}

	for _, c := range topology.Asymmetric() {
		env.logger.Warn("one way connection, messages along it will be rejected", "from", c.From, "to", c.To)
	}

	if err := env.Wire(); err != nil {
		return nil, err
	}

	return env, nil
}

func (e *Environment) deploy(point config.Point, opts Options, logger hclog.Logger) (*Contract, error) {
	var ep Endpoint
	if opts.Transport == config.TransportQueued {
		ep = endpoint.NewQueued(point.Eid, opts.Fees, opts.Queue, logger)
	} else {
		ep = endpoint.NewMock(point.Eid, opts.Fees, logger)
	}

	c := &Contract{
		Point:        point,
		TokenAddress: e.nextAddress(),
		Ledger:       ledger.New(point.Token, e.owner, logger),
		Endpoint:     ep,
	}

	adapter, err := bridge.New(bridge.Params{
		Name:     point.ContractName,
		Address:  e.nextAddress(),
		Owner:    e.owner,
		Endpoint: ep,
		Ledger:   c.Ledger,
		Mode:     bridge.Mode(point.Mode),
		Store:    opts.Store,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	c.Adapter = adapter

	switch adapter.Mode() {
	case bridge.ModeLock:
		err = c.Ledger.AddVerified(e.owner, adapter.Address(), types.Label(labelName(point.ContractName)))
	case bridge.ModeMint:
		err = c.Ledger.AddMinter(e.owner, adapter.Address())
	}
	if err != nil {
		return nil, err
	}

	e.logger.Info("deployed", "contract", point.ContractName, "eid", point.Eid, "adapter", adapter.Address(),
		"token", point.Token.Symbol, "tokenAddress", c.TokenAddress, "mode", point.Mode)

	return c, nil
}

// StalePacketReason is recorded for packets a previous deployment left queued
const StalePacketReason = "dropped at startup: queued by a previous deployment whose ledgers are gone"

// dropStalePackets empties the queue of every point. Ledgers start empty on
// each deployment, so a packet queued by an earlier one has no source debit
// behind it. Such packets are marked failed and their operations moved to
// failed. Path nonces keep counting, so new GUIDs never collide with them.
func (e *Environment) dropStalePackets(queue endpoint.PacketQueue, store bridge.OperationStore) error {
	var result *multierror.Error
	dropped := 0

	for _, c := range e.Contracts() {
		for {
			packet, err := queue.Pop(c.Point.Eid)
			if err != nil {
				return err
			}
			if packet == nil {
				break
			}
			dropped++

			if err := queue.MarkFailed(packet, StalePacketReason); err != nil {
				result = multierror.Append(result, fmt.Errorf("guid %s: %w", packet.GUID.Hex(), err))
			}
			if err := failStaleOperation(store, packet); err != nil {
				result = multierror.Append(result, fmt.Errorf("guid %s: %w", packet.GUID.Hex(), err))
			}
		}
	}

	if dropped > 0 {
		e.logger.Warn("dropped packets queued by a previous deployment", "count", dropped)
	}
	return result.ErrorOrNil()
}

func failStaleOperation(store bridge.OperationStore, packet *types.Packet) error {
	op, err := store.FindBridgeOperationByGUID(packet.GUID.Hex())
	if err != nil || op == nil || op.Status != types.StatusSent {
		return err
	}

	op.Status = types.StatusFailed
	op.AppendMessage(StalePacketReason)
	return store.ChangeBridgeOperationStatus(op, types.StatusSent)
}

// Wire routes mock endpoints to each other and sets a peer for every
// connection. Running it again changes nothing.
func (e *Environment) Wire() error {
	var result *multierror.Error

	for _, conn := range e.topology.Connections {
		from := e.contracts[conn.From]
		to := e.contracts[conn.To]

		if src, ok := from.Endpoint.(*endpoint.Mock); ok {
			dst, ok := to.Endpoint.(*endpoint.Mock)
			if !ok {
				result = multierror.Append(result, fmt.Errorf("%s -> %s: mixed transports", conn.From, conn.To))
				continue
			}
			src.SetDestLzEndpoint(to.Adapter.Address(), dst)
		}

		err := from.Adapter.SetPeer(e.owner, to.Point.Eid, types.AddressToPeer(to.Adapter.Address()))
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s -> %s: %w", conn.From, conn.To, err))
		}
	}

	return result.ErrorOrNil()
}

func (e *Environment) Owner() common.Address     { return e.owner }
func (e *Environment) Transport() string         { return e.transport }
func (e *Environment) Topology() config.Topology { return e.topology }

func (e *Environment) Contract(name string) (*Contract, bool) {
	c, ok := e.contracts[name]
	return c, ok
}

func (e *Environment) ContractByEid(eid types.EndpointID) (*Contract, bool) {
	c, ok := e.byEid[eid]
	return c, ok
}

// Contracts returns every contract sorted by eid
func (e *Environment) Contracts() []*Contract {
	list := make([]*Contract, 0, len(e.contracts))
	for _, c := range e.contracts {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Point.Eid < list[j].Point.Eid })
	return list
}

func (e *Environment) SetGasPrice(eid types.EndpointID, gasPrice *big.Int) error {
	c, ok := e.byEid[eid]
	if !ok {
		return fmt.Errorf("%w: eid %d", types.ErrNoRoute, eid)
	}
	c.Endpoint.SetGasPrice(gasPrice)
	return nil
}

// Relay drains the queued endpoints once. Mock endpoints deliver on send,
// there is nothing to relay for them.
func (e *Environment) Relay(ctx context.Context) ([]endpoint.RelayResult, error) {
	var results []endpoint.RelayResult

	for _, c := range e.Contracts() {
		q, ok := c.Endpoint.(*endpoint.Queued)
		if !ok {
			continue
		}
		r, err := q.Relay(ctx)
		results = append(results, r...)
		if err != nil {
			return results, err
		}
	}

	return results, nil
}

// FeeModel parses the configured fees
func FeeModel(fees config.Fees) (endpoint.FeeModel, error) {
	model := endpoint.DefaultFeeModel()
	model.LzTokenRatio = fees.LzTokenRatio

	var result *multierror.Error
	for _, f := range []struct {
		name  string
		value string
		dst   **big.Int
	}{
		{"base_fee", fees.BaseFee, &model.BaseFee},
		{"per_byte_fee", fees.PerByteFee, &model.PerByteFee},
		{"gas_price", fees.GasPrice, &model.GasPrice},
	} {
		if f.value == "" {
			continue
		}
		v, ok := new(big.Int).SetString(f.value, 10)
		if !ok || v.Sign() < 0 {
			result = multierror.Append(result, fmt.Errorf("fees.%s: invalid amount %q", f.name, f.value))
			continue
		}
		*f.dst = v
	}

	return model, result.ErrorOrNil()
}

func (e *Environment) nextAddress() common.Address {
	e.nonceMu.Lock()
	defer e.nonceMu.Unlock()

	addr := crypto.CreateAddress(e.owner, e.nonce)
	e.nonce++
	return addr
}

// EthBridge -> ethBridge
func labelName(contractName string) string {
	if contractName == "" {
		return contractName
	}
	b := []byte(contractName)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}
