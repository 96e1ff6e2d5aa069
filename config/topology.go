package config

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"lzbridge/ledger"
	"lzbridge/types"
)

const (
	ModeLock = "lock"
	ModeMint = "mint"
)

// Point is one deployed adapter
type Point struct {
	Eid          types.EndpointID `yaml:"eid"`
	ContractName string           `yaml:"contract_name"`
	Mode         string           `yaml:"mode"`
	Token        ledger.Config    `yaml:"token"`
}

// Connection is a directed trust edge: From sets To as its peer for To's eid
type Connection struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

type Topology struct {
	Contracts   []Point      `yaml:"contracts"`
	Connections []Connection `yaml:"connections"`
}

// DefaultTopology is the Sepolia <-> Base Sepolia pair
func DefaultTopology() Topology {
	eth := Point{
		Eid:          types.SepoliaV2Testnet,
		ContractName: "EthBridge",
		Mode:         ModeLock,
		Token:        ledger.Config{Name: "EthDFG", Symbol: "EDFG", Decimals: 0, Restricted: true},
	}
	base := Point{
		Eid:          types.BaseV2Testnet,
		ContractName: "BaseBridge",
		Mode:         ModeMint,
		Token:        ledger.Config{Name: "BaseDFG", Symbol: "BDFG", Decimals: 18},
	}

	return Topology{
		Contracts: []Point{eth, base},
		Connections: []Connection{
			{From: eth.ContractName, To: base.ContractName},
			{From: base.ContractName, To: eth.ContractName},
		},
	}
}

func (t Topology) Point(name string) (Point, bool) {
	for _, p := range t.Contracts {
		if p.ContractName == name {
			return p, true
		}
	}
	return Point{}, false
}

func (t Topology) PointByEid(eid types.EndpointID) (Point, bool) {
	for _, p := range t.Contracts {
		if p.Eid == eid {
			return p, true
		}
	}
	return Point{}, false
}

func (t Topology) Validate() error {
	var result *multierror.Error

	eids := make(map[types.EndpointID]string)
	names := make(map[string]struct{})
	for _, p := range t.Contracts {
		if p.ContractName == "" {
			result = multierror.Append(result, fmt.Errorf("contract on eid %d has no name", p.Eid))
		}
		if p.Eid == 0 {
			result = multierror.Append(result, fmt.Errorf("contract %s has no eid", p.ContractName))
		}
		if other, ok := eids[p.Eid]; ok {
			result = multierror.Append(result, fmt.Errorf("eid %d used by both %s and %s", p.Eid, other, p.ContractName))
		}
		if _, ok := names[p.ContractName]; ok {
			result = multierror.Append(result, fmt.Errorf("duplicate contract name %s", p.ContractName))
		}
		if p.Mode != ModeLock && p.Mode != ModeMint {
			result = multierror.Append(result, fmt.Errorf("contract %s has unknown mode %q", p.ContractName, p.Mode))
		}
		if p.Token.Decimals > types.SharedDecimals {
			result = multierror.Append(result, fmt.Errorf("token %s has %d decimals, at most %d allowed",
				p.Token.Symbol, p.Token.Decimals, types.SharedDecimals))
		}
		eids[p.Eid] = p.ContractName
		names[p.ContractName] = struct{}{}
	}

	for _, c := range t.Connections {
		if _, ok := names[c.From]; !ok {
			result = multierror.Append(result, fmt.Errorf("connection %s -> %s: unknown contract %s", c.From, c.To, c.From))
		}
		if _, ok := names[c.To]; !ok {
			result = multierror.Append(result, fmt.Errorf("connection %s -> %s: unknown contract %s", c.From, c.To, c.To))
		}
		if c.From == c.To {
			result = multierror.Append(result, fmt.Errorf("connection %s -> %s is a self loop", c.From, c.To))
		}
	}

	return result.ErrorOrNil()
}

// Asymmetric returns the connections whose reverse edge is missing. Messages
// sent along them are rejected by the destination.
func (t Topology) Asymmetric() []Connection {
	edges := make(map[Connection]struct{}, len(t.Connections))
	for _, c := range t.Connections {
		edges[c] = struct{}{}
	}

	var oneWay []Connection
	seen := make(map[Connection]struct{})
	for _, c := range t.Connections {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		if _, ok := edges[Connection{From: c.To, To: c.From}]; !ok {
			oneWay = append(oneWay, c)
		}
	}
	return oneWay
}
