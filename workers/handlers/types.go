package handlers

import (
	"lzbridge/bridge"
	"lzbridge/types"
)

type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Field   string `json:"field"`
}

type APIStateResponse struct {
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	Transport string          `json:"transport"`
	Contracts []ContractState `json:"contracts"`
}

type ContractState struct {
	Name         string           `json:"name"`
	Eid          types.EndpointID `json:"eid"`
	Mode         string           `json:"mode"`
	Adapter      string           `json:"adapter"`
	Token        string           `json:"token"`
	Symbol       string           `json:"symbol"`
	Decimals     uint8            `json:"decimals"`
	TotalSupply  string           `json:"totalSupply"`
	Custody      string           `json:"custody"`
	PeersVersion uint64           `json:"peersVersion"`
}

type APIPeersResponse struct {
	Status  string             `json:"status"`
	Version uint64             `json:"version"`
	Peers   []bridge.PeerEntry `json:"peers"`
}

type APIBalanceResponse struct {
	Status    string `json:"status"`
	Address   string `json:"address"`
	Balance   string `json:"balance"`
	Allowance string `json:"allowance"`
	Verified  bool   `json:"verified"`
}

type APIQuoteResponse struct {
	Status     string `json:"status"`
	NativeFee  string `json:"nativeFee"`
	LzTokenFee string `json:"lzTokenFee"`
	Options    string `json:"options"`
}

// BridgeRequest moves amount of From's tokens on Contract to Recipient on
// DstEid. Signature is a personal_sign of Message() by From. Each Nonce is
// accepted once per signer, and only until Deadline (unix seconds).
type BridgeRequest struct {
	Contract  string           `json:"contract"`
	DstEid    types.EndpointID `json:"dstEid"`
	From      string           `json:"from"`
	Recipient string           `json:"recipient"`
	Amount    string           `json:"amount"`
	AssetID   string           `json:"assetId"`
	Gas       uint64           `json:"gas"`
	Value     string           `json:"value"`
	Nonce     uint64           `json:"nonce"`
	Deadline  int64            `json:"deadline"`
	Signature string           `json:"signature"`
}

// ApproveRequest lets the adapter of Contract spend Amount of Owner's tokens
type ApproveRequest struct {
	Contract  string `json:"contract"`
	Owner     string `json:"owner"`
	Amount    string `json:"amount"`
	Nonce     uint64 `json:"nonce"`
	Deadline  int64  `json:"deadline"`
	Signature string `json:"signature"`
}

type APIBridgeResponse struct {
	Status    string                 `json:"status"`
	Operation *types.BridgeOperation `json:"operation"`
	Refund    string                 `json:"refund,omitempty"`
}

type VerifyRequest struct {
	Contract string `json:"contract"`
	Address  string `json:"address"`
	Label    string `json:"label"`
	Remove   bool   `json:"remove"`
}

type MintRequest struct {
	Contract string `json:"contract"`
	Address  string `json:"address"`
	Amount   string `json:"amount"`
}
