package types

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// endpoint ids as assigned by the messaging network
// (tests use small ids like 1 and 2)
type EndpointID = uint32

const SepoliaV2Testnet EndpointID = 40161
const BaseV2Testnet EndpointID = 40245

// amounts travel between chains with 18 decimals regardless of the local token
const SharedDecimals uint8 = 18

// Peer is a remote adapter address padded to 32 bytes
type Peer = common.Hash

func AddressToPeer(addr common.Address) Peer {
	return common.BytesToHash(addr.Bytes())
}

func PeerToAddress(peer Peer) common.Address {
	return common.BytesToAddress(peer.Bytes())
}

// Label converts a short string to bytes32, right padded.
// Strings longer than 31 bytes are truncated.
func Label(s string) common.Hash {
	var h common.Hash
	b := []byte(s)
	if len(b) > 31 {
		b = b[:31]
	}
	copy(h[:], b)
	return h
}

// BridgeMessage is what the user asks the source adapter to move.
// Only Recipient, Amount and AssetID are part of the payload.
type BridgeMessage struct {
	DstEid    EndpointID
	Recipient common.Address
	Amount    *big.Int // shared decimals once encoded
	AssetID   *big.Int
	Options   []byte
}

type MessagingFee struct {
	NativeFee  *big.Int `json:"nativeFee"`
	LzTokenFee *big.Int `json:"lzTokenFee"`
}

type MessagingParams struct {
	DstEid       EndpointID
	Receiver     Peer
	Message      []byte
	Options      []byte
	PayInLzToken bool
}

type MessagingReceipt struct {
	GUID   common.Hash
	Nonce  uint64
	Fee    MessagingFee
	Refund *big.Int // value attached above the native fee, returned to the sender
}

type Origin struct {
	SrcEid EndpointID
	Sender Peer
	Nonce  uint64
}

// Packet is a message in flight between two endpoints
type Packet struct {
	Nonce    uint64      `json:"nonce"`
	SrcEid   EndpointID  `json:"srcEid"`
	Sender   Peer        `json:"sender"`
	DstEid   EndpointID  `json:"dstEid"`
	Receiver Peer        `json:"receiver"`
	GUID     common.Hash `json:"guid"`
	Message  []byte      `json:"message"`
	Options  []byte      `json:"options"`
}

func (p *Packet) Origin() Origin {
	return Origin{SrcEid: p.SrcEid, Sender: p.Sender, Nonce: p.Nonce}
}

// Receiver is implemented by anything an endpoint delivers to
type Receiver interface {
	LzReceive(ctx context.Context, origin Origin, guid common.Hash, message []byte) error
}

// Transport is the messaging endpoint an adapter sends through
type Transport interface {
	Eid() EndpointID
	SetReceiver(addr common.Address, r Receiver)
	Quote(params MessagingParams, sender common.Address) (MessagingFee, error)
	Send(ctx context.Context, params MessagingParams, sender common.Address, value *big.Int) (MessagingReceipt, error)
}

// Bridge operation statuses
const (
	StatusSent     = "sent"     // source debited, message dispatched
	StatusMinted   = "minted"   // destination accepted and minted to recipient
	StatusReleased = "released" // destination accepted and released custody to recipient
	StatusReverted = "reverted" // source rolled back, nothing debited
	StatusFailed   = "failed"   // destination rejected after source committed
)

func ValidStatus(status string) bool {
	switch status {
	case StatusSent, StatusMinted, StatusReleased, StatusReverted, StatusFailed:
		return true
	}
	return false
}

// Bridge operation is a single cross-chain transfer, tracked from the source
// debit to the destination credit
type BridgeOperation struct {
	ID            string
	GUID          string
	Status        string
	SrcEid        EndpointID
	DstEid        EndpointID
	Nonce         uint64
	TsFound       int64
	Amount        string // shared decimals (1e18)
	AssetID       string
	SourceAddress string
	DestAddress   string
	Fee           string // native fee charged
	Message       string // messages that help to track processing/errors
}

// AppendMessage keeps previous messages, separated by "; "
func (op *BridgeOperation) AppendMessage(msg string) {
	if op.Message == "" {
		op.Message = msg
	} else {
		op.Message += "; " + msg
	}
}
