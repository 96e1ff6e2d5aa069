package codec

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"

	"lzbridge/types"
)

// payload is abi.encode(address recipient, uint256 amount, uint256 assetId)
var payloadArgs abi.Arguments

func init() {
	addressType, err := abi.NewType("address", "", nil)
	if err != nil {
		panic(err)
	}
	uintType, err := abi.NewType("uint256", "", nil)
	if err != nil {
		panic(err)
	}

	payloadArgs = abi.Arguments{
		{Name: "recipient", Type: addressType},
		{Name: "amount", Type: uintType},
		{Name: "assetId", Type: uintType},
	}
}

// PayloadSize is the fixed length of an encoded bridge payload
const PayloadSize = 3 * 32

type Payload struct {
	Recipient common.Address
	Amount    *big.Int
	AssetID   *big.Int
}

// EncodePayload rejects values outside uint256, abi packing would wrap them
func EncodePayload(p Payload) ([]byte, error) {
	if p.Amount == nil || p.Amount.Sign() < 0 {
		return nil, fmt.Errorf("%w: amount must be non negative", types.ErrInvalidAmount)
	}
	if p.Amount.Cmp(math.MaxBig256) > 0 {
		return nil, fmt.Errorf("%w: amount %s exceeds uint256", types.ErrInvalidAmount, p.Amount)
	}
	assetID := p.AssetID
	if assetID == nil {
		assetID = new(big.Int)
	}
	if assetID.Sign() < 0 || assetID.Cmp(math.MaxBig256) > 0 {
		return nil, fmt.Errorf("%w: asset id %s outside uint256", types.ErrUnsupportedAsset, assetID)
	}
	return payloadArgs.Pack(p.Recipient, p.Amount, assetID)
}

func DecodePayload(data []byte) (*Payload, error) {
	if len(data) != PayloadSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", types.ErrInvalidPayload, PayloadSize, len(data))
	}
	// the address word must be left padded with zeros
	for _, b := range data[:32-common.AddressLength] {
		if b != 0 {
			return nil, fmt.Errorf("%w: dirty address padding", types.ErrInvalidPayload)
		}
	}

	values, err := payloadArgs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidPayload, err.Error())
	}

	recipient, ok1 := values[0].(common.Address)
	amount, ok2 := values[1].(*big.Int)
	assetID, ok3 := values[2].(*big.Int)
	if !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("%w: unexpected field types", types.ErrInvalidPayload)
	}

	return &Payload{Recipient: recipient, Amount: amount, AssetID: assetID}, nil
}

// GUID = keccak256(nonce uint64 | srcEid uint32 | sender bytes32 | dstEid uint32 | receiver bytes32)
func GUID(nonce uint64, srcEid types.EndpointID, sender types.Peer, dstEid types.EndpointID, receiver types.Peer) common.Hash {
	buf := make([]byte, 0, 8+4+32+4+32)
	buf = binary.BigEndian.AppendUint64(buf, nonce)
	buf = binary.BigEndian.AppendUint32(buf, srcEid)
	buf = append(buf, sender.Bytes()...)
	buf = binary.BigEndian.AppendUint32(buf, dstEid)
	buf = append(buf, receiver.Bytes()...)
	return crypto.Keccak256Hash(buf)
}
