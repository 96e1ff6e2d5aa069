// Package lzoptions builds and decodes type 3 executor options, the byte
// string attached to every message that tells the executor how much gas and
// native value to spend on delivery.
//
// Layout: uint16 type (3), then per option: uint8 worker id, uint16 size,
// uint8 option type, option body. Size counts the option type byte.
package lzoptions

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"lzbridge/types"
)

const (
	TypeV3 uint16 = 3

	WorkerExecutor uint8 = 1

	OptionLzReceive  uint8 = 1
	OptionNativeDrop uint8 = 2
)

var maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

type Options struct {
	buf []byte
	err error
}

func New() *Options {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, TypeV3)
	return &Options{buf: buf}
}

// AddExecutorLzReceiveOption requests gas (and optionally value) for lzReceive.
// Value is only encoded when non zero.
func (o *Options) AddExecutorLzReceiveOption(gas uint64, value *big.Int) *Options {
	body := uint128(new(big.Int).SetUint64(gas))
	if value != nil && value.Sign() > 0 {
		if value.Cmp(maxUint128) > 0 {
			o.fail(fmt.Errorf("lzReceive value %s overflows uint128", value))
			return o
		}
		body = append(body, uint128(value)...)
	}
	o.addExecutorOption(OptionLzReceive, body)
	return o
}

// AddExecutorNativeDropOption airdrops native currency to receiver on the
// destination chain
func (o *Options) AddExecutorNativeDropOption(amount *big.Int, receiver common.Address) *Options {
	if amount == nil || amount.Sign() < 0 || amount.Cmp(maxUint128) > 0 {
		o.fail(fmt.Errorf("native drop amount %v out of range", amount))
		return o
	}
	body := append(uint128(amount), types.AddressToPeer(receiver).Bytes()...)
	o.addExecutorOption(OptionNativeDrop, body)
	return o
}

func (o *Options) addExecutorOption(optionType uint8, body []byte) {
	size := make([]byte, 2)
	binary.BigEndian.PutUint16(size, uint16(len(body)+1))

	o.buf = append(o.buf, WorkerExecutor)
	o.buf = append(o.buf, size...)
	o.buf = append(o.buf, optionType)
	o.buf = append(o.buf, body...)
}

func (o *Options) fail(err error) {
	if o.err == nil {
		o.err = err
	}
}

func (o *Options) Bytes() ([]byte, error) {
	if o.err != nil {
		return nil, o.err
	}
	return common.CopyBytes(o.buf), nil
}

func (o *Options) Hex() (string, error) {
	b, err := o.Bytes()
	if err != nil {
		return "", err
	}
	return hexutil.Encode(b), nil
}

// MustBytes is meant for tests and static defaults
func (o *Options) MustBytes() []byte {
	b, err := o.Bytes()
	if err != nil {
		panic(err)
	}
	return b
}

func uint128(v *big.Int) []byte {
	return common.LeftPadBytes(v.Bytes(), 16)
}

type NativeDrop struct {
	Amount   *big.Int
	Receiver common.Address
}

// ExecutorOptions is the decoded, summed view of all executor options
type ExecutorOptions struct {
	LzReceiveGas   *big.Int
	LzReceiveValue *big.Int
	NativeDrops    []NativeDrop
}

// TotalValue is the native value the executor has to spend on delivery
func (e *ExecutorOptions) TotalValue() *big.Int {
	total := new(big.Int).Set(e.LzReceiveValue)
	for _, d := range e.NativeDrops {
		total.Add(total, d.Amount)
	}
	return total
}

// Decode parses type 3 options. Multiple lzReceive options are summed.
func Decode(b []byte) (*ExecutorOptions, error) {
	if len(b) < 2 {
		return nil, fmt.Errorf("%w: options too short", types.ErrInvalidOptions)
	}
	if t := binary.BigEndian.Uint16(b[:2]); t != TypeV3 {
		return nil, fmt.Errorf("%w: unsupported options type %d", types.ErrInvalidOptions, t)
	}

	res := &ExecutorOptions{
		LzReceiveGas:   new(big.Int),
		LzReceiveValue: new(big.Int),
	}

	cursor := 2
	for cursor < len(b) {
		if len(b)-cursor < 4 {
			return nil, fmt.Errorf("%w: truncated option header at %d", types.ErrInvalidOptions, cursor)
		}
		workerID := b[cursor]
		size := int(binary.BigEndian.Uint16(b[cursor+1 : cursor+3]))
		if size == 0 || cursor+3+size > len(b) {
			return nil, fmt.Errorf("%w: bad option size %d at %d", types.ErrInvalidOptions, size, cursor)
		}
		optionType := b[cursor+3]
		body := b[cursor+4 : cursor+3+size]
		cursor += 3 + size

		if workerID != WorkerExecutor {
			return nil, fmt.Errorf("%w: unsupported worker %d", types.ErrInvalidOptions, workerID)
		}

		switch optionType {
		case OptionLzReceive:
			if len(body) != 16 && len(body) != 32 {
				return nil, fmt.Errorf("%w: lzReceive option length %d", types.ErrInvalidOptions, len(body))
			}
			res.LzReceiveGas.Add(res.LzReceiveGas, new(big.Int).SetBytes(body[:16]))
			if len(body) == 32 {
				res.LzReceiveValue.Add(res.LzReceiveValue, new(big.Int).SetBytes(body[16:]))
			}
		case OptionNativeDrop:
			if len(body) != 48 {
				return nil, fmt.Errorf("%w: native drop option length %d", types.ErrInvalidOptions, len(body))
			}
			res.NativeDrops = append(res.NativeDrops, NativeDrop{
				Amount:   new(big.Int).SetBytes(body[:16]),
				Receiver: types.PeerToAddress(common.BytesToHash(body[16:])),
			})
		default:
			return nil, fmt.Errorf("%w: unsupported executor option %d", types.ErrInvalidOptions, optionType)
		}
	}

	return res, nil
}
