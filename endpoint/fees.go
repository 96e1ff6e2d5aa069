package endpoint

import (
	"fmt"
	"math/big"
	"sync"

	"lzbridge/lzoptions"
	"lzbridge/types"
)

// FeeModel prices a message. All values are in wei of the source chain
// native currency.
type FeeModel struct {
	BaseFee    *big.Int
	PerByteFee *big.Int
	GasPrice   *big.Int
	// lz token fee as a percentage of the native fee
	LzTokenRatio int64
}

func DefaultFeeModel() FeeModel {
	return FeeModel{
		BaseFee:      big.NewInt(1_000_000_000_000), // 1e12
		PerByteFee:   big.NewInt(1_000_000_000),     // 1 gwei
		GasPrice:     big.NewInt(1_000_000_000),     // 1 gwei
		LzTokenRatio: 100,
	}
}

// Quote is a pure function of the model, the message length and the options
func (m FeeModel) Quote(message []byte, options []byte, payInLzToken bool) (types.MessagingFee, error) {
	opts, err := lzoptions.Decode(options)
	if err != nil {
		return types.MessagingFee{}, err
	}
	if opts.LzReceiveGas.Sign() == 0 {
		return types.MessagingFee{}, fmt.Errorf("%w: lzReceive gas not set", types.ErrInvalidOptions)
	}

	native := new(big.Int).Set(orZero(m.BaseFee))
	native.Add(native, new(big.Int).Mul(orZero(m.PerByteFee), big.NewInt(int64(len(message)))))
	native.Add(native, new(big.Int).Mul(orZero(m.GasPrice), opts.LzReceiveGas))
	native.Add(native, opts.TotalValue())

	fee := types.MessagingFee{NativeFee: native, LzTokenFee: new(big.Int)}
	if payInLzToken {
		fee.LzTokenFee = new(big.Int).Div(new(big.Int).Mul(native, big.NewInt(m.LzTokenRatio)), big.NewInt(100))
	}
	return fee, nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// pricing holds the live fee model of an endpoint; only the gas price moves
type pricing struct {
	mu    sync.RWMutex
	model FeeModel
}

func (p *pricing) get() FeeModel {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.model
}

func (p *pricing) setGasPrice(gasPrice *big.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.model.GasPrice = new(big.Int).Set(gasPrice)
}
