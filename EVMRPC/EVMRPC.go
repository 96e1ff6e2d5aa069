package EVMRPC

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/hashicorp/go-hclog"

	"lzbridge/config"
)

var ErrNoRPC = errors.New("no RPC endpoints configured")

// WithClient runs f against each RPC of the list in turn until one succeeds,
// going over the list at most config.EVM_RETRIES times
func WithClient[T any](rpcList []string, f func(client *ethclient.Client) (T, error)) (res T, err error) {
	if len(rpcList) == 0 {
		return res, ErrNoRPC
	}

	logger := hclog.L().Named("evmrpc")

	var client *ethclient.Client
	for attempt := 0; attempt < config.EVM_RETRIES; attempt++ {
		for _, url := range rpcList {
			client, err = ethclient.Dial(url)
			if err != nil {
				logger.Warn("cannot connect", "url", url, "err", err)
				continue
			}

			res, err = f(client)
			client.Close()
			if err == nil {
				return
			}
			logger.Debug("RPC call failed", "url", url, "attempt", attempt+1, "err", err)
		}
	}
	return
}

func SuggestGasPrice(ctx context.Context, rpcList []string) (*big.Int, error) {
	return WithClient(rpcList, func(client *ethclient.Client) (*big.Int, error) {
		return client.SuggestGasPrice(ctx)
	})
}
