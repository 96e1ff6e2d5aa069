package workers

import (
	"context"
	"math/big"
	"time"

	"github.com/hashicorp/go-hclog"

	"lzbridge/EVMRPC"
	"lzbridge/config"
	"lzbridge/types"
)

// GasPriceSink is updated with fresh gas prices per endpoint
type GasPriceSink interface {
	SetGasPrice(eid types.EndpointID, gasPrice *big.Int) error
}

// GasPriceCache shares fetched prices between restarts, a nil price means
// nothing is cached
type GasPriceCache interface {
	GetGasPrice(eid types.EndpointID) (*big.Int, error)
	SetGasPrice(eid types.EndpointID, gasPrice *big.Int) error
}

type GasPriceFetcher func(ctx context.Context, eid types.EndpointID) (*big.Int, error)

// RPCGasPrice asks the chain RPCs of eid for a gas price suggestion
func RPCGasPrice(chains map[types.EndpointID]config.ChainConfig) GasPriceFetcher {
	return func(ctx context.Context, eid types.EndpointID) (*big.Int, error) {
		return EVMRPC.SuggestGasPrice(ctx, chains[eid].RPCList)
	}
}

func Worker_gasPrice(ctx context.Context, eids []types.EndpointID, sink GasPriceSink, cache GasPriceCache,
	fetch GasPriceFetcher, period time.Duration, logger hclog.Logger) {
	logger = logger.Named("gasprice")
	logger.Info("gas price worker started", "period", period, "eids", eids)

	refreshGasPrices(ctx, eids, sink, cache, fetch, logger)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("gas price worker stopped")
			return
		case <-ticker.C:
			refreshGasPrices(ctx, eids, sink, cache, fetch, logger)
		}
	}
}

func refreshGasPrices(ctx context.Context, eids []types.EndpointID, sink GasPriceSink, cache GasPriceCache,
	fetch GasPriceFetcher, logger hclog.Logger) {
	for _, eid := range eids {
		price, err := cache.GetGasPrice(eid)
		if err != nil {
			logger.Warn("cannot read cached gas price", "eid", eid, "err", err)
		}

		if price == nil {
			price, err = fetch(ctx, eid)
			if err != nil {
				// keep the previous price
				logger.Warn("cannot fetch gas price", "eid", eid, "err", err)
				continue
			}
			if err := cache.SetGasPrice(eid, price); err != nil {
				logger.Warn("cannot cache gas price", "eid", eid, "err", err)
			}
		}

		if err := sink.SetGasPrice(eid, price); err != nil {
			logger.Error("cannot update gas price", "eid", eid, "err", err)
			continue
		}
		logger.Debug("gas price updated", "eid", eid, "gasPrice", price)
	}
}
