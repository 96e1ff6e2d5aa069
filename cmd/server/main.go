package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-metrics"

	"lzbridge/config"
	"lzbridge/deploy"
	"lzbridge/redis"
	"lzbridge/types"
	"lzbridge/workers"
	"lzbridge/workers/handlers"
)

func main() {
	log.Print("Starting LayerZero DFG bridge")

	f, err := os.OpenFile(fmt.Sprintf("logs/log_%s.txt", time.Now().Format("2006-01-02")), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file for writing: %v", err)
	}
	defer f.Close()

	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "lzbridge",
		Level:  hclog.LevelFromString(os.Getenv("LOG_LEVEL")),
		Output: f,
	})
	hclog.SetDefault(logger)
	log.SetOutput(logger.StandardWriter(&hclog.StandardLoggerOptions{InferLevels: true}))

	config.Init()

	sink := metrics.NewInmemSink(10*time.Second, time.Minute)
	metricsConfig := metrics.DefaultConfig("lzbridge")
	metricsConfig.EnableHostname = false
	if _, err := metrics.NewGlobal(metricsConfig, sink); err != nil {
		log.Fatalf("cannot set up metrics: %v", err)
	}

	// connect to Redis, without persistence do not continue
	store := redis.Init(logger)
	defer store.Close()
	if err := store.Ping(); err != nil {
		log.Fatalf("cannot connect to redis: %v", err)
	}

	fees, err := deploy.FeeModel(config.Config.Fees)
	if err != nil {
		log.Fatalf("invalid fee configuration: %v", err)
	}
	if !common.IsHexAddress(config.Config.Server.Owner) {
		log.Fatalf("invalid owner address %q", config.Config.Server.Owner)
	}

	env, err := deploy.New(config.Config.Topology, deploy.Options{
		Transport: config.Config.Server.Transport,
		Owner:     common.HexToAddress(config.Config.Server.Owner),
		Fees:      fees,
		Store:     store,
		Queue:     store,
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("cannot deploy bridge topology: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eids := make([]types.EndpointID, 0)
	for _, c := range env.Contracts() {
		eids = append(eids, c.Point.Eid)
	}

	// worker threads:
	// * refresh gas prices of every endpoint
	// * relay queued packets (queued transport only)
	// * API serving HTTP server (serves as main worker thread)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		workers.Worker_gasPrice(ctx, eids, env, store, workers.RPCGasPrice(config.Config.Chains),
			config.Config.Relayer.GasRefreshPeriod, logger)
	}()

	if config.Config.Server.Transport == config.TransportQueued {
		wg.Add(1)
		go func() {
			defer wg.Done()
			workers.Worker_relay(ctx, env, store, config.Config.Relayer.PollInterval, logger)
		}()
	}

	api := &handlers.API{
		Env:        env,
		Store:      store,
		Health:     store.Ping,
		AdminToken: config.Config.Server.AdminToken,
		DefaultGas: config.Config.Relayer.DefaultGasLimit,
		Nonces:     store,
		Metrics:    sink,
		Logger:     logger.Named("api"),
	}
	if err := workers.Worker_HTTP(ctx, api, logger); err != nil {
		logger.Error("HTTP service failed", "err", err)
	}

	// send signal to other threads/workers to exit
	stop()
	wg.Wait()
	logger.Info("bridge stopped")
}
