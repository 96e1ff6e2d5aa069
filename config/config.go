package config

import (
	"time"

	"lzbridge/types"
)

type Configuration struct {
	// Server config
	Server struct {
		UseSSL    bool   `yaml:"ssl" envconfig:"SSL"`
		Port      int    `yaml:"port" envconfig:"PORT"`
		RedisPort int    `yaml:"redis_port" envconfig:"REDIS_PORT"`
		RedisHost string `yaml:"redis_host" envconfig:"REDIS_HOST"`
		// mock delivers in-process, queued relays through redis
		Transport string `yaml:"transport" envconfig:"TRANSPORT"`
		// deployer and owner of every ledger and adapter
		Owner string `yaml:"owner" envconfig:"OWNER"`
		// admin routes are disabled when empty
		AdminToken string `yaml:"admin_token" envconfig:"ADMIN_TOKEN"`
	} `yaml:"server"`
	Fees    Fees `yaml:"fees"`
	Relayer struct {
		PollInterval     time.Duration `yaml:"poll_interval" envconfig:"POLL_INTERVAL"`
		GasRefreshPeriod time.Duration `yaml:"gas_refresh_period" envconfig:"GAS_REFRESH_PERIOD"`
		DefaultGasLimit  uint64        `yaml:"default_gas_limit" envconfig:"DEFAULT_GAS_LIMIT"`
	} `yaml:"relayer"`
	// per eid RPC endpoints, used to refresh gas prices
	Chains   map[types.EndpointID]ChainConfig `yaml:"chains" ignored:"true"`
	Topology Topology                         `yaml:"topology" ignored:"true"`
}

// Fees are decimal strings in wei, parsed by the endpoint fee model
type Fees struct {
	BaseFee      string `yaml:"base_fee" envconfig:"BASE_FEE"`
	PerByteFee   string `yaml:"per_byte_fee" envconfig:"PER_BYTE_FEE"`
	GasPrice     string `yaml:"gas_price" envconfig:"GAS_PRICE"`
	LzTokenRatio int64  `yaml:"lz_token_ratio" envconfig:"LZ_TOKEN_RATIO"`
}

const (
	TransportMock   = "mock"
	TransportQueued = "queued"
)

var Config Configuration

// maximum number of EVM RPC retries
const EVM_RETRIES = 3

// EVM-chains configs
type ChainConfig struct {
	Name    string   `yaml:"name"`
	ChainID int      `yaml:"chain_id"`
	RPCList []string `yaml:"rpc_list"`
}

var EVMChains = map[types.EndpointID]ChainConfig{
	types.SepoliaV2Testnet: {
		Name:    "Sepolia",
		ChainID: 11155111,
		RPCList: []string{"https://ethereum-sepolia-rpc.publicnode.com", "https://sepolia.drpc.org"},
	},
	types.BaseV2Testnet: {
		Name:    "BaseSepolia",
		ChainID: 84532,
		RPCList: []string{"https://sepolia.base.org", "https://base-sepolia.drpc.org"},
	},
}

var RedisStatusSets = map[string]string{
	types.StatusSent:     "bridgeops:sent",     // source debited and packet dispatched
	types.StatusMinted:   "bridgeops:minted",   // destination minted to the recipient
	types.StatusReleased: "bridgeops:released", // destination released from custody
	types.StatusReverted: "bridgeops:reverted", // source rolled back, nothing left the chain
	types.StatusFailed:   "bridgeops:failed",   // destination rejected after the source committed
}

func setDefaults(cfg *Configuration) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RedisHost == "" {
		cfg.Server.RedisHost = "localhost"
	}
	if cfg.Server.RedisPort == 0 {
		cfg.Server.RedisPort = 6379
	}
	if cfg.Server.Transport == "" {
		cfg.Server.Transport = TransportMock
	}
	if cfg.Relayer.PollInterval == 0 {
		cfg.Relayer.PollInterval = 2 * time.Second
	}
	if cfg.Relayer.GasRefreshPeriod == 0 {
		cfg.Relayer.GasRefreshPeriod = time.Minute
	}
	if cfg.Relayer.DefaultGasLimit == 0 {
		cfg.Relayer.DefaultGasLimit = 200000
	}
	if cfg.Fees.LzTokenRatio == 0 {
		cfg.Fees.LzTokenRatio = 100
	}
	if cfg.Chains == nil {
		cfg.Chains = EVMChains
	}
	if len(cfg.Topology.Contracts) == 0 {
		cfg.Topology = DefaultTopology()
	}
}
