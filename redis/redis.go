package redis

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gomodule/redigo/redis"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"lzbridge/config"
	"lzbridge/endpoint"
	"lzbridge/types"
)

const (
	guidIndexKey    = "bridgeops:guid"
	deliveredSetKey = "lzdelivered"
	failedListKey   = "lzfailed"

	gasPriceTTL = 10 * time.Minute
)

// Store keeps bridge operations, the packet queue of the queued transport and
// cached gas prices in Redis
type Store struct {
	pool   *redis.Pool
	logger hclog.Logger
}

func timeoutDialOptions() []redis.DialOption {
	return []redis.DialOption{
		redis.DialConnectTimeout(5 * time.Second),
		redis.DialReadTimeout(5 * time.Second),
		redis.DialWriteTimeout(5 * time.Second),
	}
}

func NewStore(addr string, logger hclog.Logger) *Store {
	return &Store{
		pool: &redis.Pool{
			MaxIdle:     5,
			IdleTimeout: 240 * time.Second,
			Dial:        func() (redis.Conn, error) { return redis.Dial("tcp", addr, timeoutDialOptions()...) },
		},
		logger: logger.Named("redis"),
	}
}

func Init(logger hclog.Logger) *Store {
	redisAddr := fmt.Sprintf("%s:%d", config.Config.Server.RedisHost, config.Config.Server.RedisPort)
	return NewStore(redisAddr, logger)
}

func (s *Store) Close() error {
	return s.pool.Close()
}

func (s *Store) Ping() error {
	conn := s.pool.Get()
	defer conn.Close()

	_, err := conn.Do("PING")
	return err
}

func recordKey(status, id string) string {
	return fmt.Sprintf("bridgeop:%s:%s", status, id)
}

func packetListKey(dstEid types.EndpointID) string {
	return fmt.Sprintf("lzpackets:%d", dstEid)
}

func nonceKey(srcEid types.EndpointID, sender types.Peer, dstEid types.EndpointID, receiver types.Peer) string {
	return fmt.Sprintf("lznonce:%d:%s:%d:%s", srcEid, sender.Hex(), dstEid, receiver.Hex())
}

func signatureNonceKey(signer common.Address, nonce uint64) string {
	return fmt.Sprintf("lzsig:%s:%d", signer.Hex(), nonce)
}

func gasPriceKey(eid types.EndpointID) string {
	return fmt.Sprintf("gasPrice:%d", eid)
}

func statusSet(status string) (string, error) {
	set, ok := config.RedisStatusSets[status]
	if !ok {
		return "", fmt.Errorf("redis key not found for status %q", status)
	}
	return set, nil
}

func checkOperation(op *types.BridgeOperation) error {
	if op == nil {
		return errors.New("null object to store")
	}
	if op.Status == "" {
		return errors.New("bridge operation cannot have empty status")
	}
	if op.ID == "" {
		op.ID = uuid.New().String()
	}
	return nil
}

// note that multiple sets should not contain one operation
func (s *Store) UpsertBridgeOperation(op *types.BridgeOperation) error {
	if err := checkOperation(op); err != nil {
		return err
	}
	set, err := statusSet(op.Status)
	if err != nil {
		return err
	}

	opJSON, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("cannot marshal bridge operation to JSON: %w", err)
	}

	conn := s.pool.Get()
	defer conn.Close()

	key := recordKey(op.Status, op.ID)
	conn.Send("MULTI")
	conn.Send("SET", key, opJSON)
	conn.Send("SADD", set, key)
	if op.GUID != "" {
		conn.Send("HSET", guidIndexKey, op.GUID, key)
	}
	if _, err := conn.Do("EXEC"); err != nil {
		s.logger.Error("cannot store bridge operation", "key", key, "err", err)
		return err
	}

	return nil
}

func (s *Store) ChangeBridgeOperationStatus(op *types.BridgeOperation, prevStatus string) error {
	if err := checkOperation(op); err != nil {
		return err
	}
	prevSet, err := statusSet(prevStatus)
	if err != nil {
		return err
	}
	set, err := statusSet(op.Status)
	if err != nil {
		return err
	}

	opJSON, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("cannot marshal bridge operation to JSON: %w", err)
	}

	conn := s.pool.Get()
	defer conn.Close()

	prevKey := recordKey(prevStatus, op.ID)
	key := recordKey(op.Status, op.ID)

	conn.Send("MULTI")
	conn.Send("SREM", prevSet, prevKey)
	conn.Send("DEL", prevKey)
	conn.Send("SET", key, opJSON)
	conn.Send("SADD", set, key)
	if op.GUID != "" {
		conn.Send("HSET", guidIndexKey, op.GUID, key)
	}
	if _, err := conn.Do("EXEC"); err != nil {
		s.logger.Error("cannot change bridge operation status", "key", key, "prev", prevStatus, "err", err)
		return err
	}

	return nil
}

func (s *Store) FindBridgeOperationByGUID(guid string) (*types.BridgeOperation, error) {
	if guid == "" {
		return nil, errors.New("empty guid")
	}

	conn := s.pool.Get()
	defer conn.Close()

	key, err := redis.String(conn.Do("HGET", guidIndexKey, guid))
	if errors.Is(err, redis.ErrNil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return getOperation(conn, key)
}

func (s *Store) FindAllBridgeOperationsByStatus(status string) ([]*types.BridgeOperation, error) {
	set, err := statusSet(status)
	if err != nil {
		return nil, err
	}

	conn := s.pool.Get()
	defer conn.Close()

	ops := make([]*types.BridgeOperation, 0)

	// scan every operation present in the status set
	var cursor int64
	for {
		values, err := redis.Values(conn.Do("SSCAN", set, cursor))
		if err != nil {
			return nil, err
		}

		var opKeys []string
		if _, err := redis.Scan(values, &cursor, &opKeys); err != nil {
			return nil, err
		}

		for _, key := range opKeys {
			op, err := getOperation(conn, key)
			if err != nil {
				return nil, err
			}
			// a record removed between SSCAN and GET is skipped
			if op != nil && op.Status == status {
				ops = append(ops, op)
			}
		}

		if cursor == 0 {
			break
		}
	}

	return ops, nil
}

func getOperation(conn redis.Conn, key string) (*types.BridgeOperation, error) {
	data, err := redis.Bytes(conn.Do("GET", key))
	if errors.Is(err, redis.ErrNil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var op types.BridgeOperation
	if err := json.Unmarshal(data, &op); err != nil {
		return nil, fmt.Errorf("cannot unmarshal bridge operation %s: %w", key, err)
	}
	return &op, nil
}

func (s *Store) NextNonce(srcEid types.EndpointID, sender types.Peer, dstEid types.EndpointID, receiver types.Peer) (uint64, error) {
	conn := s.pool.Get()
	defer conn.Close()

	return redis.Uint64(conn.Do("INCR", nonceKey(srcEid, sender, dstEid, receiver)))
}

func (s *Store) Push(packet *types.Packet) error {
	data, err := json.Marshal(packet)
	if err != nil {
		return fmt.Errorf("cannot marshal packet to JSON: %w", err)
	}

	conn := s.pool.Get()
	defer conn.Close()

	_, err = conn.Do("RPUSH", packetListKey(packet.DstEid), data)
	return err
}

func (s *Store) Pop(dstEid types.EndpointID) (*types.Packet, error) {
	conn := s.pool.Get()
	defer conn.Close()

	data, err := redis.Bytes(conn.Do("LPOP", packetListKey(dstEid)))
	if errors.Is(err, redis.ErrNil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var packet types.Packet
	if err := json.Unmarshal(data, &packet); err != nil {
		return nil, fmt.Errorf("cannot unmarshal packet: %w", err)
	}
	return &packet, nil
}

func (s *Store) Pending(dstEid types.EndpointID) (int, error) {
	conn := s.pool.Get()
	defer conn.Close()

	return redis.Int(conn.Do("LLEN", packetListKey(dstEid)))
}

func (s *Store) MarkDelivered(guid common.Hash) (bool, error) {
	conn := s.pool.Get()
	defer conn.Close()

	added, err := redis.Int(conn.Do("SADD", deliveredSetKey, guid.Hex()))
	if err != nil {
		return false, err
	}
	return added == 1, nil
}

type failedPacket struct {
	Packet *types.Packet `json:"packet"`
	Reason string        `json:"reason"`
	Ts     int64         `json:"ts"`
}

func (s *Store) MarkFailed(packet *types.Packet, reason string) error {
	data, err := json.Marshal(failedPacket{Packet: packet, Reason: reason, Ts: time.Now().Unix()})
	if err != nil {
		return fmt.Errorf("cannot marshal failed packet to JSON: %w", err)
	}

	conn := s.pool.Get()
	defer conn.Close()

	_, err = conn.Do("RPUSH", failedListKey, data)
	return err
}

func (s *Store) FailedPackets() ([]endpoint.FailedPacket, error) {
	conn := s.pool.Get()
	defer conn.Close()

	items, err := redis.ByteSlices(conn.Do("LRANGE", failedListKey, 0, -1))
	if err != nil {
		return nil, err
	}

	failed := make([]endpoint.FailedPacket, 0, len(items))
	for _, item := range items {
		var rec failedPacket
		if err := json.Unmarshal(item, &rec); err != nil {
			return nil, fmt.Errorf("cannot unmarshal failed packet: %w", err)
		}
		failed = append(failed, endpoint.FailedPacket{Packet: rec.Packet, Reason: rec.Reason})
	}
	return failed, nil
}

func (s *Store) SetGasPrice(eid types.EndpointID, gasPrice *big.Int) error {
	conn := s.pool.Get()
	defer conn.Close()

	_, err := conn.Do("SET", gasPriceKey(eid), gasPrice.String(), "EX", int(gasPriceTTL.Seconds()))
	return err
}

// GetGasPrice returns nil if no fresh price is cached
func (s *Store) GetGasPrice(eid types.EndpointID) (*big.Int, error) {
	conn := s.pool.Get()
	defer conn.Close()

	value, err := redis.String(conn.Do("GET", gasPriceKey(eid)))
	if errors.Is(err, redis.ErrNil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	price, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid cached gas price %q for eid %d", value, eid)
	}
	return price, nil
}

// UseSignatureNonce claims the nonce key with SET NX, so concurrent requests
// carrying the same nonce cannot both succeed
func (s *Store) UseSignatureNonce(signer common.Address, nonce uint64, ttl time.Duration) (bool, error) {
	conn := s.pool.Get()
	defer conn.Close()

	seconds := int(ttl.Seconds())
	if seconds < 1 {
		seconds = 1
	}

	_, err := redis.String(conn.Do("SET", signatureNonceKey(signer, nonce), 1, "EX", seconds, "NX"))
	if errors.Is(err, redis.ErrNil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
