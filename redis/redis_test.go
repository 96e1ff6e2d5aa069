package redis

import (
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lzbridge/bridge"
	"lzbridge/endpoint"
	"lzbridge/types"
	"lzbridge/workers/handlers"
)

var (
	_ bridge.OperationStore    = (*Store)(nil)
	_ endpoint.PacketQueue     = (*Store)(nil)
	_ handlers.SignatureNonces = (*Store)(nil)
)

func TestKeys(t *testing.T) {
	t.Parallel()

	sender := types.AddressToPeer(common.HexToAddress("0x01"))
	receiver := types.AddressToPeer(common.HexToAddress("0x02"))

	assert.Equal(t, "bridgeop:sent:abc", recordKey(types.StatusSent, "abc"))
	assert.Equal(t, "lzpackets:40245", packetListKey(types.BaseV2Testnet))
	assert.Equal(t, "gasPrice:1", gasPriceKey(1))
	assert.Equal(t, "lzsig:0x0000000000000000000000000000000000000001:7", signatureNonceKey(common.HexToAddress("0x01"), 7))
	assert.Equal(t, "lznonce:1:"+sender.Hex()+":2:"+receiver.Hex(), nonceKey(1, sender, 2, receiver))

	set, err := statusSet(types.StatusFailed)
	require.NoError(t, err)
	assert.Equal(t, "bridgeops:failed", set)

	_, err = statusSet("pending")
	require.Error(t, err)
}

func TestCheckOperation(t *testing.T) {
	t.Parallel()

	require.Error(t, checkOperation(nil))
	require.Error(t, checkOperation(&types.BridgeOperation{}))

	op := &types.BridgeOperation{Status: types.StatusSent}
	require.NoError(t, checkOperation(op))
	_, err := uuid.Parse(op.ID)
	require.NoError(t, err)
}

// testStore connects to the redis named by LZBRIDGE_TEST_REDIS and skips
// otherwise. The database is flushed.
func testStore(t *testing.T) *Store {
	t.Helper()

	addr := os.Getenv("LZBRIDGE_TEST_REDIS")
	if addr == "" {
		t.Skip("LZBRIDGE_TEST_REDIS not set")
	}

	store := NewStore(addr, hclog.NewNullLogger())
	require.NoError(t, store.Ping())

	conn := store.pool.Get()
	_, err := conn.Do("FLUSHDB")
	conn.Close()
	require.NoError(t, err)

	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_BridgeOperations(t *testing.T) {
	store := testStore(t)

	op := &types.BridgeOperation{GUID: "0xabc", Status: types.StatusSent, Amount: "1000", SrcEid: 1, DstEid: 2}
	require.NoError(t, store.UpsertBridgeOperation(op))
	require.NotEmpty(t, op.ID)

	found, err := store.FindBridgeOperationByGUID("0xabc")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, op.ID, found.ID)

	op.Status = types.StatusMinted
	require.NoError(t, store.ChangeBridgeOperationStatus(op, types.StatusSent))

	sent, err := store.FindAllBridgeOperationsByStatus(types.StatusSent)
	require.NoError(t, err)
	assert.Empty(t, sent)

	minted, err := store.FindAllBridgeOperationsByStatus(types.StatusMinted)
	require.NoError(t, err)
	require.Len(t, minted, 1)
	assert.Equal(t, "1000", minted[0].Amount)

	found, err = store.FindBridgeOperationByGUID("0xabc")
	require.NoError(t, err)
	assert.Equal(t, types.StatusMinted, found.Status)

	missing, err := store.FindBridgeOperationByGUID("0xdef")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_PacketQueue(t *testing.T) {
	store := testStore(t)

	sender := types.AddressToPeer(common.HexToAddress("0x01"))
	receiver := types.AddressToPeer(common.HexToAddress("0x02"))

	n1, err := store.NextNonce(1, sender, 2, receiver)
	require.NoError(t, err)
	n2, err := store.NextNonce(1, sender, 2, receiver)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n1)
	assert.Equal(t, uint64(2), n2)

	packet := &types.Packet{Nonce: 1, SrcEid: 1, Sender: sender, DstEid: 2, Receiver: receiver,
		GUID: common.HexToHash("0x99"), Message: []byte{1, 2, 3}}
	require.NoError(t, store.Push(packet))

	pending, err := store.Pending(2)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)

	popped, err := store.Pop(2)
	require.NoError(t, err)
	assert.Equal(t, packet, popped)

	empty, err := store.Pop(2)
	require.NoError(t, err)
	assert.Nil(t, empty)

	first, err := store.MarkDelivered(packet.GUID)
	require.NoError(t, err)
	assert.True(t, first)
	first, err = store.MarkDelivered(packet.GUID)
	require.NoError(t, err)
	assert.False(t, first)

	require.NoError(t, store.MarkFailed(packet, "untrusted sender"))
	failed, err := store.FailedPackets()
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "untrusted sender", failed[0].Reason)
}

func TestStore_GasPrice(t *testing.T) {
	store := testStore(t)

	price, err := store.GetGasPrice(1)
	require.NoError(t, err)
	assert.Nil(t, price)

	require.NoError(t, store.SetGasPrice(1, big.NewInt(3_000_000_000)))
	price, err = store.GetGasPrice(1)
	require.NoError(t, err)
	assert.Equal(t, int64(3_000_000_000), price.Int64())
}

func TestStore_SignatureNonces(t *testing.T) {
	store := testStore(t)

	signer := common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")

	fresh, err := store.UseSignatureNonce(signer, 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = store.UseSignatureNonce(signer, 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, fresh)

	fresh, err = store.UseSignatureNonce(signer, 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = store.UseSignatureNonce(common.HexToAddress("0x01"), 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)
}
