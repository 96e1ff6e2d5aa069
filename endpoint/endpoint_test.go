package endpoint

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lzbridge/lzoptions"
	"lzbridge/types"
)

var (
	senderAddr   = common.HexToAddress("0x1000000000000000000000000000000000000001")
	receiverAddr = common.HexToAddress("0x2000000000000000000000000000000000000002")
	defaultOpts  = lzoptions.New().AddExecutorLzReceiveOption(200000, nil).MustBytes()
)

type recordingReceiver struct {
	mu       sync.Mutex
	received []types.Origin
	fail     error
}

func (r *recordingReceiver) LzReceive(_ context.Context, origin types.Origin, _ common.Hash, _ []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.fail != nil {
		return r.fail
	}
	r.received = append(r.received, origin)
	return nil
}

func (r *recordingReceiver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.received)
}

func testFees() FeeModel {
	return FeeModel{
		BaseFee:      big.NewInt(1000),
		PerByteFee:   big.NewInt(10),
		GasPrice:     big.NewInt(2),
		LzTokenRatio: 50,
	}
}

func params(dstEid types.EndpointID) types.MessagingParams {
	return types.MessagingParams{
		DstEid:   dstEid,
		Receiver: types.AddressToPeer(receiverAddr),
		Message:  []byte{1, 2, 3, 4},
		Options:  defaultOpts,
	}
}

func TestFeeModel_Quote(t *testing.T) {
	t.Parallel()

	fee, err := testFees().Quote([]byte{1, 2, 3, 4}, defaultOpts, false)
	require.NoError(t, err)
	// 1000 + 10*4 + 2*200000
	require.Equal(t, int64(401040), fee.NativeFee.Int64())
	require.Zero(t, fee.LzTokenFee.Sign())

	fee, err = testFees().Quote([]byte{1, 2, 3, 4}, defaultOpts, true)
	require.NoError(t, err)
	require.Equal(t, int64(200520), fee.LzTokenFee.Int64())

	withValue := lzoptions.New().AddExecutorLzReceiveOption(200000, big.NewInt(7)).MustBytes()
	fee, err = testFees().Quote([]byte{1, 2, 3, 4}, withValue, false)
	require.NoError(t, err)
	require.Equal(t, int64(401047), fee.NativeFee.Int64())
}

func TestFeeModel_QuoteMonotonicInGas(t *testing.T) {
	t.Parallel()

	prev := big.NewInt(-1)
	for _, gas := range []uint64{1, 1000, 200000, 500000} {
		fee, err := testFees().Quote([]byte{1}, lzoptions.New().AddExecutorLzReceiveOption(gas, nil).MustBytes(), false)
		require.NoError(t, err)
		require.Equal(t, 1, fee.NativeFee.Cmp(prev))
		prev = fee.NativeFee
	}
}

func TestFeeModel_QuoteRequiresGas(t *testing.T) {
	t.Parallel()

	_, err := testFees().Quote(nil, lzoptions.New().MustBytes(), false)
	require.ErrorIs(t, err, types.ErrInvalidOptions)

	_, err = testFees().Quote(nil, nil, false)
	require.ErrorIs(t, err, types.ErrInvalidOptions)
}

func newMockPair(t *testing.T) (*Mock, *Mock, *recordingReceiver) {
	t.Helper()

	a := NewMock(1, testFees(), hclog.NewNullLogger())
	b := NewMock(2, testFees(), hclog.NewNullLogger())
	r := &recordingReceiver{}
	b.SetReceiver(receiverAddr, r)
	a.SetDestLzEndpoint(receiverAddr, b)

	return a, b, r
}

func TestMock_SendDeliversSynchronously(t *testing.T) {
	t.Parallel()

	a, b, r := newMockPair(t)
	p := params(2)

	fee, err := a.Quote(p, senderAddr)
	require.NoError(t, err)

	value := new(big.Int).Add(fee.NativeFee, big.NewInt(5))
	receipt, err := a.Send(context.Background(), p, senderAddr, value)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), receipt.Nonce)
	assert.Equal(t, int64(5), receipt.Refund.Int64())
	assert.Equal(t, 0, fee.NativeFee.Cmp(a.CollectedFees()))
	require.Equal(t, 1, r.count())
	assert.Equal(t, types.EndpointID(1), r.received[0].SrcEid)
	assert.Equal(t, types.AddressToPeer(senderAddr), r.received[0].Sender)

	assert.Equal(t, uint64(1), a.OutboundNonce(senderAddr, 2, p.Receiver))
	assert.Equal(t, uint64(1), b.InboundNonce(1, types.AddressToPeer(senderAddr), receiverAddr))

	receipt2, err := a.Send(context.Background(), p, senderAddr, fee.NativeFee)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), receipt2.Nonce)
	assert.NotEqual(t, receipt.GUID, receipt2.GUID)
}

func TestMock_SendErrors(t *testing.T) {
	t.Parallel()

	a, _, _ := newMockPair(t)

	fee, err := a.Quote(params(2), senderAddr)
	require.NoError(t, err)

	_, err = a.Send(context.Background(), params(2), senderAddr, new(big.Int).Sub(fee.NativeFee, big.NewInt(1)))
	require.ErrorIs(t, err, types.ErrInsufficientFee)

	_, err = a.Send(context.Background(), params(2), senderAddr, nil)
	require.ErrorIs(t, err, types.ErrInsufficientFee)

	lzToken := params(2)
	lzToken.PayInLzToken = true
	_, err = a.Send(context.Background(), lzToken, senderAddr, fee.NativeFee)
	require.ErrorIs(t, err, types.ErrInsufficientFee)

	_, err = a.Send(context.Background(), params(3), senderAddr, fee.NativeFee)
	require.ErrorIs(t, err, types.ErrNoRoute)

	unknown := params(2)
	unknown.Receiver = types.AddressToPeer(common.HexToAddress("0x99"))
	_, err = a.Send(context.Background(), unknown, senderAddr, fee.NativeFee)
	require.ErrorIs(t, err, types.ErrNoRoute)

	require.Zero(t, a.CollectedFees().Sign())
}

func TestMock_RejectedDeliveryConsumesNothing(t *testing.T) {
	t.Parallel()

	a, b, r := newMockPair(t)
	r.fail = types.ErrUntrustedSender

	fee, err := a.Quote(params(2), senderAddr)
	require.NoError(t, err)

	_, err = a.Send(context.Background(), params(2), senderAddr, fee.NativeFee)
	require.ErrorIs(t, err, types.ErrUntrustedSender)

	assert.Zero(t, a.OutboundNonce(senderAddr, 2, params(2).Receiver))
	assert.Zero(t, b.InboundNonce(1, types.AddressToPeer(senderAddr), receiverAddr))
	assert.Zero(t, a.CollectedFees().Sign())
}

func TestMock_DeliverOrdering(t *testing.T) {
	t.Parallel()

	_, b, r := newMockPair(t)
	packet := func(nonce uint64) *types.Packet {
		return &types.Packet{
			Nonce:    nonce,
			SrcEid:   1,
			Sender:   types.AddressToPeer(senderAddr),
			DstEid:   2,
			Receiver: types.AddressToPeer(receiverAddr),
		}
	}

	require.Error(t, b.Deliver(context.Background(), packet(2)))
	require.NoError(t, b.Deliver(context.Background(), packet(1)))
	require.ErrorIs(t, b.Deliver(context.Background(), packet(1)), types.ErrReplayedPacket)
	require.NoError(t, b.Deliver(context.Background(), packet(2)))
	assert.Equal(t, 2, r.count())

	wrongEid := packet(3)
	wrongEid.DstEid = 7
	require.ErrorIs(t, b.Deliver(context.Background(), wrongEid), types.ErrNoRoute)

	noReceiver := packet(3)
	noReceiver.Receiver = types.AddressToPeer(common.HexToAddress("0x99"))
	require.ErrorIs(t, b.Deliver(context.Background(), noReceiver), types.ErrUnknownReceiver)
}

func TestMock_SetGasPrice(t *testing.T) {
	t.Parallel()

	a, _, _ := newMockPair(t)
	before, err := a.Quote(params(2), senderAddr)
	require.NoError(t, err)

	a.SetGasPrice(big.NewInt(4))
	after, err := a.Quote(params(2), senderAddr)
	require.NoError(t, err)

	require.Equal(t, int64(4), a.FeeModel().GasPrice.Int64())
	require.Equal(t, int64(200000*2), new(big.Int).Sub(after.NativeFee, before.NativeFee).Int64())
}

func newQueuedPair(t *testing.T) (*Queued, *Queued, *MemoryQueue, *recordingReceiver) {
	t.Helper()

	queue := NewMemoryQueue()
	a := NewQueued(1, testFees(), queue, hclog.NewNullLogger())
	b := NewQueued(2, testFees(), queue, hclog.NewNullLogger())
	r := &recordingReceiver{}
	b.SetReceiver(receiverAddr, r)

	return a, b, queue, r
}

func TestQueued_SendAndRelay(t *testing.T) {
	t.Parallel()

	a, b, queue, r := newQueuedPair(t)

	fee, err := a.Quote(params(2), senderAddr)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		receipt, err := a.Send(context.Background(), params(2), senderAddr, fee.NativeFee)
		require.NoError(t, err)
		require.Equal(t, uint64(i+1), receipt.Nonce)
	}

	// nothing delivered until relayed
	assert.Equal(t, 0, r.count())
	assert.Equal(t, 3, queue.Pending(2))

	results, err := b.Relay(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, res := range results {
		require.NoError(t, res.Err)
	}
	assert.Equal(t, 3, r.count())
	assert.Equal(t, 0, queue.Pending(2))

	// nothing left
	results, err = b.Relay(context.Background())
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestQueued_DuplicateDeliveryIsIgnored(t *testing.T) {
	t.Parallel()

	a, b, queue, r := newQueuedPair(t)

	fee, err := a.Quote(params(2), senderAddr)
	require.NoError(t, err)
	_, err = a.Send(context.Background(), params(2), senderAddr, fee.NativeFee)
	require.NoError(t, err)

	packet, err := queue.Pop(2)
	require.NoError(t, err)
	require.NotNil(t, packet)

	require.NoError(t, b.Deliver(context.Background(), packet))
	require.ErrorIs(t, b.Deliver(context.Background(), packet), types.ErrReplayedPacket)
	assert.Equal(t, 1, r.count())
}

func TestQueued_RejectionIsRecorded(t *testing.T) {
	t.Parallel()

	a, b, queue, r := newQueuedPair(t)
	r.fail = errors.New("boom")

	fee, err := a.Quote(params(2), senderAddr)
	require.NoError(t, err)
	receipt, err := a.Send(context.Background(), params(2), senderAddr, fee.NativeFee)
	require.NoError(t, err)

	results, err := b.Relay(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Error(t, results[0].Err)

	failed := queue.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, receipt.GUID, failed[0].Packet.GUID)
	assert.Contains(t, failed[0].Reason, "boom")
}

func TestQueued_SendErrors(t *testing.T) {
	t.Parallel()

	a, _, queue, _ := newQueuedPair(t)

	_, err := a.Send(context.Background(), params(2), senderAddr, big.NewInt(1))
	require.ErrorIs(t, err, types.ErrInsufficientFee)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.Send(ctx, params(2), senderAddr, big.NewInt(1_000_000_000))
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 0, queue.Pending(2))
}
