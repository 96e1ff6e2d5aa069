package lzoptions

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"

	"lzbridge/types"
)

func TestOptions_LzReceiveHex(t *testing.T) {
	t.Parallel()

	hex, err := New().AddExecutorLzReceiveOption(200000, big.NewInt(0)).Hex()
	require.NoError(t, err)
	require.Equal(t, "0x00030100110100000000000000000000000000030d40", hex)
}

func TestOptions_RoundTrip(t *testing.T) {
	t.Parallel()

	receiver := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	b := New().
		AddExecutorLzReceiveOption(200000, big.NewInt(5)).
		AddExecutorLzReceiveOption(50000, nil).
		AddExecutorNativeDropOption(big.NewInt(7), receiver).
		MustBytes()

	decoded, err := Decode(b)
	require.NoError(t, err)
	require.Equal(t, int64(250000), decoded.LzReceiveGas.Int64())
	require.Equal(t, int64(5), decoded.LzReceiveValue.Int64())
	require.Len(t, decoded.NativeDrops, 1)
	require.Equal(t, receiver, decoded.NativeDrops[0].Receiver)
	require.Equal(t, int64(12), decoded.TotalValue().Int64())
}

func TestOptions_ValueOverflow(t *testing.T) {
	t.Parallel()

	tooBig := new(big.Int).Lsh(big.NewInt(1), 128)
	_, err := New().AddExecutorLzReceiveOption(1, tooBig).Bytes()
	require.Error(t, err)
}

func TestDecode_Invalid(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		data string
	}{
		{"empty", "0x"},
		{"wrong type", "0x0001"},
		{"truncated header", "0x000301"},
		{"size past end", "0x00030100ff01"},
		{"unknown worker", "0x00030200110100000000000000000000000000030d40"},
		{"unknown option", "0x00030100110900000000000000000000000000030d40"},
		{"bad lzReceive length", "0x0003010003010000"},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			_, err := Decode(hexutil.MustDecode(c.data))
			require.ErrorIs(t, err, types.ErrInvalidOptions)
		})
	}
}

func TestDecode_TypeOnly(t *testing.T) {
	t.Parallel()

	decoded, err := Decode(New().MustBytes())
	require.NoError(t, err)
	require.Zero(t, decoded.LzReceiveGas.Sign())
}
