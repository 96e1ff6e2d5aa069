package types

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestAddressToPeer(t *testing.T) {
	t.Parallel()

	addr := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	peer := AddressToPeer(addr)

	require.Equal(t, "0x0000000000000000000000005fbdb2315678afecb367f032d93f642f64180aa3", peer.Hex())
	require.Equal(t, addr, PeerToAddress(peer))
}

func TestLabel(t *testing.T) {
	t.Parallel()

	l := Label("ethBridge")
	require.Equal(t, []byte("ethBridge"), l[:9])
	require.Equal(t, make([]byte, 23), l[9:])

	long := Label("a label that is certainly longer than thirty one bytes")
	require.Equal(t, byte(0), long[31])
}

func TestBridgeOperation_AppendMessage(t *testing.T) {
	t.Parallel()

	op := &BridgeOperation{}
	op.AppendMessage("first")
	op.AppendMessage("second")

	require.Equal(t, "first; second", op.Message)
}
