package ledger

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lzbridge/types"
)

var (
	owner  = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	user   = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
	bridge = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
)

func newRestricted(t *testing.T) *Ledger {
	t.Helper()

	return New(Config{Name: "EthDFG", Symbol: "EDFG", Restricted: true}, owner, hclog.NewNullLogger())
}

func newPlain(t *testing.T) *Ledger {
	t.Helper()

	return New(Config{Name: "BaseDFG", Symbol: "BDFG", Decimals: 18}, owner, hclog.NewNullLogger())
}

func TestLedger_Metadata(t *testing.T) {
	t.Parallel()

	l := newPlain(t)
	assert.Equal(t, "BaseDFG", l.Name())
	assert.Equal(t, "BDFG", l.Symbol())
	assert.Equal(t, uint8(18), l.Decimals())
	assert.Equal(t, owner, l.Owner())
	assert.False(t, l.Restricted())
	assert.True(t, l.IsMinter(owner))
}

func TestLedger_OwnerOnly(t *testing.T) {
	t.Parallel()

	l := newRestricted(t)

	require.ErrorIs(t, l.AddVerified(user, user, types.Label("user")), types.ErrUnauthorized)
	require.ErrorIs(t, l.AddMinter(user, user), types.ErrUnauthorized)
	require.ErrorIs(t, l.RemoveVerified(user, owner), types.ErrUnauthorized)
	require.ErrorIs(t, l.RemoveMinter(user, owner), types.ErrUnauthorized)

	require.NoError(t, l.AddVerified(owner, user, types.Label("user")))
	label, ok := l.IsVerified(user)
	require.True(t, ok)
	require.Equal(t, types.Label("user"), label)

	require.NoError(t, l.RemoveVerified(owner, user))
	_, ok = l.IsVerified(user)
	require.False(t, ok)
}

func TestLedger_Mint(t *testing.T) {
	t.Parallel()

	l := newPlain(t)

	require.ErrorIs(t, l.Mint(user, user, big.NewInt(1)), types.ErrUnauthorized)
	require.ErrorIs(t, l.Mint(owner, user, big.NewInt(0)), types.ErrInvalidAmount)

	require.NoError(t, l.AddMinter(owner, bridge))
	require.NoError(t, l.Mint(bridge, user, big.NewInt(1000)))

	assert.Equal(t, int64(1000), l.BalanceOf(user).Int64())
	assert.Equal(t, int64(1000), l.TotalSupply().Int64())

	require.NoError(t, l.RemoveMinter(owner, bridge))
	require.ErrorIs(t, l.Mint(bridge, user, big.NewInt(1)), types.ErrUnauthorized)
}

func TestLedger_Burn(t *testing.T) {
	t.Parallel()

	l := newPlain(t)
	require.NoError(t, l.Mint(owner, user, big.NewInt(10)))

	require.ErrorIs(t, l.Burn(user, user, big.NewInt(1)), types.ErrUnauthorized)
	require.ErrorIs(t, l.Burn(owner, user, big.NewInt(11)), types.ErrInsufficientBalanceOrAllowance)

	require.NoError(t, l.Burn(owner, user, big.NewInt(4)))
	assert.Equal(t, int64(6), l.BalanceOf(user).Int64())
	assert.Equal(t, int64(6), l.TotalSupply().Int64())
}

func TestLedger_RestrictedTransfer(t *testing.T) {
	t.Parallel()

	l := newRestricted(t)
	require.NoError(t, l.Mint(owner, user, big.NewInt(1000)))
	require.NoError(t, l.Approve(user, bridge, big.NewInt(1000)))

	// neither side verified
	err := l.TransferFrom(bridge, user, bridge, big.NewInt(1000))
	require.ErrorIs(t, err, types.ErrUnauthorized)
	assert.Equal(t, int64(1000), l.BalanceOf(user).Int64())
	assert.Equal(t, int64(1000), l.Allowance(user, bridge).Int64())

	// recipient verified, sender not
	require.NoError(t, l.AddVerified(owner, bridge, types.Label("ethBridge")))
	err = l.TransferFrom(bridge, user, bridge, big.NewInt(1000))
	require.ErrorIs(t, err, types.ErrUnauthorized)

	require.NoError(t, l.AddVerified(owner, user, types.Label("user")))
	require.NoError(t, l.TransferFrom(bridge, user, bridge, big.NewInt(1000)))

	assert.Zero(t, l.BalanceOf(user).Sign())
	assert.Equal(t, int64(1000), l.BalanceOf(bridge).Int64())
	assert.Zero(t, l.Allowance(user, bridge).Sign())
}

func TestLedger_TransferFromAllowance(t *testing.T) {
	t.Parallel()

	l := newPlain(t)
	require.NoError(t, l.Mint(owner, user, big.NewInt(100)))
	require.NoError(t, l.Approve(user, bridge, big.NewInt(50)))

	require.ErrorIs(t, l.TransferFrom(bridge, user, bridge, big.NewInt(51)), types.ErrInsufficientBalanceOrAllowance)
	require.NoError(t, l.TransferFrom(bridge, user, bridge, big.NewInt(50)))
	require.ErrorIs(t, l.Transfer(user, bridge, big.NewInt(51)), types.ErrInsufficientBalanceOrAllowance)
	require.NoError(t, l.Transfer(user, bridge, big.NewInt(50)))

	assert.Equal(t, int64(100), l.BalanceOf(bridge).Int64())
	require.ErrorIs(t, l.Approve(user, bridge, big.NewInt(-1)), types.ErrInvalidAmount)
}

func TestJournal_Revert(t *testing.T) {
	t.Parallel()

	l := newPlain(t)
	require.NoError(t, l.Mint(owner, user, big.NewInt(100)))
	require.NoError(t, l.Approve(user, bridge, big.NewInt(60)))

	j := l.Journal()
	require.NoError(t, j.TransferFrom(bridge, user, bridge, big.NewInt(60)))
	require.NoError(t, j.Burn(owner, bridge, big.NewInt(10)))
	require.NoError(t, j.Mint(owner, owner, big.NewInt(5)))
	require.NoError(t, j.Transfer(user, owner, big.NewInt(40)))

	// failed mutations are not recorded
	require.Error(t, j.Transfer(user, owner, big.NewInt(1)))

	j.Revert()

	assert.Equal(t, int64(100), l.BalanceOf(user).Int64())
	assert.Zero(t, l.BalanceOf(bridge).Sign())
	assert.Zero(t, l.BalanceOf(owner).Sign())
	assert.Equal(t, int64(60), l.Allowance(user, bridge).Int64())
	assert.Equal(t, int64(100), l.TotalSupply().Int64())

	// reverting twice is a no-op
	j.Revert()
	assert.Equal(t, int64(100), l.BalanceOf(user).Int64())
}

func TestJournal_Commit(t *testing.T) {
	t.Parallel()

	l := newPlain(t)

	j := l.Journal()
	require.NoError(t, j.Mint(owner, user, big.NewInt(7)))
	j.Commit()
	j.Revert()

	assert.Equal(t, int64(7), l.BalanceOf(user).Int64())
}

func TestLedger_MintSupplyCap(t *testing.T) {
	t.Parallel()

	l := newPlain(t)

	require.NoError(t, l.Mint(owner, user, math.MaxBig256))
	require.ErrorIs(t, l.Mint(owner, owner, big.NewInt(1)), types.ErrInvalidAmount)
	assert.Equal(t, 0, math.MaxBig256.Cmp(l.TotalSupply()))
	assert.Zero(t, l.BalanceOf(owner).Sign())

	require.NoError(t, l.Burn(owner, user, big.NewInt(1)))
	require.NoError(t, l.Mint(owner, owner, big.NewInt(1)))
}
