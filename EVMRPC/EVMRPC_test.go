package EVMRPC

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lzbridge/config"
)

func TestWithClient_EmptyList(t *testing.T) {
	t.Parallel()

	_, err := WithClient(nil, func(client *ethclient.Client) (int, error) { return 1, nil })
	require.ErrorIs(t, err, ErrNoRPC)
}

func TestWithClient_Failover(t *testing.T) {
	t.Parallel()

	// ethclient.Dial does not connect for http urls, f decides success
	calls := 0
	res, err := WithClient([]string{"http://127.0.0.1:1", "http://127.0.0.1:2"}, func(client *ethclient.Client) (int, error) {
		calls++
		if calls < 2 {
			return 0, errors.New("unavailable")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, res)
	assert.Equal(t, 2, calls)
}

func TestWithClient_GivesUp(t *testing.T) {
	t.Parallel()

	calls := 0
	_, err := WithClient([]string{"http://127.0.0.1:1"}, func(client *ethclient.Client) (int, error) {
		calls++
		return 0, errors.New("unavailable")
	})
	require.Error(t, err)
	assert.Equal(t, config.EVM_RETRIES, calls)
}
