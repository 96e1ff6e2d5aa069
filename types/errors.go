package types

import "errors"

var (
	ErrUnauthorized                   = errors.New("unauthorized")
	ErrUnknownPeer                    = errors.New("unknown peer")
	ErrUntrustedSender                = errors.New("untrusted sender")
	ErrInsufficientFee                = errors.New("insufficient fee")
	ErrInsufficientBalanceOrAllowance = errors.New("insufficient balance or allowance")

	ErrInvalidAmount    = errors.New("invalid amount")
	ErrUnsupportedAsset = errors.New("unsupported asset")
	ErrInvalidPayload   = errors.New("invalid payload")
	ErrInvalidOptions   = errors.New("invalid options")
	ErrNoRoute          = errors.New("no route to destination endpoint")
	ErrReplayedPacket   = errors.New("packet already delivered")
	ErrUnknownReceiver  = errors.New("no receiver registered")
)
