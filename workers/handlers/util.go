package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"

	ethav "github.com/KOREAN139/ethereum-address-validator"
	"github.com/ethereum/go-ethereum/common"

	"lzbridge/types"
)

func responseJSON(w http.ResponseWriter, data interface{}, code int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

func responseError(w http.ResponseWriter, field, message string, code int) {
	responseJSON(w, &APIResponse{
		Status:  "error",
		Field:   field,
		Message: message,
	}, code)
}

func decodeBody(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, errors.New("not a hex address")
	}
	addr := common.HexToAddress(s)
	if err := ethav.Validate(addr.Hex()); err != nil {
		return common.Address{}, err
	}
	return addr, nil
}

func parseAmount(s string) (*big.Int, bool) {
	if s == "" {
		return nil, false
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, false
	}
	return v, true
}

// statusCode maps bridge errors to HTTP codes
func statusCode(err error) int {
	switch {
	case errors.Is(err, types.ErrUnauthorized), errors.Is(err, types.ErrUntrustedSender):
		return http.StatusForbidden
	case errors.Is(err, types.ErrUnknownPeer), errors.Is(err, types.ErrNoRoute), errors.Is(err, types.ErrUnknownReceiver):
		return http.StatusNotFound
	case errors.Is(err, types.ErrInsufficientFee):
		return http.StatusPaymentRequired
	case errors.Is(err, types.ErrInsufficientBalanceOrAllowance),
		errors.Is(err, types.ErrInvalidAmount),
		errors.Is(err, types.ErrUnsupportedAsset),
		errors.Is(err, types.ErrInvalidPayload),
		errors.Is(err, types.ErrInvalidOptions):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrReplayedPacket):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
