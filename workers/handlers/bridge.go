package handlers

import (
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"lzbridge/bridge"
	"lzbridge/lzoptions"
	"lzbridge/types"
)

func (api *API) options(gas uint64) ([]byte, error) {
	if gas == 0 {
		gas = api.DefaultGas
	}
	return lzoptions.New().AddExecutorLzReceiveOption(gas, nil).Bytes()
}

func (api *API) Quote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	c, ok := api.contract(w, q.Get("contract"))
	if !ok {
		return
	}

	dstEid, err := strconv.ParseUint(q.Get("dstEid"), 10, 32)
	if err != nil {
		responseError(w, "dstEid", "Destination endpoint id not provided or invalid", http.StatusBadRequest)
		return
	}
	recipient, err := parseAddress(q.Get("recipient"))
	if err != nil {
		responseError(w, "recipient", "No ethereum address or invalid address provided", http.StatusBadRequest)
		return
	}
	amount, ok := parseAmount(q.Get("amount"))
	if !ok {
		responseError(w, "amount", "Amount not provided or invalid", http.StatusBadRequest)
		return
	}
	assetID := new(big.Int)
	if s := q.Get("assetId"); s != "" {
		if assetID, ok = parseAmount(s); !ok {
			responseError(w, "assetId", "Invalid asset id", http.StatusBadRequest)
			return
		}
	}
	var gas uint64
	if s := q.Get("gas"); s != "" {
		if gas, err = strconv.ParseUint(s, 10, 64); err != nil {
			responseError(w, "gas", "Invalid gas", http.StatusBadRequest)
			return
		}
	}
	payInLzToken, _ := strconv.ParseBool(q.Get("payInLzToken"))

	options, err := api.options(gas)
	if err != nil {
		responseError(w, "gas", err.Error(), http.StatusBadRequest)
		return
	}

	fee, err := c.Adapter.Quote(types.EndpointID(dstEid), recipient, amount, assetID, options, payInLzToken)
	if err != nil {
		responseError(w, "", err.Error(), statusCode(err))
		return
	}

	responseJSON(w, &APIQuoteResponse{
		Status:     "ok",
		NativeFee:  fee.NativeFee.String(),
		LzTokenFee: fee.LzTokenFee.String(),
		Options:    "0x" + common.Bytes2Hex(options),
	}, http.StatusOK)
}

func (api *API) Approve(w http.ResponseWriter, r *http.Request) {
	var req ApproveRequest
	if err := decodeBody(r, &req); err != nil {
		responseError(w, "", "Cannot unmarshal input JSON", http.StatusBadRequest)
		return
	}

	c, ok := api.contract(w, req.Contract)
	if !ok {
		return
	}
	owner, err := parseAddress(req.Owner)
	if err != nil {
		responseError(w, "owner", "No ethereum address or invalid address provided", http.StatusBadRequest)
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		responseError(w, "amount", "Amount not provided or invalid", http.StatusBadRequest)
		return
	}
	if !api.signedBy(w, req.Message(), req.Signature, owner, req.Nonce, req.Deadline) {
		return
	}

	if err := c.Ledger.Approve(owner, c.Adapter.Address(), amount); err != nil {
		responseError(w, "", err.Error(), statusCode(err))
		return
	}

	api.Logger.Info("allowance set", "contract", req.Contract, "owner", owner, "amount", amount)
	responseJSON(w, &APIResponse{Status: "ok"}, http.StatusOK)
}

func (api *API) Bridge(w http.ResponseWriter, r *http.Request) {
	var req BridgeRequest
	if err := decodeBody(r, &req); err != nil {
		responseError(w, "", "Cannot unmarshal input JSON", http.StatusBadRequest)
		return
	}

	c, ok := api.contract(w, req.Contract)
	if !ok {
		return
	}
	from, err := parseAddress(req.From)
	if err != nil {
		responseError(w, "from", "No ethereum address or invalid address provided", http.StatusBadRequest)
		return
	}
	recipient, err := parseAddress(req.Recipient)
	if err != nil {
		responseError(w, "recipient", "No ethereum address or invalid address provided", http.StatusBadRequest)
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		responseError(w, "amount", "Amount not provided or invalid", http.StatusBadRequest)
		return
	}
	assetID := new(big.Int)
	if req.AssetID != "" {
		if assetID, ok = parseAmount(req.AssetID); !ok {
			responseError(w, "assetId", "Invalid asset id", http.StatusBadRequest)
			return
		}
	}
	if !api.signedBy(w, req.Message(), req.Signature, from, req.Nonce, req.Deadline) {
		return
	}

	options, err := api.options(req.Gas)
	if err != nil {
		responseError(w, "gas", err.Error(), http.StatusBadRequest)
		return
	}

	// no value attached pays exactly the quote
	var value *big.Int
	if req.Value != "" {
		if value, ok = parseAmount(req.Value); !ok {
			responseError(w, "value", "Invalid value", http.StatusBadRequest)
			return
		}
	} else {
		fee, err := c.Adapter.Quote(req.DstEid, recipient, amount, assetID, options, false)
		if err != nil {
			responseError(w, "", err.Error(), statusCode(err))
			return
		}
		value = fee.NativeFee
	}

	op, err := c.Adapter.BridgeToken(r.Context(), bridge.TxOpts{From: from, Value: value}, req.DstEid, recipient, amount, assetID, options)
	if err != nil {
		api.Logger.Warn("bridge request failed", "contract", req.Contract, "from", from, "err", err)
		responseError(w, "", err.Error(), statusCode(err))
		return
	}

	resp := &APIBridgeResponse{Status: "ok", Operation: op}
	if fee, ok := new(big.Int).SetString(op.Fee, 10); ok {
		if refund := new(big.Int).Sub(value, fee); refund.Sign() > 0 {
			resp.Refund = refund.String()
		}
	}
	responseJSON(w, resp, http.StatusOK)
}

// signedBy checks that want signed msg, that deadline is still ahead and
// that nonce was not spent before. A nonce is spent even if the request
// fails later.
func (api *API) signedBy(w http.ResponseWriter, msg, sig string, want common.Address, nonce uint64, deadline int64) bool {
	signer, err := recoverSigner(msg, sig)
	if err != nil {
		api.Logger.Debug("cannot recover signer", "err", err)
		responseError(w, "signature", "No signature or malformed signature provided", http.StatusBadRequest)
		return false
	}
	if signer != want {
		api.Logger.Debug("signer mismatch", "recovered", signer, "provided", want)
		responseError(w, "signature", "Signature does not match the address provided", http.StatusBadRequest)
		return false
	}

	now := api.now()
	expiry := time.Unix(deadline, 0)
	if !now.Before(expiry) {
		responseError(w, "deadline", "Signature expired", http.StatusBadRequest)
		return false
	}
	if expiry.Sub(now) > MaxSignatureLifetime {
		responseError(w, "deadline", "Deadline too far in the future", http.StatusBadRequest)
		return false
	}

	if api.Nonces == nil {
		api.Logger.Error("no signature nonce store configured")
		responseError(w, "", "Signed requests are not accepted", http.StatusInternalServerError)
		return false
	}
	fresh, err := api.Nonces.UseSignatureNonce(signer, nonce, expiry.Sub(now)+time.Minute)
	if err != nil {
		api.Logger.Error("cannot spend signature nonce", "signer", signer, "nonce", nonce, "err", err)
		responseJSON(w, nil, http.StatusInternalServerError)
		return false
	}
	if !fresh {
		api.Logger.Warn("replayed signed request", "signer", signer, "nonce", nonce)
		responseError(w, "nonce", "Nonce already used", http.StatusConflict)
		return false
	}
	return true
}
