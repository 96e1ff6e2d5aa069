package handlers

import (
	"net/http"

	"lzbridge/types"
)

func (api *API) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := decodeBody(r, &req); err != nil {
		responseError(w, "", "Cannot unmarshal input JSON", http.StatusBadRequest)
		return
	}

	c, ok := api.contract(w, req.Contract)
	if !ok {
		return
	}
	addr, err := parseAddress(req.Address)
	if err != nil {
		responseError(w, "address", "No ethereum address or invalid address provided", http.StatusBadRequest)
		return
	}

	if req.Remove {
		err = c.Ledger.RemoveVerified(api.Env.Owner(), addr)
	} else {
		err = c.Ledger.AddVerified(api.Env.Owner(), addr, types.Label(req.Label))
	}
	if err != nil {
		responseError(w, "", err.Error(), statusCode(err))
		return
	}

	api.Logger.Info("verified senders changed", "contract", req.Contract, "address", addr, "remove", req.Remove)
	responseJSON(w, &APIResponse{Status: "ok"}, http.StatusOK)
}

func (api *API) Mint(w http.ResponseWriter, r *http.Request) {
	var req MintRequest
	if err := decodeBody(r, &req); err != nil {
		responseError(w, "", "Cannot unmarshal input JSON", http.StatusBadRequest)
		return
	}

	c, ok := api.contract(w, req.Contract)
	if !ok {
		return
	}
	addr, err := parseAddress(req.Address)
	if err != nil {
		responseError(w, "address", "No ethereum address or invalid address provided", http.StatusBadRequest)
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		responseError(w, "amount", "Amount not provided or invalid", http.StatusBadRequest)
		return
	}

	if err := c.Ledger.Mint(api.Env.Owner(), addr, amount); err != nil {
		responseError(w, "", err.Error(), statusCode(err))
		return
	}

	api.Logger.Info("minted", "contract", req.Contract, "to", addr, "amount", amount)
	responseJSON(w, &APIResponse{Status: "ok"}, http.StatusOK)
}
