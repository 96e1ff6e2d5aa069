package handlers

import (
	"net/http"

	"github.com/go-chi/chi"
)

func (api *API) Peers(w http.ResponseWriter, r *http.Request) {
	c, ok := api.contract(w, chi.URLParam(r, "contract"))
	if !ok {
		return
	}

	peers, version := c.Adapter.Peers()
	responseJSON(w, &APIPeersResponse{
		Status:  "ok",
		Version: version,
		Peers:   peers,
	}, http.StatusOK)
}

func (api *API) Balance(w http.ResponseWriter, r *http.Request) {
	c, ok := api.contract(w, chi.URLParam(r, "contract"))
	if !ok {
		return
	}

	addr, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		responseError(w, "address", "No ethereum address or invalid address provided", http.StatusBadRequest)
		return
	}

	_, verified := c.Ledger.IsVerified(addr)
	responseJSON(w, &APIBalanceResponse{
		Status:    "ok",
		Address:   addr.Hex(),
		Balance:   c.Ledger.BalanceOf(addr).String(),
		Allowance: c.Ledger.Allowance(addr, c.Adapter.Address()).String(),
		Verified:  verified,
	}, http.StatusOK)
}
