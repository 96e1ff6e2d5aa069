package handlers

import (
	"net/http"
)

// prev. bridge implementation compatibility, extended with the deployment
func (api *API) State(w http.ResponseWriter, r *http.Request) {
	contracts := api.Env.Contracts()

	state := make([]ContractState, 0, len(contracts))
	for _, c := range contracts {
		state = append(state, ContractState{
			Name:         c.Point.ContractName,
			Eid:          c.Point.Eid,
			Mode:         string(c.Adapter.Mode()),
			Adapter:      c.Adapter.Address().Hex(),
			Token:        c.TokenAddress.Hex(),
			Symbol:       c.Ledger.Symbol(),
			Decimals:     c.Ledger.Decimals(),
			TotalSupply:  c.Ledger.TotalSupply().String(),
			Custody:      c.Ledger.BalanceOf(c.Adapter.Address()).String(),
			PeersVersion: c.Adapter.PeersVersion(),
		})
	}

	responseJSON(w, &APIStateResponse{
		Status:    "ok",
		Transport: api.Env.Transport(),
		Contracts: state,
	}, http.StatusOK)
}

func (api *API) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if api.Health != nil {
		if err := api.Health(); err != nil {
			api.Logger.Warn("health check failed", "err", err)
			responseJSON(w, &APIResponse{
				Status:  "error",
				Message: err.Error(),
			}, http.StatusServiceUnavailable)
			return
		}
	}

	responseJSON(w, &APIResponse{
		Status: "ok",
	}, http.StatusOK)
}
