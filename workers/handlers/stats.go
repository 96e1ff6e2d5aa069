package handlers

import (
	"net/http"

	"github.com/go-chi/chi"

	"lzbridge/types"
)

func (api *API) Operation(w http.ResponseWriter, r *http.Request) {
	op, err := api.Store.FindBridgeOperationByGUID(chi.URLParam(r, "guid"))
	if err != nil {
		responseJSON(w, nil, http.StatusInternalServerError)
		return
	}
	if op == nil {
		responseError(w, "guid", "Operation not found", http.StatusNotFound)
		return
	}
	responseJSON(w, op, http.StatusOK)
}

func (api *API) Stats(w http.ResponseWriter, r *http.Request) {
	status := chi.URLParam(r, "status")
	if !types.ValidStatus(status) {
		responseError(w, "status", "Unknown operation status", http.StatusBadRequest)
		return
	}

	ops, err := api.Store.FindAllBridgeOperationsByStatus(status)
	if err != nil {
		responseJSON(w, nil, http.StatusInternalServerError)
		return
	}

	responseJSON(w, ops, http.StatusOK)
}

func (api *API) MetricsSnapshot(w http.ResponseWriter, r *http.Request) {
	data, err := api.Metrics.DisplayMetrics(w, r)
	if err != nil {
		responseJSON(w, nil, http.StatusInternalServerError)
		return
	}
	responseJSON(w, data, http.StatusOK)
}
