package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/evalgate/evalgate/internal/gateway/contract"
)

// ContractEntry describes one known output contract.
type ContractEntry struct {
	Name     string `json:"name"`
	Fields   string `json:"fields"`
	Keywords int    `json:"keyword_groups"`
}

// ContractsResponse is the GET /v1/contracts response body.
type ContractsResponse struct {
	Contracts []ContractEntry `json:"contracts"`
}

// Contracts lists the known output contracts in classification priority
// order.
func Contracts(w http.ResponseWriter, r *http.Request) {
	catalog := contract.List()
	entries := make([]ContractEntry, 0, len(catalog))
	for _, c := range catalog {
		entries = append(entries, ContractEntry{
			Name:     string(c.Name),
			Fields:   c.Summary(),
			Keywords: len(c.Keywords),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(ContractsResponse{Contracts: entries})
}
