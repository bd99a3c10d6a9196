package api

import (
	"context"
	"net/http"
	"time"
)

type healthResponse struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Services  healthServices `json:"services"`
	Ledger    healthLedger   `json:"ledger"`
}

type healthServices struct {
	Storage       string `json:"storage"`
	StorageStatus string `json:"storageStatus"`
	StreamClients int    `json:"streamClients"`
}

type healthLedger struct {
	Accounts int `json:"accounts"`
	Trades   int `json:"trades"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  healthServices{Storage: "memory", StorageStatus: "n/a"},
	}

	if s.storage != nil {
		resp.Services.Storage = s.storage.Name()
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.storage.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Services.StorageStatus = "disconnected"
		} else {
			resp.Services.StorageStatus = "connected"
		}
	}
	if s.stream != nil {
		resp.Services.StreamClients = s.stream.ClientCount()
	}
	resp.Ledger.Accounts, resp.Ledger.Trades = s.svc.Stats()

	writeJSON(w, http.StatusOK, resp)
}
