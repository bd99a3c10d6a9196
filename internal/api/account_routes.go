package api

import (
	"errors"
	"net/http"

	"github.com/kjannette/openarb-backend/internal/ledger"
	"github.com/kjannette/openarb-backend/internal/models"
)

type connectWalletRequest struct {
	WalletType *string `json:"walletType"`
}

type settingsRequest struct {
	MinProfitThreshold *float64 `json:"minProfitThreshold"`
	MaxTradeSize       *float64 `json:"maxTradeSize"`
	SlippageTolerance  *float64 `json:"slippageTolerance"`
	AutoTradingEnabled *bool    `json:"autoTradingEnabled"`
}

func (req settingsRequest) settings() (models.Settings, bool) {
	if req.MinProfitThreshold == nil || req.MaxTradeSize == nil ||
		req.SlippageTolerance == nil || req.AutoTradingEnabled == nil {
		return models.Settings{}, false
	}
	return models.Settings{
		MinProfitThreshold: *req.MinProfitThreshold,
		MaxTradeSize:       *req.MaxTradeSize,
		SlippageTolerance:  *req.SlippageTolerance,
		AutoTradingEnabled: *req.AutoTradingEnabled,
	}, true
}

type recordTradeRequest struct {
	TokenPair *string  `json:"tokenPair"`
	Profit    *float64 `json:"profit"`
}

func (s *Server) handleConnectWallet(w http.ResponseWriter, r *http.Request, id models.Identity) {
	var req connectWalletRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.WalletType == nil {
		writeError(w, http.StatusBadRequest, "walletType is required")
		return
	}

	if err := s.svc.ConnectWallet(id, *req.WalletType); err != nil {
		s.log.WithError(err).Error("Connect wallet failed")
		writeError(w, http.StatusInternalServerError, "failed to connect wallet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request, id models.Identity) {
	var req settingsRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	settings, ok := req.settings()
	if !ok {
		writeError(w, http.StatusBadRequest,
			"minProfitThreshold, maxTradeSize, slippageTolerance and autoTradingEnabled are required")
		return
	}

	if err := s.svc.SaveSettings(id, settings); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request, id models.Identity) {
	acct, err := s.svc.GetUserData(id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (s *Server) handleRecordTrade(w http.ResponseWriter, r *http.Request, id models.Identity) {
	var req recordTradeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.TokenPair == nil || req.Profit == nil {
		writeError(w, http.StatusBadRequest, "tokenPair and profit are required")
		return
	}

	tradeID, err := s.svc.RecordTrade(id, *req.TokenPair, *req.Profit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": tradeID})
}

func (s *Server) handleTradeHistory(w http.ResponseWriter, r *http.Request) {
	trades := s.svc.GetTradeHistory()
	if trades == nil {
		trades = []models.TradeRecord{}
	}
	writeJSON(w, http.StatusOK, trades)
}

// writeServiceError maps service errors onto HTTP status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		writeError(w, http.StatusNotFound, "User not found")
		return
	case errors.Is(err, ledger.ErrProfitOutOfRange):
		writeError(w, http.StatusUnprocessableEntity, ledger.ErrProfitOutOfRange.Error())
		return
	}
	s.log.WithError(err).Error("Account operation failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}
