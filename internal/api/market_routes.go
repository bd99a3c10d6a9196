package api

import "net/http"

func (s *Server) handleOpportunities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.feed.Opportunities())
}

func (s *Server) handlePriceFeed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.feed.Prices())
}
