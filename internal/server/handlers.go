package server

import (
	"github.com/larkwiot/bookscout/internal/book"
	"github.com/larkwiot/bookscout/internal/service"
	"github.com/samber/lo"
	"net/http"
)

// availabilityResponse keeps "could not tell" apart from "not held".
type availabilityResponse struct {
	Determined bool `json:"determined"`
	*book.Availability
}

type healthResponse struct {
	Status   string           `json:"status"`
	Services []service.Status `json:"services"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	statuses := s.bm.Statuses()
	status := lo.Ternary(lo.EveryBy(statuses, func(st service.Status) bool { return st.Up }), "UP", "DEGRADED")
	writeJson(w, http.StatusOK, healthResponse{Status: status, Services: statuses})
}

func (s *Server) prices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJson(w, http.StatusOK, s.bm.GetPrices(r.Context(), q.Get("isbn"), q.Get("title")))
}

func (s *Server) links(w http.ResponseWriter, r *http.Request) {
	links, err := s.bm.BuildDeepLinks(r.URL.Query().Get("isbn"))
	if err != nil {
		status, code := statusFor(err)
		writeError(w, r, status, code, err.Error())
		return
	}
	writeJson(w, http.StatusOK, links.ToMap())
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJson(w, http.StatusOK, s.bm.Lookup(r.Context(), q.Get("isbn"), q.Get("title")))
}

func (s *Server) libraryCheck(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result := s.bm.CheckAvailabilityWithDetails(r.Context(), q.Get("isbn"), q.Get("title"), q.Get("author"), q.Get("publisher"))

	availability, ok := result.Get()
	if !ok {
		writeJson(w, http.StatusOK, availabilityResponse{Determined: false})
		return
	}
	writeJson(w, http.StatusOK, availabilityResponse{Determined: true, Availability: &availability})
}

func (s *Server) externalBooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	results, err := s.bm.Search(r.Context(), q.Get("query"), q.Get("source"))
	if err != nil {
		status, code := statusFor(err)
		s.logger.Warn("external search failed", "query", q.Get("query"), "source", q.Get("source"), "err", err)
		writeError(w, r, status, code, err.Error())
		return
	}
	writeJson(w, http.StatusOK, results)
}
