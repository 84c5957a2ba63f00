package server

import (
	"net/http"

	"github.com/alfredjeanlab/newsdesk/internal/ledger"
	"github.com/alfredjeanlab/newsdesk/internal/model"
)

type fileSignalInput struct {
	BTCAddress string         `json:"btc_address"`
	Beat       string         `json:"beat"`
	Content    string         `json:"content"`
	Signature  string         `json:"signature"`
	Headline   *string        `json:"headline"`
	Sources    []model.Source `json:"sources"`
	Tags       []string       `json:"tags"`
}

type correctSignalInput struct {
	BTCAddress string `json:"btc_address"`
	Correction string `json:"correction"`
	Signature  string `json:"signature"`
}

// handleListSignals handles GET /v1/signals.
func (s *NewsServer) handleListSignals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ledger.Filter{
		Beat:  q.Get("beat"),
		Agent: q.Get("agent"),
		Tag:   q.Get("tag"),
		Limit: queryInt(r, "limit"),
	}
	sigs, total, err := s.ledger.List(r.Context(), f)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if sigs == nil {
		sigs = []*model.Signal{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"signals": sigs,
		"total":   total,
		"filtered": map[string]string{
			"beat":  f.Beat,
			"agent": f.Agent,
			"tag":   f.Tag,
		},
	})
}

// handleFileSignal handles POST /v1/signals.
func (s *NewsServer) handleFileSignal(w http.ResponseWriter, r *http.Request) {
	var in fileSignalInput
	if !decodeBody(w, r, &in) {
		return
	}
	sig, err := s.ledger.File(r.Context(), ledger.FileRequest{
		Agent:     in.BTCAddress,
		Beat:      in.Beat,
		Content:   in.Content,
		Signature: in.Signature,
		Headline:  in.Headline,
		Sources:   in.Sources,
		Tags:      in.Tags,
		CallerIP:  callerIP(r),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sig)
}

// handleGetSignal handles GET /v1/signals/{id}.
func (s *NewsServer) handleGetSignal(w http.ResponseWriter, r *http.Request) {
	sig, err := s.ledger.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sig)
}

// handleCorrectSignal handles PATCH /v1/signals/{id}.
func (s *NewsServer) handleCorrectSignal(w http.ResponseWriter, r *http.Request) {
	var in correctSignalInput
	if !decodeBody(w, r, &in) {
		return
	}
	sig, err := s.ledger.Correct(r.Context(), ledger.CorrectRequest{
		ID:         r.PathValue("id"),
		Author:     in.BTCAddress,
		Correction: in.Correction,
		Signature:  in.Signature,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sig)
}
