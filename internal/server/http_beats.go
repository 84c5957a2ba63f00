package server

import (
	"net/http"

	"github.com/alfredjeanlab/newsdesk/internal/model"
	"github.com/alfredjeanlab/newsdesk/internal/registry"
)

type claimBeatInput struct {
	BTCAddress  string `json:"btc_address"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Signature   string `json:"signature"`
}

type updateBeatInput struct {
	BTCAddress  string  `json:"btc_address"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
	Signature   string  `json:"signature"`
}

type claimBeatResponse struct {
	*model.Beat
	Reclaimed bool `json:"reclaimed,omitempty"`
}

// handleListBeats handles GET /v1/beats.
func (s *NewsServer) handleListBeats(w http.ResponseWriter, r *http.Request) {
	beats, err := s.registry.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if beats == nil {
		beats = []*model.Beat{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"beats": beats, "total": len(beats)})
}

// handleClaimBeat handles POST /v1/beats.
func (s *NewsServer) handleClaimBeat(w http.ResponseWriter, r *http.Request) {
	var in claimBeatInput
	if !decodeBody(w, r, &in) {
		return
	}
	beat, reclaimed, err := s.registry.Claim(r.Context(), registry.ClaimRequest{
		Slug:        in.Slug,
		Name:        in.Name,
		Description: in.Description,
		Color:       in.Color,
		Claimant:    in.BTCAddress,
		Signature:   in.Signature,
		CallerIP:    callerIP(r),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, claimBeatResponse{Beat: beat, Reclaimed: reclaimed})
}

// handleUpdateBeat handles PATCH /v1/beats/{slug}.
func (s *NewsServer) handleUpdateBeat(w http.ResponseWriter, r *http.Request) {
	var in updateBeatInput
	if !decodeBody(w, r, &in) {
		return
	}
	beat, err := s.registry.Update(r.Context(), registry.UpdateRequest{
		Slug:        r.PathValue("slug"),
		Claimant:    in.BTCAddress,
		Description: in.Description,
		Color:       in.Color,
		Signature:   in.Signature,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, beat)
}
