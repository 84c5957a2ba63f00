package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/alfredjeanlab/newsdesk/internal/bounty"
	"github.com/alfredjeanlab/newsdesk/internal/model"
)

type createBountyInput struct {
	BTCAddress  string   `json:"btc_address"`
	CreatorName string   `json:"creator_name"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	AmountSats  int64    `json:"amount_sats"`
	Tags        []string `json:"tags"`
	Skills      []string `json:"skills"`
	BeatSlug    string   `json:"beat_slug"`
	Deadline    string   `json:"deadline"`
	Timestamp   string   `json:"timestamp"`
	Signature   string   `json:"signature"`
}

type claimBountyInput struct {
	BTCAddress string `json:"btc_address"`
	Note       string `json:"note"`
	Signature  string `json:"signature"`
}

type updateBountyInput struct {
	BTCAddress string             `json:"btc_address"`
	Status     model.BountyStatus `json:"status"`
	Signature  string             `json:"signature"`
}

// handleListBounties handles GET /v1/bounties.
func (s *NewsServer) handleListBounties(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := bounty.Filter{
		Status:  model.BountyStatus(q.Get("status")),
		Beat:    q.Get("beat"),
		Creator: q.Get("creator"),
		Sort:    q.Get("sort"),
		Limit:   queryInt(r, "limit"),
		Offset:  queryInt(r, "offset"),
	}
	for _, sk := range strings.Split(q.Get("skills"), ",") {
		if sk = strings.TrimSpace(sk); sk != "" {
			f.Skills = append(f.Skills, sk)
		}
	}
	page, err := s.bounties.List(r.Context(), f)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleCreateBounty handles POST /v1/bounties.
func (s *NewsServer) handleCreateBounty(w http.ResponseWriter, r *http.Request) {
	var in createBountyInput
	if !decodeBody(w, r, &in) {
		return
	}
	req := bounty.CreateRequest{
		Creator:     in.BTCAddress,
		CreatorName: in.CreatorName,
		Title:       in.Title,
		Description: in.Description,
		AmountSats:  in.AmountSats,
		Tags:        in.Tags,
		Skills:      in.Skills,
		BeatSlug:    in.BeatSlug,
		Signature:   in.Signature,
		CallerIP:    callerIP(r),
	}
	if in.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, in.Timestamp)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid timestamp (expected ISO 8601)")
			return
		}
		req.Timestamp = ts
	}
	if in.Deadline != "" {
		d, err := time.Parse(time.RFC3339, in.Deadline)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid deadline (expected ISO 8601)")
			return
		}
		req.Deadline = &d
	}
	b, err := s.bounties.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// handleBountyStats handles GET /v1/bounties/stats.
func (s *NewsServer) handleBountyStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.bounties.Stats(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleGetBounty handles GET /v1/bounties/{id}.
func (s *NewsServer) handleGetBounty(w http.ResponseWriter, r *http.Request) {
	d, err := s.bounties.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleClaimBounty handles POST /v1/bounties/{id}/claims.
func (s *NewsServer) handleClaimBounty(w http.ResponseWriter, r *http.Request) {
	var in claimBountyInput
	if !decodeBody(w, r, &in) {
		return
	}
	d, err := s.bounties.Claim(r.Context(), bounty.ClaimRequest{
		ID:        r.PathValue("id"),
		Agent:     in.BTCAddress,
		Note:      in.Note,
		Signature: in.Signature,
		CallerIP:  callerIP(r),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// handleUpdateBounty handles PATCH /v1/bounties/{id}.
func (s *NewsServer) handleUpdateBounty(w http.ResponseWriter, r *http.Request) {
	var in updateBountyInput
	if !decodeBody(w, r, &in) {
		return
	}
	b, err := s.bounties.UpdateStatus(r.Context(), bounty.UpdateRequest{
		ID:        r.PathValue("id"),
		Creator:   in.BTCAddress,
		Status:    in.Status,
		Signature: in.Signature,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}
