package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alfredjeanlab/newsdesk/internal/brief"
	"github.com/alfredjeanlab/newsdesk/internal/model"
	"github.com/alfredjeanlab/newsdesk/internal/payment"
)

type compileBriefInput struct {
	BTCAddress string `json:"btc_address"`
	Signature  string `json:"signature"`
	Hours      int    `json:"hours"`
}

type inscribeBriefInput struct {
	BTCAddress    string `json:"btc_address"`
	Signature     string `json:"signature"`
	InscriptionID string `json:"inscription_id"`
}

type briefResponse struct {
	*model.Brief
	Latest  bool             `json:"latest"`
	Archive []string         `json:"archive"`
	Payment *payment.Receipt `json:"payment,omitempty"`
}

// handleCompileBrief handles POST /v1/brief/compile.
func (s *NewsServer) handleCompileBrief(w http.ResponseWriter, r *http.Request) {
	var in compileBriefInput
	if !decodeBody(w, r, &in) {
		return
	}
	b, err := s.briefs.Compile(r.Context(), brief.CompileRequest{
		Requester: in.BTCAddress,
		Signature: in.Signature,
		Hours:     in.Hours,
		CallerIP:  callerIP(r),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// handleLatestBrief handles GET /v1/brief.
func (s *NewsServer) handleLatestBrief(w http.ResponseWriter, r *http.Request) {
	s.serveBrief(w, r, s.briefs.Latest)
}

// handleGetBrief handles GET /v1/brief/{date}.
func (s *NewsServer) handleGetBrief(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	s.serveBrief(w, r, func(ctx context.Context) (*model.Brief, error) {
		return s.briefs.Get(ctx, date)
	})
}

// serveBrief loads a brief, collects payment for it in paid mode, and writes
// it as JSON or, with format=text, as the plain text edition.
func (s *NewsServer) serveBrief(w http.ResponseWriter, r *http.Request, load func(context.Context) (*model.Brief, error)) {
	ctx := r.Context()

	var token string
	if s.paid {
		if token = payment.TokenFrom(r.Header); token == "" {
			s.writePaymentRequired(w)
			return
		}
	}

	b, err := load(ctx)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var receipt *payment.Receipt
	if s.paid {
		if receipt, err = s.collect(ctx, token, b); err != nil {
			writeDomainError(w, r, err)
			return
		}
		w.Header().Set(payment.HeaderPaymentResponse, payment.EncodeReceipt(receipt))
	}

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(b.Text))
		return
	}

	dates, err := s.briefs.Archive(ctx)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, briefResponse{
		Brief:   b,
		Latest:  s.briefs.IsToday(b),
		Archive: dates,
		Payment: receipt,
	})
}

// collect settles token and credits the brief's correspondents. The payment
// has been taken once settlement succeeds, so a failed credit is logged
// rather than withholding the brief; a reused txid is still refused.
func (s *NewsServer) collect(ctx context.Context, token string, b *model.Brief) (*payment.Receipt, error) {
	if s.settler == nil {
		return nil, model.Upstream("Payment settlement is not configured")
	}
	receipt, err := s.settler.Settle(ctx, token, s.requirement)
	if err != nil {
		return nil, err
	}
	if _, err := s.revenue.Credit(ctx, b, receipt.TxID); err != nil {
		if model.IsKind(err, model.KindConflict) {
			return nil, err
		}
		slog.Error("revenue credit failed", "date", b.Date, "txid", receipt.TxID, "err", err)
	}
	return receipt, nil
}

func (s *NewsServer) writePaymentRequired(w http.ResponseWriter) {
	w.Header().Set(payment.HeaderPaymentRequired, s.requirement.EncodeHeader())
	writeJSON(w, http.StatusPaymentRequired, s.requirement.Challenge(
		"Reading the daily brief requires payment. Retry with the X-PAYMENT header."))
}

// handleListBriefs handles GET /v1/briefs.
func (s *NewsServer) handleListBriefs(w http.ResponseWriter, r *http.Request) {
	dates, err := s.briefs.Archive(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"briefs": dates, "total": len(dates)})
}

// handleInscribeBrief handles POST /v1/brief/{date}/inscribe.
func (s *NewsServer) handleInscribeBrief(w http.ResponseWriter, r *http.Request) {
	var in inscribeBriefInput
	if !decodeBody(w, r, &in) {
		return
	}
	date := r.PathValue("date")
	b, err := s.briefs.Inscribe(r.Context(), brief.InscribeRequest{
		Date:          date,
		Inscriber:     in.BTCAddress,
		Signature:     in.Signature,
		InscriptionID: in.InscriptionID,
		CallerIP:      callerIP(r),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"date":         b.Date,
		"inscription":  b.Inscription,
		"ordinal_link": brief.OrdinalsURL + b.Inscription.InscriptionID,
	})
}

// handleGetInscription handles GET /v1/brief/{date}/inscription.
func (s *NewsServer) handleGetInscription(w http.ResponseWriter, r *http.Request) {
	st, err := s.briefs.Inscription(r.Context(), r.PathValue("date"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
