package brief

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alfredjeanlab/newsdesk/internal/events"
	"github.com/alfredjeanlab/newsdesk/internal/kv"
	"github.com/alfredjeanlab/newsdesk/internal/model"
	"github.com/alfredjeanlab/newsdesk/internal/ratelimit"
)

// OrdinalsURL is the explorer base used for inscription links.
const OrdinalsURL = "https://ordinals.com/inscription/"

// Archive returns the dates that have a brief, newest first.
func (c *Compiler) Archive(ctx context.Context) ([]string, error) {
	dates, err := c.index.List(ctx, kv.KeyBriefsIndex)
	if err != nil {
		return nil, fmt.Errorf("briefs index: %w", err)
	}
	if dates == nil {
		dates = []string{}
	}
	return dates, nil
}

// Latest returns today's brief if one was compiled, else the newest.
func (c *Compiler) Latest(ctx context.Context) (*model.Brief, error) {
	dates, err := c.Archive(ctx)
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		return nil, model.NotFound("No briefs compiled yet").
			WithHint("POST /v1/brief/compile to compile the first brief")
	}
	date := dates[0]
	today := model.DateOf(c.now())
	for _, d := range dates {
		if d == today {
			date = today
			break
		}
	}
	b, err := c.load(ctx, date)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("brief %s is indexed but missing", date)
	}
	return b, nil
}

// IsToday reports whether the brief is for the current UTC date.
func (c *Compiler) IsToday(b *model.Brief) bool {
	return b.Date == model.DateOf(c.now())
}

// Get returns the brief for date.
func (c *Compiler) Get(ctx context.Context, date string) (*model.Brief, error) {
	if !model.ValidDate(date) {
		return nil, model.Invalid("Invalid date format").WithHint("Use YYYY-MM-DD, e.g. GET /v1/brief/2026-02-26")
	}
	b, err := c.load(ctx, date)
	if err != nil {
		return nil, err
	}
	if b != nil {
		return b, nil
	}

	dates, err := c.Archive(ctx)
	if err != nil {
		return nil, err
	}
	e := model.NotFound("No brief for %s", date)
	if len(dates) == 0 {
		return nil, e.WithHint("No briefs have been compiled yet. POST /v1/brief/compile to compile one.")
	}
	hint := "Available dates: " + strings.Join(dates[:min(len(dates), 10)], ", ")
	if len(dates) > 10 {
		hint += "..."
	}
	return nil, e.WithHint(hint)
}

// InscribeRequest reports that a brief has been inscribed on Bitcoin.
type InscribeRequest struct {
	Date          string
	Inscriber     string
	Signature     string
	InscriptionID string
	CallerIP      string
}

// Inscribe records the one inscription a brief may carry.
func (c *Compiler) Inscribe(ctx context.Context, req InscribeRequest) (*model.Brief, error) {
	if !model.ValidDate(req.Date) {
		return nil, model.Invalid("Invalid date format").WithHint("Use YYYY-MM-DD")
	}
	if err := c.limiter.Enforce(ctx, ratelimit.InscribePolicy, req.CallerIP); err != nil {
		return nil, err
	}
	if req.Inscriber == "" || req.Signature == "" || req.InscriptionID == "" {
		return nil, model.Invalid("Missing required fields: btc_address, signature, inscription_id")
	}
	if err := model.CheckAddress(req.Inscriber); err != nil {
		return nil, err
	}
	if err := model.CheckSignature(req.Signature, model.InscribeMessage(req.Date, req.Inscriber)); err != nil {
		return nil, err
	}
	if !model.ValidInscriptionID(req.InscriptionID) {
		return nil, model.Invalid("Invalid inscription ID format").
			WithHint("Expected {txid}i{index} (e.g. abc123...i0) or numeric ordinal number")
	}

	b, err := c.load(ctx, req.Date)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, model.NotFound("No brief found for %s", req.Date)
	}
	if b.Inscription != nil {
		return nil, model.Conflict("Brief for %s is already inscribed (%s)", req.Date, b.Inscription.InscriptionID)
	}

	b.Inscription = &model.Inscription{
		InscriptionID: req.InscriptionID,
		InscribedBy:   req.Inscriber,
		InscribedAt:   c.now().UTC(),
		Signature:     req.Signature,
	}
	if err := kv.PutJSON(ctx, c.store, kv.BriefKey(req.Date), b, 0); err != nil {
		return nil, fmt.Errorf("save brief: %w", err)
	}

	events.Emit(ctx, c.publisher, events.TopicBriefInscribed, events.BriefInscribed{Date: req.Date, Inscription: b.Inscription})
	return b, nil
}

// InscriptionStatus describes whether a brief has been inscribed.
type InscriptionStatus struct {
	Date          string `json:"date"`
	Inscribed     bool   `json:"inscribed"`
	InscriptionID string `json:"inscription_id,omitempty"`
	OrdinalLink   string `json:"ordinal_link,omitempty"`
	InscribedBy   string `json:"inscribed_by,omitempty"`
	InscribedAt   string `json:"inscribed_at,omitempty"`
}

// Inscription returns the inscription status of the brief for date.
func (c *Compiler) Inscription(ctx context.Context, date string) (*InscriptionStatus, error) {
	if !model.ValidDate(date) {
		return nil, model.Invalid("Invalid date format").WithHint("Use YYYY-MM-DD")
	}
	b, err := c.load(ctx, date)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, model.NotFound("No brief found for %s", date)
	}
	st := &InscriptionStatus{Date: date}
	if ins := b.Inscription; ins != nil {
		st.Inscribed = true
		st.InscriptionID = ins.InscriptionID
		st.OrdinalLink = OrdinalsURL + ins.InscriptionID
		st.InscribedBy = ins.InscribedBy
		st.InscribedAt = ins.InscribedAt.Format(time.RFC3339)
	}
	return st, nil
}

func (c *Compiler) load(ctx context.Context, date string) (*model.Brief, error) {
	var b model.Brief
	found, err := kv.GetJSON(ctx, c.store, kv.BriefKey(date), &b)
	if err != nil {
		return nil, fmt.Errorf("load brief: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &b, nil
}
