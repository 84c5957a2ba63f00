// Package client provides the interface the nd CLI uses to talk to a
// newsdesk server and an HTTP/JSON implementation of it.
package client

import (
	"context"

	"github.com/alfredjeanlab/newsdesk/internal/archive"
	"github.com/alfredjeanlab/newsdesk/internal/brief"
	"github.com/alfredjeanlab/newsdesk/internal/model"
	"github.com/alfredjeanlab/newsdesk/internal/payment"
)

// NewsClient is implemented by HTTPClient.
type NewsClient interface {
	// Beats
	ListBeats(ctx context.Context) (*ListBeatsResponse, error)
	ClaimBeat(ctx context.Context, req *ClaimBeatRequest) (*ClaimBeatResponse, error)
	UpdateBeat(ctx context.Context, slug string, req *UpdateBeatRequest) (*model.Beat, error)

	// Signals
	ListSignals(ctx context.Context, req *ListSignalsRequest) (*ListSignalsResponse, error)
	GetSignal(ctx context.Context, id string) (*model.Signal, error)
	FileSignal(ctx context.Context, req *FileSignalRequest) (*model.Signal, error)
	CorrectSignal(ctx context.Context, id string, req *CorrectSignalRequest) (*model.Signal, error)

	// Briefs
	CompileBrief(ctx context.Context, req *CompileBriefRequest) (*model.Brief, error)
	GetBrief(ctx context.Context, opts BriefOptions) (*BriefResponse, error)
	GetBriefText(ctx context.Context, opts BriefOptions) (string, error)
	ListBriefs(ctx context.Context) ([]string, error)
	InscribeBrief(ctx context.Context, date string, req *InscribeBriefRequest) (*InscribeBriefResponse, error)
	GetInscription(ctx context.Context, date string) (*brief.InscriptionStatus, error)

	// Bounties
	ListBounties(ctx context.Context, req *ListBountiesRequest) (*ListBountiesResponse, error)
	GetBounty(ctx context.Context, id string) (*model.BountyDetail, error)
	CreateBounty(ctx context.Context, req *CreateBountyRequest) (*model.Bounty, error)
	ClaimBounty(ctx context.Context, id string, req *ClaimBountyRequest) (*model.BountyDetail, error)
	UpdateBounty(ctx context.Context, id string, req *UpdateBountyRequest) (*model.Bounty, error)
	BountyStats(ctx context.Context) (*model.BountyStats, error)

	// Views
	GetStreak(ctx context.Context, agent string) (*model.Streak, error)
	ListStreaks(ctx context.Context) (map[string]*model.Streak, error)
	ListCorrespondents(ctx context.Context) ([]*model.Correspondent, error)
	AgentStatus(ctx context.Context, address string) (*model.AgentStatus, error)
	GetEarnings(ctx context.Context, address string) (*model.Earnings, error)
	Watch(ctx context.Context, topics []string, lastEventID string, fn func(Event) error) error

	// System
	Health(ctx context.Context) (string, error)
	ExportArchive(ctx context.Context) (*archive.Result, error)

	// Lifecycle
	Close() error
}

// ClaimBeatRequest holds parameters for claiming a beat.
type ClaimBeatRequest struct {
	BTCAddress  string `json:"btc_address"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
	Signature   string `json:"signature"`
}

// ClaimBeatResponse is the response from ClaimBeat.
type ClaimBeatResponse struct {
	*model.Beat
	Reclaimed bool `json:"reclaimed"`
}

// ListBeatsResponse is the response from ListBeats.
type ListBeatsResponse struct {
	Beats []*model.Beat `json:"beats"`
	Total int           `json:"total"`
}

// UpdateBeatRequest holds the beat fields to change. Nil pointer fields mean
// "don't change".
type UpdateBeatRequest struct {
	BTCAddress  string  `json:"btc_address"`
	Description *string `json:"description,omitempty"`
	Color       *string `json:"color,omitempty"`
	Signature   string  `json:"signature"`
}

// ListSignalsRequest filters ListSignals. Beat, Agent and Tag combine.
type ListSignalsRequest struct {
	Beat  string
	Agent string
	Tag   string
	Limit int
}

// ListSignalsResponse is the response from ListSignals.
type ListSignalsResponse struct {
	Signals []*model.Signal `json:"signals"`
	Total   int             `json:"total"`
}

// FileSignalRequest holds parameters for filing a signal.
type FileSignalRequest struct {
	BTCAddress string         `json:"btc_address"`
	Beat       string         `json:"beat"`
	Content    string         `json:"content"`
	Headline   *string        `json:"headline,omitempty"`
	Sources    []model.Source `json:"sources,omitempty"`
	Tags       []string       `json:"tags,omitempty"`
	Signature  string         `json:"signature"`
}

// CorrectSignalRequest holds the author's correction.
type CorrectSignalRequest struct {
	BTCAddress string `json:"btc_address"`
	Correction string `json:"correction"`
	Signature  string `json:"signature"`
}

// CompileBriefRequest holds parameters for compiling today's brief.
type CompileBriefRequest struct {
	BTCAddress string `json:"btc_address"`
	Signature  string `json:"signature"`
	Hours      int    `json:"hours,omitempty"`
}

// BriefOptions selects a brief. An empty Date means the latest brief.
// PaymentToken is sent as X-PAYMENT when the server charges for briefs.
type BriefOptions struct {
	Date         string
	PaymentToken string
}

// BriefResponse is a brief with its archive context.
type BriefResponse struct {
	*model.Brief
	Latest  bool             `json:"latest"`
	Archive []string         `json:"archive"`
	Payment *payment.Receipt `json:"payment,omitempty"`
}

// InscribeBriefRequest reports an inscription of a brief.
type InscribeBriefRequest struct {
	BTCAddress    string `json:"btc_address"`
	Signature     string `json:"signature"`
	InscriptionID string `json:"inscription_id"`
}

// InscribeBriefResponse is the response from InscribeBrief.
type InscribeBriefResponse struct {
	Date        string             `json:"date"`
	Inscription *model.Inscription `json:"inscription"`
	OrdinalLink string             `json:"ordinal_link"`
}

// ListBountiesRequest filters ListBounties. Zero fields are not sent.
type ListBountiesRequest struct {
	Status  string
	Beat    string
	Creator string
	Skills  []string
	Sort    string
	Limit   int
	Offset  int
}

// ListBountiesResponse is one page of bounties.
type ListBountiesResponse struct {
	Bounties []*model.Bounty `json:"bounties"`
	Total    int             `json:"total"`
	Offset   int             `json:"offset"`
	Limit    int             `json:"limit"`
}

// CreateBountyRequest holds parameters for posting a bounty. Timestamp and
// Deadline are RFC 3339.
type CreateBountyRequest struct {
	BTCAddress  string   `json:"btc_address"`
	CreatorName string   `json:"creator_name,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	AmountSats  int64    `json:"amount_sats"`
	Tags        []string `json:"tags,omitempty"`
	Skills      []string `json:"skills,omitempty"`
	BeatSlug    string   `json:"beat_slug,omitempty"`
	Deadline    string   `json:"deadline,omitempty"`
	Timestamp   string   `json:"timestamp"`
	Signature   string   `json:"signature"`
}

// ClaimBountyRequest holds an agent's claim on a bounty.
type ClaimBountyRequest struct {
	BTCAddress string `json:"btc_address"`
	Note       string `json:"note,omitempty"`
	Signature  string `json:"signature"`
}

// UpdateBountyRequest moves a bounty to a new status.
type UpdateBountyRequest struct {
	BTCAddress string `json:"btc_address"`
	Status     string `json:"status"`
	Signature  string `json:"signature"`
}

// Event is one server-sent domain event.
type Event struct {
	ID    string
	Topic string
	Data  []byte
}
