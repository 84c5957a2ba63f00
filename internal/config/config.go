package config

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// Brief access modes.
const (
	AccessFree = "free"
	AccessPaid = "paid"
)

// Payment defaults.
const (
	DefaultRelayURL  = "https://x402-relay.aibtc.com"
	DefaultAsset     = "SM3VDXK3WZZSA84XXFKAFAF15NNZX32CTSG82JFQ4.sbtc-token"
	DefaultRecipient = "SP236MA9EWHF1DN3X84EQAJEW7R6BDZZ93K3EMC3C"
)

type Config struct {
	StoreURL  string // NEWSDESK_STORE_URL (default "memory://")
	HTTPAddr  string // NEWSDESK_HTTP_ADDR (default ":8080")
	GRPCAddr  string // NEWSDESK_GRPC_ADDR (default ":9090"; "off" = disabled)
	NATSURL   string // NEWSDESK_NATS_URL (optional, empty = no events)
	AuthToken string // NEWSDESK_AUTH_TOKEN (optional, guards operator routes)
	LogLevel  slog.Level

	// Brief access and revenue
	BriefAccess     string // NEWSDESK_BRIEF_ACCESS ("free" or "paid")
	BriefPriceSats  int64  // NEWSDESK_BRIEF_PRICE_SATS (default 1000)
	ShareBPS        int64  // NEWSDESK_CORRESPONDENT_SHARE (default 0.7, kept in basis points)
	PaymentRelayURL string // NEWSDESK_PAYMENT_RELAY_URL
	PaymentAsset    string // NEWSDESK_PAYMENT_ASSET
	PaymentPayTo    string // NEWSDESK_PAYMENT_RECIPIENT

	// Archive settings
	ArchiveInterval   time.Duration // NEWSDESK_ARCHIVE_INTERVAL (default 0 = disabled)
	ArchiveS3Bucket   string        // NEWSDESK_ARCHIVE_S3_BUCKET (enables S3 when set)
	ArchiveS3Endpoint string        // NEWSDESK_ARCHIVE_S3_ENDPOINT (custom endpoint for MinIO)
	ArchiveS3Region   string        // NEWSDESK_ARCHIVE_S3_REGION (default "us-east-1")
	ArchiveS3Key      string        // NEWSDESK_ARCHIVE_S3_KEY (default "newsdesk/{date}.jsonl")
	ArchiveGitRepo    string        // NEWSDESK_ARCHIVE_GIT_REPO (enables git when set; path to clone)
	ArchiveGitFile    string        // NEWSDESK_ARCHIVE_GIT_FILE (default "newsdesk.jsonl")
	ArchiveGitBranch  string        // NEWSDESK_ARCHIVE_GIT_BRANCH (default "main")
}

// Paid reports whether brief reads require payment.
func (c *Config) Paid() bool { return c.BriefAccess == AccessPaid }

func Load() (*Config, error) {
	c := &Config{
		StoreURL:          envOrDefault("NEWSDESK_STORE_URL", "memory://"),
		HTTPAddr:          envOrDefault("NEWSDESK_HTTP_ADDR", ":8080"),
		GRPCAddr:          envOrDefault("NEWSDESK_GRPC_ADDR", ":9090"),
		NATSURL:           os.Getenv("NEWSDESK_NATS_URL"),
		AuthToken:         os.Getenv("NEWSDESK_AUTH_TOKEN"),
		BriefAccess:       strings.ToLower(envOrDefault("NEWSDESK_BRIEF_ACCESS", AccessFree)),
		PaymentRelayURL:   envOrDefault("NEWSDESK_PAYMENT_RELAY_URL", DefaultRelayURL),
		PaymentAsset:      envOrDefault("NEWSDESK_PAYMENT_ASSET", DefaultAsset),
		PaymentPayTo:      envOrDefault("NEWSDESK_PAYMENT_RECIPIENT", DefaultRecipient),
		ArchiveS3Bucket:   os.Getenv("NEWSDESK_ARCHIVE_S3_BUCKET"),
		ArchiveS3Endpoint: os.Getenv("NEWSDESK_ARCHIVE_S3_ENDPOINT"),
		ArchiveS3Region:   envOrDefault("NEWSDESK_ARCHIVE_S3_REGION", "us-east-1"),
		ArchiveS3Key:      envOrDefault("NEWSDESK_ARCHIVE_S3_KEY", "newsdesk/{date}.jsonl"),
		ArchiveGitRepo:    os.Getenv("NEWSDESK_ARCHIVE_GIT_REPO"),
		ArchiveGitFile:    envOrDefault("NEWSDESK_ARCHIVE_GIT_FILE", "newsdesk.jsonl"),
		ArchiveGitBranch:  envOrDefault("NEWSDESK_ARCHIVE_GIT_BRANCH", "main"),
	}

	if c.GRPCAddr == "off" {
		c.GRPCAddr = ""
	}

	if c.BriefAccess != AccessFree && c.BriefAccess != AccessPaid {
		return nil, fmt.Errorf("NEWSDESK_BRIEF_ACCESS: must be %q or %q, got %q", AccessFree, AccessPaid, c.BriefAccess)
	}

	price, err := strconv.ParseInt(envOrDefault("NEWSDESK_BRIEF_PRICE_SATS", "1000"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("NEWSDESK_BRIEF_PRICE_SATS: %w", err)
	}
	if price <= 0 {
		return nil, fmt.Errorf("NEWSDESK_BRIEF_PRICE_SATS: must be positive, got %d", price)
	}
	c.BriefPriceSats = price

	share, err := strconv.ParseFloat(envOrDefault("NEWSDESK_CORRESPONDENT_SHARE", "0.7"), 64)
	if err != nil {
		return nil, fmt.Errorf("NEWSDESK_CORRESPONDENT_SHARE: %w", err)
	}
	if share < 0 || share > 1 {
		return nil, fmt.Errorf("NEWSDESK_CORRESPONDENT_SHARE: must be within [0,1], got %v", share)
	}
	c.ShareBPS = int64(math.Round(share * 10000))

	if s := envOrDefault("NEWSDESK_ARCHIVE_INTERVAL", "0"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("NEWSDESK_ARCHIVE_INTERVAL: %w", err)
		}
		c.ArchiveInterval = d
	}

	if err := c.LogLevel.UnmarshalText([]byte(envOrDefault("NEWSDESK_LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("NEWSDESK_LOG_LEVEL: %w", err)
	}

	return c, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
