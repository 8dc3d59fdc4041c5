package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultNewsPollInterval is how often NewsSource re-polls CryptoPanic.
const DefaultNewsPollInterval = 60 * time.Second

// cryptoPanicEnvelope is the relevant subset of CryptoPanic's
// /api/v1/posts/ response.
type cryptoPanicEnvelope struct {
	Results []cryptoPanicPost `json:"results"`
}

type cryptoPanicPost struct {
	ID          int64                `json:"id"`
	Title       string               `json:"title"`
	URL         string               `json:"url"`
	PublishedAt string               `json:"published_at"`
	Source      cryptoPanicSource    `json:"source"`
	Currencies  []cryptoPanicCurrency `json:"currencies"`
}

type cryptoPanicSource struct {
	Title string `json:"title"`
}

type cryptoPanicCurrency struct {
	Code string `json:"code"`
}

// NewsSource polls CryptoPanic's public news feed, gated on an API key
// (present only when --sources includes "news", per §6.9). It is the
// implementation of the original's news_collector.rs, grounded on the
// resty client shape used throughout this engine's REST integrations
// (internal/dataapi, internal/discovery, internal/klines).
type NewsSource struct {
	APIKey       string
	PollInterval time.Duration
	Logger       *slog.Logger

	http     *resty.Client
	seen     map[int64]bool
}

// NewNewsSource builds a NewsSource against CryptoPanic's public API.
func NewNewsSource(apiKey string, logger *slog.Logger) *NewsSource {
	return &NewsSource{
		APIKey: apiKey,
		Logger: logger.With("component", "news_source"),
		http:   resty.New().SetBaseURL("https://cryptopanic.com/api/v1").SetTimeout(10 * time.Second),
		seen:   make(map[int64]bool),
	}
}

func (s *NewsSource) Run(ctx context.Context, pub Publisher) error {
	if s.APIKey == "" {
		return fmt.Errorf("collector: news source enabled without CRYPTOPANIC_API_KEY")
	}

	interval := s.PollInterval
	if interval <= 0 {
		interval = DefaultNewsPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.poll(ctx, pub); err != nil {
			s.Logger.Warn("news poll failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *NewsSource) poll(ctx context.Context, pub Publisher) error {
	var envelope cryptoPanicEnvelope
	resp, err := s.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"auth_token": s.APIKey,
			"public":     "true",
			"currencies": "BTC,ETH,SOL,XRP",
		}).
		SetResult(&envelope).
		Get("/posts/")
	if err != nil {
		return fmt.Errorf("news source: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("news source: status %d: %s", resp.StatusCode(), resp.String())
	}

	for _, post := range envelope.Results {
		if s.seen[post.ID] {
			continue
		}
		s.seen[post.ID] = true

		currencies := make([]string, 0, len(post.Currencies))
		for _, c := range post.Currencies {
			currencies = append(currencies, c.Code)
		}

		pub.Publish(Record{
			Kind:        KindNews,
			TimestampMs: time.Now().UnixMilli(),
			Payload: NewsRecord{
				ID:          post.ID,
				Title:       post.Title,
				URL:         post.URL,
				Source:      post.Source.Title,
				PublishedAt: post.PublishedAt,
				Currencies:  currencies,
			},
		})
	}
	return nil
}
