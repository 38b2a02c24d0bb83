package render

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/garagiste-app/garagiste/internal/signing"
)

// SnapshotLoader provides the denormalized document view. Load ignores the
// public draft restriction; Snapshot applies it.
type SnapshotLoader interface {
	Load(ctx context.Context, quoteID string) (*signing.PublicSnapshot, error)
	Snapshot(ctx context.Context, quoteID string) (*signing.PublicSnapshot, error)
}

type Service struct {
	loader SnapshotLoader
	client *Client
	group  singleflight.Group
	logger *slog.Logger
}

func NewService(loader SnapshotLoader, client *Client, logger *slog.Logger) *Service {
	return &Service{loader: loader, client: client, logger: logger}
}

// QuotePDF renders the operator-side PDF. Concurrent renders of the same
// quote collapse into a single Gotenberg call.
func (s *Service) QuotePDF(ctx context.Context, quoteID string) ([]byte, error) {
	return s.render(ctx, "op:"+quoteID, func(ctx context.Context) (*signing.PublicSnapshot, error) {
		return s.loader.Load(ctx, quoteID)
	})
}

// PublicQuotePDF renders the PDF for the public link, with the same draft
// masking as the rest of the public surface.
func (s *Service) PublicQuotePDF(ctx context.Context, quoteID string) ([]byte, error) {
	return s.render(ctx, "pub:"+quoteID, func(ctx context.Context) (*signing.PublicSnapshot, error) {
		return s.loader.Snapshot(ctx, quoteID)
	})
}

func (s *Service) render(ctx context.Context, key string, load func(context.Context) (*signing.PublicSnapshot, error)) ([]byte, error) {
	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		snap, err := load(ctx)
		if err != nil {
			return nil, err
		}
		html, err := QuoteHTML(snap)
		if err != nil {
			return nil, err
		}
		return s.client.RenderHTML(ctx, html)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("render deduplicated", "key", key)
	}
	return v.([]byte), nil
}
