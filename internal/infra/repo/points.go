package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/promotebya/sunbird-client-sub002/internal/domain"
	"github.com/promotebya/sunbird-client-sub002/internal/infra/docstore"
)

type pointsRecord struct {
	ID          string `json:"id"`
	PairID      string `json:"pairId"`
	UserID      string `json:"userId,omitempty"`
	Value       int    `json:"value"`
	Reason      string `json:"reason,omitempty"`
	CreatedAtMs int64  `json:"createdAtMs"`
}

// Points stores one document per event at pointsEvents/{eventId}.
type Points struct {
	store docstore.Store
}

// NewPoints creates the repository.
func NewPoints(s docstore.Store) *Points {
	return &Points{store: s}
}

func (p *Points) Append(ctx context.Context, ev domain.PointsEvent) error {
	doc, err := docstore.Encode(pointsRecord{
		ID:          ev.ID,
		PairID:      ev.PairID,
		UserID:      ev.UserID,
		Value:       ev.Value,
		Reason:      ev.Reason,
		CreatedAtMs: toMillis(ev.CreatedAt),
	})
	if err != nil {
		return err
	}
	if err := p.store.Set(ctx, CollPointsEvents, ev.ID, doc, docstore.Overwrite); err != nil {
		return fmt.Errorf("append points: %w", err)
	}
	return nil
}

func (p *Points) ListRange(ctx context.Context, pairID string, start, end time.Time) ([]domain.PointsEvent, error) {
	q := docstore.Query{OrderBy: "createdAtMs"}.
		Where("pairId", docstore.OpEq, pairID).
		Where("createdAtMs", docstore.OpGte, start.UnixMilli()).
		Where("createdAtMs", docstore.OpLt, end.UnixMilli())
	docs, err := p.store.Query(ctx, CollPointsEvents, q)
	if err != nil {
		return nil, fmt.Errorf("list points: %w", err)
	}

	out := make([]domain.PointsEvent, 0, len(docs))
	for _, d := range docs {
		var rec pointsRecord
		if err := docstore.Decode(d, &rec); err != nil {
			return nil, err
		}
		out = append(out, domain.PointsEvent{
			ID:        rec.ID,
			PairID:    rec.PairID,
			UserID:    rec.UserID,
			Value:     rec.Value,
			Reason:    rec.Reason,
			CreatedAt: time.UnixMilli(rec.CreatedAtMs).UTC(),
		})
	}
	return out, nil
}
