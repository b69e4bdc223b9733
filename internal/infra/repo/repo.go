// Package repo implements the domain repositories on a docstore.Store.
//
// Stored documents use camelCase field names and store instants as Unix
// milliseconds in fields ending in Ms.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/promotebya/sunbird-client-sub002/internal/app/engagement"
	"github.com/promotebya/sunbird-client-sub002/internal/infra/docstore"
)

// Collection names.
const (
	CollWeeklyChallenges  = "weeklyChallenges"
	CollPairWeekly        = "pairWeekly"
	CollPairWeeklyHistory = "pairWeeklyHistory"
	CollStreaks           = "streaks"
	CollPointsEvents      = "pointsEvents"
)

// New builds every engine repository over s.
func New(s docstore.Store) engagement.Repos {
	return engagement.Repos{
		WeeklyState: NewWeeklyStates(s),
		Streaks:     NewStreaks(s),
		PairWeekly:  NewPairWeekly(s),
		Points:      NewPoints(s),
	}
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func isNotFound(err error) bool {
	return errors.Is(err, docstore.ErrNotFound)
}

// mutate decodes the stored document into a T, lets fn change it and
// encodes it back. fn reports whether to write; false leaves the store as is.
func mutate[T any](ctx context.Context, s docstore.Store, coll, key string, fn func(rec *T, exists bool) (bool, error)) (T, error) {
	var out T
	_, err := s.Update(ctx, coll, key, func(cur docstore.Doc, exists bool) (docstore.Doc, error) {
		var rec T
		if exists {
			if err := docstore.Decode(cur, &rec); err != nil {
				return nil, err
			}
		}
		write, err := fn(&rec, exists)
		if err != nil {
			return nil, err
		}
		out = rec
		if !write {
			return nil, nil
		}
		return docstore.Encode(rec)
	})
	return out, err
}

// load decodes one stored document. found is false for a missing document.
func load[T any](ctx context.Context, s docstore.Store, coll, key string) (rec T, found bool, err error) {
	doc, err := s.Get(ctx, coll, key)
	if isNotFound(err) {
		return rec, false, nil
	}
	if err != nil {
		return rec, false, err
	}
	if err := docstore.Decode(doc, &rec); err != nil {
		return rec, false, err
	}
	return rec, true, nil
}
