package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	appLog "meetcal/internal/log"
	"meetcal/internal/model"
)

// Query adapts a team filter into a Store call. A failing store is treated as
// an empty result: the generator then reports no feed, and retrying is left
// to the store.
type Query struct {
	store Store
}

func NewQuery(s Store) *Query {
	return &Query{store: s}
}

// Fetch never returns an error; see Query.
func (q *Query) Fetch(ctx context.Context, team string) []model.Meeting {
	team = strings.TrimSpace(team)
	meetings, err := q.store.Meetings(ctx, team)
	if err != nil {
		if !errors.Is(err, model.ErrStoreUnavailable) {
			err = fmt.Errorf("%w: %w", model.ErrStoreUnavailable, err)
		}
		appLog.Error("store: fetch failed", fmt.Errorf("%w: %w", model.ErrNoRecords, err), "team", team)
		return nil
	}
	if len(meetings) == 0 {
		appLog.Debug("store: no meetings", "team", team, "err", model.ErrNoRecords.Error())
	}
	return meetings
}
