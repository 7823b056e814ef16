package audit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLister struct {
	entries    []Entry
	lastLimit  int
	lastOffset int
}

func (s *stubLister) List(ctx context.Context, tenant uuid.UUID, filters Filters, limit, offset int) ([]Entry, error) {
	s.lastLimit = limit
	s.lastOffset = offset
	if offset >= len(s.entries) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.entries) {
		end = len(s.entries)
	}
	return s.entries[offset:end], nil
}

func seedEntries(n int) []Entry {
	out := make([]Entry, n)
	for i := range out {
		out[i] = Entry{
			ID:        uuid.New(),
			ActorID:   "actor",
			Action:    "animal.update",
			CreatedAt: time.Now().UTC(),
		}
	}
	return out
}

func TestTimelineDefaultPageSize(t *testing.T) {
	lister := &stubLister{entries: seedEntries(25)}
	svc := NewService(lister)

	page, err := svc.Timeline(context.Background(), uuid.New(), Filters{})
	require.NoError(t, err)
	assert.Len(t, page.Entries, 20)
	assert.True(t, page.HasNext)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 21, lister.lastLimit, "fetches one extra row to detect the next page")
}

func TestTimelineLastPage(t *testing.T) {
	lister := &stubLister{entries: seedEntries(25)}
	svc := NewService(lister)

	page, err := svc.Timeline(context.Background(), uuid.New(), Filters{Page: 2})
	require.NoError(t, err)
	assert.Len(t, page.Entries, 5)
	assert.False(t, page.HasNext)
	assert.Equal(t, 20, lister.lastOffset)
}

func TestTimelineClampsPageSize(t *testing.T) {
	lister := &stubLister{entries: seedEntries(5)}
	svc := NewService(lister)

	_, err := svc.Timeline(context.Background(), uuid.New(), Filters{PageSize: 5000})
	require.NoError(t, err)
	assert.Equal(t, 101, lister.lastLimit)
}
