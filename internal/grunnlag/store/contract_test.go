package store_test

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grunnlag/internal/grunnlag/models"
	"grunnlag/pkg/domain"
	"grunnlag/pkg/platform/sentinel"
	"grunnlag/pkg/testutil"
)

type ledger interface {
	Append(ctx context.Context, caseID domain.CaseID, fact models.Fact) (int64, error)
	CurrentEventsFor(ctx context.Context, caseID domain.CaseID) ([]models.FactEvent, error)
	EventsFor(ctx context.Context, caseID domain.CaseID, types ...models.FactType) ([]models.FactEvent, error)
	LatestSequence(ctx context.Context, caseID domain.CaseID) (int64, error)
}

// runLedgerContract exercises the behaviour every ledger implementation must
// share. newLedger must return an empty ledger.
func runLedgerContract(t *testing.T, newLedger func(t *testing.T) ledger) {
	ctx := context.Background()

	t.Run("sequence numbers start at 1 and have no gaps per case", func(t *testing.T) {
		l := newLedger(t)
		for want := int64(1); want <= 3; want++ {
			seq, err := l.Append(ctx, 1, testutil.Name(testutil.Applicant, "A", "One"))
			require.NoError(t, err)
			assert.Equal(t, want, seq)
		}
		seq, err := l.Append(ctx, 2, testutil.Language("NB"))
		require.NoError(t, err)
		assert.Equal(t, int64(1), seq, "cases are numbered independently")

		latest, err := l.LatestSequence(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(3), latest)
	})

	t.Run("unknown case has no rows", func(t *testing.T) {
		l := newLedger(t)
		latest, err := l.LatestSequence(ctx, 99)
		require.NoError(t, err)
		assert.Zero(t, latest)

		events, err := l.CurrentEventsFor(ctx, 99)
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("current rows hide superseded constant facts per person", func(t *testing.T) {
		l := newLedger(t)
		facts := []models.Fact{
			testutil.Name(testutil.Applicant, "A", "One"),
			testutil.BirthDate(testutil.Applicant, "1980-01-01"),
			testutil.BirthDate(testutil.Deceased, "1950-05-05"),
			testutil.Name(testutil.Applicant, "B", "Two"),
			testutil.Language("NB"),
			testutil.Language("NN"),
		}
		for _, f := range facts {
			_, err := l.Append(ctx, 1, f)
			require.NoError(t, err)
		}

		current, err := l.CurrentEventsFor(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, []int64{2, 3, 4, 6}, sequences(current))
		assert.Equal(t, facts[3].ID, current[2].Fact.ID)

		history, err := l.EventsFor(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, history, len(facts), "history keeps every row")
	})

	t.Run("periodized rows are never superseded", func(t *testing.T) {
		l := newLedger(t)
		for _, f := range []models.Fact{
			testutil.Address(testutil.Applicant, "Storgata 1", "2020-01-01", "2020-06-01"),
			testutil.Address(testutil.Applicant, "Lillegata 2", "2020-06-02", ""),
		} {
			_, err := l.Append(ctx, 1, f)
			require.NoError(t, err)
		}

		current, err := l.CurrentEventsFor(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2}, sequences(current))
	})

	t.Run("a constant row followed by a periodized row stays visible", func(t *testing.T) {
		l := newLedger(t)
		constant := models.NewConstantFact(models.FactTypeAddress, testutil.Applicant, models.AddressValue{Lines: []string{"x"}}, testutil.Source())
		_, err := l.Append(ctx, 1, constant)
		require.NoError(t, err)
		_, err = l.Append(ctx, 1, testutil.Address(testutil.Applicant, "y", "2020-01-01", ""))
		require.NoError(t, err)

		current, err := l.CurrentEventsFor(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, current, 2, "both kinds must reach the projection so the mix is detected")
	})

	t.Run("history can be filtered by fact type", func(t *testing.T) {
		l := newLedger(t)
		for _, f := range []models.Fact{
			testutil.Name(testutil.Applicant, "A", "One"),
			testutil.Language("NB"),
			testutil.BirthDate(testutil.Applicant, "1980-01-01"),
		} {
			_, err := l.Append(ctx, 1, f)
			require.NoError(t, err)
		}

		events, err := l.EventsFor(ctx, 1, models.FactTypeName, models.FactTypeBirthDate)
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 3}, sequences(events))
	})

	t.Run("stored facts round-trip unchanged", func(t *testing.T) {
		l := newLedger(t)
		fact := testutil.Address(testutil.Applicant, "Storgata 1", "2020-01-01", "2020-06-01")
		fact.Metadata = json.RawMessage(`{"job":"migration"}`)
		_, err := l.Append(ctx, 1, fact)
		require.NoError(t, err)

		events, err := l.EventsFor(ctx, 1)
		require.NoError(t, err)
		require.Len(t, events, 1)
		got := events[0]
		assert.Equal(t, domain.CaseID(1), got.CaseID)
		assert.Equal(t, fact.ID, got.Fact.ID)
		assert.Equal(t, fact.Type, got.Fact.Type)
		assert.Equal(t, fact.PersonID, got.Fact.PersonID)
		assert.Equal(t, fact.Value, got.Fact.Value)
		assert.Equal(t, fact.Period, got.Fact.Period)
		assert.True(t, fact.Source.CapturedAt.Equal(got.Fact.Source.CapturedAt))
		assert.Equal(t, fact.Source.Kind, got.Fact.Source.Kind)
		assert.JSONEq(t, string(fact.Metadata), string(got.Fact.Metadata))
	})

	t.Run("duplicate fact id is a conflict", func(t *testing.T) {
		l := newLedger(t)
		fact := testutil.Language("NB")
		_, err := l.Append(ctx, 1, fact)
		require.NoError(t, err)

		_, err = l.Append(ctx, 2, fact)
		require.ErrorIs(t, err, sentinel.ErrConflict)
	})

	t.Run("invalid facts are rejected before writing", func(t *testing.T) {
		l := newLedger(t)
		_, err := l.Append(ctx, 1, models.Fact{})
		require.Error(t, err)

		latest, err := l.LatestSequence(ctx, 1)
		require.NoError(t, err)
		assert.Zero(t, latest)
	})

	t.Run("concurrent appends to one case never share a number", func(t *testing.T) {
		l := newLedger(t)
		const writers = 20

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			seqs []int64
		)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				seq, err := l.Append(ctx, 7, testutil.Name(testutil.Applicant, "A", "One"))
				assert.NoError(t, err)
				mu.Lock()
				seqs = append(seqs, seq)
				mu.Unlock()
			}()
		}
		wg.Wait()

		sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
		want := make([]int64, writers)
		for i := range want {
			want[i] = int64(i + 1)
		}
		assert.Equal(t, want, seqs)
	})
}

func sequences(events []models.FactEvent) []int64 {
	out := make([]int64, len(events))
	for i, ev := range events {
		out[i] = ev.SequenceNumber
	}
	return out
}
