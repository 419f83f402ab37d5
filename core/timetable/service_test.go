package timetable

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/royalacademy/backoffice/core"
	"github.com/royalacademy/backoffice/storage/memstore"
	"github.com/royalacademy/backoffice/tests"
)

var (
	maths   = Period{Time: "9:00-9:45", Subject: "Mathematics", Teacher: "Dr. Smith", Room: "101"}
	english = Period{Time: "9:45-10:30", Subject: "English", Teacher: "Ms. Rao", Room: "102"}
	science = Period{Time: "10:30-11:15", Subject: "Science", Teacher: "Mr. Khan", Room: "Lab 1"}
)

func newService(t *testing.T) (*Service, *memstore.Store) {
	store := memstore.New()
	return NewService(store, testutil.NewLogger(t)), store
}

func intPtr(i int) *int { return &i }

func TestService_UpsertPeriod(t *testing.T) {
	ctx := context.Background()
	testutil.FreezeTime(t, time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC))
	svc, store := newService(t)

	periods, err := svc.UpsertPeriod(ctx, "8", "A", "Monday", maths, nil)
	require.NoError(t, err)
	assert.Equal(t, []Period{maths}, periods)

	periods, err = svc.LoadDay(ctx, "8", "A", "Monday")
	require.NoError(t, err)
	assert.Equal(t, []Period{maths}, periods)

	// stored under timetable:<class><section>
	_, err = store.Get(ctx, "timetable:8A")
	require.NoError(t, err)

	// appends keep insertion order
	_, err = svc.UpsertPeriod(ctx, "8", "A", "monday", science, nil)
	require.NoError(t, err)
	periods, err = svc.UpsertPeriod(ctx, "8", "A", "MONDAY", english, nil)
	require.NoError(t, err)
	assert.Equal(t, []Period{maths, science, english}, periods)

	// replace by index
	periods, err = svc.UpsertPeriod(ctx, "8", "A", "Monday", english, intPtr(1))
	require.NoError(t, err)
	assert.Equal(t, []Period{maths, english, english}, periods)

	_, err = svc.UpsertPeriod(ctx, "8", "A", "Monday", english, intPtr(3))
	assert.True(t, errors.Is(err, core.ErrNotFound), "got %v", err)

	tt, found, err := svc.Load(ctx, "8", "A")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "8", tt.Class)
	assert.Equal(t, "A", tt.Section)
	assert.Equal(t, time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC), tt.UpdatedAt)
}

func TestService_UpsertPeriod_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	tests := []struct {
		name                string
		class, section, day string
		period              Period
		wantErr             error
	}{
		{name: "unknown day", class: "8", section: "A", day: "Funday", period: maths, wantErr: ErrInvalidDay},
		{name: "sunday", class: "8", section: "A", day: "Sunday", period: maths, wantErr: ErrInvalidDay},
		{name: "missing subject", class: "8", section: "A", day: "Monday", period: Period{Time: "9:00-9:45", Subject: "  "}, wantErr: core.ErrMissingRequiredField},
		{name: "missing class", section: "A", day: "Monday", period: maths, wantErr: core.ErrMissingRequiredField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpsertPeriod(ctx, tt.class, tt.section, tt.day, tt.period, nil)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.True(t, core.IsValidation(err))
		})
	}
}

func TestService_LoadDay_Empty(t *testing.T) {
	svc, _ := newService(t)
	periods, err := svc.LoadDay(context.Background(), "9", "B", "Friday")
	require.NoError(t, err)
	assert.NotNil(t, periods)
	assert.Empty(t, periods)
}

func TestService_DeletePeriod(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	for _, p := range []Period{maths, english, science} {
		_, err := svc.UpsertPeriod(ctx, "8", "A", "Tuesday", p, nil)
		require.NoError(t, err)
	}

	periods, err := svc.DeletePeriod(ctx, "8", "A", "Tuesday", 1)
	require.NoError(t, err)
	assert.Equal(t, []Period{maths, science}, periods)

	_, err = svc.DeletePeriod(ctx, "8", "A", "Tuesday", 2)
	assert.True(t, errors.Is(err, core.ErrNotFound))
	_, err = svc.DeletePeriod(ctx, "8", "A", "Wednesday", 0)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestService_ClearDay(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	// no timetable: nothing is written
	require.NoError(t, svc.ClearDay(ctx, "8", "A", "Monday"))
	_, err := store.Get(ctx, Key("8", "A"))
	assert.True(t, errors.Is(err, core.ErrSlotNotFound))

	_, err = svc.UpsertPeriod(ctx, "8", "A", "Monday", maths, nil)
	require.NoError(t, err)
	_, err = svc.UpsertPeriod(ctx, "8", "A", "Tuesday", english, nil)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		require.NoError(t, svc.ClearDay(ctx, "8", "A", "Monday"))
		periods, err := svc.LoadDay(ctx, "8", "A", "Monday")
		require.NoError(t, err)
		assert.Empty(t, periods)
	}

	periods, err := svc.LoadDay(ctx, "8", "A", "Tuesday")
	require.NoError(t, err)
	assert.Equal(t, []Period{english}, periods)
}

func TestService_DeleteTimetable(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	_, err := svc.UpsertPeriod(ctx, "8", "A", "Monday", maths, nil)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteTimetable(ctx, "8", "A"))
	_, found, err := svc.Load(ctx, "8", "A")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, svc.DeleteTimetable(ctx, "8", "A"))
}

func TestService_LoadTemplate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	_, err := svc.UpsertPeriod(ctx, "8", "A", "Saturday", maths, nil)
	require.NoError(t, err)

	tt, err := svc.LoadTemplate(ctx, "8", "A")
	require.NoError(t, err)
	assert.Len(t, tt.Days, 5)

	// overwrites without merging
	periods, err := svc.LoadDay(ctx, "8", "A", "Saturday")
	require.NoError(t, err)
	assert.Empty(t, periods)

	periods, err = svc.LoadDay(ctx, "8", "A", "Monday")
	require.NoError(t, err)
	require.Len(t, periods, 6)
	assert.Equal(t, Period{Time: "8:00-8:45", Subject: "Mathematics", Teacher: "TBA", Room: "Room 101"}, periods[0])

	for day, periods := range tt.Days {
		assert.Empty(t, Overlaps(periods), day)
	}
}

func TestService_CorruptSlot(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	require.NoError(t, store.Commit(ctx, core.Write{Name: Key("8", "A"), Value: []byte(`[]`), Version: core.AnyVersion}))

	periods, err := svc.LoadDay(ctx, "8", "A", "Monday")
	require.NoError(t, err)
	assert.Empty(t, periods)

	_, err = svc.UpsertPeriod(ctx, "8", "A", "Monday", maths, nil)
	assert.True(t, errors.Is(err, core.ErrStorageCorrupt), "got %v", err)
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name    string
		periods []Period
		want    []Overlap
	}{
		{name: "none", periods: []Period{maths, english, science}, want: []Overlap{}},
		{
			name:    "same slot",
			periods: []Period{maths, {Time: "9:00-9:45", Subject: "Art"}},
			want:    []Overlap{{First: 0, Second: 1, Time: "9:00-9:45"}},
		},
		{
			name:    "partial",
			periods: []Period{maths, english, {Time: "09:30 - 10:00", Subject: "Art"}},
			want:    []Overlap{{First: 0, Second: 2, Time: "09:30 - 10:00"}, {First: 1, Second: 2, Time: "09:30 - 10:00"}},
		},
		{
			name:    "unparsable times are ignored",
			periods: []Period{maths, {Time: "morning", Subject: "Art"}, {Time: "10:00-9:00", Subject: "Music"}},
			want:    []Overlap{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(tt.periods))
		})
	}
}
