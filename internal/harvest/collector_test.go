package harvest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/spear-sync/internal/model"
)

type fakePages struct {
	total    int
	countErr error
	pages    map[int][]model.RawRow
	errAt    map[int]error
	offsets  []int
}

func (f *fakePages) FetchCount(_ context.Context, _ model.TenantID) (int, error) {
	return f.total, f.countErr
}

func (f *fakePages) FetchPage(_ context.Context, _ model.TenantID, offset int) ([]model.RawRow, error) {
	f.offsets = append(f.offsets, offset)
	if err := f.errAt[offset]; err != nil {
		return nil, err
	}
	return f.pages[offset], nil
}

func row(ref, date string) model.RawRow {
	r := model.RawRow{Reference: ref, Address: "1 Main St", ApplicationType: "Planning Permit"}
	if date != "" {
		d, err := model.ParseDate(date)
		if err != nil {
			panic(err)
		}
		r.Submitted = &d
	}
	return r
}

func refs(rows []model.RawRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Reference
	}
	return out
}

func mustDate(t *testing.T, s string) *model.Date {
	t.Helper()
	d, err := model.ParseDate(s)
	require.NoError(t, err)
	return &d
}

func TestPageCount(t *testing.T) {
	tests := []struct {
		total int
		want  int
	}{
		{0, 1},
		{10, 1},
		{34, 1},
		{35, 2},
		{40, 2},
		{70, 3},
		{100, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PageCount(tt.total), "total=%d", tt.total)
	}
}

func TestCollect_RequestsPagesAtPageSizeOffsets(t *testing.T) {
	src := &fakePages{total: 80, pages: map[int][]model.RawRow{}}

	_, err := NewCollector(src).Collect(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 35, 70}, src.offsets)
}

func TestCollect_DeduplicatesAcrossPages(t *testing.T) {
	src := &fakePages{
		total: 40,
		pages: map[int][]model.RawRow{
			0:  {row("R1", "16/06/2024"), row("R2", "16/06/2024")},
			35: {row("R2", "16/06/2024"), row("R3", "16/06/2024")},
		},
	}

	got, err := NewCollector(src).Collect(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"R1", "R2", "R3"}, refs(got))
}

func TestCollect_AppliesMonthCutoff(t *testing.T) {
	src := &fakePages{
		total: 5,
		pages: map[int][]model.RawRow{
			0: {
				row("A", "16/06/2024"),
				row("B", "14/05/2024"),
				row("C", "01/06/2024"),
				row("D", ""),
				row("E", "02/01/2025"),
			},
		},
	}

	got, err := NewCollector(src).Collect(context.Background(), 1, mustDate(t, "15/06/2024"))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C", "E"}, refs(got))
}

func TestCollect_NoCutoffKeepsUndatedRows(t *testing.T) {
	src := &fakePages{
		total: 2,
		pages: map[int][]model.RawRow{0: {row("A", ""), row("B", "01/01/2001")}},
	}

	got, err := NewCollector(src).Collect(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, refs(got))
}

func TestCollect_FilteredRowDoesNotShadowLaterDuplicate(t *testing.T) {
	// A row rejected by the cutoff is not marked seen.
	early := row("X", "01/01/2020")
	late := row("X", "20/06/2024")
	src := &fakePages{total: 2, pages: map[int][]model.RawRow{0: {early, late}}}

	got, err := NewCollector(src).Collect(context.Background(), 1, mustDate(t, "15/06/2024"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, late.Submitted, got[0].Submitted)
}

func TestCollect_PageFailureKeepsPartialResults(t *testing.T) {
	pageErr := errors.New("boom")
	src := &fakePages{
		total: 100,
		pages: map[int][]model.RawRow{
			0:  {row("P1", "16/06/2024")},
			35: {row("P2", "16/06/2024")},
		},
		errAt: map[int]error{70: pageErr},
	}

	got, err := NewCollector(src).Collect(context.Background(), 1, nil)
	require.ErrorIs(t, err, pageErr)
	assert.Equal(t, []string{"P1", "P2"}, refs(got))
}

func TestCollect_CountFailure(t *testing.T) {
	src := &fakePages{countErr: errors.New("down")}

	got, err := NewCollector(src).Collect(context.Background(), 1, nil)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.Empty(t, src.offsets)
}
