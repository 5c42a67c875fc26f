package availability

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fusionn-seer/internal/client/overseerr"
	"github.com/fusionn-seer/internal/config"
	"github.com/fusionn-seer/internal/status"
	"github.com/fusionn-seer/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init(true)
	os.Exit(m.Run())
}

type fakeOverseerr struct {
	mu        sync.Mutex
	shows     map[int]*overseerr.TVDetails
	movies    map[int]*overseerr.MovieDetails
	tvCalls   atomic.Int32
	requested map[int][]int
	movieReqs []int
	search    []overseerr.MediaResult
	failTV    map[int]error
}

func newFake() *fakeOverseerr {
	return &fakeOverseerr{
		shows:     map[int]*overseerr.TVDetails{},
		movies:    map[int]*overseerr.MovieDetails{},
		requested: map[int][]int{},
		failTV:    map[int]error{},
	}
}

func (f *fakeOverseerr) GetTVByTMDB(_ context.Context, id int) (*overseerr.TVDetails, error) {
	f.tvCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failTV[id]; err != nil {
		return nil, err
	}
	d, ok := f.shows[id]
	if !ok {
		return nil, overseerr.ErrNotFound
	}
	return d, nil
}

func (f *fakeOverseerr) GetMovieByTMDB(_ context.Context, id int) (*overseerr.MovieDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.movies[id]
	if !ok {
		return nil, overseerr.ErrNotFound
	}
	return d, nil
}

func (f *fakeOverseerr) RequestTV(_ context.Context, id int, seasons []int) (*overseerr.RequestResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested[id] = seasons
	return &overseerr.RequestResponse{ID: 100 + id}, nil
}

func (f *fakeOverseerr) RequestMovie(_ context.Context, id int) (*overseerr.RequestResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.movieReqs = append(f.movieReqs, id)
	return &overseerr.RequestResponse{ID: 500 + id}, nil
}

func (f *fakeOverseerr) SearchTV(_ context.Context, query string) (*overseerr.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &overseerr.SearchResult{Results: f.search}, nil
}

func show(name string, seasons int, statuses map[int]overseerr.MediaStatus) *overseerr.TVDetails {
	d := &overseerr.TVDetails{Name: name}
	for n := 0; n <= seasons; n++ {
		d.Seasons = append(d.Seasons, overseerr.TVSeason{SeasonNumber: n})
	}
	if len(statuses) > 0 {
		d.MediaInfo = &overseerr.MediaInfo{}
		for n, st := range statuses {
			d.MediaInfo.Seasons = append(d.MediaInfo.Seasons, overseerr.SeasonInfo{SeasonNumber: n, Status: st})
		}
	}
	return d
}

func newTestService(f *fakeOverseerr, dryRun bool) *Service {
	return NewService(f, config.CacheConfig{TTL: time.Minute, Size: 16, Concurrency: 2}, dryRun)
}

func TestShowStatusAggregates(t *testing.T) {
	f := newFake()
	f.shows[1] = show("Andor", 3, map[int]overseerr.MediaStatus{
		0: overseerr.MediaStatusAvailable,
		1: overseerr.MediaStatusAvailable,
	})
	s := newTestService(f, false)

	st, err := s.ShowStatus(context.Background(), 1, false)
	require.NoError(t, err)

	assert.Equal(t, "Andor", st.Name)
	assert.Equal(t, status.Result{Status: status.PartiallyAvailable, Summary: "1 of 3 seasons available", Total: 3}, st.Result)
	assert.True(t, st.Button.Actionable)
	assert.Equal(t, []int{2, 3}, st.Missing)
	assert.Len(t, st.Seasons, 4)
	assert.False(t, st.Cached)
}

func TestShowStatusCaches(t *testing.T) {
	f := newFake()
	f.shows[1] = show("Andor", 1, nil)
	s := newTestService(f, false)

	_, err := s.ShowStatus(context.Background(), 1, false)
	require.NoError(t, err)
	cached, err := s.ShowStatus(context.Background(), 1, false)
	require.NoError(t, err)
	assert.True(t, cached.Cached)
	assert.Equal(t, int32(1), f.tvCalls.Load())

	fresh, err := s.ShowStatus(context.Background(), 1, true)
	require.NoError(t, err)
	assert.False(t, fresh.Cached)
	assert.Equal(t, int32(2), f.tvCalls.Load())
}

func TestShowStatusResultsDoNotAliasCache(t *testing.T) {
	f := newFake()
	f.shows[1] = show("Andor", 3, map[int]overseerr.MediaStatus{1: overseerr.MediaStatusAvailable})
	s := newTestService(f, false)

	first, err := s.ShowStatus(context.Background(), 1, false)
	require.NoError(t, err)
	first.Missing[0] = 99
	first.Seasons[1].Status = overseerr.MediaStatusPending

	cached, err := s.ShowStatus(context.Background(), 1, false)
	require.NoError(t, err)
	require.True(t, cached.Cached)
	assert.Equal(t, []int{2, 3}, cached.Missing)
	assert.Equal(t, status.SeasonAvailable, cached.Seasons[1].Status)

	cached.Missing[1] = 42
	again, err := s.ShowStatus(context.Background(), 1, false)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, again.Missing)
}

func TestShowStatusNotFound(t *testing.T) {
	s := newTestService(newFake(), false)

	_, err := s.ShowStatus(context.Background(), 404, false)
	assert.ErrorIs(t, err, overseerr.ErrNotFound)
}

func TestMovieStatus(t *testing.T) {
	f := newFake()
	f.movies[603] = &overseerr.MovieDetails{Title: "The Matrix", MediaInfo: &overseerr.MediaInfo{Status: overseerr.MediaStatusPending}}
	f.movies[604] = &overseerr.MovieDetails{Title: "Reloaded"}
	s := newTestService(f, false)

	m, err := s.MovieStatus(context.Background(), 603, false)
	require.NoError(t, err)
	assert.Equal(t, status.PendingApproval, m.Status)
	assert.False(t, m.Button.Actionable)

	m, err = s.MovieStatus(context.Background(), 604, false)
	require.NoError(t, err)
	assert.Equal(t, status.NotRequested, m.Status)
	assert.True(t, m.Button.Actionable)

	m, err = s.MovieStatus(context.Background(), 603, false)
	require.NoError(t, err)
	assert.True(t, m.Cached)
}

func TestBatchShowStatusKeepsOrder(t *testing.T) {
	f := newFake()
	f.shows[1] = show("One", 1, map[int]overseerr.MediaStatus{1: overseerr.MediaStatusAvailable})
	f.shows[2] = show("Two", 2, nil)
	f.failTV[3] = errors.New("boom")
	s := newTestService(f, false)

	entries := s.BatchShowStatus(context.Background(), []int{3, 1, 404, 2}, false)
	require.Len(t, entries, 4)

	assert.Equal(t, 3, entries[0].TMDBID)
	assert.Contains(t, entries[0].Error, "boom")
	assert.Nil(t, entries[0].Show)

	assert.Equal(t, status.FullyAvailable, entries[1].Show.Result.Status)

	assert.Contains(t, entries[2].Error, overseerr.ErrNotFound.Error())

	assert.Equal(t, "Two", entries[3].Show.Name)
	assert.Equal(t, status.NotRequested, entries[3].Show.Result.Status)
}

func TestRequestMissing(t *testing.T) {
	f := newFake()
	f.shows[1] = show("Andor", 3, map[int]overseerr.MediaStatus{1: overseerr.MediaStatusAvailable})
	s := newTestService(f, false)

	out, err := s.RequestMissing(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, "requested", out.Action)
	assert.Equal(t, []int{2, 3}, out.Seasons)
	assert.Equal(t, 101, out.RequestID)
	assert.Equal(t, status.PartiallyAvailable, out.Before.Status)
	assert.Equal(t, []int{2, 3}, f.requested[1])

	// cache was invalidated, next lookup goes upstream
	calls := f.tvCalls.Load()
	_, err = s.ShowStatus(context.Background(), 1, false)
	require.NoError(t, err)
	assert.Equal(t, calls+1, f.tvCalls.Load())
}

func TestRequestMissingSkipsOpenRequests(t *testing.T) {
	f := newFake()
	d := show("Andor", 2, nil)
	d.MediaInfo = &overseerr.MediaInfo{
		Requests: []overseerr.Request{{Status: overseerr.RequestStatusPending, Seasons: []overseerr.SeasonReq{{SeasonNumber: 1}}}},
	}
	f.shows[1] = d
	s := newTestService(f, false)

	out, err := s.RequestMissing(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, out.Seasons)
}

func TestRequestMissingNotActionable(t *testing.T) {
	f := newFake()
	f.shows[1] = show("Done", 2, map[int]overseerr.MediaStatus{
		1: overseerr.MediaStatusAvailable,
		2: overseerr.MediaStatusPending,
	})
	s := newTestService(f, false)

	out, err := s.RequestMissing(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "skipped", out.Action)
	assert.Equal(t, "already fully requested", out.Reason)
	assert.Empty(t, f.requested)
}

func TestRequestMissingDryRun(t *testing.T) {
	f := newFake()
	f.shows[1] = show("Andor", 2, nil)
	s := newTestService(f, true)

	out, err := s.RequestMissing(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "dry_run", out.Action)
	assert.Equal(t, []int{1, 2}, out.Seasons)
	assert.Empty(t, f.requested)

	s.SetDryRun(false)
	out, err = s.RequestMissing(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "requested", out.Action)
}

func TestRequestMissingUpstreamError(t *testing.T) {
	f := newFake()
	s := newTestService(f, false)

	_, err := s.RequestMissing(context.Background(), 9)
	assert.ErrorIs(t, err, overseerr.ErrNotFound)
}

func TestRequestMovie(t *testing.T) {
	f := newFake()
	f.movies[603] = &overseerr.MovieDetails{Title: "The Matrix"}
	f.movies[604] = &overseerr.MovieDetails{Title: "Reloaded", MediaInfo: &overseerr.MediaInfo{Status: overseerr.MediaStatusAvailable}}
	s := newTestService(f, false)

	out, err := s.RequestMovie(context.Background(), 603)
	require.NoError(t, err)
	assert.Equal(t, "requested", out.Action)
	assert.Equal(t, 1103, out.RequestID)
	assert.Equal(t, []int{603}, f.movieReqs)

	out, err = s.RequestMovie(context.Background(), 604)
	require.NoError(t, err)
	assert.Equal(t, "skipped", out.Action)
	assert.Equal(t, "already fully available", out.Reason)
	assert.Len(t, f.movieReqs, 1)

	_, err = s.RequestMovie(context.Background(), 1)
	assert.ErrorIs(t, err, overseerr.ErrNotFound)
}

func TestRequestMovieDryRun(t *testing.T) {
	f := newFake()
	f.movies[603] = &overseerr.MovieDetails{Title: "The Matrix"}
	s := newTestService(f, true)

	out, err := s.RequestMovie(context.Background(), 603)
	require.NoError(t, err)
	assert.Equal(t, "dry_run", out.Action)
	assert.Empty(t, f.movieReqs)
}

func TestSearch(t *testing.T) {
	f := newFake()
	f.search = []overseerr.MediaResult{
		{ID: 1, Name: "Andor", MediaInfo: &overseerr.MediaInfo{Status: overseerr.MediaStatusProcessing}},
		{ID: 2, Name: "Ahsoka"},
	}
	s := newTestService(f, false)

	hits, err := s.Search(context.Background(), "a")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, status.FullyRequested, hits[0].Status)
	assert.False(t, hits[0].Button.Actionable)
	assert.Equal(t, status.NotRequested, hits[1].Status)
	assert.Equal(t, "Request", hits[1].Button.Label)
}
