package availability

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sourcegraph/conc/pool"

	"github.com/fusionn-seer/internal/client/overseerr"
	"github.com/fusionn-seer/internal/config"
	"github.com/fusionn-seer/internal/status"
	"github.com/fusionn-seer/pkg/logger"
)

// Overseerr is the subset of the request-tracking client this service uses.
type Overseerr interface {
	GetTVByTMDB(ctx context.Context, tmdbID int) (*overseerr.TVDetails, error)
	GetMovieByTMDB(ctx context.Context, tmdbID int) (*overseerr.MovieDetails, error)
	RequestTV(ctx context.Context, tmdbID int, seasons []int) (*overseerr.RequestResponse, error)
	RequestMovie(ctx context.Context, tmdbID int) (*overseerr.RequestResponse, error)
	SearchTV(ctx context.Context, query string) (*overseerr.SearchResult, error)
}

// Service resolves what a request button should show for a title.
type Service struct {
	overseerr   Overseerr
	shows       *expirable.LRU[int, *ShowStatus]
	movies      *expirable.LRU[int, *MovieStatus]
	concurrency int
	dryRun      atomic.Bool
}

// SearchHit is a search result annotated with its media-level status.
// Season detail needs a ShowStatus lookup.
type SearchHit struct {
	TMDBID       int                `json:"tmdb_id"`
	Name         string             `json:"name"`
	FirstAirDate string             `json:"first_air_date,omitempty"`
	Status       status.Status      `json:"status"`
	Button       status.ButtonState `json:"button"`
}

// SeasonDetail is a single season as reported back to callers.
type SeasonDetail struct {
	Number      int                 `json:"season_number"`
	Status      status.SeasonStatus `json:"status"`
	RequestedBy string              `json:"requested_by,omitempty"`
}

// ShowStatus is the aggregated state of a TV show.
type ShowStatus struct {
	TMDBID    int                `json:"tmdb_id"`
	Name      string             `json:"name"`
	Result    status.Result      `json:"result"`
	Button    status.ButtonState `json:"button"`
	Seasons   []SeasonDetail     `json:"seasons"`
	Missing   []int              `json:"missing_seasons,omitempty"`
	CheckedAt time.Time          `json:"checked_at"`
	Cached    bool               `json:"cached"`
}

// MovieStatus is the state of a movie.
type MovieStatus struct {
	TMDBID    int                `json:"tmdb_id"`
	Title     string             `json:"title"`
	Status    status.Status      `json:"status"`
	Button    status.ButtonState `json:"button"`
	CheckedAt time.Time          `json:"checked_at"`
	Cached    bool               `json:"cached"`
}

// BatchEntry holds either a show status or the error that prevented it.
type BatchEntry struct {
	TMDBID int         `json:"tmdb_id"`
	Show   *ShowStatus `json:"show,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// RequestOutcome describes what RequestMissing did.
type RequestOutcome struct {
	TMDBID    int           `json:"tmdb_id"`
	Name      string        `json:"name"`
	Action    string        `json:"action"` // "requested", "skipped", "dry_run"
	Reason    string        `json:"reason,omitempty"`
	Seasons   []int         `json:"seasons,omitempty"`
	RequestID int           `json:"request_id,omitempty"`
	Before    status.Result `json:"before"`
}

func NewService(client Overseerr, cfg config.CacheConfig, dryRun bool) *Service {
	size := cfg.Size
	if size <= 0 {
		size = 512
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	s := &Service{
		overseerr:   client,
		shows:       expirable.NewLRU[int, *ShowStatus](size, nil, ttl),
		movies:      expirable.NewLRU[int, *MovieStatus](size, nil, ttl),
		concurrency: concurrency,
	}
	s.dryRun.Store(dryRun)
	return s
}

// SetDryRun toggles dry-run mode (used on config reload).
func (s *Service) SetDryRun(v bool) {
	s.dryRun.Store(v)
}

// ShowStatus returns the aggregated status of a show. Cached results are
// served unless fresh is set.
func (s *Service) ShowStatus(ctx context.Context, tmdbID int, fresh bool) (*ShowStatus, error) {
	if !fresh {
		if st, ok := s.shows.Get(tmdbID); ok {
			cp := st.clone()
			cp.Cached = true
			return cp, nil
		}
	}

	details, err := s.overseerr.GetTVByTMDB(ctx, tmdbID)
	if err != nil {
		return nil, fmt.Errorf("getting show %d: %w", tmdbID, err)
	}

	st := buildShowStatus(tmdbID, details)
	s.shows.Add(tmdbID, st)

	logger.Debugf("[availability] TMDB=%d %q → %s (%d seasons)", tmdbID, st.Name, st.Result.Status, st.Result.Total)
	return st.clone(), nil
}

// clone copies st so callers never share slices with the cached entry.
func (st *ShowStatus) clone() *ShowStatus {
	cp := *st
	cp.Seasons = slices.Clone(st.Seasons)
	cp.Missing = slices.Clone(st.Missing)
	return &cp
}

func buildShowStatus(tmdbID int, details *overseerr.TVDetails) *ShowStatus {
	records := overseerr.SeasonRecords(details)
	result := status.Aggregate(records)

	seasons := make([]SeasonDetail, 0, len(records))
	for _, r := range records {
		info := overseerr.GetSeasonRequestInfo(details, r.SeasonNumber)
		seasons = append(seasons, SeasonDetail{
			Number:      r.SeasonNumber,
			Status:      r.Status,
			RequestedBy: info.RequestedBy,
		})
	}

	return &ShowStatus{
		TMDBID:    tmdbID,
		Name:      details.Name,
		Result:    result,
		Button:    status.Button(result),
		Seasons:   seasons,
		Missing:   status.MissingSeasons(records),
		CheckedAt: time.Now(),
	}
}

// MovieStatus returns the status of a movie.
func (s *Service) MovieStatus(ctx context.Context, tmdbID int, fresh bool) (*MovieStatus, error) {
	if !fresh {
		if st, ok := s.movies.Get(tmdbID); ok {
			cp := *st
			cp.Cached = true
			return &cp, nil
		}
	}

	details, err := s.overseerr.GetMovieByTMDB(ctx, tmdbID)
	if err != nil {
		return nil, fmt.Errorf("getting movie %d: %w", tmdbID, err)
	}

	mediaStatus := overseerr.MediaStatusUnknown
	if details.MediaInfo != nil {
		mediaStatus = details.MediaInfo.Status
	}
	st := status.FromMediaStatus(mediaStatus)

	ms := &MovieStatus{
		TMDBID:    tmdbID,
		Title:     details.Title,
		Status:    st,
		Button:    status.Button(status.Result{Status: st}),
		CheckedAt: time.Now(),
	}
	s.movies.Add(tmdbID, ms)
	cp := *ms
	return &cp, nil
}

// BatchShowStatus looks up several shows with bounded concurrency. The
// returned entries follow the order of ids.
func (s *Service) BatchShowStatus(ctx context.Context, ids []int, fresh bool) []BatchEntry {
	entries := make([]BatchEntry, len(ids))

	p := pool.New().WithMaxGoroutines(s.concurrency)
	for i, id := range ids {
		p.Go(func() {
			entries[i].TMDBID = id
			st, err := s.ShowStatus(ctx, id, fresh)
			if err != nil {
				entries[i].Error = err.Error()
				return
			}
			entries[i].Show = st
		})
	}
	p.Wait()

	return entries
}

// RequestMissing requests every season of a show that is still untouched.
// It always reads fresh state from Overseerr first.
func (s *Service) RequestMissing(ctx context.Context, tmdbID int) (*RequestOutcome, error) {
	details, err := s.overseerr.GetTVByTMDB(ctx, tmdbID)
	if err != nil {
		return nil, fmt.Errorf("getting show %d: %w", tmdbID, err)
	}

	st := buildShowStatus(tmdbID, details)
	s.shows.Add(tmdbID, st)

	out := &RequestOutcome{
		TMDBID: tmdbID,
		Name:   st.Name,
		Before: st.Result,
	}

	if !st.Button.Actionable {
		out.Action = "skipped"
		out.Reason = "already " + strings.ReplaceAll(string(st.Result.Status), "_", " ")
		return out, nil
	}

	// A season can sit in an open request before its media status catches up
	var seasons []int
	for _, n := range st.Missing {
		if !overseerr.IsSeasonRequested(details, n) {
			seasons = append(seasons, n)
		}
	}
	if len(seasons) == 0 {
		out.Action = "skipped"
		out.Reason = "no requestable seasons"
		return out, nil
	}
	out.Seasons = seasons

	if s.dryRun.Load() {
		out.Action = "dry_run"
		out.Reason = fmt.Sprintf("would request %d season(s)", len(seasons))
		logger.Warnf("⚠️  [dry run] Would request %q seasons=%v", st.Name, seasons)
		return out, nil
	}

	resp, err := s.overseerr.RequestTV(ctx, tmdbID, seasons)
	if err != nil {
		return nil, fmt.Errorf("requesting show %d: %w", tmdbID, err)
	}
	s.Invalidate(tmdbID)

	out.Action = "requested"
	out.RequestID = resp.ID
	out.Reason = fmt.Sprintf("requested %d season(s)", len(seasons))
	return out, nil
}

// RequestMovie requests a movie unless it is already requested or available.
func (s *Service) RequestMovie(ctx context.Context, tmdbID int) (*RequestOutcome, error) {
	st, err := s.MovieStatus(ctx, tmdbID, true)
	if err != nil {
		return nil, err
	}

	out := &RequestOutcome{
		TMDBID: tmdbID,
		Name:   st.Title,
		Before: status.Result{Status: st.Status},
	}

	if !st.Button.Actionable {
		out.Action = "skipped"
		out.Reason = "already " + strings.ReplaceAll(string(st.Status), "_", " ")
		return out, nil
	}

	if s.dryRun.Load() {
		out.Action = "dry_run"
		out.Reason = "would request movie"
		logger.Warnf("⚠️  [dry run] Would request movie %q", st.Title)
		return out, nil
	}

	resp, err := s.overseerr.RequestMovie(ctx, tmdbID)
	if err != nil {
		return nil, fmt.Errorf("requesting movie %d: %w", tmdbID, err)
	}
	s.movies.Remove(tmdbID)

	out.Action = "requested"
	out.RequestID = resp.ID
	out.Reason = "requested movie"
	return out, nil
}

// Search finds shows by name. Statuses come from the search payload and are
// media-level only.
func (s *Service) Search(ctx context.Context, query string) ([]SearchHit, error) {
	res, err := s.overseerr.SearchTV(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", query, err)
	}

	hits := make([]SearchHit, 0, len(res.Results))
	for _, r := range res.Results {
		mediaStatus := overseerr.MediaStatusUnknown
		if r.MediaInfo != nil {
			mediaStatus = r.MediaInfo.Status
		}
		st := status.FromMediaStatus(mediaStatus)
		hits = append(hits, SearchHit{
			TMDBID:       r.ID,
			Name:         r.Name,
			FirstAirDate: r.FirstAirDate,
			Status:       st,
			Button:       status.Button(status.Result{Status: st}),
		})
	}
	return hits, nil
}

// Invalidate drops the cached state of a show.
func (s *Service) Invalidate(tmdbID int) {
	s.shows.Remove(tmdbID)
}
