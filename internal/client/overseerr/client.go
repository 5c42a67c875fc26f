package overseerr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/fusionn-seer/internal/config"
	"github.com/fusionn-seer/internal/status"
	"github.com/fusionn-seer/pkg/logger"
)

// ErrNotFound is returned when Overseerr does not know the requested media.
var ErrNotFound = errors.New("not found in overseerr")

type Client struct {
	client   *resty.Client
	limiter  *rate.Limiter
	userID   int
	serverID *int
}

func NewClient(cfg config.OverseerrConfig) *Client {
	client := resty.New().
		SetBaseURL(cfg.BaseURL+"/api/v1").
		SetTimeout(30*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Api-Key", cfg.APIKey).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		})

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	c := &Client{
		client:  client,
		limiter: limiter,
		userID:  cfg.UserID,
	}
	if cfg.ServerID > 0 {
		id := cfg.ServerID
		c.serverID = &id
	}
	return c
}

// request waits for the outbound limiter and returns a request bound to ctx.
func (c *Client) request(ctx context.Context) (*resty.Request, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	return c.client.R().SetContext(ctx), nil
}

func checkResponse(resp *resty.Response) error {
	if resp.StatusCode() == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.IsError() {
		return fmt.Errorf("API error: status=%d", resp.StatusCode())
	}
	return nil
}

// SearchTV searches for a TV show by name
func (c *Client) SearchTV(ctx context.Context, query string) (*SearchResult, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}

	var result SearchResult
	resp, err := req.
		SetQueryParam("query", query).
		SetResult(&result).
		Get("/search")

	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	// Search mixes movies and people in; keep TV only
	shows := result.Results[:0]
	for _, r := range result.Results {
		if r.MediaType == string(MediaTypeTV) {
			shows = append(shows, r)
		}
	}
	result.Results = shows

	return &result, nil
}

// GetTVByTMDB gets TV show details by TMDB ID
func (c *Client) GetTVByTMDB(ctx context.Context, tmdbID int) (*TVDetails, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}

	var details TVDetails
	resp, err := req.
		SetResult(&details).
		Get(fmt.Sprintf("/tv/%d", tmdbID))

	if err != nil {
		return nil, fmt.Errorf("getting TV details: %w", err)
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	return &details, nil
}

// GetMovieByTMDB gets movie details by TMDB ID
func (c *Client) GetMovieByTMDB(ctx context.Context, tmdbID int) (*MovieDetails, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}

	var details MovieDetails
	resp, err := req.
		SetResult(&details).
		Get(fmt.Sprintf("/movie/%d", tmdbID))

	if err != nil {
		return nil, fmt.Errorf("getting movie details: %w", err)
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	return &details, nil
}

// RequestTV requests specific seasons of a TV show.
func (c *Client) RequestTV(ctx context.Context, tmdbID int, seasons []int) (*RequestResponse, error) {
	if len(seasons) == 0 {
		return nil, errors.New("no seasons to request")
	}

	result, err := c.submit(ctx, mediaRequest{
		MediaType: string(MediaTypeTV),
		MediaID:   tmdbID,
		Seasons:   seasons,
		UserID:    c.userID,
		ServerID:  c.serverID,
	})
	if err != nil {
		return nil, err
	}

	if c.serverID != nil {
		logger.Infof("📥 Requested TMDB=%d seasons=%v via Overseerr (serverId=%d)", tmdbID, seasons, *c.serverID)
	} else {
		logger.Infof("📥 Requested TMDB=%d seasons=%v via Overseerr", tmdbID, seasons)
	}
	return result, nil
}

// RequestMovie requests a movie.
func (c *Client) RequestMovie(ctx context.Context, tmdbID int) (*RequestResponse, error) {
	result, err := c.submit(ctx, mediaRequest{
		MediaType: string(MediaTypeMovie),
		MediaID:   tmdbID,
		UserID:    c.userID,
	})
	if err != nil {
		return nil, err
	}

	logger.Infof("📥 Requested movie TMDB=%d via Overseerr", tmdbID)
	return result, nil
}

func (c *Client) submit(ctx context.Context, body mediaRequest) (*RequestResponse, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}

	var result RequestResponse
	resp, err := req.
		SetBody(body).
		SetResult(&result).
		Post("/request")

	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("API error: status=%d body=%s", resp.StatusCode(), resp.String())
	}

	return &result, nil
}

// SeasonRecords joins the seasons TMDB knows about with the statuses
// Overseerr tracks. Seasons Overseerr has never seen are not requested.
func SeasonRecords(details *TVDetails) []status.SeasonRecord {
	if details == nil {
		return nil
	}

	byNumber := make(map[int]status.SeasonStatus)
	for _, s := range details.Seasons {
		byNumber[s.SeasonNumber] = status.SeasonUnknown
	}
	if details.MediaInfo != nil {
		for _, s := range details.MediaInfo.Seasons {
			byNumber[s.SeasonNumber] = s.Status
		}
	}

	records := make([]status.SeasonRecord, 0, len(byNumber))
	for num, st := range byNumber {
		records = append(records, status.SeasonRecord{SeasonNumber: num, Status: st})
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].SeasonNumber < records[j].SeasonNumber
	})
	return records
}

// SeasonRequestInfo contains details about a season's request status
type SeasonRequestInfo struct {
	Requested   bool
	Status      MediaStatus
	RequestedBy string // Username of who requested it (empty if not requested or available)
}

// GetSeasonRequestInfo returns detailed info about a season's request status
func GetSeasonRequestInfo(details *TVDetails, seasonNum int) SeasonRequestInfo {
	info := SeasonRequestInfo{Status: MediaStatusUnknown}

	if details == nil || details.MediaInfo == nil {
		return info
	}

	for _, s := range details.MediaInfo.Seasons {
		if s.SeasonNumber == seasonNum {
			info.Status = s.Status
			if s.Status >= MediaStatusPending {
				info.Requested = true
			}
		}
	}

	// Check if season is in any existing request
	for _, req := range details.MediaInfo.Requests {
		if req.Status == RequestStatusDeclined {
			continue
		}
		for _, s := range req.Seasons {
			if s.SeasonNumber == seasonNum {
				info.Requested = true
				if req.RequestedBy != nil {
					if req.RequestedBy.DisplayName != "" {
						info.RequestedBy = req.RequestedBy.DisplayName
					} else {
						info.RequestedBy = req.RequestedBy.Username
					}
				}
				return info
			}
		}
	}

	return info
}

// IsSeasonRequested checks if a season is already requested or available
func IsSeasonRequested(details *TVDetails, seasonNum int) bool {
	return GetSeasonRequestInfo(details, seasonNum).Requested
}
