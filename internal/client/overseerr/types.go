package overseerr

import "github.com/fusionn-seer/internal/status"

// MediaType for Overseerr API
type MediaType string

const (
	MediaTypeTV    MediaType = "tv"
	MediaTypeMovie MediaType = "movie"
)

// MediaStatus is the wire status Overseerr reports for a show, movie or season.
// It shares its encoding with status.SeasonStatus.
type MediaStatus = status.SeasonStatus

const (
	MediaStatusUnknown        = status.SeasonUnknown
	MediaStatusPending        = status.SeasonPending
	MediaStatusProcessing     = status.SeasonProcessing
	MediaStatusPartiallyAvail = status.SeasonPartiallyAvailable
	MediaStatusAvailable      = status.SeasonAvailable
)

// RequestStatus represents request status
type RequestStatus int

const (
	RequestStatusPending  RequestStatus = 1
	RequestStatusApproved RequestStatus = 2
	RequestStatusDeclined RequestStatus = 3
)

// SearchResult from Overseerr search API
type SearchResult struct {
	Page         int           `json:"page"`
	TotalPages   int           `json:"totalPages"`
	TotalResults int           `json:"totalResults"`
	Results      []MediaResult `json:"results"`
}

type MediaResult struct {
	ID           int        `json:"id"`
	MediaType    string     `json:"mediaType"`
	Name         string     `json:"name,omitempty"`  // TV shows
	Title        string     `json:"title,omitempty"` // Movies
	Overview     string     `json:"overview"`
	PosterPath   string     `json:"posterPath"`
	FirstAirDate string     `json:"firstAirDate,omitempty"`
	ReleaseDate  string     `json:"releaseDate,omitempty"`
	MediaInfo    *MediaInfo `json:"mediaInfo,omitempty"`
}

type MediaInfo struct {
	ID       int          `json:"id"`
	TMDBID   int          `json:"tmdbId"`
	TVDBID   int          `json:"tvdbId,omitempty"`
	Status   MediaStatus  `json:"status"`
	Requests []Request    `json:"requests,omitempty"`
	Seasons  []SeasonInfo `json:"seasons,omitempty"`
}

type SeasonInfo struct {
	ID           int         `json:"id"`
	SeasonNumber int         `json:"seasonNumber"`
	Status       MediaStatus `json:"status"`
}

type Request struct {
	ID          int           `json:"id"`
	Status      RequestStatus `json:"status"`
	Seasons     []SeasonReq   `json:"seasons,omitempty"`
	RequestedBy *User         `json:"requestedBy,omitempty"`
	CreatedAt   string        `json:"createdAt"`
}

type SeasonReq struct {
	ID           int `json:"id"`
	SeasonNumber int `json:"seasonNumber"`
}

type User struct {
	ID          int    `json:"id"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

// mediaRequest is the payload for POST /request
type mediaRequest struct {
	MediaType string `json:"mediaType"`
	MediaID   int    `json:"mediaId"` // TMDB ID
	Seasons   []int  `json:"seasons,omitempty"`
	UserID    int    `json:"userId,omitempty"`   // Request as specific user
	ServerID  *int   `json:"serverId,omitempty"` // Target backend server
}

// TVDetails from Overseerr
type TVDetails struct {
	ID               int        `json:"id"`
	Name             string     `json:"name"`
	NumberOfSeasons  int        `json:"numberOfSeasons"`
	NumberOfEpisodes int        `json:"numberOfEpisodes"`
	Seasons          []TVSeason `json:"seasons"`
	MediaInfo        *MediaInfo `json:"mediaInfo,omitempty"`
}

type TVSeason struct {
	ID           int    `json:"id"`
	SeasonNumber int    `json:"seasonNumber"`
	EpisodeCount int    `json:"episodeCount"`
	AirDate      string `json:"airDate"`
	Name         string `json:"name"`
}

// MovieDetails from Overseerr
type MovieDetails struct {
	ID          int        `json:"id"`
	Title       string     `json:"title"`
	ReleaseDate string     `json:"releaseDate"`
	MediaInfo   *MediaInfo `json:"mediaInfo,omitempty"`
}

// RequestResponse after creating a request
type RequestResponse struct {
	ID        int    `json:"id"`
	Status    int    `json:"status"`
	CreatedAt string `json:"createdAt"`
}
