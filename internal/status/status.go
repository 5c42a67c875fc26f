// Package status folds per-season request states into the single overall
// state a request button is driven by.
package status

import "fmt"

// SeasonStatus is the per-season state reported by the request-tracking
// service. The numeric values match the Overseerr/Jellyseerr wire encoding.
type SeasonStatus int

const (
	SeasonUnknown            SeasonStatus = 1
	SeasonPending            SeasonStatus = 2
	SeasonProcessing         SeasonStatus = 3
	SeasonPartiallyAvailable SeasonStatus = 4
	SeasonAvailable          SeasonStatus = 5
)

// SeasonRecord is one season of a show as known to the request-tracking service.
type SeasonRecord struct {
	SeasonNumber int          `json:"seasonNumber"`
	Status       SeasonStatus `json:"status"`
}

// Status is the overall state of a show or movie. PartiallyRequested and
// FullyRequested with a summary only arise from multi-season shows.
type Status string

const (
	NotRequested       Status = "not_requested"
	PendingApproval    Status = "pending_approval"
	PartiallyRequested Status = "partially_requested"
	PartiallyAvailable Status = "partially_available"
	FullyAvailable     Status = "fully_available"
	FullyRequested     Status = "fully_requested"
)

var allStatuses = []Status{
	NotRequested,
	PendingApproval,
	PartiallyRequested,
	PartiallyAvailable,
	FullyAvailable,
	FullyRequested,
}

// ParseStatus returns the Status named by s.
func ParseStatus(s string) (Status, bool) {
	for _, st := range allStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Result is the aggregate of a show's regular seasons.
type Result struct {
	Status  Status `json:"status"`
	Summary string `json:"summary,omitempty"` // only set for mixed states
	Total   int    `json:"total"`
}

// Aggregate folds season records into one Result. Specials (season 0) are
// ignored and unrecognised statuses count as not requested. When no season
// is left untouched the show is "fully requested" even if nothing is
// available yet; that rule wins over the partial ones.
func Aggregate(seasons []SeasonRecord) Result {
	var total, available, partial, pending, processing, notRequested int

	for _, s := range seasons {
		if s.SeasonNumber <= 0 {
			continue
		}
		total++

		switch s.Status {
		case SeasonAvailable:
			available++
		case SeasonPartiallyAvailable:
			partial++
		case SeasonPending:
			pending++
		case SeasonProcessing:
			processing++
		default:
			notRequested++
		}
	}

	if total == 0 {
		return Result{Status: NotRequested}
	}

	requested := pending + processing
	availableCount := available + partial
	accountedFor := requested + availableCount

	switch {
	case notRequested == 0:
		if availableCount == total {
			return Result{Status: FullyAvailable, Total: total}
		}
		return Result{
			Status:  FullyRequested,
			Summary: fmt.Sprintf("%d of %d seasons accounted for", accountedFor, total),
			Total:   total,
		}
	case accountedFor > 0:
		if availableCount > 0 {
			return Result{
				Status:  PartiallyAvailable,
				Summary: fmt.Sprintf("%d of %d seasons available", availableCount, total),
				Total:   total,
			}
		}
		return Result{
			Status:  PartiallyRequested,
			Summary: fmt.Sprintf("%d of %d seasons requested", requested, total),
			Total:   total,
		}
	default:
		return Result{Status: NotRequested, Total: total}
	}
}

// FromMediaStatus maps a single media-level status (a movie, or a show the
// service reports without season detail) onto Status.
func FromMediaStatus(s SeasonStatus) Status {
	switch s {
	case SeasonPending:
		return PendingApproval
	case SeasonProcessing:
		return FullyRequested
	case SeasonPartiallyAvailable:
		return PartiallyAvailable
	case SeasonAvailable:
		return FullyAvailable
	default:
		return NotRequested
	}
}
