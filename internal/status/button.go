package status

import "sort"

// ButtonState describes how a request button renders for a Result.
type ButtonState struct {
	Label      string `json:"label"`
	Icon       string `json:"icon"`
	Class      string `json:"class"`
	Actionable bool   `json:"actionable"`
}

// Button derives the request button state from an aggregate result.
func Button(r Result) ButtonState {
	var b ButtonState

	switch r.Status {
	case FullyAvailable:
		b = ButtonState{Label: "Available", Icon: "check_circle", Class: "available"}
	case FullyRequested:
		b = ButtonState{Label: "Requested", Icon: "schedule", Class: "requested"}
	case PendingApproval:
		b = ButtonState{Label: "Pending", Icon: "hourglass_empty", Class: "pending"}
	case PartiallyAvailable:
		b = ButtonState{Label: "Request More", Icon: "library_add", Class: "partially-available", Actionable: true}
	case PartiallyRequested:
		b = ButtonState{Label: "Request More", Icon: "playlist_add", Class: "partially-requested", Actionable: true}
	default:
		b = ButtonState{Label: "Request", Icon: "add_circle", Class: "not-requested", Actionable: true}
	}

	if r.Summary != "" {
		b.Label += " (" + r.Summary + ")"
	}
	return b
}

// MissingSeasons returns the regular season numbers that are still untouched,
// in ascending order. Duplicate season numbers are reported once.
func MissingSeasons(seasons []SeasonRecord) []int {
	seen := make(map[int]bool)
	var missing []int

	for _, s := range seasons {
		if s.SeasonNumber <= 0 || seen[s.SeasonNumber] {
			continue
		}
		switch s.Status {
		case SeasonPending, SeasonProcessing, SeasonPartiallyAvailable, SeasonAvailable:
			continue
		}
		seen[s.SeasonNumber] = true
		missing = append(missing, s.SeasonNumber)
	}

	sort.Ints(missing)
	return missing
}
