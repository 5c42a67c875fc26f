package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fusionn-seer/internal/client/apprise"
	"github.com/fusionn-seer/internal/config"
	"github.com/fusionn-seer/internal/service/availability"
	"github.com/fusionn-seer/internal/status"
	"github.com/fusionn-seer/pkg/logger"
)

// Change kinds for a tracked show.
const (
	ChangeNew       = "new"
	ChangeChanged   = "changed"
	ChangeUnchanged = "unchanged"
	ChangeError     = "error"
)

// ErrAlreadyRunning is returned when a run is requested while another is in flight.
var ErrAlreadyRunning = errors.New("tracker run already in progress")

// StatusSource resolves show statuses in bulk.
type StatusSource interface {
	BatchShowStatus(ctx context.Context, ids []int, fresh bool) []availability.BatchEntry
}

// Service periodically re-checks tracked shows and reports status changes.
type Service struct {
	source  StatusSource
	apprise *apprise.Client
	store   *Store
	cfgMgr  *config.Manager

	// running serialises Process and Reset; both read-compare-write the store
	running sync.Mutex

	mu          sync.RWMutex
	lastRun     time.Time
	lastResults []CheckResult
}

// CheckResult holds the outcome for a single tracked show
type CheckResult struct {
	TMDBID    int           `json:"tmdb_id"`
	ShowTitle string        `json:"show_title"`
	Change    string        `json:"change"` // "new", "changed", "unchanged", "error"
	From      status.Status `json:"from,omitempty"`
	To        status.Status `json:"to,omitempty"`
	Summary   string        `json:"summary,omitempty"`
	Error     string        `json:"error,omitempty"`
}

func NewService(source StatusSource, appriseClient *apprise.Client, store *Store, cfgMgr *config.Manager) *Service {
	return &Service{
		source:  source,
		apprise: appriseClient,
		store:   store,
		cfgMgr:  cfgMgr,
	}
}

// Enabled reports whether the tracker is switched on in the current config.
func (s *Service) Enabled() bool {
	return s.cfgMgr.Get().Tracker.Enabled
}

// Process checks every tracked show and notifies about status changes
func (s *Service) Process(ctx context.Context) ([]CheckResult, error) {
	// Fresh config per run so tracked shows can be edited live
	cfg := s.cfgMgr.Get()

	if !cfg.Tracker.Enabled {
		logger.Debug("[tracker] disabled, skipping")
		return nil, nil
	}

	if !s.running.TryLock() {
		logger.Warn("⏭️  [tracker] Run already in progress, skipping")
		return nil, ErrAlreadyRunning
	}
	defer s.running.Unlock()

	startTime := time.Now()
	dryRun := cfg.Scheduler.DryRun

	logger.Info("")
	logger.Info("┌──────────────────────────────────────────────────────────────┐")
	logger.Info("│               TRACKER PROCESSING STARTED                     │")
	logger.Info("└──────────────────────────────────────────────────────────────┘")

	ids := uniqueIDs(cfg.Tracker.Shows)
	s.prune(ids)

	if len(ids) == 0 {
		logger.Info("[tracker] No shows configured")
		s.storeResults(nil)
		return nil, nil
	}

	logger.Infof("[tracker] Checking %d shows", len(ids))

	entries := s.source.BatchShowStatus(ctx, ids, true)

	results := make([]CheckResult, 0, len(entries))
	for _, entry := range entries {
		results = append(results, s.check(entry))
	}

	s.storeResults(results)
	s.printSummary(results, startTime, dryRun)
	s.sendNotification(ctx, results, cfg.Tracker.NotifyStatuses(), dryRun)

	if countChange(results, ChangeError) == len(results) {
		err := fmt.Errorf("all %d lookups failed, first: %s", len(results), results[0].Error)
		s.sendFailure(ctx, err)
		return results, err
	}
	return results, nil
}

func (s *Service) check(entry availability.BatchEntry) CheckResult {
	res := CheckResult{TMDBID: entry.TMDBID}

	prev, seen := s.store.Get(entry.TMDBID)
	if seen {
		res.ShowTitle = prev.Name
		res.From = prev.Status
	}

	if entry.Show == nil {
		res.Change = ChangeError
		res.Error = entry.Error
		if res.Error == "" {
			res.Error = "no status returned"
		}
		return res
	}

	show := entry.Show
	res.ShowTitle = show.Name
	res.To = show.Result.Status
	res.Summary = show.Result.Summary

	switch {
	case !seen:
		res.Change = ChangeNew
	case prev.Status != show.Result.Status || prev.Summary != show.Result.Summary:
		res.Change = ChangeChanged
	default:
		res.Change = ChangeUnchanged
	}

	if res.Change != ChangeUnchanged || prev.Name != show.Name {
		err := s.store.Put(Entry{
			TMDBID:    show.TMDBID,
			Name:      show.Name,
			Status:    show.Result.Status,
			Summary:   show.Result.Summary,
			Total:     show.Result.Total,
			UpdatedAt: time.Now(),
		})
		if err != nil {
			logger.Warnf("⚠️  [tracker] Failed to persist state for %q: %v", show.Name, err)
		}
	}

	return res
}

// prune drops persisted shows that are no longer configured.
func (s *Service) prune(ids []int) {
	keep := make(map[int]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	for _, e := range s.store.All() {
		if keep[e.TMDBID] {
			continue
		}
		if err := s.store.Remove(e.TMDBID); err != nil {
			logger.Warnf("⚠️  [tracker] Failed to drop %q from state: %v", e.Name, err)
			continue
		}
		logger.Debugf("[tracker] No longer tracking %q (TMDB=%d)", e.Name, e.TMDBID)
	}
}

func (s *Service) storeResults(results []CheckResult) {
	s.mu.Lock()
	s.lastRun = time.Now()
	s.lastResults = results
	s.mu.Unlock()
}

// transitionKind classifies a change for notifications.
func transitionKind(from, to status.Status) string {
	switch {
	case to == status.FullyAvailable:
		return apprise.KindAvailable
	case from == status.FullyAvailable:
		return apprise.KindRegressed
	default:
		return apprise.KindProgress
	}
}

// notifiable returns the changes worth a notification. First sightings are
// recorded silently so a fresh install does not flood the channel.
func notifiable(results []CheckResult, notifyOn map[status.Status]bool) []apprise.TransitionDetail {
	var details []apprise.TransitionDetail
	for _, r := range results {
		if r.Change != ChangeChanged {
			continue
		}
		if notifyOn != nil && !notifyOn[r.To] {
			continue
		}
		details = append(details, apprise.TransitionDetail{
			ShowTitle: r.ShowTitle,
			TMDBID:    r.TMDBID,
			From:      string(r.From),
			To:        string(r.To),
			Summary:   r.Summary,
			Kind:      transitionKind(r.From, r.To),
		})
	}
	return details
}

func (s *Service) sendNotification(ctx context.Context, results []CheckResult, notifyOn map[status.Status]bool, dryRun bool) {
	if !s.apprise.IsEnabled() {
		return
	}

	details := notifiable(results, notifyOn)
	if len(details) == 0 {
		logger.Debug("[tracker] Nothing to notify")
		return
	}

	logger.Info("🔔 Sending notification...")
	formatter := &apprise.SlackFormatter{}

	title := "📺 Request Status Changes"
	if dryRun {
		title += " (DRY RUN)"
	}

	body := formatter.FormatTransitions(details, dryRun)
	if err := s.apprise.Send(ctx, apprise.Message{Title: title, Body: body, Type: notifyTypeFor(details)}); err != nil {
		logger.Warnf("🔔 Failed to send notification: %v", err)
	} else {
		logger.Info("🔔 Notification sent successfully")
	}
}

// notifyTypeFor picks the severity: anything newly available wins, then regressions.
func notifyTypeFor(details []apprise.TransitionDetail) apprise.NotifyType {
	notifyType := apprise.NotifyInfo
	for _, d := range details {
		switch d.Kind {
		case apprise.KindAvailable:
			return apprise.NotifySuccess
		case apprise.KindRegressed:
			notifyType = apprise.NotifyWarning
		}
	}
	return notifyType
}

func (s *Service) sendFailure(ctx context.Context, runErr error) {
	if !s.apprise.IsEnabled() {
		return
	}
	if err := s.apprise.Send(ctx, apprise.Message{
		Title:  "📺 Tracker Failing",
		Body:   runErr.Error(),
		Type:   apprise.NotifyFailure,
		Format: apprise.FormatText,
	}); err != nil {
		logger.Warnf("🔔 Failed to send failure notification: %v", err)
	}
}

func (s *Service) printSummary(results []CheckResult, startTime time.Time, dryRun bool) {
	var changed, added, errs []string

	for _, r := range results {
		switch r.Change {
		case ChangeChanged:
			line := fmt.Sprintf("   🔄 %-33s %s → %s", r.ShowTitle, r.From, r.To)
			if r.Summary != "" {
				line += fmt.Sprintf("  (%s)", r.Summary)
			}
			changed = append(changed, line)
		case ChangeNew:
			added = append(added, fmt.Sprintf("   🆕 %-33s %s", r.ShowTitle, r.To))
		case ChangeError:
			title := r.ShowTitle
			if title == "" {
				title = fmt.Sprintf("TMDB=%d", r.TMDBID)
			}
			errs = append(errs, fmt.Sprintf("   ❌ %-33s ← %s", title, r.Error))
		}
	}

	logger.Info("")
	logger.Info("┌──────────────────────────────────────────────────────────────┐")
	logger.Info("│                    TRACKER RESULTS                           │")
	logger.Info("└──────────────────────────────────────────────────────────────┘")

	if dryRun {
		logger.Warn("⚠️  DRY RUN MODE")
	}

	if len(changed) > 0 {
		logger.Info("")
		logger.Infof("🔄 CHANGED (%d):", len(changed))
		logger.Info(strings.Join(changed, "\n"))
	}

	if len(added) > 0 {
		logger.Info("")
		logger.Infof("🆕 NEW (%d):", len(added))
		logger.Info(strings.Join(added, "\n"))
	}

	if len(errs) > 0 {
		logger.Info("")
		logger.Errorf("❌ ERRORS (%d):", len(errs))
		logger.Error(strings.Join(errs, "\n"))
	}

	logger.Info("")
	logger.Info("────────────────────────────────────────────────────────────────")
	logger.Infof("📺 %d tracked, %d changed, %d unchanged", len(results), len(changed), countChange(results, ChangeUnchanged))
	logger.Infof("⏱️  Completed in %v", time.Since(startTime).Round(time.Millisecond))
	logger.Info("")
}

func countChange(results []CheckResult, change string) int {
	n := 0
	for _, r := range results {
		if r.Change == change {
			n++
		}
	}
	return n
}

func uniqueIDs(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// Reset forgets every recorded status. The next run records silently again.
func (s *Service) Reset() error {
	if !s.running.TryLock() {
		return ErrAlreadyRunning
	}
	defer s.running.Unlock()

	if err := s.store.Clear(); err != nil {
		return fmt.Errorf("clearing tracker state: %w", err)
	}

	s.mu.Lock()
	s.lastResults = nil
	s.mu.Unlock()

	logger.Info("🧹 [tracker] State cleared")
	return nil
}

// Stats summarises the last run
type Stats struct {
	LastRun   time.Time     `json:"last_run"`
	Tracked   int           `json:"tracked"`
	New       int           `json:"new"`
	Changed   int           `json:"changed"`
	Unchanged int           `json:"unchanged"`
	Errors    int           `json:"errors"`
	Results   []CheckResult `json:"results,omitempty"`
	State     []Entry       `json:"state"`
}

func (s *Service) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		LastRun:   s.lastRun,
		Tracked:   len(s.lastResults),
		New:       countChange(s.lastResults, ChangeNew),
		Changed:   countChange(s.lastResults, ChangeChanged),
		Unchanged: countChange(s.lastResults, ChangeUnchanged),
		Errors:    countChange(s.lastResults, ChangeError),
		Results:   s.lastResults,
		State:     s.store.All(),
	}
}
