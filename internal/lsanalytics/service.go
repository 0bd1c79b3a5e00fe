package lsanalytics

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Service expose les agrégations du tableau de bord. Lectures pures,
// sûres en concurrence avec le tracker ; une erreur de lecture remonte
// au handler, l'opérateur doit savoir que le dashboard est cassé.
type Service struct {
	store *Store
	cron  *cron.Cron
}

func NewService(store *Store, retentionDays int) *Service {
	s := &Service{store: store}
	if retentionDays > 0 {
		s.cron = setupCleanupCron(store, retentionDays)
	}
	return s
}

// DashboardStats regroupe les statistiques du tableau de bord
type DashboardStats struct {
	TotalViews     int64         `json:"total_views"`
	UniqueVisitors int64         `json:"unique_visitors"`
	ViewsToday     int64         `json:"views_today"`
	TopPages       []PageStat    `json:"top_pages"`
	RecentViews    []PageView    `json:"recent_views"`
	Browsers       []BrowserStat `json:"browsers"`
}

// ChartData contient deux séquences parallèles : dates ISO et nombre
// de visites, pour les 7 derniers jours glissants.
type ChartData struct {
	Dates  []string `json:"dates"`
	Visits []int64  `json:"visits"`
}

func (as *Service) Dashboard() (*DashboardStats, error) {
	stats := &DashboardStats{}

	var err error
	stats.TotalViews, err = as.store.CountTotalViews()
	if err != nil {
		return nil, fmt.Errorf("error counting page views: %w", err)
	}

	stats.UniqueVisitors, err = as.store.CountUniqueVisitors()
	if err != nil {
		return nil, fmt.Errorf("error counting unique visitors: %w", err)
	}

	// Journée locale courante, intervalle semi-ouvert
	dayStart := startOfDay(time.Now())
	stats.ViewsToday, err = as.store.CountViewsInRange(dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("error counting today views: %w", err)
	}

	stats.TopPages, err = as.store.TopPages(10)
	if err != nil {
		return nil, err
	}

	stats.RecentViews, err = as.store.RecentViews(20)
	if err != nil {
		return nil, err
	}

	stats.Browsers, err = as.store.BrowserBreakdown()
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// Chart7Days renvoie les visites par jour sur la fenêtre des 7
// derniers jours calendaires, aujourd'hui inclus. Les jours sans
// activité sont omis.
func (as *Service) Chart7Days() (*ChartData, error) {
	since := startOfDay(time.Now()).AddDate(0, 0, -6)

	daily, err := as.store.VisitsPerDay(since)
	if err != nil {
		return nil, err
	}

	chart := &ChartData{
		Dates:  make([]string, 0, len(daily)),
		Visits: make([]int64, 0, len(daily)),
	}
	for _, day := range daily {
		chart.Dates = append(chart.Dates, day.Date)
		chart.Visits = append(chart.Visits, day.Count)
	}

	return chart, nil
}

func (as *Service) Stop() {
	if as.cron != nil {
		as.cron.Stop()
	}
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

func setupCleanupCron(store *Store, retentionDays int) *cron.Cron {
	c := cron.New()

	// Purge tous les jours à 2h du matin
	c.AddFunc("0 2 * * *", func() {
		cutoff := time.Now().AddDate(0, 0, -retentionDays)
		deleted, err := store.CleanupBefore(cutoff)
		if err != nil {
			log.Error().Err(err).Msg("Purge analytics échouée")
			return
		}
		log.Info().
			Int64("deleted", deleted).
			Int("retention_days", retentionDays).
			Msg("Purge analytics terminée")
	})

	c.Start()
	return c
}
