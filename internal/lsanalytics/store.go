package lsanalytics

import (
	"fmt"
	"sort"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"littlesite/internal/gormzerologger"
	"littlesite/internal/lsconfig"
)

// Store est la couche de persistance analytics : deux tables dans
// l'embarqué sqlite (ou mysql), aucune mise en cache mémoire.
type Store struct {
	db *gorm.DB
}

// Open ouvre la base analytics selon la configuration.
func Open(cfg lsconfig.DatabaseConfig, logLevel string) (*Store, error) {
	gormConfig := &gorm.Config{
		Logger: gormzerologger.New(logLevel),
	}

	var db *gorm.DB
	var err error
	switch cfg.Db {
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(cfg.Path), gormConfig)
	case "mysql":
		db, err = gorm.Open(mysql.Open(cfg.Dsn), gormConfig)
	default:
		err = fmt.Errorf("le type de database doit etre sqlite ou mysql")
	}
	if err != nil {
		return nil, fmt.Errorf("erreur connexion base de données: %w", err)
	}

	return &Store{db: db}, nil
}

// NewStore enveloppe une connexion existante (tests).
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema crée les tables si absentes. Idempotent, appelé à
// chaque démarrage avant de servir la moindre requête.
func (s *Store) EnsureSchema() error {
	return s.db.AutoMigrate(&PageView{}, &Visitor{})
}

// UpsertVisitor insère le visiteur à sa première visite
// (first_visit = last_visit = now) et ne met à jour que last_visit
// ensuite. Atomique via ON CONFLICT, pas de double insertion possible.
func (s *Store) UpsertVisitor(sessionID string, now time.Time) error {
	return s.upsertVisitor(s.db, sessionID, now)
}

func (s *Store) upsertVisitor(tx *gorm.DB, sessionID string, now time.Time) error {
	visitor := Visitor{
		SessionID:  sessionID,
		FirstVisit: now,
		LastVisit:  now,
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"last_visit": now}),
	}).Create(&visitor).Error
}

// InsertPageView ajoute une ligne au journal des vues.
func (s *Store) InsertPageView(view *PageView) error {
	return s.db.Create(view).Error
}

// RecordVisit effectue l'upsert visiteur et l'insertion de la vue
// dans une même transaction : les deux écritures de la requête
// réussissent ou échouent ensemble.
func (s *Store) RecordVisit(view *PageView) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.upsertVisitor(tx, view.SessionID, view.CreatedAt); err != nil {
			return fmt.Errorf("upsert visiteur: %w", err)
		}
		if err := tx.Create(view).Error; err != nil {
			return fmt.Errorf("insertion vue: %w", err)
		}
		return nil
	})
}

func (s *Store) CountTotalViews() (int64, error) {
	var count int64
	err := s.db.Model(&PageView{}).Count(&count).Error
	return count, err
}

func (s *Store) CountUniqueVisitors() (int64, error) {
	var count int64
	err := s.db.Model(&Visitor{}).Count(&count).Error
	return count, err
}

// CountViewsInRange compte les vues sur l'intervalle semi-ouvert [start, end).
func (s *Store) CountViewsInRange(start, end time.Time) (int64, error) {
	var count int64
	err := s.db.Model(&PageView{}).
		Where("created_at >= ? AND created_at < ?", start, end).
		Count(&count).Error
	return count, err
}

// TopPages renvoie les pages les plus vues, par nombre de vues
// décroissant. L'ordre des ex-aequo n'est pas garanti.
func (s *Store) TopPages(limit int) ([]PageStat, error) {
	var pages []PageStat
	err := s.db.Model(&PageView{}).
		Select("page_url, COUNT(*) as views, MAX(created_at) as last_viewed").
		Group("page_url").
		Order("views DESC").
		Limit(limit).
		Scan(&pages).Error
	if err != nil {
		return nil, fmt.Errorf("error getting top pages: %w", err)
	}
	return pages, nil
}

// RecentViews renvoie les dernières vues, les plus récentes d'abord.
func (s *Store) RecentViews(limit int) ([]PageView, error) {
	var views []PageView
	err := s.db.
		Order("created_at DESC").
		Limit(limit).
		Find(&views).Error
	if err != nil {
		return nil, fmt.Errorf("error getting recent views: %w", err)
	}
	return views, nil
}

// BrowserBreakdown classe chaque user-agent dans une catégorie fixe
// et agrège par nombre de vues décroissant. Le classement se fait en
// Go : LIKE n'est pas sensible à la casse sous sqlite.
func (s *Store) BrowserBreakdown() ([]BrowserStat, error) {
	type agentCount struct {
		UserAgent string
		Count     int64
	}

	var agents []agentCount
	err := s.db.Model(&PageView{}).
		Select("user_agent, COUNT(*) as count").
		Group("user_agent").
		Scan(&agents).Error
	if err != nil {
		return nil, fmt.Errorf("error getting browser breakdown: %w", err)
	}

	counts := make(map[string]int64)
	for _, agent := range agents {
		counts[ClassifyBrowser(agent.UserAgent)] += agent.Count
	}

	stats := make([]BrowserStat, 0, len(counts))
	for category, count := range counts {
		stats = append(stats, BrowserStat{Category: category, Count: count})
	}

	// Tri par total décroissant, ex-aequo par ordre de priorité des
	// catégories pour un résultat déterministe
	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return categoryRank(stats[i].Category) < categoryRank(stats[j].Category)
	})

	return stats, nil
}

func categoryRank(category string) int {
	for i, c := range browserCategories {
		if c == category {
			return i
		}
	}
	return len(browserCategories)
}

// VisitsPerDay renvoie le nombre de vues par jour calendaire depuis
// `since`, trié par date croissante. Les jours sans aucune vue sont
// omis du résultat.
func (s *Store) VisitsPerDay(since time.Time) ([]DailyCount, error) {
	var daily []DailyCount
	err := s.db.Model(&PageView{}).
		Select("DATE(created_at) as date, COUNT(*) as count").
		Where("created_at >= ?", since).
		Group("DATE(created_at)").
		Order("date ASC").
		Scan(&daily).Error
	if err != nil {
		return nil, fmt.Errorf("error getting daily visits: %w", err)
	}
	return daily, nil
}

// CleanupBefore purge les vues et les visiteurs inactifs antérieurs
// au seuil. Jamais appelé par le chemin de tracking : uniquement par
// le job de rétention.
func (s *Store) CleanupBefore(cutoff time.Time) (int64, error) {
	result := s.db.Where("created_at < ?", cutoff).Delete(&PageView{})
	if result.Error != nil {
		return 0, result.Error
	}
	deleted := result.RowsAffected

	result = s.db.Where("last_visit < ?", cutoff).Delete(&Visitor{})
	if result.Error != nil {
		return deleted, result.Error
	}

	return deleted + result.RowsAffected, nil
}
