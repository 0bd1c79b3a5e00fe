package lsanalytics

import "time"

// PageView représente une vue de page. Journal en append seul :
// jamais modifié ni supprimé par le chemin de tracking.
type PageView struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	SessionID string    `gorm:"index;not null" json:"session_id"`
	PageURL   string    `gorm:"index;not null" json:"page_url"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	Referrer  string    `json:"referrer"`
	Country   string    `json:"country"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// Visitor représente une session de navigation : exactement une
// ligne par session_id, maintenue par upsert.
type Visitor struct {
	SessionID  string    `gorm:"primaryKey" json:"session_id"`
	FirstVisit time.Time `json:"first_visit"`
	LastVisit  time.Time `json:"last_visit"`
}

func (PageView) TableName() string {
	return "page_views"
}

func (Visitor) TableName() string {
	return "visitors"
}

// PageStat est une entrée du top des pages
type PageStat struct {
	PageURL    string    `json:"page_url"`
	Views      int64     `json:"views"`
	LastViewed time.Time `json:"last_viewed"`
}

// BrowserStat est une entrée de la répartition par navigateur
type BrowserStat struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// DailyCount est le nombre de vues d'un jour calendaire
type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}
