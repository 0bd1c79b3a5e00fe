package handlers_analytics

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"littlesite/internal/lsanalytics"
)

type AnalyticsHandler struct {
	service *lsanalytics.Service
}

func New(service *lsanalytics.Service) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: service,
	}
}

// GetDashboard retourne les statistiques du tableau de bord.
// Une erreur de lecture remonte en 500 : l'opérateur doit voir
// que le dashboard est cassé.
func (ah *AnalyticsHandler) GetDashboard(c *gin.Context) {
	stats, err := ah.service.Dashboard()
	if err != nil {
		log.Error().Err(err).Msg("Erreur agrégation dashboard")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve analytics",
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetChart retourne les visites des 7 derniers jours, deux
// séquences parallèles dates / visites pour le graphique.
func (ah *AnalyticsHandler) GetChart(c *gin.Context) {
	chart, err := ah.service.Chart7Days()
	if err != nil {
		log.Error().Err(err).Msg("Erreur agrégation graphique")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve chart data",
		})
		return
	}

	c.JSON(http.StatusOK, chart)
}
