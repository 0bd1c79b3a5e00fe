package lsmiddleware

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"littlesite/internal/lsanalytics"
	"littlesite/internal/lsgeoip"
)

// SessionCookie est le cookie d'identité de session du tracking
const SessionCookie = "_session_id"

// sessionMaxAge : 30 jours
const sessionMaxAge = 30 * 24 * 60 * 60

// excludedPrefixes : les assets et l'administration ne sont jamais
// comptés comme des vues de page
var excludedPrefixes = []string{"/static/", "/files/", "/admin/", "/api/"}

// Tracker enregistre les vues de page qualifiées : réponse 200 en
// HTML, hors préfixes exclus. Le tracking est best-effort, une erreur
// de stockage ne casse jamais le chargement de la page.
type Tracker struct {
	Store      *lsanalytics.Store
	Geo        *lsgeoip.Resolver
	Production bool
}

func NewTracker(store *lsanalytics.Store, geo *lsgeoip.Resolver, production bool) *Tracker {
	return &Tracker{
		Store:      store,
		Geo:        geo,
		Production: production,
	}
}

func (t *Tracker) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if isExcludedPath(path) {
			c.Next()
			return
		}

		// Résoudre ou créer l'identité de session avant le handler :
		// le cookie doit partir avec les en-têtes de la réponse
		sessionID := t.resolveSession(c)

		c.Next()

		// Seules les réponses 200 en HTML sont des vues de page
		if c.Writer.Status() != http.StatusOK {
			return
		}
		if !strings.Contains(c.Writer.Header().Get("Content-Type"), "text/html") {
			return
		}

		t.record(c, sessionID, path)
	}
}

// resolveSession lit le cookie de session ou en crée un nouveau.
// La valeur fournie par le client est une clé opaque, jamais validée.
func (t *Tracker) resolveSession(c *gin.Context) string {
	sessionID, err := c.Cookie(SessionCookie)
	if err == nil && sessionID != "" {
		return sessionID
	}

	sessionID = newSessionID()

	// SameSite=Lax, HttpOnly, Secure seulement en production pour
	// que le cookie fonctionne en HTTP local pendant le dev
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(
		SessionCookie,
		sessionID,
		sessionMaxAge,
		"/",
		"",
		t.Production,
		true,
	)

	return sessionID
}

// newSessionID génère un identifiant aléatoire de 128 bits
func newSessionID() string {
	randomBytes := make([]byte, 16)
	rand.Read(randomBytes)
	return hex.EncodeToString(randomBytes)
}

func (t *Tracker) record(c *gin.Context, sessionID, path string) {
	ipAddress := t.clientIP(c)

	view := &lsanalytics.PageView{
		SessionID: sessionID,
		PageURL:   path,
		IPAddress: ipAddress,
		UserAgent: c.Request.UserAgent(),
		Referrer:  c.Request.Referer(),
		Country:   t.Geo.Country(ipAddress),
		CreatedAt: time.Now(),
	}

	if err := t.Store.RecordVisit(view); err != nil {
		// Ne jamais faire échouer la requête pour le tracking
		log.Error().
			Err(err).
			Str("path", path).
			Msg("Erreur enregistrement vue de page")
	}
}

// clientIP privilégie la première valeur de X-Forwarded-For.
// Donnée best-effort : l'en-tête est trivialement falsifiable,
// jamais utilisée comme signal de sécurité.
func (t *Tracker) clientIP(c *gin.Context) string {
	ip := c.GetHeader("X-Forwarded-For")
	if ip != "" {
		ips := strings.Split(ip, ",")
		return strings.TrimSpace(ips[0])
	}
	return c.ClientIP()
}

func isExcludedPath(path string) bool {
	for _, prefix := range excludedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
