package lsmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"littlesite/internal/lsanalytics"
	"littlesite/internal/lsgeoip"
)

func setupTrackedRouter(t *testing.T) (*gin.Engine, *lsanalytics.Store) {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	store := lsanalytics.NewStore(db)
	require.NoError(t, store.EnsureSchema())

	tracker := NewTracker(store, lsgeoip.New(""), false)

	r := gin.New()
	r.Use(tracker.Middleware())
	htmlBody := func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte("<html></html>"))
	}
	r.GET("/", htmlBody)
	r.GET("/about", htmlBody)
	r.GET("/admin/analytics", htmlBody)
	r.GET("/api/data", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/json", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/broken", func(c *gin.Context) {
		c.Data(http.StatusInternalServerError, "text/html; charset=utf-8", []byte("oops"))
	})

	return r, store
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookie {
			return c
		}
	}
	return nil
}

func TestTrackerFirstVisit(t *testing.T) {
	r, store := setupTrackedRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 Firefox/120.0")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	// Un cookie de session est posé pour le nouveau visiteur
	cookie := sessionCookie(t, w)
	require.NotNil(t, cookie)
	assert.Len(t, cookie.Value, 32) // 128 bits en hexadécimal
	assert.True(t, cookie.HttpOnly)
	assert.False(t, cookie.Secure) // hors production
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, "/", cookie.Path)

	views, err := store.CountTotalViews()
	require.NoError(t, err)
	assert.Equal(t, int64(1), views)

	visitors, err := store.CountUniqueVisitors()
	require.NoError(t, err)
	assert.Equal(t, int64(1), visitors)

	recent, err := store.RecentViews(1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "/", recent[0].PageURL)
	assert.Equal(t, cookie.Value, recent[0].SessionID)
	assert.Equal(t, "Mozilla/5.0 Firefox/120.0", recent[0].UserAgent)
}

func TestTrackerReturningVisitor(t *testing.T) {
	r, store := setupTrackedRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	r.ServeHTTP(w, req)
	cookie := sessionCookie(t, w)
	require.NotNil(t, cookie)

	// Seconde visite avec le cookie : même visiteur, nouvelle vue
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/about", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: cookie.Value})
	r.ServeHTTP(w, req)

	assert.Nil(t, sessionCookie(t, w), "pas de nouveau cookie pour un visiteur connu")

	views, err := store.CountTotalViews()
	require.NoError(t, err)
	assert.Equal(t, int64(2), views)

	visitors, err := store.CountUniqueVisitors()
	require.NoError(t, err)
	assert.Equal(t, int64(1), visitors)
}

func TestTrackerExcludedPaths(t *testing.T) {
	r, store := setupTrackedRouter(t)

	for _, path := range []string{"/admin/analytics", "/api/data"} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", path, nil)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Nil(t, sessionCookie(t, w), "pas de cookie sur %s", path)
	}

	views, err := store.CountTotalViews()
	require.NoError(t, err)
	assert.Equal(t, int64(0), views)
}

func TestTrackerIgnoresNonHTML(t *testing.T) {
	r, store := setupTrackedRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/json", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	views, err := store.CountTotalViews()
	require.NoError(t, err)
	assert.Equal(t, int64(0), views)
}

func TestTrackerIgnoresErrors(t *testing.T) {
	r, store := setupTrackedRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/broken", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	views, err := store.CountTotalViews()
	require.NoError(t, err)
	assert.Equal(t, int64(0), views)
}

func TestTrackerClientIP(t *testing.T) {
	r, store := setupTrackedRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	r.ServeHTTP(w, req)

	recent, err := store.RecentViews(1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	// Première valeur de X-Forwarded-For
	assert.Equal(t, "203.0.113.9", recent[0].IPAddress)
}

func TestNewSessionID(t *testing.T) {
	a := newSessionID()
	b := newSessionID()

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

func TestTrackerLastVisitAdvances(t *testing.T) {
	r, store := setupTrackedRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	r.ServeHTTP(w, req)
	cookie := sessionCookie(t, w)
	require.NotNil(t, cookie)

	time.Sleep(10 * time.Millisecond)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/about", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: cookie.Value})
	r.ServeHTTP(w, req)

	recent, err := store.RecentViews(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.True(t, recent[0].CreatedAt.After(recent[1].CreatedAt))
}
