package main

import (
	"bytes"
	"encoding/json"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/andskur/argon2-hashing"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"littlesite/internal/lsanalytics"
	"littlesite/internal/lscaptchas"
	"littlesite/internal/lsconfig"
	"littlesite/internal/lscontact"
	"littlesite/internal/lsgeoip"
	"littlesite/internal/lsmarkdown"
	"littlesite/internal/lsmiddleware"
	"littlesite/internal/lspages"
)

func setupTestSite(t *testing.T) (*gin.Engine, *site) {
	gin.SetMode(gin.TestMode)
	lsmarkdown.InitMarkdown()

	hash, err := argon2.GenerateFromPassword([]byte("motdepasse"), argon2.DefaultParams)
	require.NoError(t, err)

	conf := &lsconfig.Config{
		SiteName:    "Site de test",
		Description: "Un site vitrine de test",
		Menu: []lsconfig.MenuItem{
			{Key: "about", Value: "À propos"},
			{Key: "contact", Value: "Contact"},
		},
		User: lsconfig.UserConfig{
			Login: "admin",
			Hash:  string(hash),
		},
		Database: lsconfig.DatabaseConfig{
			Db:   "sqlite",
			Path: ":memory:",
		},
		Contact: lsconfig.ContactConfig{
			CSVPath: filepath.Join(t.TempDir(), "messages.csv"),
		},
	}

	store, err := lsanalytics.Open(conf.Database, "error")
	require.NoError(t, err)
	require.NoError(t, store.EnsureSchema())

	contentDir, err := fs.Sub(contentFS, "content")
	require.NoError(t, err)
	pages, err := lspages.NewStore("", contentDir)
	require.NoError(t, err)

	captcha := lscaptchas.New("", 0)
	s := &site{
		conf:    conf,
		pages:   pages,
		store:   store,
		service: lsanalytics.NewService(store, 0),
		captcha: captcha,
		contact: lscontact.New(conf.Contact.CSVPath, captcha),
	}
	t.Cleanup(s.service.Stop)

	r := newServer(conf)
	tracker := lsmiddleware.NewTracker(store, lsgeoip.New(""), conf.Production)
	s.setMiddleware(r, tracker)
	s.setRoutes(r)

	return r, s
}

func doGet(r *gin.Engine, path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	r.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, r *gin.Engine, username, password string) (*httptest.ResponseRecorder, []*http.Cookie) {
	t.Helper()
	body, _ := json.Marshal(gin.H{"username": username, "password": password})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/admin/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w, w.Result().Cookies()
}

func trackingCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == lsmiddleware.SessionCookie {
			return c
		}
	}
	return nil
}

func TestPageRendering(t *testing.T) {
	r, _ := setupTestSite(t)

	w := doGet(r, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "Site de test")

	w = doGet(r, "/about", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doGet(r, "/page-inexistante", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestContactPage(t *testing.T) {
	r, _ := setupTestSite(t)

	w := doGet(r, "/contact", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "submit_form")
}

func TestTrackingIntegration(t *testing.T) {
	r, s := setupTestSite(t)

	// Première visite : cookie posé, visiteur et vue enregistrés
	w := doGet(r, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cookie := trackingCookie(w)
	require.NotNil(t, cookie)

	views, err := s.store.CountTotalViews()
	require.NoError(t, err)
	assert.Equal(t, int64(1), views)

	visitors, err := s.store.CountUniqueVisitors()
	require.NoError(t, err)
	assert.Equal(t, int64(1), visitors)

	// Seconde visite avec le cookie : même visiteur, vue supplémentaire
	w = doGet(r, "/about", []*http.Cookie{cookie})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, trackingCookie(w))

	views, err = s.store.CountTotalViews()
	require.NoError(t, err)
	assert.Equal(t, int64(2), views)

	visitors, err = s.store.CountUniqueVisitors()
	require.NoError(t, err)
	assert.Equal(t, int64(1), visitors)

	recent, err := s.store.RecentViews(10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "/about", recent[0].PageURL)
	assert.Equal(t, "/", recent[1].PageURL)
}

func TestTrackingIgnores404AndAdmin(t *testing.T) {
	r, s := setupTestSite(t)

	doGet(r, "/page-inexistante", nil)
	doGet(r, "/admin/login", nil)
	doGet(r, "/robots.txt", nil)

	views, err := s.store.CountTotalViews()
	require.NoError(t, err)
	assert.Equal(t, int64(0), views)
}

func TestLoginFlow(t *testing.T) {
	r, _ := setupTestSite(t)

	// Mauvais identifiants
	w, _ := login(t, r, "admin", "mauvais-mot-de-passe")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = login(t, r, "inconnu", "motdepasse")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Bons identifiants : session créée
	w, cookies := login(t, r, "admin", "motdepasse")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, cookies)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "/admin/analytics", resp["redirect"])

	// La session donne accès au tableau de bord
	w2 := doGet(r, "/admin/analytics", cookies)
	assert.Equal(t, http.StatusOK, w2.Code)
	assert.Contains(t, w2.Body.String(), "Statistiques")
}

func TestAdminRequiresAuth(t *testing.T) {
	r, _ := setupTestSite(t)

	w := doGet(r, "/admin/analytics", nil)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "/admin/login", w.Header().Get("Location"))

	w = doGet(r, "/admin/api/analytics/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDashboardEndpoints(t *testing.T) {
	r, _ := setupTestSite(t)

	// Générer un peu de trafic public
	doGet(r, "/", nil)
	doGet(r, "/about", nil)

	_, cookies := login(t, r, "admin", "motdepasse")
	require.NotEmpty(t, cookies)

	w := doGet(r, "/admin/api/analytics/dashboard", cookies)
	require.Equal(t, http.StatusOK, w.Code)

	var stats lsanalytics.DashboardStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(2), stats.TotalViews)
	assert.Equal(t, int64(2), stats.UniqueVisitors)
	assert.NotEmpty(t, stats.TopPages)

	w = doGet(r, "/admin/api/analytics/chart", cookies)
	require.Equal(t, http.StatusOK, w.Code)

	var chart lsanalytics.ChartData
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &chart))
	assert.Equal(t, len(chart.Dates), len(chart.Visits))
}

func TestLogout(t *testing.T) {
	r, _ := setupTestSite(t)

	_, cookies := login(t, r, "admin", "motdepasse")
	require.NotEmpty(t, cookies)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/admin/logout", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	// La session effacée ne donne plus accès à l'administration
	w2 := doGet(r, "/admin/analytics", w.Result().Cookies())
	assert.Equal(t, http.StatusTemporaryRedirect, w2.Code)
}

func TestCaptchaEndpoint(t *testing.T) {
	r, _ := setupTestSite(t)

	w := doGet(r, "/api/captcha", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var data map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &data))
	assert.NotEmpty(t, data["captcha_id"])
	assert.NotEmpty(t, data["image"])
	// Hors production la réponse est exposée pour les tests
	assert.NotEmpty(t, data["answer"])
}

func TestServeMinifiedStatic(t *testing.T) {
	r, _ := setupTestSite(t)

	w := doGet(r, "/files/css/site.css", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/css")
	assert.Contains(t, w.Header().Get("Cache-Control"), "max-age")

	w = doGet(r, "/files/css/inexistant.css", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSitemapIncludesContentPages(t *testing.T) {
	r, _ := setupTestSite(t)

	w := doGet(r, "/sitemap.xml", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<loc>")
	assert.Contains(t, w.Body.String(), "/about</loc>")
}
