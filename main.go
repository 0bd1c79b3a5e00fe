package main

import (
	"embed"
	"flag"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/andskur/argon2-hashing"
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	htmlmin "github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"

	handlers_analytics "littlesite/internal/handlers/analytics"
	"littlesite/internal/lsanalytics"
	"littlesite/internal/lscaptchas"
	"littlesite/internal/lsconfig"
	"littlesite/internal/lscontact"
	"littlesite/internal/lsgeoip"
	"littlesite/internal/lslog"
	"littlesite/internal/lsmarkdown"
	"littlesite/internal/lsmiddleware"
	"littlesite/internal/lspages"
	"littlesite/internal/lssitemap"
)

const VERSION string = "0.2.0"

var BuildID string

//go:embed templates/**/*.html
var templatesFS embed.FS

//go:embed ressources/css
//go:embed ressources/js
var staticFS embed.FS

//go:embed content/*.md
var contentFS embed.FS

// site regroupe les dépendances injectées dans les handlers
type site struct {
	conf    *lsconfig.Config
	pages   *lspages.Store
	store   *lsanalytics.Store
	service *lsanalytics.Service
	captcha *lscaptchas.Captchas
	contact *lscontact.Contact
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func parseCommandLineArgs() (configFile string, shouldCreateExample bool, versionDisplay bool, err error) {
	var config = flag.String("config", "", "Fichier de configuration YAML")
	var example = flag.Bool("example", false, "Créer un fichier de configuration exemple")
	var version = flag.Bool("version", false, "version du produit")
	flag.Parse()

	if *version {
		return "", false, true, nil
	}

	if *example {
		return "", true, false, nil
	}

	if *config == "" {
		return "", false, false, fmt.Errorf("fichier de configuration requis")
	}

	return *config, false, false, nil
}

func handleExampleCreation(filename string) error {
	if filename == "" {
		filename = "littlesite.yaml"
	}
	if err := lsconfig.CreateExampleConfig(filename); err != nil {
		return fmt.Errorf("erreur création exemple: %v", err)
	}

	fmt.Printf("✅ Fichier exemple créé: %s\n", filename)
	fmt.Println("⚠️  user.pass sera automatiquement hashé en argon2 dans user.hash au premier lancement")
	return nil
}

func initConfiguration() *lsconfig.Config {
	configFile, shouldCreateExample, versionDisplay, err := parseCommandLineArgs()
	if err != nil {
		fmt.Println("Usage:")
		fmt.Println("  littlesite -config littlesite.yaml")
		fmt.Println("  littlesite -example  (pour créer un fichier exemple)")
		fmt.Println("  littlesite -version  (affiche la version)")
		os.Exit(1)
	}

	if versionDisplay {
		println(VERSION)
		os.Exit(0)
	}

	if shouldCreateExample {
		if err := handleExampleCreation(""); err != nil {
			fmt.Printf("❌ %v\n", err)
		}
		os.Exit(1)
	}

	if _, err := os.Stat(configFile); err != nil && os.IsNotExist(err) {
		if err := handleExampleCreation(configFile); err != nil {
			fmt.Printf("❌ %v\n", err)
			os.Exit(1)
		}
	}

	conf, err := lsconfig.Load(configFile)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	return conf
}

func newSite(conf *lsconfig.Config) *site {
	// Niveau du logger GORM aligné sur le logger applicatif
	level := "warn"
	if conf.Logger.Level == "debug" || !conf.Production {
		level = "trace"
	}

	store, err := lsanalytics.Open(conf.Database, level)
	if err != nil {
		log.Fatal().Err(err).Msg("Erreur connexion base de données")
	}

	// La création du schéma doit réussir avant de servir la moindre requête
	if err := store.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Erreur migration")
	}

	contentDir, err := fs.Sub(contentFS, "content")
	if err != nil {
		log.Fatal().Err(err).Msg("Erreur contenu embarqué")
	}
	pages, err := lspages.NewStore(conf.ContentPath, contentDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Erreur chargement pages")
	}

	captcha := lscaptchas.New(conf.Database.Redis.Addr, conf.Database.Redis.Db)

	return &site{
		conf:    conf,
		pages:   pages,
		store:   store,
		service: lsanalytics.NewService(store, conf.Analytics.RetentionDays),
		captcha: captcha,
		contact: lscontact.New(conf.Contact.CSVPath, captcha),
	}
}

func getTemplates(production bool) *template.Template {
	m := minify.New()

	if production {
		m.AddFunc("text/html", htmlmin.Minify)
	}

	tmpl := template.New("")

	// Lire tous les fichiers HTML
	fs.WalkDir(templatesFS, "templates", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(path) != ".html" {
			return err
		}

		content, _ := fs.ReadFile(templatesFS, path)
		minified, err := m.Bytes("text/html", content)
		if err != nil {
			minified = content
		}

		tmpl.New(path).Parse(string(minified))
		return nil
	})

	return tmpl
}

// ServeMinifiedStatic sert les assets embarqués CSS/JS minifiés
func ServeMinifiedStatic(m *minify.M) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := filepath.Clean(c.Param("filepath"))
		kind := c.Param("kind")
		content, err := fs.ReadFile(staticFS, "ressources/"+kind+path)
		if err != nil {
			c.String(http.StatusNotFound, "Fichier non trouvé")
			return
		}

		var contentType string
		var minified []byte

		switch filepath.Ext(path) {
		case ".css":
			contentType = "text/css"
			minified, err = m.Bytes("text/css", content)
		case ".js":
			contentType = "application/javascript"
			minified, err = m.Bytes("application/javascript", content)
		default:
			c.Data(http.StatusOK, "application/octet-stream", content)
			return
		}

		if err != nil {
			minified = content
		}

		// En-têtes de cache pour CSS et JS
		c.Header("Cache-Control", "public, max-age=31536000, immutable")
		c.Data(http.StatusOK, contentType, minified)
	}
}

func newServer(conf *lsconfig.Config) *gin.Engine {
	if conf.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	if conf.TrustedProxies != nil {
		r.SetTrustedProxies(conf.TrustedProxies)
	}
	if conf.TrustedPlatform != "" {
		switch conf.TrustedPlatform {
		case "google":
			r.TrustedPlatform = gin.PlatformGoogleAppEngine
		case "flyio":
			r.TrustedPlatform = gin.PlatformFlyIO
		default:
			r.TrustedPlatform = conf.TrustedPlatform
		}
	}

	// parser les templates
	r.SetHTMLTemplate(getTemplates(conf.Production))

	return r
}

func (s *site) setMiddleware(r *gin.Engine, tracker *lsmiddleware.Tracker) {
	// logger
	r.Use(lsmiddleware.Logger())
	r.Use(lsmiddleware.Recovery())

	// use Compression, with gzip
	r.Use(gzip.Gzip(gzip.BestSpeed))

	// Configuration des sessions
	r.Use(lsmiddleware.NewSession(s.conf.Production))

	// Calculate time elapsed
	r.Use(lsmiddleware.RenderTime())

	// CORS
	r.Use(lsmiddleware.CORS)

	// Tracking des vues de page
	r.Use(tracker.Middleware())
}

func (s *site) setRoutes(r *gin.Engine) {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("application/javascript", js.Minify)

	// middleware rate limiter
	middlewareLimiter := lsmiddleware.NewLimiter()

	//default
	r.NoRoute(func(c *gin.Context) {
		s.pageNotFound(c, "Page non trouvée")
	})

	// Routes statiques
	if s.conf.StaticPath != "" {
		r.Static("/static/", s.conf.StaticPath)
	}
	r.GET("/files/:kind/*filepath", ServeMinifiedStatic(m))
	r.GET("/api/captcha", s.captcha.Handler(s.conf.Production))

	// Routes publiques
	r.GET("/", s.pageHandler)
	r.GET("/contact", s.contactPageHandler)
	r.GET("/:page", s.pageHandler)
	r.POST("/submit_form", middlewareLimiter, s.contact.SubmitHandler)
	r.GET("/submit_form", s.contact.WrongMethodHandler)

	// SEO
	r.GET("/sitemap.xml", lssitemap.Handler(s.pages, s.conf.BaseURL))
	r.GET("/robots.txt", lssitemap.RobotsHandler(s.conf.BaseURL))

	// Routes d'authentification
	r.GET("/admin/login", s.loginPageHandler)
	r.POST("/admin/login", middlewareLimiter, s.loginHandler)
	r.POST("/admin/logout", s.logoutHandler)

	// Routes d'administration protégées
	analyticsHandler := handlers_analytics.New(s.service)
	admin := r.Group("/admin")
	admin.Use(lsmiddleware.AuthRequired())
	{
		admin.GET("/", func(c *gin.Context) {
			c.Redirect(http.StatusTemporaryRedirect, "/admin/analytics")
		})
		admin.GET("/analytics", s.adminAnalyticsHandler)
		admin.GET("/api/analytics/dashboard", analyticsHandler.GetDashboard)
		admin.GET("/api/analytics/chart", analyticsHandler.GetChart)
	}
}

func startServer(conf *lsconfig.Config, r *gin.Engine) {
	log.Info().Msgf("Website démarré sur http://%s", conf.Listen.Website)
	log.Info().Msgf("Admin: http://%s/admin/login", conf.Listen.Website)
	r.Run(conf.Listen.Website)
}

func main() {
	if BuildID == "" {
		BuildID = VERSION
	}

	conf := initConfiguration()
	lslog.InitLogger(conf.Logger, conf.Production)
	lsmarkdown.InitMarkdown()

	s := newSite(conf)

	geo := lsgeoip.New(conf.Analytics.GeoDB)
	defer geo.Close()
	tracker := lsmiddleware.NewTracker(s.store, geo, conf.Production)

	r := newServer(conf)
	s.setMiddleware(r, tracker)
	s.setRoutes(r)

	startServer(conf, r)
}

// ============= HANDLERS PUBLICS =============

func (s *site) templateData(c *gin.Context, page *lspages.Page, active string) gin.H {
	session := sessions.Default(c)
	isAdmin := session.Get("user_id") != nil

	data := gin.H{
		"siteName":        s.conf.SiteName,
		"description":     s.conf.Description,
		"isAuthenticated": isAdmin,
		"currentYear":     time.Now().Year(),
		"version":         VERSION,
		"BuildID":         BuildID,
		"menu":            lspages.GenerateMenu(s.conf.Menu, active),
		"renderTime":      lsmiddleware.GetRenderTime(c),
	}

	if page != nil {
		data["title"] = page.Title
		data["description"] = page.Description
		data["content"] = page.HTML
	}

	return data
}

func (s *site) pageHandler(c *gin.Context) {
	slug := c.Param("page")
	if slug == "" {
		slug = "index"
	}

	page, ok := s.pages.Get(slug)
	if !ok {
		s.pageNotFound(c, "Page non trouvée")
		return
	}

	c.HTML(http.StatusOK, "templates/site/page.html", s.templateData(c, page, slug))
}

func (s *site) contactPageHandler(c *gin.Context) {
	data := s.templateData(c, nil, "contact")
	data["title"] = "Contact"

	// Contenu d'introduction optionnel au dessus du formulaire
	if page, ok := s.pages.Get("contact"); ok {
		data["content"] = page.HTML
	}

	c.HTML(http.StatusOK, "templates/site/contact.html", data)
}

func (s *site) pageNotFound(c *gin.Context, title string) {
	data := s.templateData(c, nil, "")
	data["title"] = title
	data["description"] = "La page que vous recherchez n'existe pas."

	c.HTML(http.StatusNotFound, "templates/site/404.html", data)
}

// ============= HANDLERS D'AUTHENTIFICATION =============

func (s *site) loginPageHandler(c *gin.Context) {
	session := sessions.Default(c)
	if session.Get("user_id") != nil {
		c.Redirect(http.StatusTemporaryRedirect, "/admin/analytics")
		return
	}

	data := s.templateData(c, nil, "")
	data["title"] = "Connexion Admin"

	c.HTML(http.StatusOK, "templates/admin/login.html", data)
}

func (s *site) loginHandler(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}

	// Vérification login / pass
	err := argon2.CompareHashAndPassword([]byte(s.conf.User.Hash), []byte(req.Password))
	if err != nil || req.Username != s.conf.User.Login {
		log.Warn().
			Str("user", req.Username).
			Str("ip", c.ClientIP()).
			Msg("Tentative de connexion échouée")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Identifiants incorrects"})
		return
	}
	log.Info().
		Str("user", req.Username).
		Str("ip", c.ClientIP()).
		Msg("Connexion réussie")

	// Créer la session
	session := sessions.Default(c)
	session.Set("user_id", "admin")
	session.Set("username", req.Username)
	if err := session.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Connexion réussie",
		"redirect": "/admin/analytics",
	})
}

func (s *site) logoutHandler(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()

	c.JSON(http.StatusOK, gin.H{"message": "Déconnexion réussie"})
}

// ============= HANDLERS D'ADMINISTRATION =============

func (s *site) adminAnalyticsHandler(c *gin.Context) {
	session := sessions.Default(c)
	username := session.Get("username")

	data := s.templateData(c, nil, "")
	data["title"] = "Statistiques"
	data["username"] = username

	c.HTML(http.StatusOK, "templates/admin/analytics.html", data)
}
