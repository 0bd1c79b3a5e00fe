package lssitemap

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"littlesite/internal/lspages"
)

// URLSet représente le sitemap complet
type URLSet struct {
	XMLName xml.Name `xml:"urlset"`
	Xmlns   string   `xml:"xmlns,attr"`
	URLs    []URL    `xml:"url"`
}

// URL représente une page dans le sitemap
type URL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
}

// Handler génère /sitemap.xml depuis les pages de contenu
func Handler(pages *lspages.Store, baseURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		base := resolveBaseURL(c, baseURL)

		urlset := URLSet{
			Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9",
		}

		for _, slug := range pages.Slugs() {
			page, _ := pages.Get(slug)
			loc := base + "/" + slug
			if slug == "index" {
				loc = base + "/"
			}

			entry := URL{
				Loc:        loc,
				ChangeFreq: "monthly",
			}
			if !page.LastMod.IsZero() {
				entry.LastMod = page.LastMod.Format("2006-01-02")
			}
			urlset.URLs = append(urlset.URLs, entry)
		}

		output, err := xml.MarshalIndent(urlset, "", "  ")
		if err != nil {
			c.String(http.StatusInternalServerError, "erreur génération sitemap")
			return
		}

		c.Data(http.StatusOK, "application/xml; charset=utf-8",
			append([]byte(xml.Header), output...))
	}
}

// RobotsHandler génère /robots.txt : l'administration est exclue
// de l'indexation
func RobotsHandler(baseURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		base := resolveBaseURL(c, baseURL)
		robots := fmt.Sprintf("User-agent: *\nDisallow: /admin/\nDisallow: /files/\n\nSitemap: %s/sitemap.xml\n", base)
		c.String(http.StatusOK, robots)
	}
}

// resolveBaseURL prend le baseurl de la configuration, sinon le
// déduit de la requête
func resolveBaseURL(c *gin.Context, baseURL string) string {
	if baseURL != "" {
		return strings.TrimSuffix(baseURL, "/")
	}

	scheme := "http"
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, c.Request.Host)
}
