package lspages

import (
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog/log"
	stripmd "github.com/writeas/go-strip-markdown"

	"littlesite/internal/lsconfig"
	"littlesite/internal/lsmarkdown"
)

// Page est une page de contenu rendue depuis un fichier Markdown
type Page struct {
	Slug        string
	Title       string
	HTML        template.HTML
	Description string
	LastMod     time.Time
}

// Store charge les pages de contenu au démarrage : le dossier
// contentpath de la configuration s'il est renseigné, sinon les
// pages embarquées dans le binaire.
type Store struct {
	pages map[string]*Page
}

func NewStore(contentPath string, embedded fs.FS) (*Store, error) {
	ps := &Store{pages: make(map[string]*Page)}

	if contentPath != "" {
		if err := ps.loadDir(os.DirFS(contentPath)); err != nil {
			return nil, fmt.Errorf("erreur chargement pages %s: %w", contentPath, err)
		}
	} else {
		if err := ps.loadDir(embedded); err != nil {
			return nil, fmt.Errorf("erreur chargement pages embarquées: %w", err)
		}
	}

	if _, ok := ps.pages["index"]; !ok {
		return nil, fmt.Errorf("la page index.md est obligatoire")
	}

	log.Info().Int("pages", len(ps.pages)).Msg("Pages de contenu chargées")
	return ps, nil
}

func (ps *Store) loadDir(dir fs.FS) error {
	return fs.WalkDir(dir, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(path) != ".md" {
			return err
		}

		content, err := fs.ReadFile(dir, path)
		if err != nil {
			return err
		}

		var lastMod time.Time
		if info, err := d.Info(); err == nil {
			lastMod = info.ModTime()
		}

		page := buildPage(path, string(content), lastMod)
		ps.pages[page.Slug] = page
		return nil
	})
}

func buildPage(path, markdown string, lastMod time.Time) *Page {
	slug := strings.TrimSuffix(filepath.Base(path), ".md")

	return &Page{
		Slug:        slug,
		Title:       extractTitle(markdown, slug),
		HTML:        lsmarkdown.ConvertMarkdownToHTML(markdown),
		Description: extractDescription(markdown),
		LastMod:     lastMod,
	}
}

// Get renvoie la page pour un slug, false si inconnue
func (ps *Store) Get(slug string) (*Page, bool) {
	page, ok := ps.pages[slug]
	return page, ok
}

// Slugs liste les slugs des pages, la page index incluse
func (ps *Store) Slugs() []string {
	slugs := make([]string, 0, len(ps.pages))
	for slug := range ps.pages {
		slugs = append(slugs, slug)
	}
	return slugs
}

// extractTitle prend le premier titre de niveau 1, sinon le slug
func extractTitle(markdown, slug string) string {
	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}
	return capitalize(slug)
}

// extractDescription construit la meta description : Markdown
// dépouillé, espaces normalisés, tronqué à 160 caractères
func extractDescription(markdown string) string {
	text := stripmd.Strip(markdown)
	text = strings.Join(strings.Fields(text), " ")

	runes := []rune(text)
	if len(runes) > 160 {
		text = string(runes[:157]) + "..."
	}
	return text
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// GenerateMenu construit le menu de navigation depuis la configuration
func GenerateMenu(items []lsconfig.MenuItem, active string) template.HTML {
	menuStr := ""
	for _, item := range items {
		if item.Link != "" {
			menuStr += fmt.Sprintf("<a href=\"%s\" class=\"nav-link\" target=\"_blank\">%s</a>&nbsp;", item.Link, item.Value)
			continue
		}
		class := "nav-link"
		if item.Key == active {
			class += " active"
		}
		menuStr += fmt.Sprintf("<a href=\"/%s\" class=\"%s\">%s</a>&nbsp;", item.Key, class, item.Value)
	}
	return template.HTML(menuStr)
}
