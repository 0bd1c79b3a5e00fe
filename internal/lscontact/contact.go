package lscontact

import (
	"encoding/csv"
	"net/http"
	"os"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"littlesite/internal/lscaptchas"
)

// Contact persiste les messages du formulaire en CSV, une ligne par
// soumission. Simple fichier local, pas de base de données.
type Contact struct {
	csvPath string
	captcha *lscaptchas.Captchas
	mu      sync.Mutex
}

// SubmitRequest est la soumission du formulaire de contact
type SubmitRequest struct {
	Name          string `form:"name" binding:"required"`
	Email         string `form:"email" binding:"required,email"`
	Message       string `form:"message" binding:"required"`
	CaptchaID     string `form:"captcha_id"`
	CaptchaAnswer string `form:"captcha_answer"`
}

func New(csvPath string, captcha *lscaptchas.Captchas) *Contact {
	return &Contact{
		csvPath: csvPath,
		captcha: captcha,
	}
}

// SubmitHandler traite POST /submit_form : CAPTCHA, validation,
// ajout au CSV puis redirection vers l'accueil.
func (ct *Contact) SubmitHandler(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBind(&req); err != nil {
		c.String(http.StatusBadRequest, "formulaire invalide")
		return
	}

	if err := ct.captcha.Verify(req.CaptchaID, req.CaptchaAnswer); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	if err := ct.appendCSV(req.Name, req.Email, req.Message); err != nil {
		log.Error().Err(err).Str("path", ct.csvPath).Msg("Erreur sauvegarde message")
		c.String(http.StatusInternalServerError, "le message n'a pas pu être sauvegardé")
		return
	}

	log.Info().Str("email", req.Email).Msg("Message de contact reçu")
	c.Redirect(http.StatusFound, "/")
}

// WrongMethodHandler répond aux GET sur /submit_form
func (ct *Contact) WrongMethodHandler(c *gin.Context) {
	c.String(http.StatusMethodNotAllowed, "quelque chose s'est mal passé, réessayez")
}

func (ct *Contact) appendCSV(name, email, message string) error {
	// Sérialiser les ajouts concurrents au fichier
	ct.mu.Lock()
	defer ct.mu.Unlock()

	file, err := os.OpenFile(ct.csvPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{name, email, message}); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}
