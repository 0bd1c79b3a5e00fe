package lsanalytics

import "strings"

// browserCategories dans l'ordre de priorité du classement.
// L'ordre est volontairement grossier : le user-agent de Chrome
// contient aussi "Safari", la première correspondance gagne.
var browserCategories = []string{"Chrome", "Firefox", "Safari", "Edge"}

// ClassifyBrowser classe un user-agent brut dans une catégorie fixe.
// Correspondance par sous-chaîne, sensible à la casse.
func ClassifyBrowser(userAgent string) string {
	for _, category := range browserCategories {
		if strings.Contains(userAgent, category) {
			return category
		}
	}
	return "Other"
}
