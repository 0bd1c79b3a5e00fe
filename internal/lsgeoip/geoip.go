package lsgeoip

import (
	"net/netip"

	"github.com/oschwald/geoip2-golang/v2"
	"github.com/rs/zerolog/log"
)

// Resolver résout le pays d'une adresse IP depuis une base GeoLite2.
// La base est optionnelle : sans fichier configuré, Country renvoie "".
type Resolver struct {
	reader *geoip2.Reader
}

func New(path string) *Resolver {
	if path == "" {
		return &Resolver{}
	}

	reader, err := geoip2.Open(path)
	if err != nil {
		// Enrichissement optionnel : on continue sans géolocalisation
		log.Warn().Err(err).Str("path", path).Msg("Base GeoIP indisponible")
		return &Resolver{}
	}

	log.Info().Str("path", path).Msg("Base GeoIP chargée")
	return &Resolver{reader: reader}
}

// Country renvoie le code ISO du pays, ou "" si inconnu.
func (r *Resolver) Country(ip string) string {
	if r == nil || r.reader == nil {
		return ""
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return ""
	}

	record, err := r.reader.Country(addr)
	if err != nil {
		return ""
	}

	return record.Country.ISOCode
}

func (r *Resolver) Close() {
	if r != nil && r.reader != nil {
		r.reader.Close()
	}
}
