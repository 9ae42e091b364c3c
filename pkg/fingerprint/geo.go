package fingerprint

import (
	"fmt"
	"strings"
)

type region struct {
	// zones are IANA timezone prefixes in use in the country
	zones []string
	// languages are primary language subtags plausible for residents
	languages []string
}

var regions = map[string]region{
	"US": {zones: []string{"America/New_York", "America/Chicago", "America/Denver", "America/Los_Angeles", "America/Phoenix", "America/Anchorage", "Pacific/Honolulu", "America/Detroit", "America/Indiana/"}, languages: []string{"en", "es"}},
	"CA": {zones: []string{"America/Toronto", "America/Vancouver", "America/Edmonton", "America/Winnipeg", "America/Halifax", "America/St_Johns", "America/Regina"}, languages: []string{"en", "fr"}},
	"GB": {zones: []string{"Europe/London"}, languages: []string{"en"}},
	"IE": {zones: []string{"Europe/Dublin"}, languages: []string{"en", "ga"}},
	"DE": {zones: []string{"Europe/Berlin"}, languages: []string{"de", "en"}},
	"AT": {zones: []string{"Europe/Vienna"}, languages: []string{"de"}},
	"CH": {zones: []string{"Europe/Zurich"}, languages: []string{"de", "fr", "it"}},
	"FR": {zones: []string{"Europe/Paris"}, languages: []string{"fr"}},
	"ES": {zones: []string{"Europe/Madrid", "Atlantic/Canary"}, languages: []string{"es", "ca"}},
	"IT": {zones: []string{"Europe/Rome"}, languages: []string{"it"}},
	"NL": {zones: []string{"Europe/Amsterdam"}, languages: []string{"nl", "en"}},
	"PL": {zones: []string{"Europe/Warsaw"}, languages: []string{"pl"}},
	"BR": {zones: []string{"America/Sao_Paulo", "America/Manaus", "America/Recife", "America/Fortaleza", "America/Bahia"}, languages: []string{"pt"}},
	"MX": {zones: []string{"America/Mexico_City", "America/Monterrey", "America/Tijuana", "America/Cancun"}, languages: []string{"es"}},
	"AU": {zones: []string{"Australia/"}, languages: []string{"en"}},
	"JP": {zones: []string{"Asia/Tokyo"}, languages: []string{"ja"}},
	"IN": {zones: []string{"Asia/Kolkata", "Asia/Calcutta"}, languages: []string{"en", "hi"}},
}

// CheckGeo rejects a locale/timezone pair that cannot belong to the egress country.
// An empty or unknown country is accepted since nothing can be checked.
func CheckGeo(locale, timezone, country string) error {
	if country == "" {
		return nil
	}
	r, ok := regions[strings.ToUpper(country)]
	if !ok {
		return nil
	}

	if timezone != "" {
		matched := false
		for _, z := range r.zones {
			if timezone == z || (strings.HasSuffix(z, "/") && strings.HasPrefix(timezone, z)) {
				matched = true
				break
			}
		}
		if !matched {
			return fmt.Errorf("timezone %s is not used in egress country %s", timezone, strings.ToUpper(country))
		}
	}

	if locale != "" {
		lang, _, _ := strings.Cut(locale, "-")
		lang = strings.ToLower(lang)
		matched := false
		for _, l := range r.languages {
			if l == lang {
				matched = true
				break
			}
		}
		if !matched {
			return fmt.Errorf("locale %s is implausible for egress country %s", locale, strings.ToUpper(country))
		}
	}

	return nil
}

// KnownCountry reports whether CheckGeo can verify the country
func KnownCountry(country string) bool {
	_, ok := regions[strings.ToUpper(country)]
	return ok
}
