package client

import "strings"

// Browser families known to still allow third-party cookies without a
// redirect round trip. The classification is a static lookup, refreshed with
// releases of this service, not probed at runtime.
//
// Order matters: Chromium derivatives advertise "Chrome" in their UA string,
// so the more specific tokens are checked first.
var known3PCFamilies = []struct {
	token    string
	supports bool
}{
	{"Edg/", true},           // Chromium Edge
	{"OPR/", true},           // Opera
	{"SamsungBrowser", true}, // Samsung Internet
	{"Firefox", false},       // blocks 3PC by default (Total Cookie Protection)
	{"Chromium", true},
	{"Chrome", true},
	{"Safari", false}, // ITP blocks 3PC; must come after Chrome tokens
}

// KnownToSupport3PC reports whether the user agent belongs to a family that
// still accepts third-party cookies. Unknown agents report false and take
// the redirect path, which works everywhere.
func KnownToSupport3PC(userAgent string) bool {
	for _, family := range known3PCFamilies {
		if strings.Contains(userAgent, family.token) {
			return family.supports
		}
	}
	return false
}
