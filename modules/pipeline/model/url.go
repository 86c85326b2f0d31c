package model

import (
	"net/url"
	"strings"
)

// CanonicalizeProfileURL lowercases a profile URL and strips its query
// string and trailing slash, per spec: "canonical, lowercased, no query
// string". It is the primary key for a Candidate within a run.
func CanonicalizeProfileURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil {
		return strings.ToLower(strings.TrimSuffix(raw, "/"))
	}

	u.RawQuery = ""
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.ToLower(strings.TrimSuffix(u.Path, "/"))
	u.Scheme = strings.ToLower(u.Scheme)

	return u.String()
}
