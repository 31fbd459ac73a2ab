package httpmw

import (
	"net/http"
	"strings"
)

// ProxyPrefix adjusts requests that arrived through a reverse proxy.
//
// If prefix is non-empty it is stripped from the front of the URL path,
// so handlers mounted at / serve a site published under /prefix. The
// X-Forwarded-Proto and X-Forwarded-Host headers, when present, replace
// the request scheme and host. forceScheme, when non-empty, overrides
// the scheme unconditionally.
//
// This trusts the forwarding headers, so it should only be declared in
// pipelines that sit behind a proxy which sets them.
func ProxyPrefix(prefix, forceScheme string) func(http.Handler) http.Handler {
	prefix = strings.TrimSuffix(prefix, "/")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if prefix != "" {
				if p, ok := stripPrefix(r.URL.Path, prefix); ok {
					r.URL.Path = p
					if r.URL.RawPath != "" {
						if rp, ok := stripPrefix(r.URL.RawPath, prefix); ok {
							r.URL.RawPath = rp
						}
					}
				}
			}

			scheme := forceScheme
			if scheme == "" {
				if xf := r.Header.Get("X-Forwarded-Proto"); xf != "" {
					// take the first if multiple in chain
					parts := strings.Split(xf, ",")
					scheme = strings.TrimSpace(parts[0])
				}
			}
			if scheme != "" {
				r.URL.Scheme = scheme
			}

			if xh := r.Header.Get("X-Forwarded-Host"); xh != "" {
				parts := strings.Split(xh, ",")
				r.Host = strings.TrimSpace(parts[0])
			}

			next.ServeHTTP(w, r)
		})
	}
}

// stripPrefix removes prefix from p, keeping the result rooted at "/".
func stripPrefix(p, prefix string) (string, bool) {
	if !strings.HasPrefix(p, prefix) {
		return p, false
	}
	rest := p[len(prefix):]
	if rest == "" {
		return "/", true
	}
	if rest[0] != '/' {
		// "/appx" does not match prefix "/app"
		return p, false
	}
	return rest, true
}
