package tlskit

import (
	"crypto/tls"

	"golang.org/x/crypto/acme/autocert"
)

// AutocertConfig builds a server-side tls.Config that provisions
// certificates automatically via ACME (Let's Encrypt) for the given
// hostnames, caching issued certificates under cacheDir.
func AutocertConfig(cacheDir string, hosts ...string) *tls.Config {
	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(hosts...),
		Cache:      autocert.DirCache(cacheDir),
	}
	cfg := manager.TLSConfig()
	cfg.NextProtos = append([]string{"h2", "http/1.1"}, cfg.NextProtos...)
	return cfg
}

// StaticConfig builds a server-side tls.Config from a fixed certificate,
// for deployments that manage their own certificate lifecycle instead of
// delegating to ACME.
func StaticConfig(cert tls.Certificate, alpn ...string) *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   alpn,
		MinVersion:   tls.VersionTLS12,
	}
}
