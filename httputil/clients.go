package httputil

import (
	"log"
	"net/http"
	"net/url"
	"time"

	"scooby/config"
)

// NewAPIClient builds the client used for every call to the listing API.
// An empty proxy URL means a direct connection.
func NewAPIClient(cfg *config.APIConfig) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			log.Printf("Ignoring invalid proxy URL %q: %v", cfg.ProxyURL, err)
		} else {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
