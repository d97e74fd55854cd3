package relay

import (
	"net/http"
	"time"

	"github.com/davidmehren/workadventure/internal/version"
)

// NewHTTPClient returns an HTTP client that speaks HTTP/2 without TLS, as
// bidirectional streams require.
func NewHTTPClient() *http.Client {
	protocols := new(http.Protocols)
	protocols.SetUnencryptedHTTP2(true)

	return &http.Client{
		Transport: &userAgentTransport{
			base: &http.Transport{
				Protocols:       protocols,
				IdleConnTimeout: 90 * time.Second,
			},
			userAgent: version.UserAgent("pusher"),
		},
	}
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(req)
}

// NewServer returns an HTTP server accepting HTTP/1.1 and cleartext
// HTTP/2 on addr.
func NewServer(addr string, handler http.Handler, readHeaderTimeout time.Duration) *http.Server {
	protocols := new(http.Protocols)
	protocols.SetHTTP1(true)
	protocols.SetUnencryptedHTTP2(true)

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		Protocols:         protocols,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}
