package authclient

import (
	"io"
	"net/http"
)

// Transport returns a RoundTripper that authenticates requests from the
// session store. base nil means http.DefaultTransport.
func (c *Client) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &transport{client: c, base: base}
}

// HTTPClient returns an *http.Client using Transport, suitable for
// resource.WithHTTPClient.
func (c *Client) HTTPClient() *http.Client {
	return &http.Client{Timeout: defaultTimeout, Transport: c.Transport(nil)}
}

type transport struct {
	client *Client
	base   http.RoundTripper
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	token := t.client.store.AccessToken()
	resp, err := t.base.RoundTrip(withBearer(req, token))
	if err != nil || resp.StatusCode != http.StatusUnauthorized || token == "" {
		return resp, err
	}
	// The body has been consumed; without GetBody the request cannot be
	// replayed, so the 401 stands.
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return resp, nil
	}

	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if err := t.client.refreshShared(req.Context(), token); err != nil {
		return nil, err
	}

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	return t.base.RoundTrip(withBearer(retry, t.client.store.AccessToken()))
}

// withBearer returns a copy of req carrying token. RoundTrippers must not
// modify the caller's request.
func withBearer(req *http.Request, token string) *http.Request {
	out := req.Clone(req.Context())
	if token == "" {
		out.Header.Del("Authorization")
		return out
	}
	out.Header.Set("Authorization", "Bearer "+token)
	return out
}
