package creds

import "net/http"

// Transport is an http.RoundTripper that applies credentials to every
// outbound request before delegating to the base transport.
type Transport struct {
	// Base is the underlying round tripper.
	// Default: http.DefaultTransport
	Base http.RoundTripper

	// Credentials is applied to each request. Nil means pass-through.
	Credentials Credentials
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Credentials == nil {
		return base.RoundTrip(req)
	}

	// Per the RoundTripper contract the request must not be mutated.
	clone := req.Clone(req.Context())
	if err := t.Credentials.Apply(clone); err != nil {
		return nil, err
	}
	return base.RoundTrip(clone)
}
