// Package creds attaches client credentials to outbound requests to the
// remote vector store.
//
// The deployment-target descriptor produced by provisioning supplies an
// endpoint and a credential; this package turns that credential into an
// http.RoundTripper that injects the right header on every request. Three
// credential kinds are supported: a static API key (X-API-Key), a static
// bearer token, and a signed service token (short-lived HS256 JWT minted
// per request window for gateways that validate shared-secret tokens).
package creds
