// Package api is the HTTP call primitive every read and mutation goes
// through.
//
// Client.Call sends METHOD path with an optional JSON body and decodes the
// JSON response. It never caches and never retries. Failures are typed:
//
//   - *NetworkError: no HTTP response (the cause is wrapped)
//   - *APIError: a response outside 2xx, with Status and the server's message
//   - *ValidationError: produced by callers that reject input before dispatch
//
// When the caller's context ends first, Call returns the context's error so
// abandoned reads are not mistaken for transport failures.
package api
