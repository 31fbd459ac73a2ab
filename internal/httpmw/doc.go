// Package httpmw provides the HTTP middleware behind the built-in
// filter components.
//
// Each middleware is an independent func(http.Handler) http.Handler so
// it can be declared, reordered, or removed in a pipeline without code
// changes. Factories that adapt these to declaration sections live in
// the assembly package; the functions here take plain Go arguments and
// know nothing about declarations.
//
// User-supplied data (query params, user-agent, arbitrary headers) is
// intentionally excluded from logs to prevent PII leaks and log
// injection.
package httpmw
