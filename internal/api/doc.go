// Package api exposes the quota engine over HTTP.
//
// Routes, all JSON:
//
//	POST /v1/tenants/{tenantID}/authorize    gate check, 200 or a deny status
//	POST /v1/tenants/{tenantID}/consumption  record consumption, 202
//	GET  /v1/tenants/{tenantID}/usage        usage snapshot
//	GET  /v1/plans                           plan catalog
//	GET  /healthz                            readiness
//	GET  /metrics                            Prometheus exposition
//
// Responses share one envelope with data, meta and error members. Handlers
// are typed handler.HandlerFunc values; path and body binding come from the
// binder package.
//
// A consumption that reached only some periods answers 503 with
// meta.written and meta.pending. Clients retry with "periods" set to the
// pending list so written periods are not counted twice.
package api
