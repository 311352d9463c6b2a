// Package server exposes solver sessions over HTTP with gin.
//
// # ROUTES
//
//	GET    /v1/health
//	GET    /v1/sessions
//	POST   /v1/sessions                 {"kb_dir": "..."} -> {"id": ...}
//	DELETE /v1/sessions/:id
//	POST   /v1/sessions/:id/reset
//	PUT    /v1/sessions/:id/wm          {"items": [...], "clear_before": false}
//	POST   /v1/sessions/:id/tacts       -> ir.TactResult
//	GET    /v1/sessions/:id/timeline    -> ir.TimelineSnapshot
//	GET    /metrics                     Prometheus exposition
//
// # STATUS MAPPING
//
// Unknown sessions are 404. Malformed bodies and rejected working-memory
// items are 400. Knowledge bases that fail to compile or validate, and
// configuration or resolution errors raised while processing a tact, are
// 422 with the runtime error code in the body. A kb_dir outside the root
// set by WithKBRoot, or any kb_dir when no root is set, is 403.
package server
