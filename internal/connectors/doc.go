// Package connectors contains the source adapters that ingest
// funding-opportunity listings from external APIs, plus the HTTP execution
// helper they share.
//
// Each source lives in its own subpackage and normalises that API's
// response envelope into domain.RawItem. Adapters are stateless between
// runs; every HTTP call is routed through the call guard (circuit breaker
// plus retrier) handed in by the orchestrator.
package connectors
