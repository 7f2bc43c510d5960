// Package api defines the remote conversation backend consumed by the flow
// orchestrator and ships an HTTP implementation of it.
//
// # Wire format
//
// Every endpoint answers with a Response envelope:
//
//	{"success": true, "data": {...}, "timestamp": "...", "request_id": "..."}
//	{"success": false, "error": {"code": "...", "message": "..."}}
//
// # Error classification
//
//   - CONNECTION_ERROR: the request never produced an HTTP response
//   - PROTOCOL_ERROR: the backend answered with a non-2xx status
//   - PROCESSING_ERROR: the body could not be decoded or reported success=false
//
// # Endpoints
//
//	POST /v1/conversations                      get or create
//	GET  /v1/conversations/{id}
//	GET  /v1/conversations?user_id=...
//	POST /v1/profiles                           get or create
//	GET  /v1/profiles/{id}
//	PUT  /v1/profiles/{id}
//	GET  /v1/conversations/{id}/messages
//	POST /v1/conversations/{id}/messages
//	GET  /v1/predefined-messages
//	GET  /v1/instructions
package api
