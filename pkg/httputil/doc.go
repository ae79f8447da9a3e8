// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Overview
//
// This package offers helper functions for JSON encoding/decoding, error
// responses, query parsing, and common HTTP middleware.
//
// # Response Helpers
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteCreated(w, resource)
//	httputil.WriteNoContent(w)
//
// Domain errors carry a kind; WriteAppError turns it into a status code and a
// {"error": "..."} body:
//
//	UNAUTHENTICATED     401
//	FORBIDDEN           403
//	NOT_FOUND           404
//	CONFLICT            409
//	VALIDATION          400
//	INVALID_TRANSITION  400
//	INTERNAL            500 (message replaced, cause logged only)
//
// # Request Parsing
//
//	var req registry.CreateRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return
//	}
//	limit, err := httputil.ParseQueryInt(r, "limit", 100)
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.RecoveryMiddleware(logger),
//		httputil.MaxBytesMiddleware(1 << 20),
//	)(router)
package httputil
