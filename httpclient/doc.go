// Package httpclient is the authenticated HTTP layer the booking services
// talk to the backend through.
//
// Every Send makes exactly one attempt and reports failure as a
// *ClassifiedError:
//   - no response at all: NetworkUnreachable (retryable)
//   - 401: AuthExpired. The session is cleared and auth observers are
//     notified before the error is returned.
//   - other 4xx: ClientRequestError, payload preserved
//   - 5xx: ServerError (retryable)
//   - interceptor failure, cancelled context, malformed request: Unclassified
//
// Retrying is the job of the retry package, which reads Retryable() from the
// error. The client never retries on its own.
//
// Request interceptors attach the bearer token, a request ID and, for
// mutations, the idempotency key pinned in the context. Each attempt opens a
// client span and propagates W3C trace context.
package httpclient
