// Package retry re-invokes an operation with exponential backoff while its
// failures are retryable.
//
// With the default policy an operation is attempted at most four times,
// waiting 1s, 2s and 4s between attempts. Whether a failure is retryable is
// decided by the error itself when it implements
//
//	Retryable() bool
//
// which httpclient.ClassifiedError does. Other errors are sorted with
// httpclient.Classify, so bare network errors are retried and everything else
// is returned at once. The final error is returned unchanged.
//
// Waits honour the context: cancelling it during a wait returns the last
// failure joined with the cancellation cause.
package retry
