// Package retry wraps whole operations in bounded retries with backoff.
//
// Retries are a caller concern: the executor reports each attempt's outcome
// as-is and never retries internally. Callers that want more than one attempt
// wrap the call:
//
//	err := retry.Do(ctx, func() error {
//		return fetchImage(ctx, url)
//	}, retry.FromConfig(cfg.Retry, log))
//
// DefaultRetryIf only retries kinds that errors.IsRetryable accepts, so an
// unconfirmed mutation is never repeated by accident.
package retry
