package groupaccess

import "errors"

// Failure kinds surfaced by the engine. They are deliberately distinct from a
// Forbidden decision: a store outage must never be observable as "this
// principal has no access". Callers discriminate with errors.Is.
var (
	// ErrStoreUnavailable wraps any backing-store lookup failure. Never
	// retried here; the caller decides the fallback.
	ErrStoreUnavailable = errors.New("groupaccess: backing store unavailable")

	// ErrEvaluationFailed wraps an error from a special case's own logic.
	// The whole decision aborts; no partial application.
	ErrEvaluationFailed = errors.New("groupaccess: special case evaluation failed")

	// ErrNotApplicable reports that group-permission resolution was invoked
	// for an entity with no installed content-enabler mapping. This is a
	// caller contract violation; guard with Applicable first.
	ErrNotApplicable = errors.New("groupaccess: no content enabler for entity")

	// ErrNoVisibleResults aborts a search query outright: the principal can
	// see no datasource at all. Distinct from an empty result set so the
	// caller can explain why.
	ErrNoVisibleResults = errors.New("groupaccess: no access to any results in this search")
)
