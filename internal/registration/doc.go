// Package registration holds the domain model for the sale-day registration
// pipeline: sales days, sessions, registrant rows, the submit payload, the
// response classifier, and the contracts (Gateway, Solver, Messenger)
// consumed by the workers. It has no side effects of its own.
package registration
