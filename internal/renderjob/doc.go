// Package renderjob tracks render submissions from creation to completion.
// The state machine is a pure transition table; persistence guarantees at
// most one non-terminal job per project with an atomic check on creation,
// because the downstream renderer is expensive and non-cancellable once it
// is rendering. Terminal jobs are immutable; an explicit user retry is a new
// job under the same idempotency key, never a mutation of the old one.
package renderjob
