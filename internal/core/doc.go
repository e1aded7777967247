// Package core provides the business logic for table cleanup sessions.
//
// This package composes the ingestion facade (internal/table), the candidate
// evaluator (internal/transform), a planner, the per-session table slots and
// the audit trail. It is independent of any transport: web handlers, the CLI
// and tests all drive the same [Service].
//
// # Sessions
//
// A session id is issued by [Service.NewSession]. Each session owns one table
// slot in a [session.Store]. [Service.Upload] fills the slot and
// [Service.Transform] replaces it with the selected candidate's output,
// bumping the revision. Sessions never share state.
//
// # Transform Flow
//
//  1. The request either carries explicit candidates or an instruction that
//     the configured planner turns into candidates.
//  2. Candidates are evaluated against the session table by
//     [transform.EvaluateAndSelect]; the highest-scoring one wins.
//  3. Optional built-in normalizers (Australian phone numbers, ISO dates) run
//     on the winning table.
//  4. The result is stored and recorded in the audit trail.
//
// Concurrent transforms across all sessions are bounded by a [Limiter].
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - FILE001-FILE005: File errors (size, format, unreadable, missing, empty)
//   - RX001-RX004: Pattern errors (invalid, nothing matched, timeout, no candidates)
//   - SES001-SES002: Session errors (not found, invalid id)
//   - PLAN001-PLAN002: Planner errors
//   - UPL002, UPL004, UPL005: Busy, cancelled, timed out
//   - RATE001, DB004, DB006: Rate limiting and storage
package core
