// Package authflow implements the client side of an account provisioning and
// session bootstrap flow backed by a hosted identity service and a hosted
// document store.
//
// Screen lifecycle:
//   - The UI is always in exactly one of three screens: logged out, choosing
//     a username, or logged in. ScreenMachine centralizes the legal
//     (trigger, target) pairs and applies them idempotently, so redundant
//     session notifications never repaint a screen or duplicate side effects.
//   - SessionObserver owns the single identity-service subscription. Every
//     session change performs at most one account-record read and routes to
//     the screen the record warrants; a present session without a username
//     always lands on the username screen, never on the logged-in screen.
//
// Provisioning:
//   - Sequencer runs the ordered remote steps for sign-up, login, federated
//     sign-in, username selection, and logout. A sequence terminates at its
//     first failing step, nothing is retried, and every failure except a
//     user-cancelled popup is surfaced through the Notifier.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by the sequencer,
//     observer, and screen machine. Sinks run best-effort (errors are
//     logged) so you can forward to a database or queue without blocking
//     the flow.
package authflow
