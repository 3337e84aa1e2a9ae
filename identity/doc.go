// Package identity is the REST client for the hosted identity service that
// owns accounts, credentials, and session lifetime.
//
// The client keeps the current session in memory and pushes every transition
// to subscribers registered through SubscribeSessionChanges; token refresh is
// not a transition and is never published. Federated consent runs through the
// PopupLauncher seam so interactive hosts can open a real browser window and
// tests can script the outcome.
package identity
