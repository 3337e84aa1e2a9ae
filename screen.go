package authflow

// ScreenState is the single piece of derived UI state: which of the three
// mutually exclusive screens is visible. It is a pure function of the
// observed session and the account record's username presence.
type ScreenState = string

const (
	// ScreenLoggedOut shows the login / sign-up form
	ScreenLoggedOut ScreenState = "logged_out"
	// ScreenChoosingUsername shows the one-time username selection form
	ScreenChoosingUsername ScreenState = "choosing_username"
	// ScreenLoggedIn shows the signed-in view
	ScreenLoggedIn ScreenState = "logged_in"
)

// Trigger names the event that caused a screen transition.
type Trigger = string

const (
	// TriggerCredentialsSubmitted fires when a sign-up sequence completes
	TriggerCredentialsSubmitted Trigger = "credentials_submitted"
	// TriggerSessionObserved fires on every identity-service session change
	TriggerSessionObserved Trigger = "session_observed"
	// TriggerUsernameAccepted fires when a username claim succeeds
	TriggerUsernameAccepted Trigger = "username_accepted"
	// TriggerSessionEnded fires on logout or session expiry
	TriggerSessionEnded Trigger = "session_ended"
)

// screenTransitions maps each trigger to the targets it may legally produce.
// Session observation is authoritative and may land anywhere; the remaining
// triggers are constrained to the step they conclude.
func screenTransitions() map[Trigger]map[ScreenState]struct{} {
	return map[Trigger]map[ScreenState]struct{}{
		TriggerSessionObserved: {
			ScreenLoggedOut:        {},
			ScreenChoosingUsername: {},
			ScreenLoggedIn:         {},
		},
		TriggerCredentialsSubmitted: {
			ScreenLoggedOut:        {},
			ScreenChoosingUsername: {},
		},
		TriggerUsernameAccepted: {
			ScreenLoggedIn: {},
		},
		TriggerSessionEnded: {
			ScreenLoggedOut: {},
		},
	}
}
