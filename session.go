package authflow

import "fmt"

// Session is the client-observed login state pushed by the identity service:
// either absent or present with an account. It is observed, never stored.
type Session struct {
	account *Account
}

// PresentSession wraps a signed-in account.
func PresentSession(account *Account) Session {
	return Session{account: account}
}

// AbsentSession is the signed-out state.
func AbsentSession() Session {
	return Session{}
}

// Present reports whether a user is signed in.
func (s Session) Present() bool {
	return s.account != nil
}

// Account returns the signed-in account, nil when absent.
func (s Session) Account() *Account {
	return s.account
}

func (s Session) String() string {
	if s.account == nil {
		return "session=absent"
	}
	return fmt.Sprintf("session=present account=%s email=%s", s.account.ID, s.account.Email)
}
