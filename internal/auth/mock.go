package auth

import (
	"net/http"
	"time"
)

// MockAuth provides a mock authentication for local development.
// Every login is a facilitator.
type MockAuth struct {
	store *sessionStore
	user  User
}

// NewMockAuth creates a new mock authentication handler
func NewMockAuth(group string) *MockAuth {
	store := newSessionStore(group)
	return &MockAuth{
		store: store,
		user: User{
			ID:       "dev-facilitator",
			Email:    "facilitator@draft.local",
			Name:     "Dev Facilitator",
			Username: "facilitator",
			Groups:   []string{"users", store.group},
		},
	}
}

// LoginHandler auto-creates a session for the dev facilitator
func (m *MockAuth) LoginHandler(w http.ResponseWriter, r *http.Request) {
	u := m.user
	sess := m.store.create(&u, nil, m.store.now().Add(24*time.Hour))
	setSessionCookie(w, sess, false)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// CallbackHandler is not needed for mock auth
func (m *MockAuth) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// LogoutHandler for mock auth
func (m *MockAuth) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	m.store.delete(r)
	clearCookie(w, sessionCookie)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Middleware for mock auth
func (m *MockAuth) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return m.store.redirectMiddleware(next)
}

// RequireFacilitator for mock auth
func (m *MockAuth) RequireFacilitator(next http.HandlerFunc) http.HandlerFunc {
	return m.store.facilitatorMiddleware(next)
}
