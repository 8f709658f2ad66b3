package session

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"
)

type SessionSuite struct {
	suite.Suite
	manager *Manager
}

func (s *SessionSuite) SetupTest() {
	s.manager = NewManager([]byte("test-secret-0123456789abcdef"))
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionSuite))
}

// roundTrip saves the context and returns the context a follow-up request
// carrying the resulting cookie would see.
func (s *SessionSuite) roundTrip(sc *Context, r *http.Request) *Context {
	rr := httptest.NewRecorder()
	s.Require().NoError(sc.Save(r, rr))

	next := httptest.NewRequest("GET", "http://app.example.com/", nil)
	for _, c := range rr.Result().Cookies() {
		next.AddCookie(c)
	}
	return s.manager.Load(next)
}

func (s *SessionSuite) TestCurrentUserRoundTrip() {
	r := httptest.NewRequest("GET", "http://app.example.com/", nil)
	sc := s.manager.Load(r)
	s.False(sc.Authenticated())

	sc.SetCurrentUser("user1")
	got := s.roundTrip(sc, r)

	s.True(got.Authenticated())
	s.Equal("user1", got.CurrentUser())
}

func (s *SessionSuite) TestClearCurrentUserPreservesOtherState() {
	r := httptest.NewRequest("GET", "http://app.example.com/", nil)
	sc := s.manager.Load(r)
	sc.SetCurrentUser("user1")
	sc.SetReturnTo("/reports")
	sc.SetOpenID(map[string]string{"claimed_id": "user.example.com"})

	sc.ClearCurrentUser()
	got := s.roundTrip(sc, r)

	s.False(got.Authenticated())
	s.Equal("/reports", got.ReturnTo())
	s.Equal("user.example.com", got.OpenID()["claimed_id"])
}

func (s *SessionSuite) TestConsumeReturnToIsSingleUse() {
	r := httptest.NewRequest("GET", "http://app.example.com/", nil)
	sc := s.manager.Load(r)
	sc.SetReturnTo("/reports")

	s.Equal("/reports", sc.ConsumeReturnTo())
	s.Equal("", sc.ConsumeReturnTo())

	got := s.roundTrip(sc, r)
	s.Equal("", got.ReturnTo())
}

func (s *SessionSuite) TestOpenIDStateRoundTrip() {
	r := httptest.NewRequest("GET", "http://app.example.com/", nil)
	sc := s.manager.Load(r)
	s.Nil(sc.OpenID())

	sc.SetOpenID(map[string]string{"return_url": "http://app.example.com/openid/authenticate"})
	got := s.roundTrip(sc, r)
	s.Equal("http://app.example.com/openid/authenticate", got.OpenID()["return_url"])

	got.ClearOpenID()
	s.Nil(got.OpenID())
}

func (s *SessionSuite) TestTamperedCookieYieldsAnonymousContext() {
	r := httptest.NewRequest("GET", "http://app.example.com/", nil)
	r.AddCookie(&http.Cookie{Name: "gatehouse_session", Value: "garbage"})

	sc := s.manager.Load(r)
	s.False(sc.Authenticated())
}

func (s *SessionSuite) TestDifferentSecretRejectsCookie() {
	r := httptest.NewRequest("GET", "http://app.example.com/", nil)
	sc := s.manager.Load(r)
	sc.SetCurrentUser("user1")

	rr := httptest.NewRecorder()
	s.Require().NoError(sc.Save(r, rr))

	other := NewManager([]byte("a-completely-different-secret"))
	next := httptest.NewRequest("GET", "http://app.example.com/", nil)
	for _, c := range rr.Result().Cookies() {
		next.AddCookie(c)
	}
	s.False(other.Load(next).Authenticated())
}
