package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/oauth2"
)

func newTokenServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			http.Error(w, `{"error":"invalid_grant"}`, status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"todoist-token","token_type":"Bearer"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testOAuthConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams},
	}
}

func TestOAuthHandler(t *testing.T) {
	t.Run("Exchanges Code", func(t *testing.T) {
		tokens := newTokenServer(t, http.StatusOK)
		h := NewOAuthHandler(testOAuthConfig(tokens.URL), "state-1", "")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=state-1&code=abc", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		result := <-h.Result()
		if result.Error() != nil {
			t.Fatalf("expected no error, got %v", result.Error())
		}
		if result.Token.AccessToken != "todoist-token" {
			t.Errorf("unexpected token %q", result.Token.AccessToken)
		}
	})

	t.Run("Invalid State", func(t *testing.T) {
		h := NewOAuthHandler(testOAuthConfig("http://unused"), "state-1", "")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=other&code=abc", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if result := <-h.Result(); result.Error() == nil {
			t.Error("expected state error")
		}
	})

	t.Run("Denied", func(t *testing.T) {
		h := NewOAuthHandler(testOAuthConfig("http://unused"), "state-1", "")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=state-1&error=access_denied", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if result := <-h.Result(); result.Error() == nil {
			t.Error("expected authorization error")
		}
	})

	t.Run("Exchange Failure", func(t *testing.T) {
		tokens := newTokenServer(t, http.StatusBadRequest)
		h := NewOAuthHandler(testOAuthConfig(tokens.URL), "state-1", "")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=state-1&code=abc", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
		if result := <-h.Result(); result.Error() == nil {
			t.Error("expected exchange error")
		}
	})

	t.Run("Second Callback Rejected", func(t *testing.T) {
		tokens := newTokenServer(t, http.StatusOK)
		h := NewOAuthHandler(testOAuthConfig(tokens.URL), "state-1", "")

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?state=state-1&code=abc", nil))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=state-1&code=abc", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 on replay, got %d", rec.Code)
		}
	})

	t.Run("Custom Path", func(t *testing.T) {
		h := NewOAuthHandler(testOAuthConfig("http://unused"), "s", "/todoist/callback")
		routes := h.Routes()
		if len(routes) != 1 || routes[0] != "/todoist/callback" {
			t.Errorf("unexpected routes %v", routes)
		}
	})
}
