package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nutrilens/middlewares"
	"nutrilens/models"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "test-secret"

func newAuthRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ac := NewAuthController(db, testSecret, 30*time.Minute, 7*24*time.Hour)

	r := gin.New()
	r.POST("/auth/register", ac.Register)
	r.POST("/auth/login", ac.Login)
	r.POST("/auth/refresh", ac.Refresh)
	r.GET("/auth/me", middlewares.AuthMiddleware(testSecret), ac.Me)
	return r, db
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, payload any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func register(t *testing.T, r *gin.Engine) {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/auth/register", gin.H{
		"email":    "alice@example.com",
		"username": "alice",
		"password": "supersecret1",
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", w.Code, w.Body.String())
	}
}

// Duplicates are caught by the unique indexes, not a pre-check, so the
// same 400 comes back even when the duplicate wins a race with the check.
func TestRegisterRejectsDuplicates(t *testing.T) {
	r, db := newAuthRouter(t)
	register(t, r)

	var users int64
	db.Model(&models.User{}).Count(&users)
	if users != 1 {
		t.Fatalf("seed users = %d", users)
	}

	w := doJSON(t, r, http.MethodPost, "/auth/register", gin.H{
		"email":    "alice@example.com",
		"username": "alice2",
		"password": "supersecret1",
	}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("duplicate email status = %d, body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Email already registered") {
		t.Errorf("duplicate email body = %s", w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/auth/register", gin.H{
		"email":    "alice2@example.com",
		"username": "alice",
		"password": "supersecret1",
	}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("duplicate username status = %d, body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Username already taken") {
		t.Errorf("duplicate username body = %s", w.Body.String())
	}

	db.Model(&models.User{}).Count(&users)
	if users != 1 {
		t.Errorf("users after rejected duplicates = %d, want 1", users)
	}
}

func TestRegisterValidatesInput(t *testing.T) {
	r, _ := newAuthRouter(t)

	tests := []struct {
		name    string
		payload gin.H
	}{
		{"bad email", gin.H{"email": "nope", "username": "alice", "password": "supersecret1"}},
		{"short username", gin.H{"email": "a@b.com", "username": "ab", "password": "supersecret1"}},
		{"short password", gin.H{"email": "a@b.com", "username": "alice", "password": "short"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/auth/register", tt.payload, nil)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestLoginByUsernameOrEmail(t *testing.T) {
	r, _ := newAuthRouter(t)
	register(t, r)

	for _, ident := range []string{"alice", "alice@example.com"} {
		w := doJSON(t, r, http.MethodPost, "/auth/login", gin.H{
			"username_or_email": ident,
			"password":          "supersecret1",
		}, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("login as %q status = %d, body %s", ident, w.Code, w.Body.String())
		}

		var resp struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
			TokenType    string `json:"token_type"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.AccessToken == "" || resp.RefreshToken == "" || resp.TokenType != "bearer" {
			t.Errorf("incomplete token pair: %+v", resp)
		}
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	r, _ := newAuthRouter(t)
	register(t, r)

	w := doJSON(t, r, http.MethodPost, "/auth/login", gin.H{
		"username_or_email": "alice",
		"password":          "wrongpassword",
	}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestLoginRejectsInactiveUser(t *testing.T) {
	r, db := newAuthRouter(t)
	register(t, r)
	db.Model(&models.User{}).Where("username = ?", "alice").Update("is_active", false)

	w := doJSON(t, r, http.MethodPost, "/auth/login", gin.H{
		"username_or_email": "alice",
		"password":          "supersecret1",
	}, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestRefreshFlow(t *testing.T) {
	r, _ := newAuthRouter(t)
	register(t, r)

	w := doJSON(t, r, http.MethodPost, "/auth/login", gin.H{
		"username_or_email": "alice",
		"password":          "supersecret1",
	}, nil)
	var login struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &login); err != nil {
		t.Fatal(err)
	}

	w = doJSON(t, r, http.MethodPost, "/auth/refresh", gin.H{"refresh_token": login.RefreshToken}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body %s", w.Code, w.Body.String())
	}

	// an access token must not pass as a refresh token
	w = doJSON(t, r, http.MethodPost, "/auth/refresh", gin.H{"refresh_token": login.AccessToken}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("access-as-refresh status = %d, want 401", w.Code)
	}
}

func TestMe(t *testing.T) {
	r, _ := newAuthRouter(t)
	register(t, r)

	w := doJSON(t, r, http.MethodPost, "/auth/login", gin.H{
		"username_or_email": "alice",
		"password":          "supersecret1",
	}, nil)
	var login struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &login); err != nil {
		t.Fatal(err)
	}

	w = doJSON(t, r, http.MethodGet, "/auth/me", nil, map[string]string{
		"Authorization": "Bearer " + login.AccessToken,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("me status = %d, body %s", w.Code, w.Body.String())
	}

	var me struct {
		Email    string `json:"email"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &me); err != nil {
		t.Fatal(err)
	}
	if me.Email != "alice@example.com" || me.Username != "alice" {
		t.Errorf("me = %+v", me)
	}
}
