package apitest

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/tripledger/tripledger/internal/platform/httpx"
)

type credentialsBody struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Code        string `json:"code"`
	NewPassword string `json:"newPassword"`
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed body")
		return
	}
	b.mu.Lock()
	acc, ok := b.accounts[strings.ToLower(body.Email)]
	b.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(body.Password)) != nil {
		httpx.JSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid email or password"})
		return
	}
	httpx.JSON(w, http.StatusOK, authPayload{Profile: acc.profile, Token: b.IssueToken(acc.profile.ID)})
}

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if err := httpx.DecodeJSON(r, &body); err != nil || body.Email == "" || body.Password == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "email and password required")
		return
	}
	b.mu.Lock()
	if _, exists := b.accounts[strings.ToLower(body.Email)]; exists {
		b.mu.Unlock()
		httpx.JSON(w, http.StatusConflict, map[string]string{"message": "Email already registered"})
		return
	}
	p := b.createLocked(body.Name, body.Email, body.Password, "LOCAL")
	b.mu.Unlock()
	httpx.JSON(w, http.StatusCreated, authPayload{Profile: p, Token: b.IssueToken(p.ID)})
}

func (b *Backend) handleMe(w http.ResponseWriter, r *http.Request) {
	acc, _, err := b.authenticate(r)
	if err != nil {
		unauthorized(w)
		return
	}
	b.mu.Lock()
	p := acc.profile
	b.mu.Unlock()
	httpx.JSON(w, http.StatusOK, p)
}

func (b *Backend) handleLogout(w http.ResponseWriter, r *http.Request) {
	_, raw, err := b.authenticate(r)
	if err != nil {
		unauthorized(w)
		return
	}
	b.mu.Lock()
	b.revoked[raw] = true
	b.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) handleOAuthUser(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	p := b.oauthUser
	b.mu.Unlock()
	if p == nil {
		unauthorized(w)
		return
	}
	httpx.JSON(w, http.StatusOK, authPayload{Profile: *p, Token: b.IssueToken(p.ID)})
}

func (b *Backend) handleForgot(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed body")
		return
	}
	b.mu.Lock()
	if _, ok := b.accounts[strings.ToLower(body.Email)]; ok {
		b.resets[strings.ToLower(body.Email)] = "123456"
	}
	b.mu.Unlock()
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "If the account exists a code was sent"})
}

func (b *Backend) handleVerifyReset(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed body")
		return
	}
	if b.ResetCode(body.Email) == "" || b.ResetCode(body.Email) != body.Code {
		httpx.JSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid or expired code"})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"valid": true})
}

func (b *Backend) handleReset(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed body")
		return
	}
	key := strings.ToLower(body.Email)
	b.mu.Lock()
	defer b.mu.Unlock()
	acc, ok := b.accounts[key]
	if !ok || b.resets[key] == "" || b.resets[key] != body.Code {
		httpx.JSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid or expired code"})
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(body.NewPassword), bcrypt.MinCost)
	if err != nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	acc.passwordHash = hash
	delete(b.resets, key)
	w.WriteHeader(http.StatusNoContent)
}
