package server

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/go-hr-console/server/otprepo"
	"github.com/jrsteele09/go-hr-console/users"
	"github.com/rs/zerolog/log"
)

const (
	maxOTPAttempts = 5

	msgInvalidCredentials = "Invalid email or password"
	msgInvalidOTP         = "Invalid or expired OTP"
	msgRefreshExpired     = "Refresh token expired"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// LoginHandler checks the password. Accounts with a second factor get a one-time code and
// {"pendingVerification": true}; the rest are signed in straight away.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(r, &req); err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		email := strings.TrimSpace(req.Email)
		if email == "" || req.Password == "" {
			writeMessage(w, http.StatusBadRequest, "Email and password are required")
			return
		}

		user, err := s.repos.Users.GetByEmail(email)
		if err != nil || !user.CheckPassword(req.Password) {
			writeMessage(w, http.StatusUnauthorized, msgInvalidCredentials)
			return
		}
		if user.Blocked {
			writeMessage(w, http.StatusForbidden, "Account is blocked")
			return
		}

		if user.MFAAuth() {
			code, err := s.otpGen()
			if err != nil {
				log.Err(err).Msg("failed to generate otp")
				writeMessage(w, http.StatusInternalServerError, "Could not start verification")
				return
			}
			now := s.nowTime()
			if err := s.repos.OTPs.Upsert(user.Email, otprepo.Pending{
				UserID:    user.ID,
				Email:     user.Email,
				Code:      code,
				ExpiresAt: now.Add(s.config.GetOTPTTL()),
				CreatedAt: now,
			}); err != nil {
				log.Err(err).Msg("failed to store otp")
				writeMessage(w, http.StatusInternalServerError, "Could not start verification")
				return
			}
			if s.env == "DEV" {
				log.Info().Str("email", user.Email).Str("otp", code).Msg("one-time code issued")
			}
			writeJSON(w, http.StatusOK, map[string]any{"pendingVerification": true, "email": user.Email})
			return
		}

		s.issueSession(w, r, user, "token")
	}
}

func (s *Server) VerifyOTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req verifyOTPRequest
		if err := decodeJSON(r, &req); err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		pending, err := s.repos.OTPs.Get(req.Email)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, msgInvalidOTP)
			return
		}
		if !s.nowTime().Before(pending.ExpiresAt) {
			_ = s.repos.OTPs.Delete(req.Email)
			writeMessage(w, http.StatusBadRequest, msgInvalidOTP)
			return
		}
		if strings.TrimSpace(req.OTP) != pending.Code {
			pending.Attempts++
			if pending.Attempts >= maxOTPAttempts {
				_ = s.repos.OTPs.Delete(req.Email)
			} else {
				_ = s.repos.OTPs.Upsert(req.Email, pending)
			}
			writeMessage(w, http.StatusBadRequest, msgInvalidOTP)
			return
		}
		_ = s.repos.OTPs.Delete(req.Email)

		user, err := s.repos.Users.GetByID(pending.UserID)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, msgInvalidOTP)
			return
		}
		s.issueSession(w, r, user, "token")
	}
}

// RefreshTokenHandler exchanges the refresh cookie for a new access token. The refresh token
// is rotated on every use.
func (s *Server) RefreshTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.refreshCalls.Add(1)

		cookie, err := r.Cookie(RefreshCookieName)
		if err != nil || cookie.Value == "" {
			writeMessage(w, http.StatusUnauthorized, msgRefreshExpired)
			return
		}
		stored, err := s.refresh.Validate(cookie.Value)
		if err != nil {
			s.clearRefreshCookie(w, r)
			writeMessage(w, http.StatusUnauthorized, msgRefreshExpired)
			return
		}
		user, err := s.repos.Users.GetByID(stored.UserID)
		if err != nil || user.Blocked {
			s.refresh.Revoke(cookie.Value)
			s.clearRefreshCookie(w, r)
			writeMessage(w, http.StatusUnauthorized, msgRefreshExpired)
			return
		}
		s.refresh.Revoke(cookie.Value)
		s.issueSession(w, r, user, "accessToken")
	}
}

// LogoutHandler revokes the refresh token and clears the cookie. It always succeeds.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(RefreshCookieName); err == nil && cookie.Value != "" {
			s.refresh.Revoke(cookie.Value)
		}
		s.clearRefreshCookie(w, r)
		writeMessage(w, http.StatusOK, "Logged out")
	}
}

// issueSession sets a fresh refresh cookie and writes {user, <tokenField>}.
// Login and verify answer with "token", refresh with "accessToken".
func (s *Server) issueSession(w http.ResponseWriter, r *http.Request, user *users.User, tokenField string) {
	access, err := s.tokens.CreateAccessToken(identityOf(user))
	if err != nil {
		log.Err(err).Str("user_id", user.ID).Msg("failed to create access token")
		writeMessage(w, http.StatusInternalServerError, "Could not sign in")
		return
	}
	stored, err := s.refresh.Create(user.ID)
	if err != nil {
		log.Err(err).Str("user_id", user.ID).Msg("failed to create refresh token")
		writeMessage(w, http.StatusInternalServerError, "Could not sign in")
		return
	}
	s.setRefreshCookie(w, r, stored.Token, stored.ExpiresAt)
	writeJSON(w, http.StatusOK, map[string]any{"user": user, tokenField: access})
}

func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(r.Context())
		if !ok {
			writeMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		user, err := s.repos.Users.GetByID(claims.Subject)
		if err != nil {
			writeMessage(w, http.StatusNotFound, "Employee not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": user})
	}
}
