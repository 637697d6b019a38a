package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sunledger/sunledger/pkg/log"
	"github.com/sunledger/sunledger/pkg/types"
)

const adminRole = "admin"

func isPublicAuthPath(path string) bool {
	return path == "/api/auth/login" || path == "/api/auth/status" || path == "/api/auth/logout"
}

// bearerToken returns the token from the Authorization header, falling back
// to the auth cookie. fromCookie is true when the cookie was used.
func bearerToken(r *http.Request) (token string, fromCookie bool, err error) {
	if header := r.Header.Get("Authorization"); header != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return "", false, errors.New("invalid authorization header")
		}
		return token, false, nil
	}
	cookie, err := r.Cookie(authTokenCookie)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return "", false, nil
		}
		return "", false, err
	}
	return cookie.Value, true, nil
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := log.WithAttrs(r.Context(), slog.String("reqPath", r.URL.Path))
		allowNoLogin := isPublicAuthPath(r.URL.Path)

		var user types.User
		if s.authDisabled {
			user = types.User{
				ID:    s.devUserID,
				Admin: true,
			}
		} else {
			token, fromCookie, err := bearerToken(r)
			if err != nil {
				log.Ctx(ctx).WarnContext(ctx, "failed to read auth token", slog.Any("error", err))
				writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if token != "" {
				user, _, err = s.authenticateToken(ctx, token)
				if err != nil {
					log.Ctx(ctx).WarnContext(ctx, "auth token validation failed", slog.Any("error", err))
					if fromCookie {
						s.clearCookie(w)
					}
					if !allowNoLogin {
						writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
						return
					}
					user = types.User{}
				}
			} else if !allowNoLogin {
				log.Ctx(ctx).InfoContext(ctx, "unauthenticated request")
				writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}

		if user.ID != "" {
			ctx = log.WithAttrs(ctx, slog.String("authUserID", user.ID))
		}
		log.Ctx(ctx).DebugContext(
			ctx,
			"authenticated request",
			slog.String("email", user.Email),
			slog.Bool("admin", user.Admin),
		)

		ctx = context.WithValue(ctx, userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// adminOnly rejects callers that are not admins.
func (s *Server) adminOnly(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.getUser(r).Admin {
			log.Ctx(r.Context()).WarnContext(r.Context(), "admin required")
			writeJSONError(w, "Forbidden", http.StatusForbidden)
			return
		}
		h(w, r)
	})
}

// authenticateToken tries every configured verifier and returns the caller
// described by the first one that accepts the token.
func (s *Server) authenticateToken(ctx context.Context, token string) (types.User, time.Time, error) {
	var errs []error

	for providerName, verifier := range s.oidcVerifiers {
		idToken, err := verifier(ctx, token)
		if err == nil {
			var claims map[string]any
			err = idToken.Claims(&claims)
			if err == nil {
				email, _ := claims["email"].(string)
				user := types.User{
					ID:    idToken.Subject,
					Email: email,
				}
				user.Admin = claimString(claims, s.roleClaim) == adminRole || s.isAdminEmail(email)
				return user, idToken.Expiry, nil
			}
		}
		errs = append(errs, fmt.Errorf("%s verifier failed: %v", providerName, err))
	}

	if len(errs) > 1 {
		return types.User{}, time.Time{}, errors.Join(errs...)
	}
	if len(errs) == 1 {
		return types.User{}, time.Time{}, errs[0]
	}
	return types.User{}, time.Time{}, errors.New("no valid audiences configured or token invalid")
}

// claimString resolves a dotted claim path like "metadata.role".
func claimString(claims map[string]any, path string) string {
	if path == "" {
		return ""
	}
	var cur any = claims
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = m[part]
	}
	v, _ := cur.(string)
	return v
}

func (s *Server) isAdminEmail(email string) bool {
	if email == "" {
		return false
	}
	for _, adminEmail := range s.adminEmails {
		if email == adminEmail {
			return true
		}
	}
	return false
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(limitedBody(w, r)).Decode(&req); err != nil || req.Token == "" {
		writeJSONError(w, "token is required", http.StatusBadRequest)
		return
	}

	user, expires, err := s.authenticateToken(r.Context(), req.Token)
	if err != nil {
		log.Ctx(r.Context()).WarnContext(r.Context(), "failed to validate id token", slog.Any("error", err))
		writeJSONError(w, "invalid id token", http.StatusUnauthorized)
		return
	}

	log.Ctx(r.Context()).InfoContext(r.Context(), "login token validated", slog.String("email", user.Email), slog.String("subject", user.ID))

	http.SetCookie(w, &http.Cookie{
		Name:     authTokenCookie,
		Value:    req.Token,
		Expires:  expires,
		HttpOnly: true,
		Secure:   true,
		Path:     "/",
		SameSite: http.SameSiteStrictMode,
	})

	w.WriteHeader(http.StatusOK)
}

func (s *Server) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     authTokenCookie,
		Value:    "",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   true,
		Path:     "/",
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearCookie(w)
	w.WriteHeader(http.StatusOK)
}

type authStatusResponse struct {
	LoggedIn     bool   `json:"loggedIn"`
	UserID       string `json:"userId,omitempty"`
	Email        string `json:"email,omitempty"`
	Admin        bool   `json:"admin"`
	AuthRequired bool   `json:"authRequired"`
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	user := s.getUser(r)
	writeJSON(w, http.StatusOK, authStatusResponse{
		LoggedIn:     user.ID != "",
		UserID:       user.ID,
		Email:        user.Email,
		Admin:        user.Admin,
		AuthRequired: !s.authDisabled,
	})
}
