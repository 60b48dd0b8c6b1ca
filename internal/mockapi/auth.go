package mockapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"

	"iotdash/internal/models"
)

type contextKey string

const userContextKey contextKey = "user"

type account struct {
	Password    string
	DisplayName string
	Role        models.Role
}

// mintAccessToken signs a short-lived HS256 access token for username.
func (s *Server) mintAccessToken(username string, role models.Role) (string, error) {
	claims := jwt.MapClaims{
		"sub":  username,
		"role": string(role),
		"exp":  time.Now().Add(s.accessTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// validateAccessToken parses and validates an access token, returning the
// subject username.
func (s *Server) validateAccessToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", errors.New("token missing subject")
	}
	return sub, nil
}

// requireAuth verifies the bearer token and attaches the account to the
// request context.
func (s *Server) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			respondWithError(w, models.NewAPIError(models.ErrorCodeUnauthorized,
				"Authorization header missing", nil, http.StatusUnauthorized))
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			respondWithError(w, models.NewAPIError(models.ErrorCodeUnauthorized,
				"Invalid token format", nil, http.StatusUnauthorized))
			return
		}

		username, err := s.validateAccessToken(tokenString)
		if err != nil {
			log.Println("MockAPI: token validation failed:", err)
			respondWithError(w, models.NewAPIError(models.ErrorCodeTokenExpired,
				"Invalid or expired token", nil, http.StatusUnauthorized))
			return
		}

		s.mu.RLock()
		acct, ok := s.accounts[username]
		s.mu.RUnlock()
		if !ok {
			respondWithError(w, models.NewAPIError(models.ErrorCodeUnauthorized,
				"Unknown account", nil, http.StatusUnauthorized))
			return
		}

		user := models.User{Username: username, DisplayName: acct.DisplayName, Role: acct.Role}
		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestUser(r *http.Request) models.User {
	user, _ := r.Context().Value(userContextKey).(models.User)
	return user
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, models.NewAPIError(models.ErrorCodeBadRequest,
			"Invalid request body", nil, http.StatusBadRequest))
		return
	}

	s.mu.RLock()
	acct, ok := s.accounts[req.Username]
	s.mu.RUnlock()
	if !ok || acct.Password != req.Password {
		// Invalid credentials surface as 404 so the client cannot
		// enumerate which half of the pair was wrong.
		respondWithError(w, models.NewAPIError(models.ErrorCodeNotFound,
			"Invalid username or password", nil, http.StatusNotFound))
		return
	}

	pair, err := s.issueTokens(req.Username, acct.Role)
	if err != nil {
		respondWithError(w, models.NewAPIError(models.ErrorCodeInternalError,
			"Failed to issue tokens", nil, http.StatusInternalServerError))
		return
	}

	log.Printf("MockAPI: %s logged in", req.Username)
	respondWithJSON(w, http.StatusOK, pair)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, models.NewAPIError(models.ErrorCodeBadRequest,
			"Invalid request body", nil, http.StatusBadRequest))
		return
	}

	s.mu.Lock()
	username, ok := s.refreshTokens[req.RefreshToken]
	if ok {
		// Rotation: a refresh token is single-use.
		delete(s.refreshTokens, req.RefreshToken)
	}
	acct, haveAcct := s.accounts[username]
	s.mu.Unlock()

	if !ok || !haveAcct {
		respondWithError(w, models.NewAPIError(models.ErrorCodeUnauthorized,
			"Invalid refresh token", nil, http.StatusUnauthorized))
		return
	}

	pair, err := s.issueTokens(username, acct.Role)
	if err != nil {
		respondWithError(w, models.NewAPIError(models.ErrorCodeInternalError,
			"Failed to issue tokens", nil, http.StatusInternalServerError))
		return
	}

	log.Printf("MockAPI: rotated tokens for %s", username)
	respondWithJSON(w, http.StatusOK, pair)
}

func (s *Server) issueTokens(username string, role models.Role) (models.TokenPair, error) {
	access, err := s.mintAccessToken(username, role)
	if err != nil {
		return models.TokenPair{}, err
	}
	refresh := uuid.New().String()

	s.mu.Lock()
	s.refreshTokens[refresh] = username
	s.mu.Unlock()

	return models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	s.mu.Lock()
	for token, username := range s.refreshTokens {
		if username == user.Username {
			delete(s.refreshTokens, token)
		}
	}
	s.mu.Unlock()

	log.Printf("MockAPI: %s logged out", user.Username)
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, requestUser(r))
}
