package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/terra-clan/dungeon-engine/internal/models"
)

type clientKey struct{}

// ClientFromContext returns the authenticated client of a request, nil outside Authenticate
func ClientFromContext(ctx context.Context) *models.ApiClient {
	client, _ := ctx.Value(clientKey{}).(*models.ApiClient)
	return client
}

func withClient(ctx context.Context, client *models.ApiClient) context.Context {
	return context.WithValue(ctx, clientKey{}, client)
}

// AuthMiddleware handles API key authentication against the configured clients
type AuthMiddleware struct {
	clients map[string]*models.ApiClient
}

// NewAuthMiddleware creates new auth middleware. With no clients every request
// is served as an anonymous admin; serve only passes none when AUTH_DISABLED is set.
func NewAuthMiddleware(clients []*models.ApiClient) *AuthMiddleware {
	m := &AuthMiddleware{clients: make(map[string]*models.ApiClient, len(clients))}
	for _, c := range clients {
		m.clients[c.ApiKey] = c
	}
	if len(m.clients) == 0 {
		slog.Warn("no API keys configured, authentication disabled")
	}
	return m
}

// Authenticate verifies API key from Authorization header
// Supports formats: "Bearer key" or "key" in Authorization header
// Also supports X-API-Key header
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(m.clients) == 0 {
			anon := models.NewApiClient("anonymous", "", models.RoleAdmin)
			next.ServeHTTP(w, r.WithContext(withClient(r.Context(), anon)))
			return
		}

		apiKey := extractAPIKey(r)
		if apiKey == "" {
			writeAuthError(w, http.StatusUnauthorized, "missing api key", "provide Authorization header with Bearer token or X-API-Key header")
			return
		}

		client, ok := m.clients[apiKey]
		if !ok {
			slog.Warn("invalid api key attempt", "key_prefix", maskKey(apiKey), "remote_addr", r.RemoteAddr)
			writeAuthError(w, http.StatusUnauthorized, "invalid api key", "the provided api key is not valid")
			return
		}

		slog.Debug("authenticated request", "client", client.Name, "key_prefix", client.MaskedApiKey())

		ctx := withClient(r.Context(), client)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission returns middleware that checks for specific permission
func (m *AuthMiddleware) RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := ClientFromContext(r.Context())
			if client == nil {
				writeAuthError(w, http.StatusUnauthorized, "not authenticated", "authentication required")
				return
			}

			if !client.HasPermission(permission) {
				slog.Warn("permission denied",
					"client", client.Name,
					"required", permission,
					"has", client.Permissions,
				)
				writeAuthError(w, http.StatusForbidden, "permission denied",
					"client does not have required permission: "+permission)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractAPIKey extracts API key from request headers
func extractAPIKey(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		if strings.HasPrefix(authHeader, "Bearer ") {
			return strings.TrimPrefix(authHeader, "Bearer ")
		}
		return authHeader
	}

	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}

	// Browsers cannot set headers on websocket upgrades
	return r.URL.Query().Get("api_key")
}

// maskKey returns first 8 chars of key for safe logging
func maskKey(key string) string {
	if len(key) < 8 {
		return "***"
	}
	return key[:8] + "..."
}

// AuthError represents an authentication error response
type AuthError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeAuthError writes JSON error response
func writeAuthError(w http.ResponseWriter, status int, error, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(AuthError{
		Error:   error,
		Message: message,
	})
}
