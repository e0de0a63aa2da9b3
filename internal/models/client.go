package models

import (
	"strings"
)

// Role names accepted in API key configuration
const (
	RoleAdmin  = "admin"
	RolePlayer = "player"
	RoleViewer = "viewer"
)

// rolePermissions maps a role to the permissions it grants
var rolePermissions = map[string][]string{
	RoleAdmin:  {"*"},
	RolePlayer: {"templates:read", "characters:*", "dungeons:*", "runs:read", "events:read"},
	RoleViewer: {"templates:read", "characters:read", "dungeons:read", "runs:read", "events:read"},
}

// ApiClient represents an authenticated API caller
type ApiClient struct {
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	ApiKey      string   `json:"-"` // Never serialize
	Permissions []string `json:"permissions"`
}

// NewApiClient builds a client for a configured key and role.
// Unknown roles get no permissions.
func NewApiClient(name, apiKey, role string) *ApiClient {
	perms := append([]string(nil), rolePermissions[role]...)
	return &ApiClient{
		Name:        name,
		Role:        role,
		ApiKey:      apiKey,
		Permissions: perms,
	}
}

// HasPermission checks if client has specific permission
// Supports wildcard permissions like "dungeons:*"
func (c *ApiClient) HasPermission(required string) bool {
	if c == nil {
		return false
	}

	for _, perm := range c.Permissions {
		// Exact match
		if perm == required {
			return true
		}

		// Wildcard match (e.g., "dungeons:*" matches "dungeons:write")
		if strings.HasSuffix(perm, ":*") {
			prefix := strings.TrimSuffix(perm, "*")
			if strings.HasPrefix(required, prefix) {
				return true
			}
		}

		// Global wildcard
		if perm == "*" {
			return true
		}
	}

	return false
}

// MaskedApiKey returns first 8 characters of API key for logging
func (c *ApiClient) MaskedApiKey() string {
	if len(c.ApiKey) < 8 {
		return "***"
	}
	return c.ApiKey[:8] + "..."
}

// IsValidRole reports whether role is a known role name
func IsValidRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}
