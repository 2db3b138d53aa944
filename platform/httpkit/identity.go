package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity is the authenticated caller as extracted from the request
// context by AuthRequired.
type Identity struct {
	UserID uuid.UUID
	Roles  []string
}

// HasRole reports whether the caller carries the given role.
func (id Identity) HasRole(role string) bool {
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// CurrentIdentity reads the identity set by AuthRequired. The second
// return value is false when the request is unauthenticated.
func CurrentIdentity(c *gin.Context) (Identity, bool) {
	raw, ok := c.Get(ContextUserIDKey)
	if !ok {
		return Identity{}, false
	}
	userID, ok := raw.(uuid.UUID)
	if !ok {
		return Identity{}, false
	}

	var roles []string
	if rawRoles, ok := c.Get(ContextRolesKey); ok {
		roles, _ = rawRoles.([]string)
	}

	return Identity{UserID: userID, Roles: roles}, true
}

// MustIdentity is CurrentIdentity for handlers behind AuthRequired.
// It aborts the request with 401 when no identity is present, in which
// case the handler must return immediately.
func MustIdentity(c *gin.Context) (Identity, bool) {
	id, ok := CurrentIdentity(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return Identity{}, false
	}
	return id, true
}
