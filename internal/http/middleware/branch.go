package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/branchcast/internal/model"
)

// BranchSessions resolves an opaque terminal token to a branch id.
type BranchSessions interface {
	Resolve(ctx context.Context, token string) (int, error)
}

type BranchLoader interface {
	GetBranchByID(ctx context.Context, id int) (model.Branch, error)
}

// checks “Authorization: Bearer <token>” against the branch session store and sets “currentBranch”.
func BranchTokenMiddleware(sessions BranchSessions, branches BranchLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing branch token"})
			return
		}

		branchID, err := sessions.Resolve(c.Request.Context(), token)
		if err != nil {
			log.Debug().Err(err).Msg("[auth] branch token rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid branch token"})
			return
		}

		branch, err := branches.GetBranchByID(c.Request.Context(), branchID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "branch not found"})
			return
		}
		c.Set("currentBranch", &branch)
		c.Set("branchToken", token)
		c.Next()
	}
}

func GetCurrentBranch(c *gin.Context) (*model.Branch, bool) {
	b, exists := c.Get("currentBranch")
	if !exists {
		return nil, false
	}
	branch, ok := b.(*model.Branch)
	return branch, ok
}

func GetBranchToken(c *gin.Context) string {
	return c.GetString("branchToken")
}
