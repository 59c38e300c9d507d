package middleware

import (
	"net/http"

	"TH_treasure_hunt/pkg/auth"
	"TH_treasure_hunt/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Authorization gates creator endpoints to the participant ids in hunts.creators.
type Authorization struct {
	creators map[string]struct{}
}

func NewAuthorization(creators []string) *Authorization {
	set := make(map[string]struct{}, len(creators))
	for _, id := range creators {
		set[id] = struct{}{}
	}
	return &Authorization{
		creators: set,
	}
}

func (a *Authorization) IsCreator(participantID string) bool {
	_, ok := a.creators[participantID]
	return ok
}

func (a *Authorization) CreatorOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.Logger()

		user, ok := auth.Participant(c)
		if !ok {
			log.Error("participant not found in context")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		if !a.IsCreator(user.ParticipantID()) {
			log.Info("unauthorized access attempt to creator endpoint",
				zap.String("participant_id", user.ParticipantID()))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "creator access required"})
			return
		}

		c.Set("is_creator", true)
		c.Next()
	}
}
