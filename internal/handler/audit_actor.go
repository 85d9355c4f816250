package handler

import (
	"net/http"

	"go-videotube/internal/middleware"
	"go-videotube/internal/model"
)

// actorFromRequest attributes an operation to the caller for the audit trail.
func actorFromRequest(r *http.Request) model.Actor {
	actor := model.Actor{IP: middleware.ClientIP(r)}

	if user, ok := middleware.UserFromContext(r.Context()); ok {
		actor.UserID = user.ID
	}

	return actor
}
