package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/yoockh/voicerelay/internal/api/handlers"
)

type Deps struct {
	Session  *handlers.SessionHandler
	Artifact *handlers.ArtifactHandler
	WS       *handlers.WSHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	r.GET("/session", d.Session.Get)
	r.GET("/artifacts/:name", d.Artifact.Get)

	r.GET("/ws", d.WS.Connect)
}
