package controllers

import (
	"vitrine/services"

	"github.com/gin-gonic/gin"
)

const engineKey = "engine"

// Use este middleware no setup do gin
func SetEngineToContext(engine *services.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(engineKey, engine)
		c.Next()
	}
}

func EngineInstance(c *gin.Context) *services.Engine {
	v, ok := c.Get(engineKey)
	if !ok {
		return nil
	}
	engine, _ := v.(*services.Engine)
	return engine
}

// requireEngine responds 500 when the engine middleware is missing.
func requireEngine(c *gin.Context) (*services.Engine, bool) {
	engine := EngineInstance(c)
	if engine == nil {
		RespondError(c, "engine não configurado no contexto", 500)
		return nil, false
	}
	return engine, true
}
