package controllers

import "github.com/gin-gonic/gin"

// GET /api/products/:id
func GetProductByID(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}

	engine, ok := requireEngine(c)
	if !ok {
		return
	}

	product, err := engine.Catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		RespondAppError(c, err)
		return
	}

	RespondSuccess(c, gin.H{"product": product})
}
