package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type CheckAccessQuery struct {
	Email    string `form:"email" binding:"required"`
	PlanCode string `form:"plan_code" binding:"required"`
}

// GET /api/check-access?email=&plan_code=
func CheckAccess(c *gin.Context) {
	engine, ok := requireEngine(c)
	if !ok {
		return
	}

	var q CheckAccessQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		RespondError(c, bindingMessage(err), http.StatusBadRequest)
		return
	}

	check, err := engine.Access.CheckAccess(c.Request.Context(), q.Email, q.PlanCode)
	if err != nil {
		RespondAppError(c, err)
		return
	}

	out := gin.H{
		"hasAccess": check.HasAccess,
		"message":   check.Message,
	}
	if check.Grant != nil {
		out["access"] = check.Grant
	}
	RespondSuccess(c, out)
}

// GET /api/user-products?email=
// Sem email devolve o catálogo inteiro, sem nenhum produto possuído.
func GetUserProducts(c *gin.Context) {
	engine, ok := requireEngine(c)
	if !ok {
		return
	}

	rec, err := engine.Access.Reconcile(c.Request.Context(), c.Query("email"))
	if err != nil {
		RespondAppError(c, err)
		return
	}

	RespondSuccess(c, gin.H{
		"products":        rec.AllProducts,
		"userProducts":    rec.OwnedProducts,
		"totalProducts":   len(rec.AllProducts),
		"userAccessCount": len(rec.OwnedProducts),
		"activePlans":     rec.ActivePlans,
	})
}
