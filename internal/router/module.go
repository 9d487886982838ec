package router

import "github.com/gin-gonic/gin"

// Module registers a feature's routes on a RouterGroup.
type Module interface {
	Register(rg *gin.RouterGroup)
}
