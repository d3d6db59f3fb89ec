package router

import (
	_ "github.com/drims/backend/docs" // registers the swagger document
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// MountSwagger serves the API docs at /swagger/index.html and the raw document at
// /swagger/doc.json. Both sit outside the /api group.
func MountSwagger(engine *gin.Engine) {
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}
