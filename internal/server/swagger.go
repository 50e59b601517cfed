package server

import (
	"gymflow/docs"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// SetupSwagger serves the API docs under /swagger. A non-empty host replaces
// the generated one so "try it out" reaches the deployed service.
func SetupSwagger(r *gin.Engine, host string) {
	if host != "" {
		docs.SwaggerInfo.Host = host
	}
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler,
		ginSwagger.DefaultModelsExpandDepth(-1),
		ginSwagger.PersistAuthorization(true),
	))
}
