package api

import "github.com/gin-gonic/gin"

func Routes(router *gin.Engine, handler *Handler) {
	rockstars := router.Group("/rockstars")
	{
		rockstars.GET("", handler.Search)
		rockstars.GET("/:id", handler.Search)
		rockstars.GET("/aged/:age", handler.Search)
		rockstars.Any("/delete/:id", handler.Delete)
		rockstars.POST("", handler.Create)
	}

	router.Any("/reset", handler.Reset)
	router.Any("/updateS3", handler.UpdateContent)
}
