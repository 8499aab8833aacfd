package api

import (
	"html/template"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
)

// StarPages is the registry the star pages are rendered from.
type StarPages interface {
	HasTemplate(name string) bool
	Markdown(name string) (template.HTML, bool)
}

// StarPage renders stars/{status}/{name}/default.html with the
// markdown of the Content.md next to it.
func StarPage(pages StarPages) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		dir := path.Join("stars", ctx.Param("status"), ctx.Param("name"))
		page := path.Join(dir, "default.html")

		if !pages.HasTemplate(page) {
			ctx.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no page for " + ctx.Request.URL.Path})
			return
		}

		content, _ := pages.Markdown(path.Join(dir, "Content.md"))

		ctx.HTML(http.StatusOK, page, gin.H{
			"Content": content,
		})
	}
}
