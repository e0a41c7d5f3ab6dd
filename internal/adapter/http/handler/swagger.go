package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const swaggerPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Civic Document Service API</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({url: '/swagger/spec', dom_id: '#swagger-ui'});
  </script>
</body>
</html>`

// registerSwagger serves the OpenAPI document and a UI for it. Nothing is
// mounted when no document was supplied.
func registerSwagger(r gin.IRouter, spec []byte) {
	if len(spec) == 0 {
		return
	}
	g := r.Group("/swagger")
	g.GET("", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(swaggerPage))
	})
	g.GET("/spec", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/yaml", spec)
	})
}
