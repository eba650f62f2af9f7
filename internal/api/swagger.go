package api

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger/v2"
)

// SwaggerUIHandler serves the Swagger UI backed by the registered doc.json.
func SwaggerUIHandler() http.HandlerFunc {
	return httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json"))
}

// OpenAPISpecHandler redirects to the swagger spec JSON.
func OpenAPISpecHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger/doc.json", http.StatusTemporaryRedirect)
	}
}
