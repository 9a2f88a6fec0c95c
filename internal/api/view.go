package api

import (
	"embed"
	"html/template"

	"vetter/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

func loadTemplates() *template.Template {
	return template.Must(template.ParseFS(templateFS, "templates/*.html"))
}

type pageData struct {
	Transcript models.Transcript
	CSRFToken  string
	CSRFField  string
}
