package echoapi

import (
	"html/template"
	"io"

	"github.com/labstack/echo/v4"

	appfs "github.com/TTR-x/ttr-gestion-sub002/fs"
)

const confirmOverridePage = "confirm_override.gohtml"

var pages = &pageRenderer{
	templates: template.Must(template.ParseFS(appfs.FS, appfs.PageTemplatesDir+"/*.gohtml")),
}

// pageRenderer renders the HTML pages served outside the JSON API.
type pageRenderer struct {
	templates *template.Template
}

func (r *pageRenderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}

type pageData struct {
	AppName string
	Title   string
	Status  string // success | expired | error
	Message string
}
