package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/jrsteele09/scan-portal/session"
	"github.com/jrsteele09/scan-portal/users"
	"github.com/rs/zerolog/log"
)

//go:embed templates/*
var templateFiles embed.FS

const (
	contentTypeHTML      = "text/html; charset=utf-8"
	layoutTemplate       = "layout.html"
	passwordHintTemplate = "password_hint.html"
)

var pageTemplateNames = []string{
	"index.html",
	"login.html",
	"register.html",
	"dashboard.html",
	"page.html",
	"loading.html",
	"not_found.html",
}

func TemplateFilesFS() fs.FS {
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

// ParseTemplate parses a page together with the shared layout
func ParseTemplate(name string) (*template.Template, error) {
	return template.ParseFS(TemplateFilesFS(), layoutTemplate, name)
}

type pageTemplates struct {
	byName map[string]*template.Template
	// htmx fragments, rendered without the layout
	passwordHint *template.Template
}

func mustParsePages() *pageTemplates {
	p := &pageTemplates{byName: make(map[string]*template.Template, len(pageTemplateNames))}
	for _, name := range pageTemplateNames {
		tmpl, err := ParseTemplate(name)
		if err != nil {
			panic(fmt.Sprintf("Failed to parse %s template: %s", name, err))
		}
		p.byName[name] = tmpl
	}

	hint, err := template.ParseFS(TemplateFilesFS(), passwordHintTemplate)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse %s template: %s", passwordHintTemplate, err))
	}
	p.passwordHint = hint
	return p
}

// PageData is the model every page template receives
type PageData struct {
	AppName       string
	Title         string
	Description   string
	Path          string
	Notice        string
	Error         string
	Authenticated bool
	User          *users.User
	DisplayName   string
	IsDoctor      bool
	IsPatient     bool
	IsAdmin       bool

	// Form values preserved after a failed submission
	Email             string
	FullName          string
	Role              string
	MinPasswordLength int
}

func (s *Server) newPageData(r *http.Request, title string) PageData {
	query := r.URL.Query()
	data := PageData{
		AppName: s.config.GetAppName(),
		Title:   title,
		Path:    r.URL.Path,
		Notice:  query.Get("notice"),
		Error:   query.Get("error"),
	}
	if store := StoreFromContext(r.Context()); store != nil {
		data.withSession(store.Snapshot())
	}
	return data
}

func (d *PageData) withSession(st session.Session) {
	d.Authenticated = st.IsAuthenticated()
	d.User = st.User
	d.DisplayName = st.User.DisplayName()
	d.IsDoctor = st.IsDoctor()
	d.IsPatient = st.IsPatient()
	d.IsAdmin = st.IsAdmin()
}

// render executes into a buffer first so a template error can still become a 500
func (s *Server) render(w http.ResponseWriter, status int, name string, data PageData) {
	tmpl, ok := s.pages.byName[name]
	if !ok {
		log.Error().Str("template", name).Msg("[Server render] unknown template")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		log.Err(err).Str("template", name).Msg("[Server render] failed to render template")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) renderLoading(w http.ResponseWriter, r *http.Request) {
	data := s.newPageData(r, "Loading")
	w.Header().Set("Retry-After", "1")
	s.render(w, http.StatusServiceUnavailable, "loading.html", data)
}
