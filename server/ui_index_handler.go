package server

import (
	"net/http"
)

// IndexHandler renders the home page
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, http.StatusOK, "index.html", s.newPageData(r, "Welcome"))
	}
}

// PageHandler renders one of the guarded portal pages
func (s *Server) PageHandler(page portalPage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := s.newPageData(r, page.title)
		data.Description = page.description
		s.render(w, http.StatusOK, page.template, data)
	}
}

func (s *Server) NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, http.StatusNotFound, "not_found.html", s.newPageData(r, "Not found"))
	}
}
