package server

import (
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
)

var (
	publicPages    = []string{"/", "/login", "/signup", "/forgot-password", "/reset-password", "/about", "/references"}
	protectedPages = []string{"/predict", "/analytics", "/database"}
)

// registerPages serves the single-page UI. Protected pages pass through the session guard
// so a signed-out visitor is redirected to the login page.
func (s *Server) registerPages(router *gin.Engine) {
	root := s.deps.StaticRoot
	index := filepath.Join(root, "index.html")
	serveIndex := func(c *gin.Context) { c.File(index) }

	router.Static("/static", root)
	for _, p := range publicPages {
		router.GET(p, serveIndex)
	}
	guard := s.requireSession(true)
	for _, p := range protectedPages {
		router.GET(p, guard, serveIndex)
	}
}

// DetectStaticRoot looks for index.html in the working directory, its web/ folder and
// up to two parents.
func DetectStaticRoot() string {
	startDir, err := os.Getwd()
	if err != nil {
		return "."
	}

	candidates := []string{
		startDir,
		filepath.Join(startDir, "web"),
		filepath.Dir(startDir),
		filepath.Join(filepath.Dir(startDir), "web"),
		filepath.Dir(filepath.Dir(startDir)),
		filepath.Join(filepath.Dir(filepath.Dir(startDir)), "web"),
	}

	for _, dir := range candidates {
		if fileExists(filepath.Join(dir, "index.html")) {
			return dir
		}
	}

	return startDir
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
