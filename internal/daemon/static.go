package daemon

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"siksha/internal/artifacts"
	"siksha/internal/config"
)

// staticHandler serves files under root without directory listings.
func staticHandler(root string) http.Handler {
	files := http.FileServer(http.Dir(root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		clean := path.Clean("/" + r.URL.Path)
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		info, err := os.Stat(filepath.Join(root, filepath.FromSlash(clean)))
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}

func videoURL(cfg *config.Config, folder string) string {
	return artifacts.VideoURL(cfg.Paths.URLPrefix, folder)
}
