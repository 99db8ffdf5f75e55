package server

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

//go:embed static
var embedded embed.FS

// frontendFS returns the front-end assets: dir when configured, otherwise the
// page compiled into the binary.
func frontendFS(dir string) (fs.FS, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return fs.Sub(embedded, "static")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("static dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("static dir: %s is not a directory", dir)
	}
	return os.DirFS(dir), nil
}
