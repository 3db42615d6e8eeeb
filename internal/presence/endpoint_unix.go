//go:build !windows

package presence

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
)

// Flatpak and snap installs put the socket one level down
var ipcSubdirs = []string{"", "app/com.discordapp.Discord", "snap.discord"}

func ipcEndpoints() []string {
	var dirs []string
	for _, env := range []string{"XDG_RUNTIME_DIR", "TMPDIR", "TMP", "TEMP"} {
		if v := os.Getenv(env); v != "" {
			dirs = append(dirs, v)
		}
	}
	dirs = append(dirs, "/tmp")

	seen := make(map[string]bool)
	var endpoints []string
	for _, dir := range dirs {
		for _, sub := range ipcSubdirs {
			for i := 0; i < 10; i++ {
				path := filepath.Join(dir, sub, fmt.Sprintf("discord-ipc-%d", i))
				if seen[path] {
					continue
				}
				seen[path] = true
				endpoints = append(endpoints, path)
			}
		}
	}
	return endpoints
}

func dialEndpoint(ctx context.Context, path string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "unix", path)
}
