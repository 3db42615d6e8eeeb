//go:build windows

package presence

import (
	"context"
	"fmt"
	"net"

	"github.com/Microsoft/go-winio"
)

func ipcEndpoints() []string {
	endpoints := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		endpoints = append(endpoints, fmt.Sprintf(`\\.\pipe\discord-ipc-%d`, i))
	}
	return endpoints
}

func dialEndpoint(ctx context.Context, path string) (net.Conn, error) {
	return winio.DialPipeContext(ctx, path)
}
