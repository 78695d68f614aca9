//go:build !windows

package ipc

import (
	"fmt"
	"net"
)

// DefaultPipeName 默认命名管道。
const DefaultPipeName = `\\.\pipe\DriverMgr`

func Listen(_, _ string) (net.Listener, error) {
	return nil, fmt.Errorf("仅支持 Windows")
}
