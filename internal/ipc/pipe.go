//go:build windows

package ipc

import (
	"log"
	"net"

	"github.com/Microsoft/go-winio"

	"github.com/OpenSysKit/drivermgr/internal/security"
)

// DefaultPipeName 默认命名管道。
const DefaultPipeName = `\\.\pipe\DriverMgr`

// Listen 创建 Windows 命名管道监听器。
// name 为空时使用 DefaultPipeName，sddl 为空时退回仅管理员可访问的基线描述符。
func Listen(name, sddl string) (net.Listener, error) {
	if name == "" {
		name = DefaultPipeName
	}
	if sddl == "" {
		sddl = security.AdminOnlySDDL
	}

	cfg := &winio.PipeConfig{
		SecurityDescriptor: sddl,
		MessageMode:        false,
		InputBufferSize:    65536,
		OutputBufferSize:   65536,
	}
	ln, err := winio.ListenPipe(name, cfg)
	if err != nil {
		return nil, err
	}
	log.Printf("[ipc] 正在监听命名管道: %s", name)
	return ln, nil
}
