//go:build windows

package security

import (
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modKernel32                     = windows.NewLazySystemDLL("kernel32.dll")
	procGetNamedPipeClientProcessId = modKernel32.NewProc("GetNamedPipeClientProcessId")
)

// clientIdentity 命名管道对端进程的身份信息。
type clientIdentity struct {
	pid uint32
	sid string
}

// BuildPipeSecurityDescriptor 返回命名管道 SDDL:
// 管理员基线 + 当前进程用户 SID。
func BuildPipeSecurityDescriptor() (string, error) {
	sid, err := CurrentUserSIDString()
	if err != nil {
		return AdminOnlySDDL, err
	}
	return AdminOnlySDDL + "(A;;GA;;;" + sid + ")", nil
}

// ValidatePipeClient 校验命名管道客户端是否可信：
// 1) 客户端进程用户 SID 必须与当前进程用户 SID 一致
// 2) 可选: DRIVERMGR_PIPE_ALLOWED_IMAGES 白名单限制可执行文件名（分号分隔）
func ValidatePipeClient(conn net.Conn) error {
	id, err := identifyPipeClient(conn)
	if err != nil {
		return err
	}

	currentSID, err := CurrentUserSIDString()
	if err != nil {
		return fmt.Errorf("读取当前进程SID失败: %w", err)
	}
	if !strings.EqualFold(id.sid, currentSID) {
		return fmt.Errorf("客户端SID不匹配(pid=%d, sid=%s)", id.pid, id.sid)
	}

	allowed := allowedImageSet()
	if len(allowed) == 0 {
		return nil
	}
	image, err := withProcess(id.pid, processImagePath)
	if err != nil {
		return fmt.Errorf("读取客户端进程路径失败(pid=%d): %w", id.pid, err)
	}
	base := strings.ToLower(filepath.Base(image))
	if _, ok := allowed[base]; !ok {
		return fmt.Errorf("客户端进程不在白名单(pid=%d, image=%s)", id.pid, base)
	}
	return nil
}

// CurrentUserSIDString 返回当前进程令牌的用户 SID 字符串。
func CurrentUserSIDString() (string, error) {
	token, err := windows.OpenCurrentProcessToken()
	if err != nil {
		return "", err
	}
	defer token.Close()
	return tokenUserSID(token)
}

func identifyPipeClient(conn net.Conn) (*clientIdentity, error) {
	pid, err := pipeClientPID(conn)
	if err != nil {
		return nil, fmt.Errorf("读取管道客户端 PID 失败: %w", err)
	}
	sid, err := withProcess(pid, processUserSID)
	if err != nil {
		return nil, fmt.Errorf("读取客户端SID失败(pid=%d): %w", pid, err)
	}
	return &clientIdentity{pid: pid, sid: sid}, nil
}

func pipeClientPID(conn net.Conn) (uint32, error) {
	fd, ok := conn.(interface{ Fd() uintptr })
	if !ok {
		return 0, fmt.Errorf("连接对象不支持 Fd")
	}

	var pid uint32
	r1, _, e1 := procGetNamedPipeClientProcessId.Call(fd.Fd(), uintptr(unsafe.Pointer(&pid)))
	if r1 == 0 {
		if e1 != windows.ERROR_SUCCESS && e1 != nil {
			return 0, error(e1)
		}
		return 0, fmt.Errorf("GetNamedPipeClientProcessId 调用失败")
	}
	if pid == 0 {
		return 0, fmt.Errorf("客户端PID为0")
	}
	return pid, nil
}

// withProcess 以最小查询权限打开目标进程，执行 fn 后关闭句柄。
func withProcess(pid uint32, fn func(windows.Handle) (string, error)) (string, error) {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return "", err
	}
	defer windows.CloseHandle(h)
	return fn(h)
}

func processUserSID(h windows.Handle) (string, error) {
	var token windows.Token
	if err := windows.OpenProcessToken(h, windows.TOKEN_QUERY, &token); err != nil {
		return "", err
	}
	defer token.Close()
	return tokenUserSID(token)
}

func processImagePath(h windows.Handle) (string, error) {
	size := uint32(1024)
	buf := make([]uint16, size)
	if err := windows.QueryFullProcessImageName(h, 0, &buf[0], &size); err != nil {
		return "", err
	}
	return windows.UTF16ToString(buf[:size]), nil
}

func tokenUserSID(token windows.Token) (string, error) {
	user, err := token.GetTokenUser()
	if err != nil {
		return "", err
	}
	return user.User.Sid.String(), nil
}
