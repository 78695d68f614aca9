package service

import (
	"fmt"
	"strings"
	"sync"

	"github.com/OpenSysKit/drivermgr/internal/driver"
)

// DriverService 暴露给前端的 JSON-RPC 服务。
// 所有方法通过 driver.Manager 接口操作内核驱动的生命周期。
// net/rpc 对每个请求单独起协程，而驱动实例要求调用方串行访问，
// 因此所有触碰 Driver 的方法都持 mu。
type DriverService struct {
	mu     sync.Mutex
	Driver driver.Manager
}

// PingArgs 连通性测试请求参数。
type PingArgs struct{}

// PingReply 连通性测试响应。
type PingReply struct {
	Status string `json:"status"`
}

// Ping 连通性测试，前端可用于检测后端服务是否存活。
func (t *DriverService) Ping(_ *PingArgs, reply *PingReply) error {
	reply.Status = "ok"
	return nil
}

// StatusArgs 驱动状态请求参数。
type StatusArgs struct{}

// StatusReply 驱动状态响应。
type StatusReply struct {
	Name          string `json:"name"`
	IsOpen        bool   `json:"is_open"`
	IsInstalled   bool   `json:"is_installed"`
	LastErrorCode uint32 `json:"last_error_code"`
}

// Status 返回驱动实例的当前状态。
func (t *DriverService) Status(_ *StatusArgs, reply *StatusReply) error {
	if t.Driver == nil {
		return fmt.Errorf("驱动未初始化")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	reply.Name = t.Driver.Name()
	reply.IsOpen = t.Driver.IsOpen()
	reply.IsInstalled = t.Driver.IsInstalled()
	reply.LastErrorCode = t.Driver.LastErrorCode()
	return nil
}

// InstallArgs 安装驱动请求参数。
type InstallArgs struct {
	SecureDeviceAccess bool `json:"secure_device_access"`
}

// InstallReply 安装驱动响应。
type InstallReply struct {
	Success       bool     `json:"success"`
	LastErrorCode uint32   `json:"last_error_code"`
	LockingPids   []uint32 `json:"locking_pids,omitempty"`
}

// InstallDriver 安装并启动驱动服务。
// 失败时附带占用驱动文件的进程列表，便于定位文件被锁的场景。
func (t *DriverService) InstallDriver(args *InstallArgs, reply *InstallReply) error {
	if t.Driver == nil {
		return fmt.Errorf("驱动未初始化")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.Driver.Install(args.SecureDeviceAccess); err != nil {
		reply.Success = false
		reply.LastErrorCode = t.Driver.LastErrorCode()
		reply.LockingPids, _ = findLockingProcessIDs(t.Driver.InstallPath())
		return fmt.Errorf("安装驱动失败: %w", err)
	}
	reply.Success = true
	return nil
}

// UninstallArgs 卸载驱动请求参数。
type UninstallArgs struct{}

// UninstallReply 卸载驱动响应。
type UninstallReply struct {
	Success       bool   `json:"success"`
	LastErrorCode uint32 `json:"last_error_code"`
}

// UninstallDriver 停止并删除驱动服务，会先关闭设备句柄。
func (t *DriverService) UninstallDriver(_ *UninstallArgs, reply *UninstallReply) error {
	if t.Driver == nil {
		return fmt.Errorf("驱动未初始化")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.Driver.Uninstall(); err != nil {
		reply.Success = false
		reply.LastErrorCode = t.Driver.LastErrorCode()
		return fmt.Errorf("卸载驱动失败: %w", err)
	}
	reply.Success = true
	return nil
}

// OpenArgs 打开设备请求参数。
type OpenArgs struct{}

// OpenReply 打开设备响应。
type OpenReply struct {
	Success       bool   `json:"success"`
	LastErrorCode uint32 `json:"last_error_code"`
}

// OpenDevice 打开驱动设备，已打开时为幂等成功。
func (t *DriverService) OpenDevice(_ *OpenArgs, reply *OpenReply) error {
	if t.Driver == nil {
		return fmt.Errorf("驱动未初始化")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.Driver.Open(); err != nil {
		reply.Success = false
		reply.LastErrorCode = t.Driver.LastErrorCode()
		return fmt.Errorf("打开设备失败: %w", err)
	}
	reply.Success = true
	return nil
}

// CloseArgs 关闭设备请求参数。
type CloseArgs struct{}

// CloseReply 关闭设备响应。
type CloseReply struct {
	Success bool `json:"success"`
}

// CloseDevice 关闭设备句柄。
func (t *DriverService) CloseDevice(_ *CloseArgs, reply *CloseReply) error {
	if t.Driver == nil {
		return fmt.Errorf("驱动未初始化")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Driver.Close()
	reply.Success = true
	return nil
}

// IoControlArgs 控制码请求参数。Input 在 JSON 中按 base64 传输。
type IoControlArgs struct {
	Code       uint32 `json:"code"`
	Input      []byte `json:"input"`
	OutputSize uint32 `json:"output_size"`
}

// IoControlReply 控制码响应。
type IoControlReply struct {
	Output        []byte `json:"output"`
	BytesReturned uint32 `json:"bytes_returned"`
}

// IoControl 向驱动下发控制码并返回输出数据。
func (t *DriverService) IoControl(args *IoControlArgs, reply *IoControlReply) error {
	if t.Driver == nil {
		return fmt.Errorf("驱动未初始化")
	}

	var out []byte
	if args.OutputSize > 0 {
		out = make([]byte, args.OutputSize)
	}

	t.mu.Lock()
	n, err := t.Driver.IoControl(args.Code, args.Input, out)
	t.mu.Unlock()
	if err != nil {
		return fmt.Errorf("IOCTL 失败 [code=0x%X]: %w", args.Code, err)
	}
	if n > uint32(len(out)) {
		n = uint32(len(out))
	}
	reply.Output = out[:n]
	reply.BytesReturned = n
	return nil
}

// ListDriverServicesArgs 内核驱动服务枚举请求参数。
type ListDriverServicesArgs struct {
	NameLike string `json:"name_like"`
}

// DriverServiceModel 内核驱动服务信息。
type DriverServiceModel struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	BinaryPath  string `json:"binary_path"`
	State       string `json:"state"`
	StartType   string `json:"start_type"`
}

// ListDriverServicesReply 内核驱动服务枚举响应。
type ListDriverServicesReply struct {
	Services []DriverServiceModel `json:"services"`
}

// ListDriverServices 枚举 SCM 中的内核驱动服务。
func (t *DriverService) ListDriverServices(args *ListDriverServicesArgs, reply *ListDriverServicesReply) error {
	services, err := listKernelDriverServices(strings.TrimSpace(args.NameLike))
	if err != nil {
		return fmt.Errorf("枚举驱动服务失败: %w", err)
	}
	reply.Services = services
	return nil
}
