package driver

// 原生调用绑定接口。核心状态机只依赖这两个接口而非具体系统调用，
// 便于在任意平台上用测试替身驱动完整的生命周期逻辑。

// Handle 原生句柄。
type Handle uintptr

const (
	// NullHandle 空句柄。
	NullHandle = Handle(0)
	// InvalidHandle CreateFile 失败时返回的全 1 句柄。
	// 打开设备时两种句柄形态都表示失败，不能假设二者等价。
	InvalidHandle = ^Handle(0)
)

// scmBinding 服务控制管理器原生调用。
// 所有句柄仅在单次操作内存续，由调用方负责释放。
type scmBinding interface {
	// OpenManager 以完全访问权限连接本机服务控制管理器。
	OpenManager() (Handle, error)
	// CreateService 创建内核驱动服务记录（按需启动，错误处理为记录并继续）。
	CreateService(m Handle, name, display, binPath string) (Handle, error)
	// OpenService 按名称打开已存在的服务。
	OpenService(m Handle, name string) (Handle, error)
	// StartService 启动服务。
	StartService(s Handle) error
	// StopService 向服务发送停止控制。
	StopService(s Handle) error
	// DeleteService 删除服务记录。
	DeleteService(s Handle) error
	// CloseServiceHandle 释放服务管理器或服务句柄。
	CloseServiceHandle(h Handle) error
	// SetDeviceSecurity 按 SDDL 字符串设置设备对象的安全描述符。
	SetDeviceSecurity(devicePath, sddl string) error
}

// deviceBinding 设备句柄原生调用。
type deviceBinding interface {
	// OpenDevice 以读写、不共享、打开已有对象的方式打开设备。
	OpenDevice(path string) (Handle, error)
	// CloseDevice 关闭设备句柄。
	CloseDevice(h Handle) error
	// DeviceIoControl 下发控制码，返回驱动写入输出缓冲区的字节数。
	DeviceIoControl(h Handle, code uint32, in, out []byte) (uint32, error)
}
