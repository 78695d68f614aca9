package driver

import (
	"errors"
	"syscall"
)

// 服务管理器相关的原生错误码。这里按数值定义而不引用 windows 包，
// 保证状态机代码在任意平台均可编译和测试。
const (
	codeServiceAlreadyRunning = 1056 // ERROR_SERVICE_ALREADY_RUNNING
	codeServiceDoesNotExist   = 1060 // ERROR_SERVICE_DOES_NOT_EXIST
	codeServiceExists         = 1073 // ERROR_SERVICE_EXISTS
)

var (
	// ErrInstallPathEmpty 安装时未指定驱动文件路径。
	ErrInstallPathEmpty = errors.New("驱动文件路径为空")
	// ErrInstallPathMissing 安装时驱动文件不存在。
	ErrInstallPathMissing = errors.New("驱动文件不存在")
	// ErrDeviceNotOpen 设备未打开时下发了 IOCTL。
	ErrDeviceNotOpen = errors.New("设备未打开")
	// ErrInvalidDeviceHandle 打开设备未报错但返回了无效句柄。
	ErrInvalidDeviceHandle = errors.New("打开设备返回无效句柄")
	// ErrNotPlainStruct 类型含引用字段，不能按字节与驱动原样交换。
	ErrNotPlainStruct = errors.New("类型不满足固定布局要求")
)

// errnoOf 提取错误链中的原生错误码，非系统错误返回 0。
func errnoOf(err error) uint32 {
	var e syscall.Errno
	if errors.As(err, &e) {
		return uint32(e)
	}
	return 0
}

// isErrno 判断错误是否携带指定的原生错误码。
func isErrno(err error, code uint32) bool {
	return err != nil && errnoOf(err) == code
}
