package driver

import (
	"fmt"
	"os"
)

// deviceSDDL 设备对象访问控制描述符：
// 所有者为 Administrators，仅 SYSTEM 与 Administrators 拥有完全访问权限。
const deviceSDDL = "O:BAG:BAD:P(A;;GA;;;SY)(A;;GA;;;BA)"

// serviceInstaller 负责内核驱动服务记录的安装与卸载。
// 服务管理器句柄与服务句柄仅在单次调用内存续，所有退出路径均释放。
type serviceInstaller struct {
	api  scmBinding
	name string
}

// Install 创建并启动内核驱动服务。
// 同名服务已存在时回退为打开现有服务；服务已在运行视为成功。
// secureDeviceAccess 置位时在启动成功后收紧设备对象的访问控制。
// installed 表示服务记录创建或打开成功，启动失败时也可能为 true。
func (si *serviceInstaller) Install(path, devicePath string, secureDeviceAccess bool) (installed bool, err error) {
	if path == "" {
		return false, ErrInstallPathEmpty
	}
	if _, statErr := os.Stat(path); statErr != nil {
		return false, fmt.Errorf("%w: %s", ErrInstallPathMissing, path)
	}

	m, err := si.api.OpenManager()
	if err != nil {
		return false, fmt.Errorf("打开服务管理器失败: %w", err)
	}
	defer si.api.CloseServiceHandle(m)

	s, err := si.api.CreateService(m, si.name, si.name, path)
	if err != nil {
		if !isErrno(err, codeServiceExists) {
			return false, fmt.Errorf("创建服务失败: %w", err)
		}
		// 同名服务已存在，打开现有服务继续后面的启动流程。
		if s, err = si.api.OpenService(m, si.name); err != nil {
			return false, fmt.Errorf("打开已存在服务失败: %w", err)
		}
	}
	defer si.api.CloseServiceHandle(s)

	if err = si.api.StartService(s); err != nil && !isErrno(err, codeServiceAlreadyRunning) {
		return true, fmt.Errorf("启动服务失败: %w", err)
	}

	if secureDeviceAccess {
		if err = si.api.SetDeviceSecurity(devicePath, deviceSDDL); err != nil {
			return true, fmt.Errorf("设置设备访问控制失败: %w", err)
		}
	}
	return true, nil
}

// Uninstall 停止并删除驱动服务。服务不存在视为成功（幂等）。
func (si *serviceInstaller) Uninstall() error {
	m, err := si.api.OpenManager()
	if err != nil {
		return fmt.Errorf("打开服务管理器失败: %w", err)
	}
	defer si.api.CloseServiceHandle(m)

	s, err := si.api.OpenService(m, si.name)
	if err != nil {
		if isErrno(err, codeServiceDoesNotExist) {
			return nil
		}
		return fmt.Errorf("打开服务失败: %w", err)
	}
	defer si.api.CloseServiceHandle(s)

	// 停止失败不致命，删除服务记录才是目的。
	_ = si.api.StopService(s)

	if err = si.api.DeleteService(s); err != nil {
		return fmt.Errorf("删除服务失败: %w", err)
	}
	return nil
}
