//go:build windows

package driver

import (
	"syscall"

	"golang.org/x/sys/windows"
)

// nativeSCM 基于 advapi32 原生服务管理器调用实现 scmBinding。
type nativeSCM struct{}

func (nativeSCM) OpenManager() (Handle, error) {
	h, err := windows.OpenSCManager(nil, nil, windows.SC_MANAGER_ALL_ACCESS)
	if err != nil {
		return NullHandle, err
	}
	return Handle(h), nil
}

func (nativeSCM) CreateService(m Handle, name, display, binPath string) (Handle, error) {
	name16, err := syscall.UTF16PtrFromString(name)
	if err != nil {
		return NullHandle, err
	}
	display16, err := syscall.UTF16PtrFromString(display)
	if err != nil {
		return NullHandle, err
	}
	path16, err := syscall.UTF16PtrFromString(binPath)
	if err != nil {
		return NullHandle, err
	}

	h, err := windows.CreateService(
		windows.Handle(m),
		name16,
		display16,
		windows.SERVICE_ALL_ACCESS,
		windows.SERVICE_KERNEL_DRIVER,
		windows.SERVICE_DEMAND_START,
		windows.SERVICE_ERROR_NORMAL,
		path16,
		nil, nil, nil, nil, nil,
	)
	if err != nil {
		return NullHandle, err
	}
	return Handle(h), nil
}

func (nativeSCM) OpenService(m Handle, name string) (Handle, error) {
	name16, err := syscall.UTF16PtrFromString(name)
	if err != nil {
		return NullHandle, err
	}
	h, err := windows.OpenService(windows.Handle(m), name16, windows.SERVICE_ALL_ACCESS)
	if err != nil {
		return NullHandle, err
	}
	return Handle(h), nil
}

func (nativeSCM) StartService(s Handle) error {
	return windows.StartService(windows.Handle(s), 0, nil)
}

func (nativeSCM) StopService(s Handle) error {
	var status windows.SERVICE_STATUS
	return windows.ControlService(windows.Handle(s), windows.SERVICE_CONTROL_STOP, &status)
}

func (nativeSCM) DeleteService(s Handle) error {
	return windows.DeleteService(windows.Handle(s))
}

func (nativeSCM) CloseServiceHandle(h Handle) error {
	return windows.CloseServiceHandle(windows.Handle(h))
}

// SetDeviceSecurity 解析 SDDL 并把所有者/组/DACL 应用到设备对象。
func (nativeSCM) SetDeviceSecurity(devicePath, sddl string) error {
	sd, err := windows.SecurityDescriptorFromString(sddl)
	if err != nil {
		return err
	}
	owner, _, err := sd.Owner()
	if err != nil {
		return err
	}
	group, _, err := sd.Group()
	if err != nil {
		return err
	}
	dacl, _, err := sd.DACL()
	if err != nil {
		return err
	}
	return windows.SetNamedSecurityInfo(
		devicePath,
		windows.SE_FILE_OBJECT,
		windows.OWNER_SECURITY_INFORMATION|windows.GROUP_SECURITY_INFORMATION|
			windows.DACL_SECURITY_INFORMATION|windows.PROTECTED_DACL_SECURITY_INFORMATION,
		owner, group, dacl, nil,
	)
}

// nativeDevice 基于 CreateFile/DeviceIoControl 实现 deviceBinding。
type nativeDevice struct{}

func (nativeDevice) OpenDevice(path string) (Handle, error) {
	path16, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return NullHandle, err
	}
	h, err := windows.CreateFile(
		path16,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		0,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_ATTRIBUTE_NORMAL,
		0,
	)
	if err != nil {
		return Handle(h), err
	}
	return Handle(h), nil
}

func (nativeDevice) CloseDevice(h Handle) error {
	return windows.CloseHandle(windows.Handle(h))
}

func (nativeDevice) DeviceIoControl(h Handle, code uint32, in, out []byte) (uint32, error) {
	var inPtr *byte
	var inLen uint32
	if len(in) > 0 {
		inPtr = &in[0]
		inLen = uint32(len(in))
	}

	var outPtr *byte
	var outLen uint32
	if len(out) > 0 {
		outPtr = &out[0]
		outLen = uint32(len(out))
	}

	var returned uint32
	err := windows.DeviceIoControl(windows.Handle(h), code, inPtr, inLen, outPtr, outLen, &returned, nil)
	if err != nil {
		return returned, err
	}
	return returned, nil
}
