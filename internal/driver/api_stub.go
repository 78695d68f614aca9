//go:build !windows

package driver

import "fmt"

// 非 Windows 平台占位实现，所有原生调用返回错误。
// 生命周期逻辑本身可在任意平台测试。

func errWindowsOnly() error { return fmt.Errorf("仅支持 Windows") }

type nativeSCM struct{}

func (nativeSCM) OpenManager() (Handle, error) {
	return NullHandle, errWindowsOnly()
}

func (nativeSCM) CreateService(_ Handle, _, _, _ string) (Handle, error) {
	return NullHandle, errWindowsOnly()
}

func (nativeSCM) OpenService(_ Handle, _ string) (Handle, error) {
	return NullHandle, errWindowsOnly()
}

func (nativeSCM) StartService(_ Handle) error { return errWindowsOnly() }

func (nativeSCM) StopService(_ Handle) error { return errWindowsOnly() }

func (nativeSCM) DeleteService(_ Handle) error { return errWindowsOnly() }

func (nativeSCM) CloseServiceHandle(_ Handle) error { return errWindowsOnly() }

func (nativeSCM) SetDeviceSecurity(_, _ string) error { return errWindowsOnly() }

type nativeDevice struct{}

func (nativeDevice) OpenDevice(_ string) (Handle, error) {
	return NullHandle, errWindowsOnly()
}

func (nativeDevice) CloseDevice(_ Handle) error { return errWindowsOnly() }

func (nativeDevice) DeviceIoControl(_ Handle, _ uint32, _, _ []byte) (uint32, error) {
	return 0, errWindowsOnly()
}
