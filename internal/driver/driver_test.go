package driver

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
)

// fakeSCM 服务管理器测试替身，记录调用序列与未释放的句柄数。
type fakeSCM struct {
	calls       []string
	managerErr  error
	createErr   error
	openErr     error
	startErr    error
	stopErr     error
	deleteErr   error
	securityErr error

	openHandles int
	securedPath string
	securedSDDL string
}

func (f *fakeSCM) OpenManager() (Handle, error) {
	f.calls = append(f.calls, "OpenManager")
	if f.managerErr != nil {
		return NullHandle, f.managerErr
	}
	f.openHandles++
	return Handle(11), nil
}

func (f *fakeSCM) CreateService(_ Handle, _, _, _ string) (Handle, error) {
	f.calls = append(f.calls, "CreateService")
	if f.createErr != nil {
		return NullHandle, f.createErr
	}
	f.openHandles++
	return Handle(22), nil
}

func (f *fakeSCM) OpenService(_ Handle, _ string) (Handle, error) {
	f.calls = append(f.calls, "OpenService")
	if f.openErr != nil {
		return NullHandle, f.openErr
	}
	f.openHandles++
	return Handle(33), nil
}

func (f *fakeSCM) StartService(_ Handle) error {
	f.calls = append(f.calls, "StartService")
	return f.startErr
}

func (f *fakeSCM) StopService(_ Handle) error {
	f.calls = append(f.calls, "StopService")
	return f.stopErr
}

func (f *fakeSCM) DeleteService(_ Handle) error {
	f.calls = append(f.calls, "DeleteService")
	return f.deleteErr
}

func (f *fakeSCM) CloseServiceHandle(_ Handle) error {
	f.calls = append(f.calls, "CloseServiceHandle")
	f.openHandles--
	return nil
}

func (f *fakeSCM) SetDeviceSecurity(devicePath, sddl string) error {
	f.calls = append(f.calls, "SetDeviceSecurity")
	if f.securityErr != nil {
		return f.securityErr
	}
	f.securedPath = devicePath
	f.securedSDDL = sddl
	return nil
}

// fakeDevice 设备绑定测试替身。
type fakeDevice struct {
	openErr error
	handle  Handle

	opens  int
	closes int
	ioctls int
	ioctl  func(code uint32, in, out []byte) (uint32, error)
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{handle: Handle(77)}
}

func (f *fakeDevice) OpenDevice(_ string) (Handle, error) {
	f.opens++
	if f.openErr != nil {
		return NullHandle, f.openErr
	}
	return f.handle, nil
}

func (f *fakeDevice) CloseDevice(_ Handle) error {
	f.closes++
	return nil
}

func (f *fakeDevice) DeviceIoControl(_ Handle, code uint32, in, out []byte) (uint32, error) {
	f.ioctls++
	if f.ioctl != nil {
		return f.ioctl(code, in, out)
	}
	return 0, nil
}

func writeTempSys(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.sys")
	if err := os.WriteFile(path, []byte("MZ"), 0o644); err != nil {
		t.Fatalf("写入临时驱动文件失败: %v", err)
	}
	return path
}

func newTestDriver(t *testing.T, scm *fakeSCM, dev *fakeDevice) *Driver {
	t.Helper()
	d := newDriver("TestDrv", scm, dev)
	d.installPath = writeTempSys(t)
	return d
}

func TestInstallEmptyPath(t *testing.T) {
	scm := &fakeSCM{}
	d := newDriver("TestDrv", scm, newFakeDevice())

	err := d.Install(false)
	if !errors.Is(err, ErrInstallPathEmpty) {
		t.Fatalf("期望 ErrInstallPathEmpty, 实际 %v", err)
	}
	if len(scm.calls) != 0 {
		t.Fatalf("前置条件失败不应产生原生调用: %v", scm.calls)
	}
	if d.IsInstalled() {
		t.Fatal("安装失败后 IsInstalled 应为 false")
	}
}

func TestInstallMissingFile(t *testing.T) {
	scm := &fakeSCM{}
	d := newDriver("TestDrv", scm, newFakeDevice())
	d.installPath = filepath.Join(t.TempDir(), "missing.sys")

	err := d.Install(false)
	if !errors.Is(err, ErrInstallPathMissing) {
		t.Fatalf("期望 ErrInstallPathMissing, 实际 %v", err)
	}
	if len(scm.calls) != 0 {
		t.Fatalf("前置条件失败不应产生原生调用: %v", scm.calls)
	}
}

func TestInstallSuccess(t *testing.T) {
	scm := &fakeSCM{}
	d := newTestDriver(t, scm, newFakeDevice())

	if err := d.Install(false); err != nil {
		t.Fatalf("Install 失败: %v", err)
	}
	if !d.IsInstalled() {
		t.Fatal("IsInstalled 应为 true")
	}
	if d.LastErrorCode() != 0 {
		t.Fatalf("成功后 LastErrorCode 应为 0, 实际 %d", d.LastErrorCode())
	}
	if scm.openHandles != 0 {
		t.Fatalf("所有句柄应已释放, 剩余 %d", scm.openHandles)
	}
	for _, call := range scm.calls {
		if call == "SetDeviceSecurity" {
			t.Fatal("未开启 secureDeviceAccess 时不应设置设备 ACL")
		}
	}
}

func TestInstallAlreadyExistsRecovered(t *testing.T) {
	scm := &fakeSCM{createErr: syscall.Errno(codeServiceExists)}
	d := newTestDriver(t, scm, newFakeDevice())

	if err := d.Install(false); err != nil {
		t.Fatalf("服务已存在应回退为打开现有服务, 实际失败: %v", err)
	}
	if !d.IsInstalled() {
		t.Fatal("IsInstalled 应为 true")
	}

	sawOpen := false
	for _, call := range scm.calls {
		if call == "OpenService" {
			sawOpen = true
		}
	}
	if !sawOpen {
		t.Fatalf("未走 OpenService 回退路径: %v", scm.calls)
	}
	if scm.openHandles != 0 {
		t.Fatalf("所有句柄应已释放, 剩余 %d", scm.openHandles)
	}
}

func TestInstallOpenExistingFails(t *testing.T) {
	scm := &fakeSCM{
		createErr: syscall.Errno(codeServiceExists),
		openErr:   syscall.Errno(5),
	}
	d := newTestDriver(t, scm, newFakeDevice())

	err := d.Install(false)
	if err == nil {
		t.Fatal("期望失败")
	}
	if d.LastErrorCode() != 5 {
		t.Fatalf("LastErrorCode 应为 5, 实际 %d", d.LastErrorCode())
	}
	if d.IsInstalled() {
		t.Fatal("IsInstalled 应为 false")
	}
	if scm.openHandles != 0 {
		t.Fatalf("失败路径也必须释放句柄, 剩余 %d", scm.openHandles)
	}
}

func TestInstallStartAlreadyRunning(t *testing.T) {
	scm := &fakeSCM{startErr: syscall.Errno(codeServiceAlreadyRunning)}
	d := newTestDriver(t, scm, newFakeDevice())

	if err := d.Install(false); err != nil {
		t.Fatalf("服务已在运行应视为成功, 实际失败: %v", err)
	}
	if !d.IsInstalled() {
		t.Fatal("IsInstalled 应为 true")
	}
}

func TestInstallStartFailure(t *testing.T) {
	scm := &fakeSCM{startErr: syscall.Errno(5)}
	d := newTestDriver(t, scm, newFakeDevice())

	err := d.Install(false)
	if err == nil {
		t.Fatal("期望启动失败")
	}
	if d.LastErrorCode() != 5 {
		t.Fatalf("LastErrorCode 应为 5, 实际 %d", d.LastErrorCode())
	}
	// 服务记录已创建，本实例视为已安装。
	if !d.IsInstalled() {
		t.Fatal("服务记录创建成功后 IsInstalled 应为 true")
	}
	if scm.openHandles != 0 {
		t.Fatalf("失败路径也必须释放句柄, 剩余 %d", scm.openHandles)
	}
}

func TestInstallSecureDeviceAccess(t *testing.T) {
	scm := &fakeSCM{}
	d := newTestDriver(t, scm, newFakeDevice())

	if err := d.Install(true); err != nil {
		t.Fatalf("Install 失败: %v", err)
	}
	if scm.securedPath != `\\.\TestDrv` {
		t.Fatalf("ACL 应设置在设备路径上, 实际 %q", scm.securedPath)
	}
	if scm.securedSDDL != deviceSDDL {
		t.Fatalf("SDDL 不符: %q", scm.securedSDDL)
	}
}

func TestInstallManagerFailure(t *testing.T) {
	scm := &fakeSCM{managerErr: syscall.Errno(5)}
	d := newTestDriver(t, scm, newFakeDevice())

	err := d.Install(false)
	if err == nil {
		t.Fatal("期望失败")
	}
	if d.LastErrorCode() != 5 {
		t.Fatalf("LastErrorCode 应为 5, 实际 %d", d.LastErrorCode())
	}
	for _, call := range scm.calls {
		if call == "CreateService" {
			t.Fatal("打开服务管理器失败后不应再创建服务")
		}
	}
}

func TestUninstallMissingServiceIdempotent(t *testing.T) {
	scm := &fakeSCM{}
	d := newTestDriver(t, scm, newFakeDevice())
	if err := d.Install(false); err != nil {
		t.Fatalf("Install 失败: %v", err)
	}

	scm.openErr = syscall.Errno(codeServiceDoesNotExist)
	if err := d.Uninstall(); err != nil {
		t.Fatalf("服务不存在应视为卸载成功, 实际失败: %v", err)
	}
	if d.IsInstalled() {
		t.Fatal("卸载后 IsInstalled 应为 false")
	}
	if scm.openHandles != 0 {
		t.Fatalf("所有句柄应已释放, 剩余 %d", scm.openHandles)
	}
}

func TestUninstallStopFailureIgnored(t *testing.T) {
	scm := &fakeSCM{stopErr: syscall.Errno(5)}
	d := newTestDriver(t, scm, newFakeDevice())

	if err := d.Uninstall(); err != nil {
		t.Fatalf("停止失败不应影响卸载, 实际失败: %v", err)
	}

	sawDelete := false
	for _, call := range scm.calls {
		if call == "DeleteService" {
			sawDelete = true
		}
	}
	if !sawDelete {
		t.Fatalf("未删除服务记录: %v", scm.calls)
	}
}

func TestUninstallDeleteFailure(t *testing.T) {
	scm := &fakeSCM{deleteErr: syscall.Errno(5)}
	d := newTestDriver(t, scm, newFakeDevice())

	err := d.Uninstall()
	if err == nil {
		t.Fatal("期望失败")
	}
	if d.LastErrorCode() != 5 {
		t.Fatalf("LastErrorCode 应为 5, 实际 %d", d.LastErrorCode())
	}
	if scm.openHandles != 0 {
		t.Fatalf("失败路径也必须释放句柄, 剩余 %d", scm.openHandles)
	}
}

func TestUninstallClosesDeviceFirst(t *testing.T) {
	scm := &fakeSCM{}
	dev := newFakeDevice()
	d := newTestDriver(t, scm, dev)

	if err := d.Open(); err != nil {
		t.Fatalf("Open 失败: %v", err)
	}
	if err := d.Uninstall(); err != nil {
		t.Fatalf("Uninstall 失败: %v", err)
	}
	if dev.closes != 1 {
		t.Fatalf("卸载前应关闭设备句柄, closes=%d", dev.closes)
	}
	if d.IsOpen() {
		t.Fatal("卸载后 IsOpen 应为 false")
	}
}

func TestOpenIdempotent(t *testing.T) {
	dev := newFakeDevice()
	d := newTestDriver(t, &fakeSCM{}, dev)

	if err := d.Open(); err != nil {
		t.Fatalf("第一次 Open 失败: %v", err)
	}
	if err := d.Open(); err != nil {
		t.Fatalf("第二次 Open 应为幂等成功: %v", err)
	}
	if dev.opens != 1 {
		t.Fatalf("应只获取一次句柄, 实际 %d 次", dev.opens)
	}
	if !d.IsOpen() {
		t.Fatal("IsOpen 应为 true")
	}
}

func TestOpenFailureSentinels(t *testing.T) {
	for name, handle := range map[string]Handle{
		"空句柄":  NullHandle,
		"全1句柄": InvalidHandle,
	} {
		t.Run(name, func(t *testing.T) {
			dev := newFakeDevice()
			dev.handle = handle
			d := newTestDriver(t, &fakeSCM{}, dev)

			err := d.Open()
			if !errors.Is(err, ErrInvalidDeviceHandle) {
				t.Fatalf("期望 ErrInvalidDeviceHandle, 实际 %v", err)
			}
			if d.IsOpen() {
				t.Fatal("IsOpen 应为 false")
			}
		})
	}
}

func TestOpenNativeError(t *testing.T) {
	dev := newFakeDevice()
	dev.openErr = syscall.Errno(2)
	d := newTestDriver(t, &fakeSCM{}, dev)

	if err := d.Open(); err == nil {
		t.Fatal("期望失败")
	}
	if d.LastErrorCode() != 2 {
		t.Fatalf("LastErrorCode 应为 2, 实际 %d", d.LastErrorCode())
	}

	// 下一次成功的操作应清空错误码。
	dev.openErr = nil
	if err := d.Open(); err != nil {
		t.Fatalf("Open 失败: %v", err)
	}
	if d.LastErrorCode() != 0 {
		t.Fatalf("成功后 LastErrorCode 应为 0, 实际 %d", d.LastErrorCode())
	}
}

func TestCloseIdempotent(t *testing.T) {
	dev := newFakeDevice()
	d := newTestDriver(t, &fakeSCM{}, dev)

	d.Close()
	if dev.closes != 0 {
		t.Fatal("未打开时 Close 不应产生原生调用")
	}

	if err := d.Open(); err != nil {
		t.Fatalf("Open 失败: %v", err)
	}
	d.Close()
	d.Close()
	if dev.closes != 1 {
		t.Fatalf("应只释放一次句柄, 实际 %d 次", dev.closes)
	}
}

func TestIoControlNotOpen(t *testing.T) {
	dev := newFakeDevice()
	d := newTestDriver(t, &fakeSCM{}, dev)

	n, err := d.IoControl(0x80002000, []byte{1}, make([]byte, 4))
	if !errors.Is(err, ErrDeviceNotOpen) {
		t.Fatalf("期望 ErrDeviceNotOpen, 实际 %v", err)
	}
	if n != 0 {
		t.Fatalf("bytesReturned 应为 0, 实际 %d", n)
	}
	if dev.ioctls != 0 {
		t.Fatal("设备未打开时不应产生原生调用")
	}
}

func TestIoControlNativeError(t *testing.T) {
	dev := newFakeDevice()
	dev.ioctl = func(_ uint32, _, _ []byte) (uint32, error) {
		return 0, syscall.Errno(31)
	}
	d := newTestDriver(t, &fakeSCM{}, dev)

	if err := d.Open(); err != nil {
		t.Fatalf("Open 失败: %v", err)
	}
	if _, err := d.IoControl(1, nil, nil); err == nil {
		t.Fatal("期望失败")
	}
	if d.LastErrorCode() != 31 {
		t.Fatalf("LastErrorCode 应为 31, 实际 %d", d.LastErrorCode())
	}
}

func TestIoControlAfterDispose(t *testing.T) {
	dev := newFakeDevice()
	d := newTestDriver(t, &fakeSCM{}, dev)

	if err := d.Open(); err != nil {
		t.Fatalf("Open 失败: %v", err)
	}
	d.Dispose()
	if dev.closes != 1 {
		t.Fatalf("Dispose 应释放句柄, closes=%d", dev.closes)
	}

	n, err := d.IoControl(1, nil, nil)
	if !errors.Is(err, ErrDeviceNotOpen) {
		t.Fatalf("Dispose 后 IoControl 应失败, 实际 %v", err)
	}
	if n != 0 || dev.ioctls != 0 {
		t.Fatal("Dispose 后不应触碰已释放的句柄")
	}
}
