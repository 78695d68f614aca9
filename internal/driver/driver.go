package driver

import "runtime"

// devicePathPrefix 本地设备命名空间前缀，设备路径为前缀加驱动名。
const devicePathPrefix = `\\.\`

// Manager 驱动生命周期管理的抽象接口。
// service 层依赖此接口而非具体实现，便于测试和解耦。
type Manager interface {
	Install(secureDeviceAccess bool) error
	Uninstall() error
	Open() error
	Close()
	IoControl(code uint32, in, out []byte) (uint32, error)
	IsOpen() bool
	IsInstalled() bool
	LastErrorCode() uint32
	Name() string
	InstallPath() string
}

// Driver 管理一个内核驱动的完整生命周期：
// 安装服务、打开设备、下发 IOCTL、关闭与卸载。
// lastErr 等状态为普通可变字段，单实例不支持并发调用，
// 需要并发时由调用方自行串行化。
type Driver struct {
	name        string
	installPath string
	installed   bool
	lastErr     uint32
	ch          *deviceChannel
	inst        *serviceInstaller
}

// Option 构造参数。
type Option func(*Driver)

// WithInstallPath 指定驱动二进制路径，仅 Install 需要。
func WithInstallPath(path string) Option {
	return func(d *Driver) { d.installPath = path }
}

// New 创建驱动管理实例。name 同时用作服务名与设备路径后缀。
func New(name string, opts ...Option) *Driver {
	d := newDriver(name, nativeSCM{}, nativeDevice{})
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func newDriver(name string, scm scmBinding, dev deviceBinding) *Driver {
	d := &Driver{
		name: name,
		ch:   &deviceChannel{api: dev, path: devicePathPrefix + name},
		inst: &serviceInstaller{api: scm, name: name},
	}
	// 兜底回收：实例被遗忘时仅释放设备句柄，
	// 服务记录与 ACL 清理必须走显式路径，不依赖回收时机。
	runtime.SetFinalizer(d, (*Driver).finalize)
	return d
}

// Install 安装并启动驱动服务。
// 前置条件：实例构造时指定了存在的驱动文件路径。
func (d *Driver) Install(secureDeviceAccess bool) error {
	d.lastErr = 0
	installed, err := d.inst.Install(d.installPath, d.ch.path, secureDeviceAccess)
	if installed {
		d.installed = true
	}
	if err != nil {
		d.lastErr = errnoOf(err)
		return err
	}
	return nil
}

// Uninstall 停止并删除驱动服务，会先强制关闭设备句柄。
// 服务不存在时视为成功。
func (d *Driver) Uninstall() error {
	d.lastErr = 0
	// 防御：设备句柄未释放时删除服务会留下悬挂的设备对象。
	d.ch.Close()
	if err := d.inst.Uninstall(); err != nil {
		d.lastErr = errnoOf(err)
		return err
	}
	d.installed = false
	return nil
}

// Open 打开驱动设备，已打开时为幂等成功。
// 不要求先 Install，驱动可能已由其他方安装。
func (d *Driver) Open() error {
	d.lastErr = 0
	if err := d.ch.Open(); err != nil {
		d.lastErr = errnoOf(err)
		return err
	}
	return nil
}

// Close 关闭设备句柄，未打开时为空操作。
func (d *Driver) Close() {
	d.lastErr = 0
	d.ch.Close()
}

// IoControl 向驱动下发控制码。in/out 均可为 nil。
// 返回驱动实际写入输出缓冲区的字节数，可能小于缓冲区长度，
// 如何解释由调用方决定。
func (d *Driver) IoControl(code uint32, in, out []byte) (uint32, error) {
	d.lastErr = 0
	n, err := d.ch.ioControl(code, in, out)
	if err != nil {
		d.lastErr = errnoOf(err)
		return n, err
	}
	return n, nil
}

// IsOpen 设备句柄是否处于打开状态。
func (d *Driver) IsOpen() bool { return d.ch.open }

// IsInstalled 本实例是否执行过成功的安装。
// 只反映本实例的动作，不代表系统内的真实状态。
func (d *Driver) IsInstalled() bool { return d.installed }

// LastErrorCode 最近一次操作产生的原生错误码，0 表示无错误。
func (d *Driver) LastErrorCode() uint32 { return d.lastErr }

// Name 驱动名。
func (d *Driver) Name() string { return d.name }

// InstallPath 驱动二进制路径。
func (d *Driver) InstallPath() string { return d.installPath }

// Dispose 确定性释放设备句柄并解除兜底回收。
// Dispose 之后再下发 IOCTL 会直接失败，不会触碰已释放的句柄。
func (d *Driver) Dispose() {
	d.ch.Close()
	runtime.SetFinalizer(d, nil)
}

func (d *Driver) finalize() {
	d.ch.Close()
}
