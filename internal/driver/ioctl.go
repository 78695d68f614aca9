package driver

// IOCTL 控制码构造。
// Windows IOCTL 控制码格式: ((DeviceType) << 16) | ((Access) << 14) | ((Function) << 2) | (Method)
//
// 参考: https://learn.microsoft.com/en-us/windows-hardware/drivers/kernel/defining-i-o-control-codes

const (
	METHOD_BUFFERED   uint32 = 0
	METHOD_IN_DIRECT  uint32 = 1
	METHOD_OUT_DIRECT uint32 = 2
	METHOD_NEITHER    uint32 = 3

	FILE_ANY_ACCESS uint32 = 0
	FILE_READ_DATA  uint32 = 1
	FILE_WRITE_DATA uint32 = 2
)

// CTL_CODE 按 Windows 约定构造 IOCTL 控制码，
// 控制码的具体含义由目标驱动定义。
func CTL_CODE(deviceType, function, method, access uint32) uint32 {
	return (deviceType << 16) | (access << 14) | (function << 2) | method
}
