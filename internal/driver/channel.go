package driver

// deviceChannel 持有设备句柄并维护打开状态。
// 句柄有效性与 open 标志始终保持一致。
type deviceChannel struct {
	api    deviceBinding
	path   string
	handle Handle
	open   bool
}

// Open 打开设备。已打开时直接返回成功，不重复获取句柄。
func (c *deviceChannel) Open() error {
	if c.open {
		return nil
	}

	h, err := c.api.OpenDevice(c.path)
	if err != nil {
		return err
	}
	// 打开失败存在两种句柄形态：空句柄与全 1 句柄。
	// 系统文档未说明二者是否在所有版本上都可达，两种都要检查。
	if h == NullHandle || h == InvalidHandle {
		return ErrInvalidDeviceHandle
	}

	c.handle = h
	c.open = true
	return nil
}

// Close 释放设备句柄。未打开时为空操作，释放失败不向调用方暴露。
func (c *deviceChannel) Close() {
	if !c.open {
		return
	}
	_ = c.api.CloseDevice(c.handle)
	c.handle = NullHandle
	c.open = false
}

// ioControl 通过持有的句柄下发控制码。
// 设备未打开时立即失败，不产生任何原生调用。
func (c *deviceChannel) ioControl(code uint32, in, out []byte) (uint32, error) {
	if !c.open {
		return 0, ErrDeviceNotOpen
	}
	return c.api.DeviceIoControl(c.handle, code, in, out)
}
