package main

import (
	"fmt"
	"log"

	"github.com/OpenSysKit/drivermgr/internal/driver"
)

// runUninstallMode 手动卸载模式：关闭设备句柄并删除驱动服务。
// 服务不存在时同样视为成功。
func runUninstallMode(drv *driver.Driver) error {
	log.Println("[uninstall] 进入手动卸载模式")

	drv.Close()
	if err := drv.Uninstall(); err != nil {
		return fmt.Errorf("卸载驱动服务失败 (code=%d): %w", drv.LastErrorCode(), err)
	}

	log.Println("[uninstall] 卸载完成")
	return nil
}
