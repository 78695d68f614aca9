package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/OpenSysKit/drivermgr/internal/driver"
	"github.com/OpenSysKit/drivermgr/internal/ipc"
	rpcserver "github.com/OpenSysKit/drivermgr/internal/rpc"
	"github.com/OpenSysKit/drivermgr/internal/security"
)

// 由 -ldflags 在编译时注入
var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	uninstallMode := flag.Bool("uninstall", false, "卸载驱动服务后退出")
	configPath := flag.String("config", "", "配置文件路径")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	log.Printf("DriverMgr 后端服务正在启动... (版本: %s, 构建时间: %s)", version, buildTime)

	drv := driver.New(cfg.DriverName, driver.WithInstallPath(cfg.SysPath))
	defer drv.Dispose()

	if *uninstallMode {
		if err := runUninstallMode(drv); err != nil {
			log.Fatalf("[uninstall] %v", err)
		}
		return
	}

	if cfg.AutoInstall {
		if err := drv.Install(cfg.SecureDevice); err != nil {
			log.Fatalf("安装驱动失败 (code=%d): %v", drv.LastErrorCode(), err)
		}
		log.Printf("驱动服务 %s 已安装并启动", cfg.DriverName)
	}

	if cfg.AutoOpen {
		if err := drv.Open(); err != nil {
			log.Printf("警告: 打开设备失败 (code=%d): %v", drv.LastErrorCode(), err)
		} else {
			log.Println("已连接内核驱动设备")
		}
	}

	// 管道仅对 SYSTEM、管理员组及当前用户开放。
	sddl, err := security.BuildPipeSecurityDescriptor()
	if err != nil {
		log.Printf("警告: 构造管道安全描述符失败，使用默认描述符: %v", err)
	}

	ln, err := ipc.Listen(cfg.PipeName, sddl)
	if err != nil {
		log.Fatalf("创建 IPC 监听器失败: %v", err)
	}
	defer ln.Close()

	srv, err := rpcserver.NewServer(drv)
	if err != nil {
		log.Fatalf("创建 RPC 服务器失败: %v", err)
	}
	srv.Authorize = security.ValidatePipeClient

	go func() {
		if err := srv.Serve(ln); err != nil {
			log.Printf("RPC 服务器错误: %v", err)
		}
	}()

	log.Println("DriverMgr 后端服务已启动，等待前端连接...")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("正在关闭服务...")
	drv.Close()

	if cfg.AutoInstall && cfg.UninstallOnExit {
		if err := drv.Uninstall(); err != nil {
			log.Printf("警告: 卸载驱动服务失败 (code=%d): %v", drv.LastErrorCode(), err)
		}
	}
}
