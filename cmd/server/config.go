package main

import (
	"errors"
	"strings"

	"github.com/spf13/viper"

	"github.com/OpenSysKit/drivermgr/internal/ipc"
)

// Config 后端服务配置。
type Config struct {
	DriverName      string
	SysPath         string
	SecureDevice    bool
	PipeName        string
	AutoInstall     bool
	AutoOpen        bool
	UninstallOnExit bool
}

// loadConfig 读取配置。优先级：环境变量（DRIVERMGR_ 前缀）> 配置文件 > 默认值。
// path 为空时在当前目录查找 drivermgr.yaml，文件不存在不算错误。
func loadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("driver_name", "DriverMgr")
	v.SetDefault("sys_path", "DriverMgr.sys")
	v.SetDefault("secure_device", true)
	v.SetDefault("pipe_name", ipc.DefaultPipeName)
	v.SetDefault("auto_install", true)
	v.SetDefault("auto_open", true)
	v.SetDefault("uninstall_on_exit", false)

	v.SetEnvPrefix("DRIVERMGR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		v.SetConfigName("drivermgr")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
		}
	}

	return &Config{
		DriverName:      v.GetString("driver_name"),
		SysPath:         v.GetString("sys_path"),
		SecureDevice:    v.GetBool("secure_device"),
		PipeName:        v.GetString("pipe_name"),
		AutoInstall:     v.GetBool("auto_install"),
		AutoOpen:        v.GetBool("auto_open"),
		UninstallOnExit: v.GetBool("uninstall_on_exit"),
	}, nil
}
