//go:build windows

package service

import (
	"errors"
	"sort"
	"strings"
	"unsafe"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"
)

// listKernelDriverServices 枚举 SCM 中的内核驱动服务。
// mgr.ListServices 只枚举 Win32 服务，这里直接走 EnumServicesStatusEx。
func listKernelDriverServices(nameLike string) ([]DriverServiceModel, error) {
	m, err := mgr.Connect()
	if err != nil {
		return nil, err
	}
	defer m.Disconnect()

	names, err := enumDriverServiceNames(m)
	if err != nil {
		return nil, err
	}

	filter := strings.ToLower(strings.TrimSpace(nameLike))
	out := make([]DriverServiceModel, 0, len(names))

	for _, name := range names {
		if filter != "" && !strings.Contains(strings.ToLower(name), filter) {
			continue
		}
		s, err := m.OpenService(name)
		if err != nil {
			continue
		}

		cfg, cfgErr := s.Config()
		st, stErr := s.Query()
		_ = s.Close()
		if cfgErr != nil || stErr != nil {
			continue
		}
		if cfg.ServiceType&windows.SERVICE_KERNEL_DRIVER == 0 {
			continue
		}

		out = append(out, DriverServiceModel{
			Name:        name,
			DisplayName: cfg.DisplayName,
			BinaryPath:  cfg.BinaryPathName,
			State:       serviceStateToString(st.State),
			StartType:   serviceStartTypeToString(cfg.StartType),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

// enumDriverServiceNames 返回所有驱动类服务名。
// 第一次调用获取所需缓冲区大小，第二次读取数据。
func enumDriverServiceNames(m *mgr.Mgr) ([]string, error) {
	var bytesNeeded, count uint32
	err := windows.EnumServicesStatusEx(m.Handle, windows.SC_ENUM_PROCESS_INFO,
		windows.SERVICE_DRIVER, windows.SERVICE_STATE_ALL,
		nil, 0, &bytesNeeded, &count, nil, nil)
	if err != nil && !errors.Is(err, windows.ERROR_MORE_DATA) {
		return nil, err
	}
	if bytesNeeded == 0 {
		return nil, nil
	}

	buf := make([]byte, bytesNeeded)
	err = windows.EnumServicesStatusEx(m.Handle, windows.SC_ENUM_PROCESS_INFO,
		windows.SERVICE_DRIVER, windows.SERVICE_STATE_ALL,
		&buf[0], uint32(len(buf)), &bytesNeeded, &count, nil, nil)
	if err != nil {
		return nil, err
	}

	entries := unsafe.Slice((*windows.ENUM_SERVICE_STATUS_PROCESS)(unsafe.Pointer(&buf[0])), count)
	names := make([]string, 0, count)
	for i := range entries {
		names = append(names, windows.UTF16PtrToString(entries[i].ServiceName))
	}
	return names, nil
}

func serviceStateToString(st svc.State) string {
	switch st {
	case svc.Stopped:
		return "stopped"
	case svc.StartPending:
		return "start_pending"
	case svc.StopPending:
		return "stop_pending"
	case svc.Running:
		return "running"
	case svc.ContinuePending:
		return "continue_pending"
	case svc.PausePending:
		return "pause_pending"
	case svc.Paused:
		return "paused"
	default:
		return "unknown"
	}
}

func serviceStartTypeToString(st uint32) string {
	switch st {
	case windows.SERVICE_BOOT_START:
		return "boot"
	case windows.SERVICE_SYSTEM_START:
		return "system"
	case uint32(mgr.StartAutomatic):
		return "auto"
	case uint32(mgr.StartManual):
		return "manual"
	case uint32(mgr.StartDisabled):
		return "disabled"
	default:
		return "unknown"
	}
}
