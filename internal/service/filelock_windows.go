//go:build windows

package service

import (
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// 基于重启管理器 (Restart Manager) 查找占用驱动二进制文件的进程，
// 用于安装失败时的诊断信息。

const (
	rmAppNameLen     = 255
	rmServiceNameLen = 63
	rmSessionKeyLen  = 32
	rmErrorSuccess   = 0
)

type rmUniqueProcess struct {
	ProcessID        uint32
	ProcessStartTime windows.Filetime
}

type rmProcessInfo struct {
	Process          rmUniqueProcess
	AppName          [rmAppNameLen + 1]uint16
	ServiceShortName [rmServiceNameLen + 1]uint16
	ApplicationType  uint32
	AppStatus        uint32
	TSSessionID      uint32
	Restartable      int32
}

var (
	modRstrtMgr             = windows.NewLazySystemDLL("rstrtmgr.dll")
	procRmStartSession      = modRstrtMgr.NewProc("RmStartSession")
	procRmRegisterResources = modRstrtMgr.NewProc("RmRegisterResources")
	procRmGetList           = modRstrtMgr.NewProc("RmGetList")
	procRmEndSession        = modRstrtMgr.NewProc("RmEndSession")
)

// findLockingProcessIDs 返回持有 path 文件句柄的进程 PID 列表（去重）。
func findLockingProcessIDs(path string) ([]uint32, error) {
	pathPtr, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return nil, fmt.Errorf("路径编码失败: %w", err)
	}

	session, err := rmStartSession()
	if err != nil {
		return nil, err
	}
	defer rmEndSession(session)

	files := []*uint16{pathPtr}
	r1, _, callErr := procRmRegisterResources.Call(
		uintptr(session),
		uintptr(uint32(len(files))),
		uintptr(unsafe.Pointer(&files[0])),
		0, 0, 0, 0,
	)
	if uint32(r1) != rmErrorSuccess {
		return nil, fmt.Errorf("RmRegisterResources 失败: code=%d err=%v", uint32(r1), callErr)
	}

	infos, err := rmGetList(session)
	if err != nil {
		return nil, err
	}

	seen := make(map[uint32]struct{}, len(infos))
	pids := make([]uint32, 0, len(infos))
	for _, info := range infos {
		pid := info.Process.ProcessID
		if pid == 0 {
			continue
		}
		if _, ok := seen[pid]; ok {
			continue
		}
		seen[pid] = struct{}{}
		pids = append(pids, pid)
	}
	return pids, nil
}

func rmStartSession() (uint32, error) {
	var session uint32
	var sessionKey [rmSessionKeyLen + 1]uint16
	r1, _, callErr := procRmStartSession.Call(
		uintptr(unsafe.Pointer(&session)),
		0,
		uintptr(unsafe.Pointer(&sessionKey[0])),
	)
	if uint32(r1) != rmErrorSuccess {
		return 0, fmt.Errorf("RmStartSession 失败: code=%d err=%v", uint32(r1), callErr)
	}
	return session, nil
}

func rmGetList(session uint32) ([]rmProcessInfo, error) {
	var needed, count uint32
	var rebootReasons uint32

	r1, _, callErr := procRmGetList.Call(
		uintptr(session),
		uintptr(unsafe.Pointer(&needed)),
		uintptr(unsafe.Pointer(&count)),
		0,
		uintptr(unsafe.Pointer(&rebootReasons)),
	)
	code := uint32(r1)
	if code != rmErrorSuccess && code != uint32(windows.ERROR_MORE_DATA) {
		return nil, fmt.Errorf("RmGetList 失败: code=%d err=%v", code, callErr)
	}
	if needed == 0 {
		return nil, nil
	}

	infos := make([]rmProcessInfo, needed)
	count = needed
	r1, _, callErr = procRmGetList.Call(
		uintptr(session),
		uintptr(unsafe.Pointer(&needed)),
		uintptr(unsafe.Pointer(&count)),
		uintptr(unsafe.Pointer(&infos[0])),
		uintptr(unsafe.Pointer(&rebootReasons)),
	)
	if uint32(r1) != rmErrorSuccess {
		return nil, fmt.Errorf("RmGetList 失败: code=%d err=%v", uint32(r1), callErr)
	}
	return infos[:count], nil
}

func rmEndSession(session uint32) {
	_, _, _ = procRmEndSession.Call(uintptr(session))
}
