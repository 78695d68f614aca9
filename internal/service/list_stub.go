//go:build !windows

package service

import "fmt"

func listKernelDriverServices(_ string) ([]DriverServiceModel, error) {
	return nil, fmt.Errorf("仅支持 Windows")
}

func findLockingProcessIDs(_ string) ([]uint32, error) {
	return nil, fmt.Errorf("仅支持 Windows")
}
