//go:build !windows

package security

import (
	"fmt"
	"net"
)

func BuildPipeSecurityDescriptor() (string, error) {
	return "", fmt.Errorf("仅支持 Windows")
}

func ValidatePipeClient(_ net.Conn) error {
	return fmt.Errorf("仅支持 Windows")
}
