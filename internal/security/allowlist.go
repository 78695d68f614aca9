package security

import (
	"os"
	"strings"
)

// allowedImagesEnv 客户端可执行文件白名单环境变量（分号分隔）。
const allowedImagesEnv = "DRIVERMGR_PIPE_ALLOWED_IMAGES"

// allowedImageSet 解析白名单环境变量，返回小写文件名集合。
// 变量未设置或解析后为空时返回 nil，表示不限制。
func allowedImageSet() map[string]struct{} {
	return parseImageAllowlist(os.Getenv(allowedImagesEnv))
}

func parseImageAllowlist(raw string) map[string]struct{} {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	allowed := make(map[string]struct{})
	for _, part := range strings.Split(raw, ";") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name != "" {
			allowed[name] = struct{}{}
		}
	}
	if len(allowed) == 0 {
		return nil
	}
	return allowed
}
