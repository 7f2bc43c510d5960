// =============================================================================
// Companion 主入口
// =============================================================================
// 对话编排器的命令行入口
//
// 使用方法:
//
//	companion serve                       # 启动 WebSocket 桥接服务
//	companion serve --config config.yaml  # 指定配置文件
//	companion chat                        # 终端内对话
//	companion version                     # 显示版本信息
//	companion health                      # 健康检查
// =============================================================================

package main

import (
	"fmt"
	"os"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
