// =============================================================================
// 🧪 测试辅助函数
// =============================================================================
// 提供各包测试共用的上下文、临时文件与轮询断言
//
// 使用方法:
//
//	ctx := testutil.TestContext(t)
//	path := testutil.WriteFile(t, "config.yaml", "log:\n  level: debug\n")
// =============================================================================
package testutil

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// DefaultTimeout bounds every TestContext.
const DefaultTimeout = 5 * time.Second

// =============================================================================
// 🎯 上下文辅助
// =============================================================================

// TestContext 返回带默认超时的测试上下文，测试结束时自动取消
func TestContext(t testing.TB) context.Context {
	return TestContextWithTimeout(t, DefaultTimeout)
}

// TestContextWithTimeout 返回带自定义超时的测试上下文
func TestContextWithTimeout(t testing.TB, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// CancelledContext 返回已取消的上下文
func CancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// =============================================================================
// 📁 文件辅助
// =============================================================================

// WriteFile writes content to name inside a fresh temp dir and returns the path.
func WriteFile(t testing.TB, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	RewriteFile(t, path, content)
	return path
}

// RewriteFile replaces the file at path and pushes its mtime forward so
// pollers comparing modification times always see a change.
func RewriteFile(t testing.TB, path, content string) {
	t.Helper()
	future := time.Now().Add(time.Second)
	if info, err := os.Stat(path); err == nil && !future.After(info.ModTime()) {
		future = info.ModTime().Add(time.Second)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

// =============================================================================
// 🔧 数据辅助
// =============================================================================

// MustJSON 序列化 v，失败时终止测试
func MustJSON(t testing.TB, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}
