/*
Package testutil 提供 companion 测试的共享工具和辅助函数。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 文件辅助: WriteFile / RewriteFile，后者推进修改时间供配置监听测试使用
  - 数据工具: MustJSON

# 子包

  - testutil/mocks: MockBackend（api.Client）、MockAI（llm.Service）
    与 MockRetriever（rag.Retriever），均支持 Builder 模式、
    调用计数与错误注入
*/
package testutil
