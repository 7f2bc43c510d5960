/*
包 database 提供基于 GORM 的数据库连接与连接池管理，为本地后端
store/sqlstore 提供存储基础。

# 核心类型

  - PoolManager：持有 GORM DB 实例与底层 sql.DB，提供 DB()、Ping()、
    Stats()、Close() 以及事务执行。
  - PoolConfig：连接池配置；零值字段保持驱动默认值。

# 主要能力

  - 驱动选择：Dialector/Open 按驱动名选择 sqlite（纯 Go）、postgres 或 mysql。
  - 健康检查：后台定时 PingContext 探活，Close 时退出。
  - 事务管理：WithTransaction 单次执行，WithTransactionRetry 对死锁、
    序列化失败等可重试错误做指数退避重试。
*/
package database
