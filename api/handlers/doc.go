// Copyright (c) WaybillFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 WaybillFlow HTTP API 的请求处理器实现。

# 概述

handlers 包实现了 WaybillFlow 所有 HTTP 端点的请求处理逻辑，
包括运单创建、地图探测、流量状态、统计报表、健康检查以及统一的
响应/错误处理。所有 Handler 均遵循标准 net/http 接口。

# 核心类型

  - WaybillHandler   — 运单创建、地图探测、流量状态与路线计算
  - ReportsHandler   — 汇总/按天/运行期统计报表
  - HealthHandler    — 服务健康检查（/healthz, /readyz, /version）
  - Response         — 统一 JSON 错误响应结构（success + error + timestamp）
  - ErrorInfo        — 结构化错误信息，含 code、message、retryable 标记
  - ResponseWriter   — 包装 http.ResponseWriter 以捕获状态码
  - HealthCheck      — 可插拔健康检查接口（统计库、浏览器等）

# 主要能力

  - 统一响应格式：WriteJSON / WriteError / WriteFailure 辅助函数
  - 请求验证：DecodeJSONBody（1 MB 限制 + 严格模式）、ValidateContentType
  - ErrorCode → HTTP 状态码自动映射（4xx/5xx）
  - 运单请求必填字段校验，不合法请求不会进入工作流
  - 可扩展健康检查：RegisterCheck 注册自定义 HealthCheck 实现

# 错误处理

工作流返回的 *types.Error 按其 HTTPStatus（或错误码映射）转换为
HTTP 状态码；非类型化错误一律以 500 返回且不泄露内部细节。
*/
package handlers
