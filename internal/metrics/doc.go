// 版权所有 2026 WaybillFlow Authors. 版权所有。
// 此源代码的使用由 BSD 风格许可规范,该许可可以
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的全链路指标采集能力，覆盖
HTTP、工作流、准入控制与门户自动化四大维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离，
支持多维度 label 分组，便于 Grafana 等工具进行可视化与告警。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram、Gauge 等
    Prometheus 向量指标，按业务域分组管理。

# 主要能力

  - HTTP 指标：请求总数、请求耗时，按 method/path/status 分组，
    状态码归类为 2xx/3xx/4xx/5xx。
  - 工作流指标：运单工作流总数与端到端耗时（按 mode/status 分组）、
    工作流级重试计数（按 reason 分组）。
  - 准入控制指标：活跃/排队工作流 Gauge、限流信号计数、
    门户封禁剩余时间 Gauge。
  - 门户自动化指标：登录尝试、验证码求解（按 provider 分组）、
    地图引擎探测分布、位置解析策略分布、地理编码请求计数、
    打开的浏览器会话数。
*/
package metrics
