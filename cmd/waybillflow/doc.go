// Copyright (c) WaybillFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 WaybillFlow 服务端程序入口。

# 概述

cmd/waybillflow 是 WaybillFlow 的可执行入口，提供运单自动化 HTTP API、
健康检查和版本查询等子命令。程序支持 YAML 配置文件加载（环境变量覆盖，
前缀 WAYBILLFLOW_）、结构化日志（zap）以及 Prometheus 指标采集。

# 核心类型

  - Server           — 主服务器，管理 HTTP、Metrics 双端口及优雅关闭
  - Middleware        — HTTP 中间件函数签名 func(http.Handler) http.Handler
  - responseWriter    — 包装 http.ResponseWriter 以捕获状态码

# 主要能力

  - 子命令：serve（启动服务）、version、health
  - 中间件链：Recovery、RequestID、SecurityHeaders、RequestLogger、
    MetricsMiddleware、CORS、RateLimiter（基于 IP）、
    SensitiveAuth（API Key / JWT，健康检查与路线计算豁免）
  - Metrics 服务器：独立端口暴露 /metrics（Prometheus）
  - 优雅关闭：信号监听 → 关闭 HTTP → 关闭 Metrics → 关闭浏览器 →
    关闭统计库
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
