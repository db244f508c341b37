// Copyright (c) WaybillFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 WaybillFlow 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 automation、traffic、service、
api 等上层模块提供统一的类型契约。所有跨包共享的值类型、枚举和错误码均
定义于此，以避免循环依赖。

# 核心类型

  - WaybillRequest     — 完整的开单请求（发货人 / 收货人 / 货物 / 车辆 / 财务）
  - LocationSpec       — 位置输入（省 / 市 / 区 / 地址 / 可选坐标），创建后不可变
  - Coordinate         — 地理坐标值类型
  - ResolutionOutcome  — 位置解析结果（方法 + 坐标 + 地图引擎）
  - WorkflowResult     — 单次顶层操作的结果（validated / submitted + 跟踪码）
  - AuthState          — 会话认证状态（LoggedIn / OnLoginPage / Unknown）
  - MapEngine          — 封闭的地图引擎枚举（按固定优先级探测）
  - Error / ErrorCode  — 结构化错误体系，含 HTTP 状态码、Retryable 与上报分类
*/
package types
