// Copyright 2026 WaybillFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供 WaybillFlow 测试的共享工具。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout，自动注册 Cleanup
  - FakePage: 可编程的内存页面实现，用于在不启动浏览器的情况下
    测试认证、定位和表单填写流程

# 使用示例

	page := testutil.NewFakePage()
	page.AddElement("input[name='Username']", &testutil.FakeElement{Visible: true})
	ok := interactor.SafeFill(ctx, "input[name='Username']", "user")
*/
package testutil
