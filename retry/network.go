package retry

import "strings"

// retryableNetworkMarkers 瞬时网络故障的错误消息特征
// 覆盖 DNS 解析失败、连接中断和浏览器目标被关闭等场景
var retryableNetworkMarkers = []string{
	"timeout",
	"timed out",
	"readtimeout",
	"connecttimeout",
	"net::",
	"err_name_not_resolved",
	"name_not_resolved",
	"dns",
	"servfail",
	"could not resolve host",
	"temporary failure in name resolution",
	"nodename nor servname provided",
	"connection reset",
	"connection aborted",
	"connection refused",
	"connection closed",
	"connection terminated",
	"socket hang up",
	"target closed",
	"browser has been closed",
	"execution context was destroyed",
	"context deadline exceeded",
}

// IsRetryableNetworkError 判断错误是否为可重试的瞬时网络故障
func IsRetryableNetworkError(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(err.Error())
	for _, marker := range retryableNetworkMarkers {
		if strings.Contains(message, marker) {
			return true
		}
	}
	return false
}
