package redis

import (
	"fmt"
	"strings"
)

const keyPrefix = "webshop"

// OrderLockKey 标记某个 orderId 正在提交中，防止客户端重试并发进入下单流程。
func OrderLockKey(orderID string) string {
	return fmt.Sprintf("%s:order:lock:%s", keyPrefix, orderID)
}

// RateLimitCustomerKey 按客户邮箱限流；邮箱统一小写。
func RateLimitCustomerKey(route, email string) string {
	return fmt.Sprintf("%s:rate_limit:%s:customer:%s", keyPrefix, route, strings.ToLower(strings.TrimSpace(email)))
}

// RateLimitIPKey 无法识别客户时退化为按 IP 限流。
func RateLimitIPKey(route, ip string) string {
	return fmt.Sprintf("%s:rate_limit:%s:ip:%s", keyPrefix, route, ip)
}
