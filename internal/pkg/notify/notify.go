package notify

import "context"

// Notifier 定义通知接口。
type Notifier interface {
	// SendWelcome 向新注册用户发送欢迎邮件。
	//
	// 参数:
	//   ctx: 上下文
	//   toEmail: 接收邮箱
	//   name: 用户显示名
	SendWelcome(ctx context.Context, toEmail string, name string) error
}
