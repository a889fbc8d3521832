package messaging

import "errors"

// 预定义错误，均可通过 errors.Is 判断.
var (
	ErrEmptyGroupID       = errors.New("messaging: 消费者组ID为空")
	ErrProducerClosed     = errors.New("messaging: 生产者已关闭")
	ErrNilMessage         = errors.New("messaging: 消息为空")
	ErrEmptyTopic         = errors.New("messaging: 消息主题为空")
	ErrNoTopics           = errors.New("messaging: 未指定消费主题")
	ErrNilHandler         = errors.New("messaging: 消息处理器为空")
	ErrUnsupportedType    = errors.New("messaging: 不支持的消息队列类型")
	ErrCreateProducer     = errors.New("messaging: 创建生产者失败")
	ErrCreateConsumer     = errors.New("messaging: 创建消费者失败")
	ErrSendMessage        = errors.New("messaging: 消息发送失败")
	ErrNoBrokers          = errors.New("messaging: 未配置服务器地址")
	ErrCreateClient       = errors.New("messaging: 创建客户端失败")
	ErrClientClosed       = errors.New("messaging: 客户端已关闭")
	ErrNoBrokersAvailable = errors.New("messaging: 没有可用的服务器")
	ErrHealthCheck        = errors.New("messaging: 健康检查失败")
	ErrAlreadyConsuming   = errors.New("messaging: 消费者已在运行")
)
