package mongodb

import (
	"context"
	"net/url"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/Tsukikage7/saga-orchestrator/logger"
)

// Client MongoDB 客户端.
type Client struct {
	client *mongo.Client
	config *Config
	log    logger.Logger
}

// Connect 建立连接并验证可用性.
//
// 嵌套文档默认解码为 bson.M，与 JSON 编码的结构保持一致.
func Connect(ctx context.Context, config *Config, log logger.Logger) (*Client, error) {
	if config == nil {
		return nil, ErrNilConfig
	}
	if log == nil {
		return nil, ErrNilLogger
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.ApplyDefaults()

	opts := options.Client().
		ApplyURI(config.URI).
		SetConnectTimeout(config.ConnectTimeout).
		SetServerSelectionTimeout(config.ServerSelectionTimeout).
		SetMaxPoolSize(config.MaxPoolSize).
		SetMinPoolSize(config.MinPoolSize).
		SetMaxConnIdleTime(config.MaxConnIdleTime).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})
	if config.ReplicaSet != "" {
		opts.SetReplicaSet(config.ReplicaSet)
	}
	if config.Direct {
		opts.SetDirect(true)
	}

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, config.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, err
	}

	log.With(
		logger.String("uri", maskURI(config.URI)),
		logger.String("database", config.Database),
	).Info("[MongoDB] 连接已建立")

	return &Client{client: client, config: config, log: log}, nil
}

// maskURI 隐藏 URI 中的密码.
func maskURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.User == nil {
		return uri
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

// Collection 返回配置数据库下的集合.
func (c *Client) Collection(name string) *mongo.Collection {
	return c.client.Database(c.config.Database).Collection(name)
}

// SagaCollection 返回存放 Saga 的集合.
func (c *Client) SagaCollection() *mongo.Collection {
	return c.Collection(c.config.Collection)
}

// Ping 检查连接可用性.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, nil)
}

// Close 断开连接.
func (c *Client) Close(ctx context.Context) error {
	c.log.Info("[MongoDB] 断开连接")
	return c.client.Disconnect(ctx)
}
