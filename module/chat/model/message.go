package model

import (
	"context"
	"time"

	usermodel "HRProject/module/user/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	MsgTableName     = "messages"
	MaxContentLength = 5000
)

// Message 两个用户之间的一条私信。记录只存双方的 id，
// 展示字段在出站时按需批量补齐。
type Message struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Sender    primitive.ObjectID `bson:"sender"`
	Recipient primitive.ObjectID `bson:"recipient"`
	Content   string             `bson:"content"` // 已 trim，<=5000
	Read      bool               `bson:"read"`
	ReadAt    *time.Time         `bson:"read_at,omitempty"` // 仅在 false→true 时设置
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

func (*Message) GetTableName() string { return MsgTableName }

// Payload 出站事件负载：{id, sender, recipient, content, read, createdAt}
type Payload struct {
	ID        string            `json:"id"`
	Sender    usermodel.UserRef `json:"sender"`
	Recipient usermodel.UserRef `json:"recipient"`
	Content   string            `json:"content"`
	Read      bool              `json:"read"`
	ReadAt    *time.Time        `json:"readAt,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// BuildPayload 组装出站负载；refs 是 DisplayByIDs 的批量结果
func (m *Message) BuildPayload(refs map[string]usermodel.UserRef) Payload {
	return Payload{
		ID:        m.ID.Hex(),
		Sender:    refs[m.Sender.Hex()],
		Recipient: refs[m.Recipient.Hex()],
		Content:   m.Content,
		Read:      m.Read,
		ReadAt:    m.ReadAt,
		CreatedAt: m.CreatedAt,
	}
}

// EnsureIndexes 建会话检索与未读统计两个复合索引
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(MsgTableName)
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "sender", Value: 1}, {Key: "recipient", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "recipient", Value: 1}, {Key: "read", Value: 1}, {Key: "created_at", Value: -1}},
		},
	}, options.CreateIndexes())
	return err
}
