package service

import (
	"context"
	"strings"
	"time"

	chatmodel "HRProject/module/chat/model"
	"HRProject/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	db *mongo.Database
}

func NewStore(db *mongo.Database) *Store {
	return &Store{db: db}
}

func (s *Store) coll() *mongo.Collection {
	return s.db.Collection(chatmodel.MsgTableName)
}

// Create 落库一条新私信。content 先 trim；空内容/超长/自发自收都拒绝。
func (s *Store) Create(ctx context.Context, senderID, recipientID, content string) (*chatmodel.Message, error) {
	sender, err := primitive.ObjectIDFromHex(senderID)
	if err != nil {
		return nil, errs.ErrValidation.WithDetail("invalid sender id")
	}
	recipient, err := primitive.ObjectIDFromHex(recipientID)
	if err != nil {
		return nil, errs.ErrValidation.WithDetail("invalid recipient id")
	}
	if sender == recipient {
		return nil, errs.ErrValidation.WithDetail("cannot send message to yourself")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errs.ErrValidation.WithDetail("content is empty")
	}
	if len(content) > chatmodel.MaxContentLength {
		return nil, errs.ErrValidation.WithDetail("content too long")
	}

	now := time.Now()
	m := &chatmodel.Message{
		ID:        primitive.NewObjectID(),
		Sender:    sender,
		Recipient: recipient,
		Content:   content,
		Read:      false,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.coll().InsertOne(ctx, m); err != nil {
		return nil, errs.ErrTransientStore.WithDetail(err.Error())
	}
	return m, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*chatmodel.Message, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, errs.ErrValidation.WithDetail("invalid message id")
	}
	var m chatmodel.Message
	err = s.coll().FindOne(ctx, bson.M{"_id": oid}).Decode(&m)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errs.ErrNotFound.WithDetail("message not found")
		}
		return nil, errs.ErrTransientStore.WithDetail(err.Error())
	}
	return &m, nil
}

// MarkRead 条件更新：只在 read=false 时置位。
// 返回值 first=true 表示本次调用完成了 false→true 的翻转；
// 已读消息再次调用是幂等 no-op（first=false，不报错）。
func (s *Store) MarkRead(ctx context.Context, id string, at time.Time) (first bool, err error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, errs.ErrValidation.WithDetail("invalid message id")
	}
	res, err := s.coll().UpdateOne(ctx,
		bson.M{"_id": oid, "read": false},
		bson.M{"$set": bson.M{"read": true, "read_at": at, "updated_at": at}})
	if err != nil {
		return false, errs.ErrTransientStore.WithDetail(err.Error())
	}
	return res.ModifiedCount == 1, nil
}

// MarkAllRead 把发给 recipientID 的未读消息批量置已读；
// senderID 非空时只处理来自该用户的消息。返回更新条数。
func (s *Store) MarkAllRead(ctx context.Context, recipientID, senderID string) (int64, error) {
	recipient, err := primitive.ObjectIDFromHex(recipientID)
	if err != nil {
		return 0, errs.ErrValidation.WithDetail("invalid user id")
	}
	filter := bson.M{"recipient": recipient, "read": false}
	if senderID != "" {
		sender, err := primitive.ObjectIDFromHex(senderID)
		if err != nil {
			return 0, errs.ErrValidation.WithDetail("invalid user id")
		}
		filter["sender"] = sender
	}
	now := time.Now()
	res, err := s.coll().UpdateMany(ctx, filter,
		bson.M{"$set": bson.M{"read": true, "read_at": now, "updated_at": now}})
	if err != nil {
		return 0, errs.ErrTransientStore.WithDetail(err.Error())
	}
	return res.ModifiedCount, nil
}

// ListFor 按 createdAt 倒序取消息。
// otherID 非空时取两人会话，否则取 userID 参与的全部消息。
// before 非零时只取更早的（翻页游标）。limit 夹在 1..100，默认 50。
func (s *Store) ListFor(ctx context.Context, userID, otherID string, limit int, before time.Time) ([]*chatmodel.Message, error) {
	me, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, errs.ErrValidation.WithDetail("invalid user id")
	}

	var filter bson.M
	if otherID != "" {
		other, err := primitive.ObjectIDFromHex(otherID)
		if err != nil {
			return nil, errs.ErrValidation.WithDetail("invalid user id")
		}
		filter = bson.M{"$or": bson.A{
			bson.M{"sender": me, "recipient": other},
			bson.M{"sender": other, "recipient": me},
		}}
	} else {
		filter = bson.M{"$or": bson.A{
			bson.M{"sender": me},
			bson.M{"recipient": me},
		}}
	}
	if !before.IsZero() {
		filter["created_at"] = bson.M{"$lt": before}
	}

	cur, err := s.coll().Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(clampLimit(limit))))
	if err != nil {
		return nil, errs.ErrTransientStore.WithDetail(err.Error())
	}
	defer cur.Close(ctx)

	var out []*chatmodel.Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.ErrTransientStore.WithDetail(err.Error())
	}
	return out, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 100 {
		return 100
	}
	return limit
}

// ConversationSummary 是会话列表里的一行：对端 + 最新一条消息 + 未读数
type ConversationSummary struct {
	PeerID        string             `bson:"-" json:"-"`
	LastMessage   *chatmodel.Message `bson:"-" json:"-"`
	UnreadCount   int64              `bson:"unread_count" json:"unreadCount"`
	TotalMessages int64              `bson:"total_messages" json:"totalMessages"`
}

type conversationRow struct {
	Peer          primitive.ObjectID `bson:"_id"`
	LastMessage   chatmodel.Message  `bson:"last_message"`
	UnreadCount   int64              `bson:"unread_count"`
	TotalMessages int64              `bson:"total_messages"`
}

// Conversations 按对端分组聚合：每个会话的最新消息、未读数、总条数，
// 最新消息时间倒序。展示字段由调用方批量补齐（一次 $in，避免 N+1）。
func (s *Store) Conversations(ctx context.Context, userID string) ([]ConversationSummary, error) {
	me, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, errs.ErrValidation.WithDetail("invalid user id")
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"$or": bson.A{
			bson.M{"sender": me},
			bson.M{"recipient": me},
		}}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}}}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$sender", me}},
				"$recipient",
				"$sender",
			}},
			"last_message": bson.M{"$first": "$$ROOT"},
			"unread_count": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$and": bson.A{
					bson.M{"$eq": bson.A{"$recipient", me}},
					bson.M{"$eq": bson.A{"$read", false}},
				}},
				1,
				0,
			}}},
			"total_messages": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "last_message.created_at", Value: -1}}}},
	}

	cur, err := s.coll().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errs.ErrTransientStore.WithDetail(err.Error())
	}
	defer cur.Close(ctx)

	var rows []conversationRow
	if err := cur.All(ctx, &rows); err != nil {
		return nil, errs.ErrTransientStore.WithDetail(err.Error())
	}

	out := make([]ConversationSummary, 0, len(rows))
	for i := range rows {
		msg := rows[i].LastMessage
		out = append(out, ConversationSummary{
			PeerID:        rows[i].Peer.Hex(),
			LastMessage:   &msg,
			UnreadCount:   rows[i].UnreadCount,
			TotalMessages: rows[i].TotalMessages,
		})
	}
	return out, nil
}
