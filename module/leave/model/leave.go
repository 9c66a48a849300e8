package model

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const LeaveTableName = "leaves"

// Type
const (
	TypeCasual = "casual"
	TypeSick   = "sick"
	TypeEarned = "earned"
	TypeUnpaid = "unpaid"
)

// Status
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

func ValidType(t string) bool {
	return t == TypeCasual || t == TypeSick || t == TypeEarned || t == TypeUnpaid
}

func ValidDecision(s string) bool {
	return s == StatusApproved || s == StatusRejected
}

// Leave 一次请假申请。审批后记录审批人和时间。
type Leave struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	User      primitive.ObjectID  `bson:"user" json:"user"`
	Type      string              `bson:"type" json:"type"`
	StartDate string              `bson:"start_date" json:"startDate"` // YYYY-MM-DD
	EndDate   string              `bson:"end_date" json:"endDate"`
	Days      int                 `bson:"days" json:"days"` // 含首尾
	Reason    string              `bson:"reason" json:"reason"`
	Status    string              `bson:"status" json:"status"`
	DecidedBy *primitive.ObjectID `bson:"decided_by,omitempty" json:"decidedBy,omitempty"`
	DecidedAt *time.Time          `bson:"decided_at,omitempty" json:"decidedAt,omitempty"`
	Comment   string              `bson:"comment,omitempty" json:"comment,omitempty"`
	CreatedAt time.Time           `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time           `bson:"updated_at" json:"updatedAt"`
}

func (*Leave) GetTableName() string { return LeaveTableName }

func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(LeaveTableName).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user", Value: 1}, {Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
	})
	return err
}
