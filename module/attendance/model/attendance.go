package model

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const AttTableName = "attendance"

// 考勤日期键的格式，按自然日归档
const DateLayout = "2006-01-02"

// Status
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
	StatusLate    = "late"
	StatusHalfDay = "half-day"
	StatusOnLeave = "on-leave"
)

func ValidStatus(s string) bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusHalfDay, StatusOnLeave:
		return true
	}
	return false
}

// Attendance 每人每天一条，(user, date) 唯一
type Attendance struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	User      primitive.ObjectID `bson:"user" json:"user"`
	Date      string             `bson:"date" json:"date"` // DateLayout
	CheckIn   *time.Time         `bson:"check_in,omitempty" json:"checkIn,omitempty"`
	CheckOut  *time.Time         `bson:"check_out,omitempty" json:"checkOut,omitempty"`
	Status    string             `bson:"status" json:"status"`
	WorkHours float64            `bson:"work_hours" json:"workHours"`
	Notes     string             `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updatedAt"`
}

func (*Attendance) GetTableName() string { return AttTableName }

func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(AttTableName).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user", Value: 1}, {Key: "date", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
