package model

import (
	"time"

	mgo "HRProject/service/mgo"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const UserTableName = "users"

// Role
const (
	RoleAdmin    = "admin"
	RoleManager  = "manager"
	RoleEmployee = "employee"
)

// Status
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

func ValidRole(r string) bool {
	return r == RoleAdmin || r == RoleManager || r == RoleEmployee
}

// User 用户主档。passwordHash 永不对外序列化。
type User struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name           string              `bson:"name" json:"name"`
	Email          string              `bson:"email" json:"email"` // 唯一索引，存小写
	PasswordHash   string              `bson:"password_hash" json:"-"`
	Role           string              `bson:"role" json:"role"` // admin/manager/employee
	Department     string              `bson:"department,omitempty" json:"department,omitempty"`
	Designation    string              `bson:"designation,omitempty" json:"designation,omitempty"`
	Status         string              `bson:"status" json:"status"` // active/inactive
	Manager        *primitive.ObjectID `bson:"manager,omitempty" json:"manager,omitempty"`
	ProfilePicture string              `bson:"profile_picture,omitempty" json:"profilePicture,omitempty"`
	LastLoginAt    *time.Time          `bson:"last_login_at,omitempty" json:"lastLoginAt,omitempty"`
	CreatedAt      time.Time           `bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time           `bson:"updated_at" json:"updatedAt"`
}

// UserRef 消息负载里反范式化的身份展示字段
type UserRef struct {
	ID         string `bson:"_id" json:"id"`
	Name       string `bson:"name" json:"name"`
	Email      string `bson:"email" json:"email"`
	Role       string `bson:"role" json:"role"`
	Department string `bson:"department,omitempty" json:"department,omitempty"`
}

func (u *User) Ref() UserRef {
	return UserRef{
		ID:         u.ID.Hex(),
		Name:       u.Name,
		Email:      u.Email,
		Role:       u.Role,
		Department: u.Department,
	}
}

func (*User) GetTableName() string { return UserTableName }

func (u *User) Collection() *mongo.Collection {
	return mgo.GetDB().Collection(u.GetTableName())
}
