package service

import (
	"context"
	"strings"
	"time"

	leavemodel "HRProject/module/leave/model"
	"HRProject/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const dateLayout = "2006-01-02"

type Store struct {
	db *mongo.Database
}

func NewStore(db *mongo.Database) *Store {
	return &Store{db: db}
}

func (s *Store) coll() *mongo.Collection {
	return s.db.Collection(leavemodel.LeaveTableName)
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	return errs.Wrap(leavemodel.EnsureIndexes(ctx, s.db))
}

type CreateParams struct {
	UserID    string
	Type      string
	StartDate string
	EndDate   string
	Reason    string
}

// Create 提交申请。天数按首尾含两端计算；与本人已有 pending/approved
// 的区间重叠时拒绝。
func (s *Store) Create(ctx context.Context, p CreateParams) (*leavemodel.Leave, error) {
	uid, err := primitive.ObjectIDFromHex(p.UserID)
	if err != nil {
		return nil, errs.ErrValidation.WithDetail("invalid user id")
	}
	if !leavemodel.ValidType(p.Type) {
		return nil, errs.ErrValidation.WithDetail("unknown leave type")
	}
	start, err := time.Parse(dateLayout, p.StartDate)
	if err != nil {
		return nil, errs.ErrValidation.WithDetail("startDate must be YYYY-MM-DD")
	}
	end, err := time.Parse(dateLayout, p.EndDate)
	if err != nil {
		return nil, errs.ErrValidation.WithDetail("endDate must be YYYY-MM-DD")
	}
	if end.Before(start) {
		return nil, errs.ErrValidation.WithDetail("endDate before startDate")
	}
	reason := strings.TrimSpace(p.Reason)
	if reason == "" {
		return nil, errs.ErrValidation.WithDetail("reason is required")
	}

	// 区间重叠：existing.start <= new.end && existing.end >= new.start
	n, err := s.coll().CountDocuments(ctx, bson.M{
		"user":       uid,
		"status":     bson.M{"$in": bson.A{leavemodel.StatusPending, leavemodel.StatusApproved}},
		"start_date": bson.M{"$lte": p.EndDate},
		"end_date":   bson.M{"$gte": p.StartDate},
	})
	if err != nil {
		return nil, errs.ErrTransientStore.WithDetail(err.Error())
	}
	if n > 0 {
		return nil, errs.ErrValidation.WithDetail("overlapping leave request exists")
	}

	now := time.Now()
	l := &leavemodel.Leave{
		ID:        primitive.NewObjectID(),
		User:      uid,
		Type:      p.Type,
		StartDate: p.StartDate,
		EndDate:   p.EndDate,
		Days:      int(end.Sub(start).Hours()/24) + 1,
		Reason:    reason,
		Status:    leavemodel.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.coll().InsertOne(ctx, l); err != nil {
		return nil, errs.ErrTransientStore.WithDetail(err.Error())
	}
	return l, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*leavemodel.Leave, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, errs.ErrValidation.WithDetail("invalid leave id")
	}
	var l leavemodel.Leave
	err = s.coll().FindOne(ctx, bson.M{"_id": oid}).Decode(&l)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errs.ErrNotFound.WithDetail("leave request not found")
		}
		return nil, errs.ErrTransientStore.WithDetail(err.Error())
	}
	return &l, nil
}

type ListFilter struct {
	UserIDs []primitive.ObjectID // 空表示不限人
	Status  string
}

func (s *Store) List(ctx context.Context, f ListFilter) ([]*leavemodel.Leave, error) {
	filter := bson.M{}
	if len(f.UserIDs) > 0 {
		filter["user"] = bson.M{"$in": f.UserIDs}
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	cur, err := s.coll().Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, errs.ErrTransientStore.WithDetail(err.Error())
	}
	defer cur.Close(ctx)

	var out []*leavemodel.Leave
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.ErrTransientStore.WithDetail(err.Error())
	}
	return out, nil
}

// Decide 审批：条件更新只命中 pending，重复审批返回 NotFound 语义的冲突
func (s *Store) Decide(ctx context.Context, id, deciderID, status, comment string) (*leavemodel.Leave, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, errs.ErrValidation.WithDetail("invalid leave id")
	}
	did, err := primitive.ObjectIDFromHex(deciderID)
	if err != nil {
		return nil, errs.ErrValidation.WithDetail("invalid user id")
	}
	if !leavemodel.ValidDecision(status) {
		return nil, errs.ErrValidation.WithDetail("status must be approved or rejected")
	}

	now := time.Now()
	res := s.coll().FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "status": leavemodel.StatusPending},
		bson.M{"$set": bson.M{
			"status":     status,
			"decided_by": did,
			"decided_at": now,
			"comment":    strings.TrimSpace(comment),
			"updated_at": now,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After))

	var l leavemodel.Leave
	if err := res.Decode(&l); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errs.ErrValidation.WithDetail("leave request is not pending")
		}
		return nil, errs.ErrTransientStore.WithDetail(err.Error())
	}
	return &l, nil
}

// Delete 撤回：本人只能删自己的 pending 单
func (s *Store) Delete(ctx context.Context, id string, requesterID string, isAdmin bool) error {
	l, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !isAdmin {
		if l.User.Hex() != requesterID {
			return errs.ErrAuthorization.WithDetail("not your leave request")
		}
		if l.Status != leavemodel.StatusPending {
			return errs.ErrValidation.WithDetail("only pending requests can be withdrawn")
		}
	}
	res, err := s.coll().DeleteOne(ctx, bson.M{"_id": l.ID})
	if err != nil {
		return errs.ErrTransientStore.WithDetail(err.Error())
	}
	if res.DeletedCount == 0 {
		return errs.ErrNotFound.WithDetail("leave request not found")
	}
	return nil
}
