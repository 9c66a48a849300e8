package service

import (
	"context"
	"math"
	"strings"
	"time"

	attmodel "HRProject/module/attendance/model"
	"HRProject/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// 迟到阈值与半天判定
const (
	lateHour      = 9
	lateMinute    = 30
	halfDayCutoff = 4.0 // 小时
)

type Store struct {
	db *mongo.Database
}

func NewStore(db *mongo.Database) *Store {
	return &Store{db: db}
}

func (s *Store) coll() *mongo.Collection {
	return s.db.Collection(attmodel.AttTableName)
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	return errs.Wrap(attmodel.EnsureIndexes(ctx, s.db))
}

func isLate(at time.Time) bool {
	cutoff := time.Date(at.Year(), at.Month(), at.Day(), lateHour, lateMinute, 0, 0, at.Location())
	return at.After(cutoff)
}

func roundHours(d time.Duration) float64 {
	return math.Round(d.Hours()*100) / 100
}

// CheckIn 当天第一次打卡建档；重复打卡报错。迟到自动置 late。
func (s *Store) CheckIn(ctx context.Context, userID string, at time.Time) (*attmodel.Attendance, error) {
	uid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, errs.ErrValidation.WithDetail("invalid user id")
	}

	date := at.Format(attmodel.DateLayout)
	var existing attmodel.Attendance
	err = s.coll().FindOne(ctx, bson.M{"user": uid, "date": date}).Decode(&existing)
	if err == nil {
		return nil, errs.ErrValidation.WithDetail("already checked in today")
	}
	if err != mongo.ErrNoDocuments {
		return nil, errs.ErrTransientStore.WithDetail(err.Error())
	}

	status := attmodel.StatusPresent
	if isLate(at) {
		status = attmodel.StatusLate
	}
	a := &attmodel.Attendance{
		ID:        primitive.NewObjectID(),
		User:      uid,
		Date:      date,
		CheckIn:   &at,
		Status:    status,
		CreatedAt: at,
		UpdatedAt: at,
	}
	if _, err := s.coll().InsertOne(ctx, a); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, errs.ErrValidation.WithDetail("already checked in today")
		}
		return nil, errs.ErrTransientStore.WithDetail(err.Error())
	}
	return a, nil
}

// CheckOut 收尾打卡：算工时，不足半天降级 half-day
func (s *Store) CheckOut(ctx context.Context, userID string, at time.Time) (*attmodel.Attendance, error) {
	uid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, errs.ErrValidation.WithDetail("invalid user id")
	}

	date := at.Format(attmodel.DateLayout)
	var a attmodel.Attendance
	err = s.coll().FindOne(ctx, bson.M{"user": uid, "date": date}).Decode(&a)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errs.ErrValidation.WithDetail("no check-in found for today")
		}
		return nil, errs.ErrTransientStore.WithDetail(err.Error())
	}
	if a.CheckIn == nil {
		return nil, errs.ErrValidation.WithDetail("no check-in found for today")
	}
	if a.CheckOut != nil {
		return nil, errs.ErrValidation.WithDetail("already checked out today")
	}
	if at.Before(*a.CheckIn) {
		return nil, errs.ErrValidation.WithDetail("check-out before check-in")
	}

	hours := roundHours(at.Sub(*a.CheckIn))
	status := a.Status
	if hours < halfDayCutoff {
		status = attmodel.StatusHalfDay
	}

	res := s.coll().FindOneAndUpdate(ctx,
		bson.M{"_id": a.ID},
		bson.M{"$set": bson.M{
			"check_out":  at,
			"work_hours": hours,
			"status":     status,
			"updated_at": at,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After))

	var out attmodel.Attendance
	if err := res.Decode(&out); err != nil {
		return nil, errs.ErrTransientStore.WithDetail(err.Error())
	}
	return &out, nil
}

type CreateParams struct {
	UserID   string
	Date     string
	CheckIn  *time.Time
	CheckOut *time.Time
	Status   string
	Notes    string
}

// Create 管理员/经理手工补录
func (s *Store) Create(ctx context.Context, p CreateParams) (*attmodel.Attendance, error) {
	uid, err := primitive.ObjectIDFromHex(p.UserID)
	if err != nil {
		return nil, errs.ErrValidation.WithDetail("invalid user id")
	}
	if _, err := time.Parse(attmodel.DateLayout, p.Date); err != nil {
		return nil, errs.ErrValidation.WithDetail("date must be YYYY-MM-DD")
	}
	if !attmodel.ValidStatus(p.Status) {
		return nil, errs.ErrValidation.WithDetail("unknown status")
	}

	now := time.Now()
	a := &attmodel.Attendance{
		ID:        primitive.NewObjectID(),
		User:      uid,
		Date:      p.Date,
		CheckIn:   p.CheckIn,
		CheckOut:  p.CheckOut,
		Status:    p.Status,
		Notes:     strings.TrimSpace(p.Notes),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if a.CheckIn != nil && a.CheckOut != nil {
		if a.CheckOut.Before(*a.CheckIn) {
			return nil, errs.ErrValidation.WithDetail("check-out before check-in")
		}
		a.WorkHours = roundHours(a.CheckOut.Sub(*a.CheckIn))
	}

	if _, err := s.coll().InsertOne(ctx, a); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, errs.ErrValidation.WithDetail("record already exists for that day")
		}
		return nil, errs.ErrTransientStore.WithDetail(err.Error())
	}
	return a, nil
}

type ListFilter struct {
	UserIDs []primitive.ObjectID // 空表示不限人
	From    string               // DateLayout，含
	To      string               // DateLayout，含
	Status  string
}

func (s *Store) List(ctx context.Context, f ListFilter) ([]*attmodel.Attendance, error) {
	filter := bson.M{}
	if len(f.UserIDs) > 0 {
		filter["user"] = bson.M{"$in": f.UserIDs}
	}
	dateRange := bson.M{}
	if f.From != "" {
		dateRange["$gte"] = f.From
	}
	if f.To != "" {
		dateRange["$lte"] = f.To
	}
	if len(dateRange) > 0 {
		filter["date"] = dateRange
	}
	if f.Status != "" {
		if !attmodel.ValidStatus(f.Status) {
			return nil, errs.ErrValidation.WithDetail("unknown status")
		}
		filter["status"] = f.Status
	}

	cur, err := s.coll().Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "date", Value: -1}, {Key: "user", Value: 1}}))
	if err != nil {
		return nil, errs.ErrTransientStore.WithDetail(err.Error())
	}
	defer cur.Close(ctx)

	var out []*attmodel.Attendance
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.ErrTransientStore.WithDetail(err.Error())
	}
	return out, nil
}

// Summary 某人某月的出勤账单
type Summary struct {
	Present    int64   `bson:"present" json:"present"`
	Absent     int64   `bson:"absent" json:"absent"`
	Late       int64   `bson:"late" json:"late"`
	HalfDay    int64   `bson:"half_day" json:"halfDay"`
	OnLeave    int64   `bson:"on_leave" json:"onLeave"`
	TotalHours float64 `bson:"total_hours" json:"totalHours"`
}

// MonthlySummary 按状态聚合计数 + 工时合计。month 形如 "2026-08"。
func (s *Store) MonthlySummary(ctx context.Context, userID, month string) (*Summary, error) {
	uid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, errs.ErrValidation.WithDetail("invalid user id")
	}
	if _, err := time.Parse("2006-01", month); err != nil {
		return nil, errs.ErrValidation.WithDetail("month must be YYYY-MM")
	}

	countIf := func(status string) bson.M {
		return bson.M{"$sum": bson.M{"$cond": bson.A{
			bson.M{"$eq": bson.A{"$status", status}}, 1, 0,
		}}}
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"user": uid,
			"date": bson.M{"$gte": month + "-01", "$lte": month + "-31"},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":         nil,
			"present":     countIf(attmodel.StatusPresent),
			"absent":      countIf(attmodel.StatusAbsent),
			"late":        countIf(attmodel.StatusLate),
			"half_day":    countIf(attmodel.StatusHalfDay),
			"on_leave":    countIf(attmodel.StatusOnLeave),
			"total_hours": bson.M{"$sum": "$work_hours"},
		}}},
	}

	cur, err := s.coll().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errs.ErrTransientStore.WithDetail(err.Error())
	}
	defer cur.Close(ctx)

	var rows []Summary
	if err := cur.All(ctx, &rows); err != nil {
		return nil, errs.ErrTransientStore.WithDetail(err.Error())
	}
	if len(rows) == 0 {
		return &Summary{}, nil
	}
	return &rows[0], nil
}

type UpdateParams struct {
	CheckIn  *time.Time
	CheckOut *time.Time
	Status   *string
	Notes    *string
}

func (s *Store) Update(ctx context.Context, id string, p UpdateParams) (*attmodel.Attendance, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, errs.ErrValidation.WithDetail("invalid attendance id")
	}

	set := bson.M{"updated_at": time.Now()}
	if p.CheckIn != nil {
		set["check_in"] = *p.CheckIn
	}
	if p.CheckOut != nil {
		set["check_out"] = *p.CheckOut
	}
	if p.Status != nil {
		if !attmodel.ValidStatus(*p.Status) {
			return nil, errs.ErrValidation.WithDetail("unknown status")
		}
		set["status"] = *p.Status
	}
	if p.Notes != nil {
		set["notes"] = strings.TrimSpace(*p.Notes)
	}
	if p.CheckIn != nil && p.CheckOut != nil {
		if p.CheckOut.Before(*p.CheckIn) {
			return nil, errs.ErrValidation.WithDetail("check-out before check-in")
		}
		set["work_hours"] = roundHours(p.CheckOut.Sub(*p.CheckIn))
	}

	res := s.coll().FindOneAndUpdate(ctx, bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After))

	var a attmodel.Attendance
	if err := res.Decode(&a); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errs.ErrNotFound.WithDetail("attendance record not found")
		}
		return nil, errs.ErrTransientStore.WithDetail(err.Error())
	}
	return &a, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return errs.ErrValidation.WithDetail("invalid attendance id")
	}
	res, err := s.coll().DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return errs.ErrTransientStore.WithDetail(err.Error())
	}
	if res.DeletedCount == 0 {
		return errs.ErrNotFound.WithDetail("attendance record not found")
	}
	return nil
}
