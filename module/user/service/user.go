package service

import (
	"context"
	"strings"
	"time"

	usermodel "HRProject/module/user/model"
	"HRProject/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

type Store struct {
	db *mongo.Database
}

func NewStore(db *mongo.Database) *Store {
	return &Store{db: db}
}

func (s *Store) coll() *mongo.Collection {
	return s.db.Collection(usermodel.UserTableName)
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return errs.Wrap(err)
}

func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", errs.Wrap(err)
	}
	return string(b), nil
}

func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

type CreateParams struct {
	Name        string
	Email       string
	Password    string
	Role        string
	Department  string
	Designation string
	ManagerID   string
}

func (s *Store) Create(ctx context.Context, p CreateParams) (*usermodel.User, error) {
	email := strings.ToLower(strings.TrimSpace(p.Email))
	if email == "" || len(p.Name) < 2 {
		return nil, errs.ErrValidation.WithDetail("name/email invalid")
	}
	if len(p.Password) < 6 {
		return nil, errs.ErrValidation.WithDetail("password too short")
	}
	role := p.Role
	if role == "" {
		role = usermodel.RoleEmployee
	}
	if !usermodel.ValidRole(role) {
		return nil, errs.ErrValidation.WithDetail("unknown role")
	}

	if existing, err := s.FindByEmail(ctx, email); err == nil && existing != nil {
		return nil, errs.ErrValidation.WithDetail("email already registered")
	}

	hash, err := HashPassword(p.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	u := &usermodel.User{
		ID:           primitive.NewObjectID(),
		Name:         strings.TrimSpace(p.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Department:   strings.TrimSpace(p.Department),
		Designation:  strings.TrimSpace(p.Designation),
		Status:       usermodel.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if p.ManagerID != "" {
		mid, err := primitive.ObjectIDFromHex(p.ManagerID)
		if err != nil {
			return nil, errs.ErrValidation.WithDetail("invalid manager id")
		}
		u.Manager = &mid
	}

	if _, err := s.coll().InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, errs.ErrValidation.WithDetail("email already registered")
		}
		return nil, errs.ErrTransientStore.WithDetail(err.Error())
	}
	return u, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*usermodel.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, errs.ErrValidation.WithDetail("invalid user id")
	}
	var u usermodel.User
	err = s.coll().FindOne(ctx, bson.M{"_id": oid}).Decode(&u)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errs.ErrNotFound.WithDetail("user not found")
		}
		return nil, errs.ErrTransientStore.WithDetail(err.Error())
	}
	return &u, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*usermodel.User, error) {
	var u usermodel.User
	err := s.coll().FindOne(ctx, bson.M{"email": strings.ToLower(email)}).Decode(&u)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errs.ErrNotFound.WithDetail("user not found")
		}
		return nil, errs.ErrTransientStore.WithDetail(err.Error())
	}
	return &u, nil
}

// Authenticate 校验邮箱+密码；账号停用视同认证失败
func (s *Store) Authenticate(ctx context.Context, email, password string) (*usermodel.User, error) {
	u, err := s.FindByEmail(ctx, email)
	if err != nil {
		return nil, errs.ErrAuthentication.WithDetail("invalid credentials")
	}
	if u.Status != usermodel.StatusActive {
		return nil, errs.ErrAuthentication.WithDetail("account inactive")
	}
	if !CheckPassword(password, u.PasswordHash) {
		return nil, errs.ErrAuthentication.WithDetail("invalid credentials")
	}
	return u, nil
}

func (s *Store) UpdateLastLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := s.coll().UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"last_login_at": at, "updated_at": at}})
	return errs.Wrap(err)
}

// List: managerID 非空时只返回该经理的下属
func (s *Store) List(ctx context.Context, managerID string) ([]*usermodel.User, error) {
	filter := bson.M{}
	if managerID != "" {
		mid, err := primitive.ObjectIDFromHex(managerID)
		if err != nil {
			return nil, errs.ErrValidation.WithDetail("invalid manager id")
		}
		filter["manager"] = mid
	}
	cur, err := s.coll().Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, errs.ErrTransientStore.WithDetail(err.Error())
	}
	defer cur.Close(ctx)

	var out []*usermodel.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.ErrTransientStore.WithDetail(err.Error())
	}
	return out, nil
}

// ManagedIDs 返回某经理全部下属的 id（考勤/请假的可见范围用）
func (s *Store) ManagedIDs(ctx context.Context, managerID primitive.ObjectID) ([]primitive.ObjectID, error) {
	cur, err := s.coll().Find(ctx, bson.M{"manager": managerID},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, errs.ErrTransientStore.WithDetail(err.Error())
	}
	defer cur.Close(ctx)

	var rows []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, errs.ErrTransientStore.WithDetail(err.Error())
	}
	out := make([]primitive.ObjectID, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out, nil
}

type UpdateParams struct {
	Name        *string
	Role        *string
	Department  *string
	Designation *string
	Status      *string
	ManagerID   *string // 空串表示清除
}

func (s *Store) Update(ctx context.Context, id string, p UpdateParams) (*usermodel.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, errs.ErrValidation.WithDetail("invalid user id")
	}

	set := bson.M{"updated_at": time.Now()}
	unset := bson.M{}
	if p.Name != nil {
		if len(*p.Name) < 2 {
			return nil, errs.ErrValidation.WithDetail("name too short")
		}
		set["name"] = strings.TrimSpace(*p.Name)
	}
	if p.Role != nil {
		if !usermodel.ValidRole(*p.Role) {
			return nil, errs.ErrValidation.WithDetail("unknown role")
		}
		set["role"] = *p.Role
	}
	if p.Department != nil {
		set["department"] = strings.TrimSpace(*p.Department)
	}
	if p.Designation != nil {
		set["designation"] = strings.TrimSpace(*p.Designation)
	}
	if p.Status != nil {
		if *p.Status != usermodel.StatusActive && *p.Status != usermodel.StatusInactive {
			return nil, errs.ErrValidation.WithDetail("unknown status")
		}
		set["status"] = *p.Status
	}
	if p.ManagerID != nil {
		if *p.ManagerID == "" {
			unset["manager"] = ""
		} else {
			mid, err := primitive.ObjectIDFromHex(*p.ManagerID)
			if err != nil {
				return nil, errs.ErrValidation.WithDetail("invalid manager id")
			}
			set["manager"] = mid
		}
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	res := s.coll().FindOneAndUpdate(ctx, bson.M{"_id": oid}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After))

	var u usermodel.User
	if err := res.Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errs.ErrNotFound.WithDetail("user not found")
		}
		return nil, errs.ErrTransientStore.WithDetail(err.Error())
	}
	return &u, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return errs.ErrValidation.WithDetail("invalid user id")
	}
	res, err := s.coll().DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return errs.ErrTransientStore.WithDetail(err.Error())
	}
	if res.DeletedCount == 0 {
		return errs.ErrNotFound.WithDetail("user not found")
	}
	return nil
}

// DisplayByIDs 一次 $in 批量取出展示字段，替代逐个 populate
func (s *Store) DisplayByIDs(ctx context.Context, ids []string) (map[string]usermodel.UserRef, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return nil, errs.ErrValidation.WithDetail("invalid user id: " + id)
		}
		oids = append(oids, oid)
	}

	cur, err := s.coll().Find(ctx, bson.M{"_id": bson.M{"$in": oids}},
		options.Find().SetProjection(bson.M{"name": 1, "email": 1, "role": 1, "department": 1}))
	if err != nil {
		return nil, errs.ErrTransientStore.WithDetail(err.Error())
	}
	defer cur.Close(ctx)

	out := make(map[string]usermodel.UserRef, len(oids))
	for cur.Next(ctx) {
		var u usermodel.User
		if err := cur.Decode(&u); err != nil {
			return nil, errs.ErrTransientStore.WithDetail(err.Error())
		}
		out[u.ID.Hex()] = u.Ref()
	}
	return out, errs.Wrap(cur.Err())
}
