package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/spec-kit/account-service/internal/domain"
)

const usersCollection = "users"

var duplicateIndexPattern = regexp.MustCompile(`index: (?:\S+\.\$)?(\w+?)_1`)

type userDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Username  string             `bson:"username"`
	Nickname  string             `bson:"nickname"`
	Email     string             `bson:"email"`
	Mobile    string             `bson:"mobile"`
	Password  string             `bson:"password"`
	Role      string             `bson:"role"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (d *userDocument) toDomain() *domain.User {
	return &domain.User{
		ID:           d.ID.Hex(),
		Username:     d.Username,
		Nickname:     d.Nickname,
		Email:        d.Email,
		Mobile:       d.Mobile,
		PasswordHash: d.Password,
		Role:         domain.Role(d.Role),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

type mongoUserRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoUserRepository returns a MongoDB-backed implementation.
func NewMongoUserRepository(db *mongo.Database) UserRepository {
	return &mongoUserRepository{coll: db.Collection(usersCollection), now: time.Now}
}

func (r *mongoUserRepository) Create(ctx context.Context, user *domain.User) error {
	now := r.now().UTC().Truncate(time.Millisecond)
	doc := userDocument{
		ID:        primitive.NewObjectID(),
		Username:  user.Username,
		Nickname:  user.Nickname,
		Email:     user.Email,
		Mobile:    user.Mobile,
		Password:  user.PasswordHash,
		Role:      string(user.Role),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return translateWriteError(err)
	}
	user.ID = doc.ID.Hex()
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (r *mongoUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *mongoUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{FieldUsername: username})
}

func (r *mongoUserRepository) FindOneByRole(ctx context.Context, role domain.Role) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"role": string(role)})
}

func (r *mongoUserRepository) ExistsByField(ctx context.Context, field, value, excludeID string) (bool, error) {
	if !validField(field) {
		return false, fmt.Errorf("exists by field: unsupported field %q", field)
	}
	filter := bson.M{field: value}
	if excludeID != "" {
		oid, err := primitive.ObjectIDFromHex(excludeID)
		if err != nil {
			return false, ErrInvalidID
		}
		filter["_id"] = bson.M{"$ne": oid}
	}

	err := r.coll.FindOne(ctx, filter, options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *mongoUserRepository) Update(ctx context.Context, id string, changes domain.ProfileChanges) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	if changes.Empty() {
		return r.GetByID(ctx, id)
	}

	set := bson.M{"updatedAt": r.now().UTC().Truncate(time.Millisecond)}
	if changes.Email != nil {
		set[FieldEmail] = *changes.Email
	}
	if changes.Mobile != nil {
		set[FieldMobile] = *changes.Mobile
	}
	if changes.Nickname != nil {
		set[FieldNickname] = *changes.Nickname
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc userDocument
	err = r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, translateWriteError(err)
	}
	return doc.toDomain(), nil
}

func (r *mongoUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrInvalidID
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"password":  passwordHash,
		"updatedAt": r.now().UTC().Truncate(time.Millisecond),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoUserRepository) EnsureIndexes(ctx context.Context) error {
	models := make([]mongo.IndexModel, 0, len(UniqueFields)+1)
	for _, field := range UniqueFields {
		models = append(models, mongo.IndexModel{
			Keys:    bson.D{{Key: field, Value: 1}},
			Options: options.Index().SetUnique(true),
		})
	}
	models = append(models, mongo.IndexModel{Keys: bson.D{{Key: "role", Value: 1}}})

	if _, err := r.coll.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

func (r *mongoUserRepository) Ping(ctx context.Context) error {
	return r.coll.Database().Client().Ping(ctx, nil)
}

func (r *mongoUserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var doc userDocument
	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

// translateWriteError turns E11000 failures into a DuplicateKeyError naming the field.
func translateWriteError(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return err
	}
	return &DuplicateKeyError{Field: duplicateField(err), Err: err}
}

// duplicateField names the violated unique field. The server's keyPattern
// is authoritative; the index name in the message covers errors that carry
// no raw document, such as command errors.
func duplicateField(err error) string {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if field := keyPatternField(e.Raw); field != "" {
				return field
			}
			if m := duplicateIndexPattern.FindStringSubmatch(e.Message); m != nil {
				return m[1]
			}
		}
	}
	if m := duplicateIndexPattern.FindStringSubmatch(err.Error()); m != nil {
		return m[1]
	}
	return ""
}

func keyPatternField(raw bson.Raw) string {
	if len(raw) == 0 {
		return ""
	}
	val, err := raw.LookupErr("keyPattern")
	if err != nil {
		return ""
	}
	pattern, ok := val.DocumentOK()
	if !ok {
		return ""
	}
	elems, err := pattern.Elements()
	if err != nil || len(elems) == 0 {
		return ""
	}
	return elems[0].Key()
}
