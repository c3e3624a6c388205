package repository

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sukudha/academy-service/internal/domain"
)

const usersCollection = "users"

type mongoUserRepository struct {
	db    *mongo.Database
	users *mongo.Collection
}

// NewMongoUserRepository returns a document-store implementation. Call
// EnsureUserIndexes once at startup so email uniqueness is enforced.
func NewMongoUserRepository(db *mongo.Database) UserRepository {
	return &mongoUserRepository{db: db, users: db.Collection(usersCollection)}
}

// EnsureUserIndexes creates the unique email index.
func EnsureUserIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("users_email_unique"),
	})
	if err != nil {
		return oops.Code("USER_INDEX_FAILED").With("operation", "create email index").Wrap(err)
	}
	return nil
}

func (r *mongoUserRepository) Create(ctx context.Context, user *domain.User) error {
	if _, err := r.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return oops.Code("USER_CREATE_FAILED").With("operation", "insert user").Wrap(err)
	}
	return nil
}

func (r *mongoUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, "get user by id", bson.M{"_id": id})
}

func (r *mongoUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, "get user by email", bson.M{"email": email})
}

func (r *mongoUserRepository) GetByEmailAndRole(ctx context.Context, email string, role domain.Role) (*domain.User, error) {
	return r.findOne(ctx, "get user by email and role", bson.M{"email": email, "role": role})
}

func (r *mongoUserRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.updateOne(ctx, "touch last login", bson.M{"_id": id}, bson.M{"last_login": at})
}

func (r *mongoUserRepository) SetResetOTP(ctx context.Context, id, otp string, expiresAt time.Time) error {
	return r.updateOne(ctx, "set reset otp", bson.M{"_id": id}, bson.M{
		"reset_otp":            otp,
		"reset_otp_expires_at": expiresAt,
	})
}

func (r *mongoUserRepository) ClearResetOTP(ctx context.Context, id string) error {
	return r.updateOne(ctx, "clear reset otp", bson.M{"_id": id}, bson.M{
		"reset_otp":            nil,
		"reset_otp_expires_at": nil,
	})
}

func (r *mongoUserRepository) ConsumeResetOTP(ctx context.Context, email, otp, newHash string, now time.Time) (*domain.User, error) {
	filter := bson.M{
		"email":                email,
		"reset_otp":            otp,
		"reset_otp_expires_at": bson.M{"$gt": now},
	}
	return r.findOneAndSet(ctx, "consume reset otp", filter, bson.M{
		"password_hash":        newHash,
		"reset_otp":            nil,
		"reset_otp_expires_at": nil,
	})
}

func (r *mongoUserRepository) SetActive(ctx context.Context, id string, active bool) (*domain.User, error) {
	return r.findOneAndSet(ctx, "set active", bson.M{"_id": id}, bson.M{"is_active": active})
}

func (r *mongoUserRepository) Ping(ctx context.Context) error {
	return r.db.Client().Ping(ctx, nil)
}

func (r *mongoUserRepository) findOne(ctx context.Context, operation string, filter bson.M) (*domain.User, error) {
	var user domain.User
	if err := r.users.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, oops.Code("USER_QUERY_FAILED").With("operation", operation).Wrap(err)
	}
	return &user, nil
}

func (r *mongoUserRepository) updateOne(ctx context.Context, operation string, filter, set bson.M) error {
	set["updated_at"] = time.Now().UTC()
	res, err := r.users.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").With("operation", operation).Wrap(err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *mongoUserRepository) findOneAndSet(ctx context.Context, operation string, filter, set bson.M) (*domain.User, error) {
	set["updated_at"] = time.Now().UTC()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user domain.User
	if err := r.users.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, oops.Code("USER_UPDATE_FAILED").With("operation", operation).Wrap(err)
	}
	return &user, nil
}
