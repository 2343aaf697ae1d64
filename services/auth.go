package services

import (
	"context"
	"regexp"
	"time"

	"rfp-intake-platform/internal/auth"
	"rfp-intake-platform/internal/config"
	"rfp-intake-platform/models"
	"rfp-intake-platform/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Matches the shape local@domain.tld; anything else fails before a single
// identity call is made.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const minPasswordLength = 6

// UserStore is the identity backing the auth flow consumes.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

// TokenIssuer mints the session tokens handed out on successful sign-in.
type TokenIssuer interface {
	Issue(userID, email string) (*auth.TokenPair, error)
}

// AuthService validates credentials locally before touching the identity
// backing. Each call is one-shot; there is no retry.
type AuthService struct {
	config *config.Config
	users  UserStore
	tokens TokenIssuer
}

func NewAuthService(cfg *config.Config, users UserStore, tokens TokenIssuer) *AuthService {
	return &AuthService{config: cfg, users: users, tokens: tokens}
}

// SignIn checks email/password shape, then delegates to the identity
// backing. Success returns the token pair establishing the session.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*auth.TokenPair, *models.User, error) {
	if err := validateEmail(email); err != nil {
		return nil, nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, nil, err
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, &AuthError{Message: "identity service unavailable: " + err.Error()}
	}
	if user == nil || !utils.CheckPassword(password, user.PasswordHash) {
		return nil, nil, &AuthError{Message: "invalid email or password"}
	}

	pair, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, nil, &AuthError{Message: "failed to establish session: " + err.Error()}
	}
	return pair, user, nil
}

// SignUp creates the account but deliberately does not establish a session;
// the caller returns to sign-in.
func (s *AuthService) SignUp(ctx context.Context, email, password, confirmPassword string) (*models.User, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	if password != confirmPassword {
		return nil, &ValidationError{Field: "confirm_password", Reason: "passwords do not match"}
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, &AuthError{Message: "identity service unavailable: " + err.Error()}
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := utils.HashPassword(password, s.config.BcryptCost)
	if err != nil {
		return nil, &AuthError{Message: "failed to process password"}
	}

	now := time.Now()
	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, &AuthError{Message: "failed to create account: " + err.Error()}
	}
	return user, nil
}

func validateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return &ValidationError{Field: "email", Reason: "please enter a valid email address"}
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return &ValidationError{Field: "password", Reason: "password must be at least 6 characters"}
	}
	return nil
}

// MongoUserStore backs UserStore with the users collection.
type MongoUserStore struct {
	collection *mongo.Collection
}

func NewMongoUserStore(collection *mongo.Collection) *MongoUserStore {
	return &MongoUserStore{collection: collection}
}

func (s *MongoUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.collection.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (s *MongoUserStore) Create(ctx context.Context, user *models.User) error {
	_, err := s.collection.InsertOne(ctx, user)
	return err
}

// RedisTokenIssuer issues JWT pairs with Redis-backed revocation.
type RedisTokenIssuer struct {
	rdb *redis.Client
}

func NewRedisTokenIssuer(rdb *redis.Client) *RedisTokenIssuer {
	return &RedisTokenIssuer{rdb: rdb}
}

func (i *RedisTokenIssuer) Issue(userID, email string) (*auth.TokenPair, error) {
	return auth.IssueTokenPair(userID, email, i.rdb)
}
