// Package auth owns credentials and session tokens, and the capability
// checks every handler uses to decide what a principal may do.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/matthew-heyner/family-finance/internal/config"
	"github.com/matthew-heyner/family-finance/internal/events"
	"github.com/matthew-heyner/family-finance/internal/log"
	"github.com/matthew-heyner/family-finance/internal/models"
	"github.com/matthew-heyner/family-finance/internal/util"
)

const (
	msgInvalidCredentials = "Invalid credentials"
	msgNotAuthorized      = "Not authorized to access this route"
	resetTokenBytes       = 20
)

type Options struct {
	Secret               string
	Issuer               string
	TTL                  time.Duration
	BcryptCost           int
	ResetTokenTTL        time.Duration
	UniformResetResponse bool
	MaxLoginAttempts     int
	LockoutDuration      time.Duration
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Secret:               cfg.JWT.Secret,
		Issuer:               cfg.JWT.Issuer,
		TTL:                  cfg.JWT.TTL(),
		BcryptCost:           cfg.Security.BcryptCost,
		ResetTokenTTL:        cfg.Security.ResetTokenTTL,
		UniformResetResponse: cfg.Security.UniformResetResponse,
		MaxLoginAttempts:     cfg.Security.MaxLoginAttempts,
		LockoutDuration:      cfg.Security.LockoutDuration,
	}
}

type Service struct {
	db     *gorm.DB
	opts   Options
	events events.Publisher
	logger *log.Logger
	now    func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

func NewService(db *gorm.DB, opts Options, pub events.Publisher, logger *log.Logger) *Service {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.ResetTokenTTL <= 0 {
		opts.ResetTokenTTL = 10 * time.Minute
	}
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Service{
		db:     db,
		opts:   opts,
		events: pub,
		logger: logger.WithComponent(log.ComponentAuth),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Session is the result of any flow that signs the caller in.
type Session struct {
	User  *models.User
	Token string
}

func (s *Service) TTL() time.Duration { return s.opts.TTL }

// IssueToken signs a session token for user.
func (s *Service) IssueToken(user *models.User) (string, error) {
	tok, err := util.GenerateToken(s.opts.Secret, s.opts.Issuer, user.ID, s.opts.TTL)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return tok, nil
}

func (s *Service) session(user *models.User) (*Session, error) {
	tok, err := s.IssueToken(user)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: tok}, nil
}

func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// ---------- registration ----------

type RegisterInput struct {
	Name       string
	Email      string
	Password   string
	FamilyName string
}

// CreateUserInput is used by admins and the CLI to create accounts directly.
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     models.Role
	FamilyID *uint
}

func validateIdentity(name, email string) error {
	if err := util.ValidateName("name", name, util.MaxNameLength); err != nil {
		return util.ValidationError("%s", err.Error())
	}
	if err := util.ValidateEmail(email); err != nil {
		return util.ValidationError("Please add a valid email")
	}
	return nil
}

func (s *Service) emailTaken(tx *gorm.DB, email string, exceptID uint) (bool, error) {
	var count int64
	q := tx.Model(&models.User{}).Where("email = ?", email)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return count > 0, nil
}

// newUser validates input and builds an unsaved user plus its raw
// verification token.
func (s *Service) newUser(tx *gorm.DB, in CreateUserInput) (*models.User, string, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = util.NormalizeEmail(in.Email)
	if err := validateIdentity(in.Name, in.Email); err != nil {
		return nil, "", err
	}
	if err := util.ValidatePassword(in.Password); err != nil {
		return nil, "", util.ValidationError("%s", err.Error())
	}
	if in.Role == "" {
		in.Role = models.RoleUser
	}
	if !in.Role.Valid() {
		return nil, "", util.ValidationError("Invalid role %q", in.Role)
	}

	taken, err := s.emailTaken(tx, in.Email, 0)
	if err != nil {
		return nil, "", err
	}
	if taken {
		return nil, "", util.ValidationError("User already exists")
	}

	hash, err := s.HashPassword(in.Password)
	if err != nil {
		return nil, "", err
	}
	verification, err := util.RandomToken(resetTokenBytes)
	if err != nil {
		return nil, "", fmt.Errorf("verification token: %w", err)
	}

	return &models.User{
		Name:              in.Name,
		Email:             in.Email,
		PasswordHash:      hash,
		Role:              in.Role,
		FamilyID:          in.FamilyID,
		VerificationToken: util.HashToken(verification),
	}, verification, nil
}

// CreateUser persists a user without signing them in.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*models.User, error) {
	user, verification, err := s.newUser(s.db.WithContext(ctx), in)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.emitRegistered(ctx, user, verification)
	return user, nil
}

// Register creates an account and signs it in. With a FamilyName the new
// user also founds that family and becomes its admin.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	var (
		user         *models.User
		verification string
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		user, verification, err = s.newUser(tx, CreateUserInput{
			Name:     in.Name,
			Email:    in.Email,
			Password: in.Password,
		})
		if err != nil {
			return err
		}

		familyName := strings.TrimSpace(in.FamilyName)
		if familyName != "" {
			if err := util.ValidateName("family name", familyName, util.MaxNameLength); err != nil {
				return util.ValidationError("%s", err.Error())
			}
			user.Role = models.RoleAdmin
		}
		if err := tx.Create(user).Error; err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		if familyName != "" {
			if _, err := FoundFamily(tx, user, familyName); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitRegistered(ctx, user, verification)
	s.logger.InfoContext(ctx, "user registered", log.FieldUserID, user.ID)
	return s.session(user)
}

func (s *Service) emitRegistered(ctx context.Context, user *models.User, verification string) {
	events.Emit(ctx, s.events, events.New(events.UserRegistered, user.ID, user.FamilyID, map[string]any{
		"email":             user.Email,
		"name":              user.Name,
		"verificationToken": verification,
	}))
}

// FoundFamily creates a family with user as admin and sole member.
func FoundFamily(tx *gorm.DB, user *models.User, name string) (*models.Family, error) {
	family := &models.Family{
		Name:     name,
		AdminID:  user.ID,
		Settings: models.DefaultFamilySettings(),
	}
	if err := tx.Create(family).Error; err != nil {
		return nil, fmt.Errorf("create family: %w", err)
	}
	user.FamilyID = &family.ID
	user.Role = models.RoleAdmin
	if err := tx.Model(user).Updates(map[string]any{
		"family_id": family.ID,
		"role":      models.RoleAdmin,
	}).Error; err != nil {
		return nil, fmt.Errorf("join family: %w", err)
	}
	return family, nil
}

// ---------- login / token ----------

type LoginInput struct {
	Email    string
	Password string
	IP       string
}

// compareDummy spends the same bcrypt work as a real check so unknown
// emails are not distinguishable by timing.
func (s *Service) compareDummy(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.opts.BcryptCost)
	})
	_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
}

// Login never reveals which of email or password was wrong.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	invalid := util.AuthError(msgInvalidCredentials)
	email := util.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, util.ValidationError("Please provide an email and password")
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.compareDummy(in.Password)
			return nil, invalid
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	now := s.now()
	if user.LockedUntil != nil && now.Before(*user.LockedUntil) {
		s.compareDummy(in.Password)
		return nil, invalid
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		updates := map[string]any{"failed_login_attempts": user.FailedLoginAttempts + 1}
		if s.opts.MaxLoginAttempts > 0 && user.FailedLoginAttempts+1 >= s.opts.MaxLoginAttempts {
			updates["locked_until"] = now.Add(s.opts.LockoutDuration)
			updates["failed_login_attempts"] = 0
			s.logger.WarnContext(ctx, "account locked after failed logins", log.FieldUserID, user.ID)
		}
		if err := s.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("record failed login: %w", err)
		}
		return nil, invalid
	}

	if err := s.db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"failed_login_attempts": 0,
		"locked_until":          nil,
		"last_login_at":         now,
		"last_login_ip":         in.IP,
	}).Error; err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}
	return s.session(&user)
}

// VerifyToken returns the user id carried by a valid session token.
func (s *Service) VerifyToken(token string) (uint, error) {
	if token == "" {
		return 0, util.AuthError(msgNotAuthorized)
	}
	claims, err := util.ParseToken(s.opts.Secret, token)
	if err != nil {
		return 0, util.AuthError(msgNotAuthorized)
	}
	return claims.UserID, nil
}

// Authenticate resolves a token to its (still existing) user.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.User, error) {
	id, err := s.VerifyToken(token)
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.AuthError(msgNotAuthorized)
		}
		return nil, fmt.Errorf("load principal: %w", err)
	}
	return &user, nil
}

// ---------- password reset ----------

// RequestPasswordReset stores the hash of a fresh single-use token and
// returns the raw token for delivery. An unknown email is a NotFoundError
// unless uniform responses are configured, in which case it returns "".
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	email = util.NormalizeEmail(email)
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if s.opts.UniformResetResponse {
				return "", nil
			}
			return "", util.NotFoundError("There is no user with that email")
		}
		return "", fmt.Errorf("find user: %w", err)
	}

	raw, err := util.RandomToken(resetTokenBytes)
	if err != nil {
		return "", fmt.Errorf("reset token: %w", err)
	}
	expire := s.now().Add(s.opts.ResetTokenTTL)
	if err := s.db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"reset_password_token":  util.HashToken(raw),
		"reset_password_expire": expire,
	}).Error; err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}

	events.Emit(ctx, s.events, events.New(events.PasswordResetRequested, user.ID, user.FamilyID, map[string]any{
		"email":      user.Email,
		"resetToken": raw,
		"expiresAt":  expire,
	}))
	return raw, nil
}

// ResetPassword consumes a reset token and signs the user in.
func (s *Service) ResetPassword(ctx context.Context, rawToken, newPassword string) (*Session, error) {
	if err := util.ValidatePassword(newPassword); err != nil {
		return nil, util.ValidationError("%s", err.Error())
	}
	if rawToken == "" {
		return nil, util.AuthError("Invalid token")
	}

	var user models.User
	err := s.db.WithContext(ctx).
		Where("reset_password_token = ? AND reset_password_expire > ?", util.HashToken(rawToken), s.now()).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.AuthError("Invalid token")
		}
		return nil, fmt.Errorf("find reset token: %w", err)
	}

	hash, err := s.HashPassword(newPassword)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash
	if err := s.db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"password_hash":         hash,
		"reset_password_token":  "",
		"reset_password_expire": nil,
		"failed_login_attempts": 0,
		"locked_until":          nil,
	}).Error; err != nil {
		return nil, fmt.Errorf("reset password: %w", err)
	}
	user.ResetPasswordToken = ""
	user.ResetPasswordExpire = nil
	return s.session(&user)
}

// ---------- profile ----------

// UpdatePassword checks the current password before replacing it.
func (s *Service) UpdatePassword(ctx context.Context, user *models.User, current, next string) (*Session, error) {
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return nil, util.AuthError("Password is incorrect")
	}
	if err := util.ValidatePassword(next); err != nil {
		return nil, util.ValidationError("%s", err.Error())
	}
	hash, err := s.HashPassword(next)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(user).Update("password_hash", hash).Error; err != nil {
		return nil, fmt.Errorf("update password: %w", err)
	}
	user.PasswordHash = hash
	return s.session(user)
}

// UpdateDetails changes name and/or email. Empty values are left alone.
func (s *Service) UpdateDetails(ctx context.Context, user *models.User, name, email string) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = util.NormalizeEmail(email)
	if name == "" {
		name = user.Name
	}
	if email == "" {
		email = user.Email
	}
	if err := validateIdentity(name, email); err != nil {
		return nil, err
	}

	if email != user.Email {
		taken, err := s.emailTaken(s.db.WithContext(ctx), email, user.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, util.ValidationError("Email is already in use")
		}
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(map[string]any{
		"name":  name,
		"email": email,
	}).Error; err != nil {
		return nil, fmt.Errorf("update details: %w", err)
	}
	user.Name = name
	user.Email = email
	return user, nil
}

// VerifyEmail consumes an email verification token.
func (s *Service) VerifyEmail(ctx context.Context, rawToken string) (*models.User, error) {
	if rawToken == "" {
		return nil, util.ValidationError("Invalid verification token")
	}
	var user models.User
	err := s.db.WithContext(ctx).
		Where("verification_token = ?", util.HashToken(rawToken)).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ValidationError("Invalid verification token")
		}
		return nil, fmt.Errorf("find verification token: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"is_email_verified":  true,
		"verification_token": "",
	}).Error; err != nil {
		return nil, fmt.Errorf("verify email: %w", err)
	}
	user.IsEmailVerified = true
	user.VerificationToken = ""
	return &user, nil
}
