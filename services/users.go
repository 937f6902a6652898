package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"

	"advising/apperr"
	"advising/db"
	"advising/logger"
	"advising/models"

	"golang.org/x/crypto/argon2"
	"gorm.io/gorm"
)

// Caller is the authenticated participant behind a request.
type Caller struct {
	Role models.Role
	ID   int64
}

func (c Caller) Is(role models.Role, id int64) bool {
	return c.Role == role && c.ID == id
}

// HashPassword returns "<salt hex>$<argon2id hash hex>".
func HashPassword(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)
	return hex.EncodeToString(salt) + "$" + hex.EncodeToString(hash), nil
}

func VerifyPassword(stored, password string) (bool, error) {
	parts := strings.Split(stored, "$")
	if len(parts) != 2 {
		return false, errors.New("invalid password format")
	}
	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return false, err
	}
	expected, err := hex.DecodeString(parts[1])
	if err != nil {
		return false, err
	}
	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)
	return subtle.ConstantTimeCompare(hash, expected) == 1, nil
}

func newToken() (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(tokenBytes), nil
}

type LoginResult struct {
	Token   string          `json:"token"`
	Role    models.Role     `json:"role"`
	Advisor *models.Advisor `json:"advisor,omitempty"`
	Student *models.Student `json:"student,omitempty"`
}

type RegisterStudentInput struct {
	Name          string
	Surname       string
	Email         string
	StudentNumber string
	Password      string
	AdvisorID     *int64
}

type CreateAdvisorInput struct {
	Name     string
	Surname  string
	Email    string
	Username string
	Password string
}

// AuthService issues and checks opaque session tokens.
type AuthService struct {
	db *db.Manager
}

func NewAuthService(m *db.Manager) *AuthService {
	return &AuthService{db: m}
}

// Login checks the credentials of an advisor (by username) or a student (by
// student number) and opens a new session. Previous sessions are dropped.
func (s *AuthService) Login(ctx context.Context, role models.Role, login, password string) (*LoginResult, error) {
	conn := s.db.Write(ctx)
	result := &LoginResult{Role: role}
	var userID int64
	var stored string

	switch role {
	case models.RoleAdvisor:
		var advisor models.Advisor
		if err := conn.Where("username = ?", login).Take(&advisor).Error; err != nil {
			return nil, loginLookupError(err)
		}
		userID, stored, result.Advisor = advisor.ID, advisor.Password, &advisor
	case models.RoleStudent:
		var student models.Student
		if err := conn.Where("student_number = ?", login).Take(&student).Error; err != nil {
			return nil, loginLookupError(err)
		}
		userID, stored, result.Student = student.ID, student.Password, &student
	default:
		return nil, apperr.InvalidArg("invalid role")
	}

	ok, err := VerifyPassword(stored, password)
	if err != nil {
		logger.Warn().Err(err).Str("role", string(role)).Int64("user_id", userID).Msg("stored password is malformed")
		return nil, apperr.Unauthorized("invalid credentials")
	}
	if !ok {
		return nil, apperr.Unauthorized("invalid credentials")
	}

	token, err := newToken()
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "failed to generate token", err)
	}
	err = conn.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role = ? AND user_id = ?", role, userID).Delete(&models.UserTokens{}).Error; err != nil {
			return err
		}
		return tx.Create(&models.UserTokens{Role: role, UserID: userID, Token: token}).Error
	})
	if err != nil {
		return nil, apperr.Storage("failed to create session", err)
	}
	result.Token = token
	return result, nil
}

func loginLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.Unauthorized("invalid credentials")
	}
	return apperr.Storage("failed to load user", err)
}

// Authenticate resolves a session token to its owner.
func (s *AuthService) Authenticate(ctx context.Context, token string) (Caller, error) {
	if token == "" {
		return Caller{}, apperr.Unauthorized("token is empty")
	}
	var session models.UserTokens
	err := s.db.Write(ctx).Where("token = ?", token).Take(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Caller{}, apperr.Unauthorized("invalid token")
	}
	if err != nil {
		return Caller{}, apperr.Storage("failed to check token", err)
	}
	return Caller{Role: session.Role, ID: session.UserID}, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	err := s.db.Write(ctx).Where("token = ?", token).Delete(&models.UserTokens{}).Error
	if err != nil {
		return apperr.Storage("failed to delete session", err)
	}
	return nil
}

func (s *AuthService) RegisterStudent(ctx context.Context, in RegisterStudentInput) (*models.Student, error) {
	conn := s.db.Write(ctx)

	var alreadyExists int64
	err := conn.Model(&models.Student{}).Where("student_number = ?", in.StudentNumber).Count(&alreadyExists).Error
	if err != nil {
		return nil, apperr.Storage("failed to check student", err)
	}
	if alreadyExists > 0 {
		return nil, apperr.AlreadyExists("student number is already registered")
	}

	if in.AdvisorID != nil {
		var advisors int64
		if err = conn.Model(&models.Advisor{}).Where("id = ?", *in.AdvisorID).Count(&advisors).Error; err != nil {
			return nil, apperr.Storage("failed to check advisor", err)
		}
		if advisors == 0 {
			return nil, apperr.NotFound("advisor not found")
		}
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "failed to hash password", err)
	}
	student := &models.Student{
		StudentNumber: in.StudentNumber,
		Name:          in.Name,
		Surname:       in.Surname,
		Email:         in.Email,
		Password:      hash,
		AdvisorID:     in.AdvisorID,
	}
	if err = conn.Create(student).Error; err != nil {
		return nil, apperr.Storage("failed to create student", err)
	}
	return student, nil
}

// CreateAdvisor is used by the seeder; advisors have no self-registration.
func (s *AuthService) CreateAdvisor(ctx context.Context, in CreateAdvisorInput) (*models.Advisor, error) {
	conn := s.db.Write(ctx)

	var alreadyExists int64
	err := conn.Model(&models.Advisor{}).Where("username = ?", in.Username).Count(&alreadyExists).Error
	if err != nil {
		return nil, apperr.Storage("failed to check advisor", err)
	}
	if alreadyExists > 0 {
		return nil, apperr.AlreadyExists("username is already taken")
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "failed to hash password", err)
	}
	advisor := &models.Advisor{
		Name:     in.Name,
		Surname:  in.Surname,
		Email:    in.Email,
		Username: in.Username,
		Password: hash,
	}
	if err = conn.Create(advisor).Error; err != nil {
		return nil, apperr.Storage("failed to create advisor", err)
	}
	return advisor, nil
}
