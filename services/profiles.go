package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"advising/apperr"
	"advising/db"
	"advising/logger"
	"advising/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const officeHoursLayout = "15:04"

// AdvisorUpdate holds the editable advisor fields; nil means unchanged.
type AdvisorUpdate struct {
	Name             *string
	Surname          *string
	Email            *string
	Username         *string
	OfficeNumber     *string
	OfficeHoursStart *string
	OfficeHoursEnd   *string
	OfficeDays       *string
}

type StudentUpdate struct {
	Name    *string
	Surname *string
	Email   *string
}

type ProfileService struct {
	db    *db.Manager
	blobs BlobStore
}

func NewProfileService(m *db.Manager, blobs BlobStore) *ProfileService {
	return &ProfileService{db: m, blobs: blobs}
}

func notFoundOrStorage(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(what + " not found")
	}
	return apperr.Storage("failed to load "+what, err)
}

func (s *ProfileService) ListAdvisors(ctx context.Context) ([]models.Advisor, error) {
	advisors := make([]models.Advisor, 0)
	err := s.db.ReadOnly(ctx).Order("surname ASC, name ASC, id ASC").Find(&advisors).Error
	if err != nil {
		return nil, apperr.Storage("failed to load advisors", err)
	}
	return advisors, nil
}

func (s *ProfileService) GetAdvisor(ctx context.Context, advisorID int64) (*models.Advisor, error) {
	var advisor models.Advisor
	if err := s.db.ReadOnly(ctx).Where("id = ?", advisorID).Take(&advisor).Error; err != nil {
		return nil, notFoundOrStorage(err, "advisor")
	}
	return &advisor, nil
}

func (s *ProfileService) GetStudent(ctx context.Context, studentID int64) (*models.Student, error) {
	var student models.Student
	err := s.db.ReadOnly(ctx).Preload("Advisor").Where("id = ?", studentID).Take(&student).Error
	if err != nil {
		return nil, notFoundOrStorage(err, "student")
	}
	return &student, nil
}

// Exists reports whether a participant with the given role and id exists.
func (s *ProfileService) Exists(ctx context.Context, role models.Role, id int64) (bool, error) {
	var model interface{}
	switch role {
	case models.RoleAdvisor:
		model = &models.Advisor{}
	case models.RoleStudent:
		model = &models.Student{}
	default:
		return false, apperr.InvalidArg("invalid role")
	}
	var count int64
	if err := s.db.Write(ctx).Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, apperr.Storage("failed to check "+string(role), err)
	}
	return count > 0, nil
}

func requiredText(field string, value *string) error {
	if value != nil && strings.TrimSpace(*value) == "" {
		return apperr.InvalidArg(field + " must not be empty")
	}
	return nil
}

func validateOfficeHours(start, end string) error {
	var from, to time.Time
	var err error
	if start != "" {
		if from, err = time.Parse(officeHoursLayout, start); err != nil {
			return apperr.InvalidArg("office_hours_start must be HH:MM")
		}
	}
	if end != "" {
		if to, err = time.Parse(officeHoursLayout, end); err != nil {
			return apperr.InvalidArg("office_hours_end must be HH:MM")
		}
	}
	if start != "" && end != "" && !from.Before(to) {
		return apperr.InvalidArg("office hours must end after they start")
	}
	return nil
}

func (s *ProfileService) UpdateAdvisor(ctx context.Context, caller Caller, advisorID int64, upd AdvisorUpdate) (*models.Advisor, error) {
	if !caller.Is(models.RoleAdvisor, advisorID) {
		return nil, apperr.Forbidden("you can only edit your own profile")
	}
	for field, value := range map[string]*string{"name": upd.Name, "surname": upd.Surname, "email": upd.Email, "username": upd.Username} {
		if err := requiredText(field, value); err != nil {
			return nil, err
		}
	}

	current, err := s.GetAdvisor(ctx, advisorID)
	if err != nil {
		return nil, err
	}
	start, end := current.OfficeHoursStart, current.OfficeHoursEnd
	if upd.OfficeHoursStart != nil {
		start = *upd.OfficeHoursStart
	}
	if upd.OfficeHoursEnd != nil {
		end = *upd.OfficeHoursEnd
	}
	if err = validateOfficeHours(start, end); err != nil {
		return nil, err
	}

	conn := s.db.Write(ctx)
	if upd.Username != nil && *upd.Username != current.Username {
		var taken int64
		err = conn.Model(&models.Advisor{}).Where("username = ? AND id <> ?", *upd.Username, advisorID).Count(&taken).Error
		if err != nil {
			return nil, apperr.Storage("failed to check username", err)
		}
		if taken > 0 {
			return nil, apperr.AlreadyExists("username is already taken")
		}
	}

	changes := map[string]interface{}{}
	setIf := func(column string, value *string) {
		if value != nil {
			changes[column] = strings.TrimSpace(*value)
		}
	}
	setIf("name", upd.Name)
	setIf("surname", upd.Surname)
	setIf("email", upd.Email)
	setIf("username", upd.Username)
	setIf("office_number", upd.OfficeNumber)
	setIf("office_hours_start", upd.OfficeHoursStart)
	setIf("office_hours_end", upd.OfficeHoursEnd)
	setIf("office_days", upd.OfficeDays)
	if len(changes) > 0 {
		if err = conn.Model(current).Updates(changes).Error; err != nil {
			return nil, apperr.Storage("failed to update advisor", err)
		}
	}
	return s.GetAdvisor(ctx, advisorID)
}

func (s *ProfileService) UpdateStudent(ctx context.Context, caller Caller, studentID int64, upd StudentUpdate) (*models.Student, error) {
	if !caller.Is(models.RoleStudent, studentID) {
		return nil, apperr.Forbidden("you can only edit your own profile")
	}
	for field, value := range map[string]*string{"name": upd.Name, "surname": upd.Surname, "email": upd.Email} {
		if err := requiredText(field, value); err != nil {
			return nil, err
		}
	}
	current, err := s.GetStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	changes := map[string]interface{}{}
	if upd.Name != nil {
		changes["name"] = strings.TrimSpace(*upd.Name)
	}
	if upd.Surname != nil {
		changes["surname"] = strings.TrimSpace(*upd.Surname)
	}
	if upd.Email != nil {
		changes["email"] = strings.TrimSpace(*upd.Email)
	}
	if len(changes) > 0 {
		err = s.db.Write(ctx).Model(&models.Student{}).Where("id = ?", current.ID).Updates(changes).Error
		if err != nil {
			return nil, apperr.Storage("failed to update student", err)
		}
	}
	return s.GetStudent(ctx, studentID)
}

func profileModel(role models.Role) (interface{}, error) {
	switch role {
	case models.RoleAdvisor:
		return &models.Advisor{}, nil
	case models.RoleStudent:
		return &models.Student{}, nil
	}
	return nil, apperr.InvalidArg("invalid role")
}

func (s *ProfileService) currentPhoto(ctx context.Context, role models.Role, id int64) (string, error) {
	model, err := profileModel(role)
	if err != nil {
		return "", err
	}
	var photo []string
	err = s.db.Write(ctx).Model(model).Where("id = ?", id).Pluck("photo_url", &photo).Error
	if err != nil {
		return "", apperr.Storage("failed to load profile", err)
	}
	if len(photo) == 0 {
		return "", apperr.NotFound(string(role) + " not found")
	}
	return photo[0], nil
}

func (s *ProfileService) setPhoto(ctx context.Context, role models.Role, id int64, url string) error {
	model, _ := profileModel(role)
	err := s.db.Write(ctx).Model(model).Where("id = ?", id).Update("photo_url", url).Error
	if err != nil {
		return apperr.Storage("failed to update profile photo", err)
	}
	return nil
}

func (s *ProfileService) dropBlob(ctx context.Context, url string) {
	if url == "" {
		return
	}
	if err := s.blobs.Delete(ctx, url); err != nil {
		logger.Warn().Err(err).Str("url", url).Msg("failed to delete old profile photo")
	}
}

// SetPhoto stores a new profile photo for the caller and removes the old one.
func (s *ProfileService) SetPhoto(ctx context.Context, caller Caller, role models.Role, id int64, filename, contentType string, body io.Reader) (string, error) {
	if !caller.Is(role, id) {
		return "", apperr.Forbidden("you can only edit your own profile")
	}
	if KindFromMIME(contentType) != models.AttachmentImage {
		return "", apperr.InvalidArg("profile photo must be an image")
	}
	old, err := s.currentPhoto(ctx, role, id)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("profiles/%s/%s%s", role, uuid.NewString(), strings.ToLower(filepath.Ext(filename)))
	url, err := s.blobs.Save(ctx, key, contentType, body)
	if err != nil {
		return "", apperr.Storage("failed to store profile photo", err)
	}
	if err = s.setPhoto(ctx, role, id, url); err != nil {
		s.dropBlob(ctx, url)
		return "", err
	}
	s.dropBlob(ctx, old)
	return url, nil
}

func (s *ProfileService) DeletePhoto(ctx context.Context, caller Caller, role models.Role, id int64) error {
	if !caller.Is(role, id) {
		return apperr.Forbidden("you can only edit your own profile")
	}
	old, err := s.currentPhoto(ctx, role, id)
	if err != nil {
		return err
	}
	if err = s.setPhoto(ctx, role, id, ""); err != nil {
		return err
	}
	s.dropBlob(ctx, old)
	return nil
}
