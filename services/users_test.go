package services

import (
	"context"
	"testing"

	"advising/apperr"
	"advising/db/dbtest"
	"advising/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.Contains(t, hash, "$")

	ok, err := VerifyPassword(hash, "s3cret")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword(hash, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = VerifyPassword("plain", "plain")
	assert.Error(t, err)
}

func TestStudentRegisterLoginLogout(t *testing.T) {
	m := dbtest.New(t)
	advisor := dbtest.SeedAdvisor(t, m, 1, "Ada", "Lovelace")
	auth := NewAuthService(m)
	ctx := context.Background()

	student, err := auth.RegisterStudent(ctx, RegisterStudentInput{
		Name: "Alan", Surname: "Turing", Email: "alan@example.edu",
		StudentNumber: "20240001", Password: "enigma", AdvisorID: &advisor.ID,
	})
	require.NoError(t, err)
	assert.NotEqual(t, "enigma", student.Password)

	_, err = auth.Login(ctx, models.RoleStudent, "20240001", "wrong")
	assert.Equal(t, apperr.CodeUnauthenticated, apperr.CodeOf(err))
	_, err = auth.Login(ctx, models.RoleStudent, "nobody", "enigma")
	assert.Equal(t, apperr.CodeUnauthenticated, apperr.CodeOf(err))

	res, err := auth.Login(ctx, models.RoleStudent, "20240001", "enigma")
	require.NoError(t, err)
	require.NotNil(t, res.Student)
	assert.Equal(t, student.ID, res.Student.ID)
	assert.Len(t, res.Token, 64)

	caller, err := auth.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, Caller{Role: models.RoleStudent, ID: student.ID}, caller)

	require.NoError(t, auth.Logout(ctx, res.Token))
	_, err = auth.Authenticate(ctx, res.Token)
	assert.Equal(t, apperr.CodeUnauthenticated, apperr.CodeOf(err))
}

func TestLoginReplacesPreviousSession(t *testing.T) {
	m := dbtest.New(t)
	auth := NewAuthService(m)
	ctx := context.Background()

	_, err := auth.CreateAdvisor(ctx, CreateAdvisorInput{
		Name: "Ada", Surname: "Lovelace", Email: "ada@example.edu", Username: "ada", Password: "engine",
	})
	require.NoError(t, err)

	first, err := auth.Login(ctx, models.RoleAdvisor, "ada", "engine")
	require.NoError(t, err)
	require.NotNil(t, first.Advisor)
	second, err := auth.Login(ctx, models.RoleAdvisor, "ada", "engine")
	require.NoError(t, err)

	_, err = auth.Authenticate(ctx, first.Token)
	assert.Equal(t, apperr.CodeUnauthenticated, apperr.CodeOf(err))
	caller, err := auth.Authenticate(ctx, second.Token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdvisor, caller.Role)
}

func TestRegisterStudentConflicts(t *testing.T) {
	m := dbtest.New(t)
	auth := NewAuthService(m)
	ctx := context.Background()
	in := RegisterStudentInput{Name: "Alan", Surname: "Turing", Email: "a@example.edu", StudentNumber: "1", Password: "p"}

	_, err := auth.RegisterStudent(ctx, in)
	require.NoError(t, err)
	_, err = auth.RegisterStudent(ctx, in)
	assert.Equal(t, apperr.CodeAlreadyExists, apperr.CodeOf(err))

	missing := int64(77)
	in.StudentNumber = "2"
	in.AdvisorID = &missing
	_, err = auth.RegisterStudent(ctx, in)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestLoginRejectsUnknownRole(t *testing.T) {
	auth := NewAuthService(dbtest.New(t))
	_, err := auth.Login(context.Background(), models.Role("admin"), "x", "y")
	assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))

	_, err = auth.Authenticate(context.Background(), "")
	assert.Equal(t, apperr.CodeUnauthenticated, apperr.CodeOf(err))
}
