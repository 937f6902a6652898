package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"advising/api/handlers"
	"advising/api/routes"
	"advising/db/dbtest"
	"advising/models"
	"advising/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	router *gin.Engine
	auth   *services.AuthService
}

func setupRouter(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m := dbtest.New(t)
	blobs, err := services.NewLocalStore(t.TempDir(), "http://localhost:8080")
	require.NoError(t, err)

	auth := services.NewAuthService(m)
	profiles := services.NewProfileService(m, blobs)
	messenger := services.NewMessenger(
		services.NewMessageStore(m),
		services.NewConversationIndex(m),
		profiles,
		services.NopNotifier{},
	)
	h := routes.Handlers{
		Auth:     handlers.NewAuthHandlers(auth),
		Messages: handlers.NewMessageHandlers(messenger),
		Profiles: handlers.NewProfileHandlers(profiles, 1<<20),
		Uploads:  handlers.NewUploadHandlers(blobs, 1<<20),
		WS:       handlers.NewWSHandlers(services.NewWSConnManager()),
	}
	r := gin.New()
	routes.PublicApi(r, h)
	routes.PrivateApi(r, h, auth, services.NewRateLimiter(nil, 0, 0))
	return &testEnv{router: r, auth: auth}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(jsonBody)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) advisor(t *testing.T, username string) (int64, string) {
	t.Helper()
	ctx := context.Background()
	advisor, err := e.auth.CreateAdvisor(ctx, services.CreateAdvisorInput{
		Name: "Ada", Surname: "Lovelace", Email: username + "@example.edu", Username: username, Password: "password",
	})
	require.NoError(t, err)
	res, err := e.auth.Login(ctx, models.RoleAdvisor, username, "password")
	require.NoError(t, err)
	return advisor.ID, res.Token
}

func (e *testEnv) student(t *testing.T, number string) (int64, string) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/auth/student/register", "", map[string]interface{}{
		"name": "Alan", "surname": "Turing", "email": number + "@example.edu",
		"student_number": number, "password": "password",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var student models.Student
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &student))

	w = e.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": number, "password": "password", "role": "student",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var login services.LoginResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	return student.ID, login.Token
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestSendFetchMarkReadFlow(t *testing.T) {
	env := setupRouter(t)
	advisorID, advisorToken := env.advisor(t, "ada")
	studentID, studentToken := env.student(t, "20240001")

	w := env.do(t, http.MethodPost, "/api/v1/messages", studentToken, map[string]interface{}{
		"receiver_id": advisorID,
		"content":     "Hello",
		"attachments": []map[string]string{
			{"name": "plan.pdf", "type": "document", "url": "http://localhost:8080/uploads/attachments/plan.pdf"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var sent models.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sent))
	assert.Equal(t, "Alan Turing", sent.SenderName)
	require.Len(t, sent.Attachments, 1)

	threadURL := fmt.Sprintf("/api/v1/messages?student_id=%d&advisor_id=%d", studentID, advisorID)
	w = env.do(t, http.MethodGet, threadURL, advisorToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var thread []models.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &thread))
	require.Len(t, thread, 1)
	assert.Equal(t, "Hello", thread[0].Content)
	assert.False(t, thread[0].IsRead)

	conversationsURL := fmt.Sprintf("/api/v1/advisors/%d/students", advisorID)
	w = env.do(t, http.MethodGet, conversationsURL, advisorToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summaries []services.ConversationSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, int64(1), summaries[0].UnreadCount)

	readURL := fmt.Sprintf("/api/v1/messages/%d/read", sent.ID)
	w = env.do(t, http.MethodPatch, readURL, studentToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = env.do(t, http.MethodPatch, readURL, advisorToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodPatch, readURL, advisorToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, conversationsURL, advisorToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summaries))
	assert.Zero(t, summaries[0].UnreadCount)

	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/messages/advisor/%d", advisorID), advisorToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var inbox []models.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &inbox))
	require.Len(t, inbox, 1)
	assert.True(t, inbox[0].IsRead)
}

func TestSendValidation(t *testing.T) {
	env := setupRouter(t)
	advisorID, _ := env.advisor(t, "ada")
	_, studentToken := env.student(t, "20240001")

	w := env.do(t, http.MethodPost, "/api/v1/messages", studentToken, map[string]interface{}{
		"receiver_id": advisorID,
		"content":     "",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ARGUMENT", decodeError(t, w)["code"])

	w = env.do(t, http.MethodPost, "/api/v1/messages", studentToken, map[string]interface{}{
		"content": "no receiver",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/messages", studentToken, map[string]interface{}{
		"receiver_id": advisorID,
		"attachments": []map[string]string{{"name": "x", "type": "spreadsheet", "url": "http://x"}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/messages", studentToken, map[string]interface{}{
		"receiver_id": advisorID + 100,
		"content":     "hello?",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestThreadAccess(t *testing.T) {
	env := setupRouter(t)
	advisorID, _ := env.advisor(t, "ada")
	_, otherToken := env.advisor(t, "barbara")
	studentID, studentToken := env.student(t, "20240001")

	w := env.do(t, http.MethodGet, "/api/v1/messages?student_id=abc&advisor_id=1", studentToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	threadURL := fmt.Sprintf("/api/v1/messages?student_id=%d&advisor_id=%d", studentID, advisorID)
	w = env.do(t, http.MethodGet, threadURL, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodGet, threadURL, studentToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestConversationsOfUnknownAdvisor(t *testing.T) {
	env := setupRouter(t)
	advisorID, advisorToken := env.advisor(t, "ada")

	w := env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/advisors/%d/students", advisorID+100), advisorToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, w)["code"])

	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/messages/advisor/%d", advisorID+100), advisorToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuthRequired(t *testing.T) {
	env := setupRouter(t)

	w := env.do(t, http.MethodGet, "/api/v1/messages?student_id=1&advisor_id=1", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHENTICATED", decodeError(t, w)["code"])

	w = env.do(t, http.MethodPost, "/api/v1/messages", "not-a-token", map[string]interface{}{"receiver_id": 1, "content": "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "x", "password": "y", "role": "teacher"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "x", "password": "y", "role": "student"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutInvalidatesToken(t *testing.T) {
	env := setupRouter(t)
	_, token := env.advisor(t, "ada")

	w := env.do(t, http.MethodPost, "/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodPost, "/api/v1/auth/logout", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterConflict(t *testing.T) {
	env := setupRouter(t)
	env.student(t, "20240001")

	w := env.do(t, http.MethodPost, "/api/v1/auth/student/register", "", map[string]interface{}{
		"name": "Alan", "surname": "Turing", "email": "dup@example.edu",
		"student_number": "20240001", "password": "password",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/auth/student/register", "", map[string]interface{}{
		"name": "Alan", "surname": "Turing", "email": "not-an-email",
		"student_number": "20240002", "password": "password",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProfileEndpoints(t *testing.T) {
	env := setupRouter(t)
	advisorID, advisorToken := env.advisor(t, "ada")
	studentID, studentToken := env.student(t, "20240001")

	w := env.do(t, http.MethodGet, "/api/v1/advisors", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var advisors []models.Advisor
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &advisors))
	assert.Len(t, advisors, 1)

	w = env.do(t, http.MethodGet, "/api/v1/advisors/999", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(t, http.MethodGet, "/api/v1/advisors/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	advisorURL := fmt.Sprintf("/api/v1/advisors/%d", advisorID)
	w = env.do(t, http.MethodPut, advisorURL, studentToken, map[string]string{"office_number": "B-1"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = env.do(t, http.MethodPut, advisorURL, advisorToken, map[string]string{"office_hours_start": "25:00"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodPut, advisorURL, advisorToken, map[string]string{"office_number": "B-1", "office_days": "Tue"})
	require.Equal(t, http.StatusOK, w.Code)
	var advisor models.Advisor
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &advisor))
	assert.Equal(t, "B-1", advisor.OfficeNumber)

	w = env.do(t, http.MethodPut, fmt.Sprintf("/api/v1/students/%d/profile", studentID), studentToken, map[string]string{"surname": "Mathison"})
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/students/%d", studentID), advisorToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var student models.Student
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &student))
	assert.Equal(t, "Mathison", student.Surname)
}

func multipartRequest(t *testing.T, method, path, token, field, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := make(map[string][]string)
	header["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, filename)}
	header["Content-Type"] = []string{contentType}
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req, err := http.NewRequest(method, path, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestUploadThenAttach(t *testing.T) {
	env := setupRouter(t)
	advisorID, _ := env.advisor(t, "ada")
	_, studentToken := env.student(t, "20240001")

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, multipartRequest(t, http.MethodPost, "/api/v1/upload", studentToken, "file", "scan.png", "image/png", []byte("png-bytes")))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var uploaded handlers.UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &uploaded))
	assert.Equal(t, models.AttachmentImage, uploaded.Type)
	assert.Equal(t, "scan.png", uploaded.Name)
	assert.NotEmpty(t, uploaded.ID)

	w = env.do(t, http.MethodPost, "/api/v1/messages", studentToken, map[string]interface{}{
		"receiver_id": advisorID,
		"attachments": []handlers.UploadResponse{uploaded},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var sent models.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sent))
	require.Len(t, sent.Attachments, 1)
	assert.Equal(t, uploaded.ID, sent.Attachments[0].ID)
	assert.Equal(t, uploaded.URL, sent.Attachments[0].URL)

	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, multipartRequest(t, http.MethodPost, "/api/v1/upload", studentToken, "file", "big.bin", "application/octet-stream", make([]byte, 2<<20)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, multipartRequest(t, http.MethodPost, "/api/v1/upload", studentToken, "other", "a.txt", "text/plain", []byte("x")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProfilePhotoEndpoints(t *testing.T) {
	env := setupRouter(t)
	studentID, studentToken := env.student(t, "20240001")
	photoURL := fmt.Sprintf("/api/v1/students/%d/profile-photo", studentID)

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, multipartRequest(t, http.MethodPut, photoURL, studentToken, "photo", "me.jpg", "image/jpeg", []byte("jpeg")))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var photo handlers.PhotoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &photo))
	assert.Contains(t, photo.PhotoURL, "/uploads/profiles/student/")

	w = env.do(t, http.MethodDelete, photoURL, studentToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &photo))
	assert.Empty(t, photo.PhotoURL)
}
