package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"stenagrafist-go/internal/middleware"
	"stenagrafist-go/internal/model"
	"stenagrafist-go/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubUploadService struct {
	got         service.UploadRequest
	body        []byte
	orderID     uint
	err         error
	republished int
}

func (s *stubUploadService) SubmitUpload(_ context.Context, req service.UploadRequest) (uint, error) {
	s.got = req
	if req.File != nil {
		s.body, _ = io.ReadAll(req.File)
	}
	return s.orderID, s.err
}

func (s *stubUploadService) RepublishPending(context.Context) (int, error) {
	return s.republished, s.err
}

type stubTaskService struct {
	userID, taskID uint
	status         string
	newID          uint
	err            error
}

func (s *stubTaskService) Transition(_ context.Context, userID, taskID uint, status string) (uint, error) {
	s.userID, s.taskID, s.status = userID, taskID, status
	return s.newID, s.err
}

type stubUserService struct {
	user   *model.User
	token  string
	orders []model.Task
	err    error
}

func (s *stubUserService) Register(_ context.Context, username, _ string) (*model.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &model.User{ID: 1, Username: username}, nil
}

func (s *stubUserService) Authenticate(context.Context, string, string) (*model.User, error) {
	return s.user, s.err
}

func (s *stubUserService) Login(context.Context, string, string) (string, error) {
	return s.token, s.err
}

func (s *stubUserService) ListOrders(context.Context, string) ([]model.Task, error) {
	return s.orders, s.err
}

func notFound(sentinel error) error {
	return &service.Error{Kind: service.KindNotFound, Op: "test", Err: sentinel}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func uploadRequest(t *testing.T, target string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "talk.mp3")
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func uploadRouter(svc service.UploadService) *gin.Engine {
	r := gin.New()
	h := NewUploadHandler(svc)
	r.POST("/minio/load", h.Load)
	r.POST("/minio/republish", h.Republish)
	return r
}

func TestLoadSuccess(t *testing.T) {
	svc := &stubUploadService{orderID: 11}
	content := bytes.Repeat([]byte{'a'}, 120)

	w := serve(uploadRouter(svc), uploadRequest(t, "/minio/load?username=alice&order_name=interview", content))

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "User", body["message"])
	assert.Equal(t, float64(11), body["order_id"])

	assert.Equal(t, "alice", svc.got.Username)
	assert.Equal(t, "interview", svc.got.OrderName)
	assert.Equal(t, int64(120), svc.got.Size)
	assert.Equal(t, content, svc.body)
}

func TestLoadRejectsOversizedBody(t *testing.T) {
	svc := &stubUploadService{orderID: 11}
	r := gin.New()
	r.Use(middleware.BodyLimit(100))
	r.POST("/minio/load", NewUploadHandler(svc).Load)

	content := bytes.Repeat([]byte{'a'}, 1<<20)
	w := serve(r, uploadRequest(t, "/minio/load?username=alice&order_name=interview", content))

	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(http.StatusRequestEntityTooLarge), body["code"])
	assert.Equal(t, "Request Entity Too Large", body["message"])
	assert.Empty(t, svc.got.Username)
}

func TestLoadMissingFile(t *testing.T) {
	svc := &stubUploadService{}
	req := httptest.NewRequest(http.MethodPost, "/minio/load?username=alice&order_name=x", nil)

	w := serve(uploadRouter(svc), req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, svc.got.Username)
}

func TestLoadMissingQuery(t *testing.T) {
	w := serve(uploadRouter(&stubUploadService{}), uploadRequest(t, "/minio/load?order_name=x", []byte("a")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoadErrorMapping(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{"user not found", notFound(service.ErrUserNotFound), http.StatusNotFound, "User not found"},
		{"task creation", &service.Error{Kind: service.KindTaskCreation, Err: service.ErrTaskCreationFailed}, http.StatusInternalServerError, "Internal Server Error"},
		{"dependency", &service.Error{Kind: service.KindDependency, TaskID: 4, Err: errors.New("dial tcp 10.0.0.3:9092: refused")}, http.StatusInternalServerError, "Internal Server Error"},
		{"plain", errors.New("boom"), http.StatusInternalServerError, "Internal Server Error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubUploadService{err: tc.err}
			w := serve(uploadRouter(svc), uploadRequest(t, "/minio/load?username=alice&order_name=x", []byte("a")))
			assert.Equal(t, tc.code, w.Code)
			assert.Equal(t, tc.message, decodeBody(t, w)["message"])
			assert.NotContains(t, w.Body.String(), "10.0.0.3")
		})
	}
}

func TestRepublish(t *testing.T) {
	w := serve(uploadRouter(&stubUploadService{republished: 3}), httptest.NewRequest(http.MethodPost, "/minio/republish", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), decodeBody(t, w)["republished"])

	w = serve(uploadRouter(&stubUploadService{err: errors.New("redis down")}), httptest.NewRequest(http.MethodPost, "/minio/republish", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func taskRouter(svc service.TaskService) *gin.Engine {
	r := gin.New()
	r.POST("/minio/change", NewTaskHandler(svc).Change)
	return r
}

func TestChangeSuccess(t *testing.T) {
	svc := &stubTaskService{newID: 12}
	w := serve(taskRouter(svc), httptest.NewRequest(http.MethodPost, "/minio/change?user_id=7&status_name=done&order_id=11", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(12), decodeBody(t, w)["order"])
	assert.Equal(t, uint(7), svc.userID)
	assert.Equal(t, uint(11), svc.taskID)
	assert.Equal(t, "done", svc.status)
}

func TestChangeErrors(t *testing.T) {
	cases := []struct {
		name   string
		target string
		err    error
		code   int
	}{
		{"bad user id", "/minio/change?user_id=x&status_name=done&order_id=1", nil, http.StatusBadRequest},
		{"missing order id", "/minio/change?user_id=1&status_name=done", nil, http.StatusBadRequest},
		{"invalid status", "/minio/change?user_id=1&status_name=nope&order_id=1",
			&service.Error{Kind: service.KindValidation, Err: service.ErrInvalidStatus}, http.StatusBadRequest},
		{"task not found", "/minio/change?user_id=1&status_name=done&order_id=99", notFound(service.ErrTaskNotFound), http.StatusNotFound},
		{"creation failed", "/minio/change?user_id=1&status_name=done&order_id=1",
			&service.Error{Kind: service.KindTaskCreation, Err: service.ErrTaskCreationFailed}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(taskRouter(&stubTaskService{err: tc.err}), httptest.NewRequest(http.MethodPost, tc.target, nil))
			assert.Equal(t, tc.code, w.Code)
		})
	}
}

func userRouter(svc service.UserService) *gin.Engine {
	r := gin.New()
	uh := NewUserHandler(svc)
	r.POST("/user/create", uh.Create)
	r.POST("/user/get", uh.Get)
	r.GET("/user/order", uh.Orders)
	r.POST("/token/login", NewAuthHandler(svc).Login)
	return r
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestCreateUser(t *testing.T) {
	w := serve(userRouter(&stubUserService{}), jsonRequest(http.MethodPost, "/user/create", `{"username":"alice","password":"pw"}`))
	require.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "alice", body["username"])
	assert.NotContains(t, body, "password")

	w = serve(userRouter(&stubUserService{}), jsonRequest(http.MethodPost, "/user/create", `{"username":"alice"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	conflict := &service.Error{Kind: service.KindConflict, Err: service.ErrUserExists}
	w = serve(userRouter(&stubUserService{err: conflict}), jsonRequest(http.MethodPost, "/user/create", `{"username":"alice","password":"pw"}`))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCreateUserRejectsOversizedBody(t *testing.T) {
	r := gin.New()
	r.Use(middleware.BodyLimit(16), middleware.RequestLogger(nil))
	r.POST("/user/create", NewUserHandler(&stubUserService{}).Create)

	payload := `{"username":"alice","password":"` + strings.Repeat("p", 256) + `"}`
	w := serve(r, jsonRequest(http.MethodPost, "/user/create", payload))

	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "Request Entity Too Large", decodeBody(t, w)["message"])
}

func TestGetUser(t *testing.T) {
	svc := &stubUserService{user: &model.User{ID: 7, Username: "alice"}}
	w := serve(userRouter(svc), jsonRequest(http.MethodPost, "/user/get", `{"username":"alice","password":"pw"}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{"username": "alice"}, decodeBody(t, w))

	w = serve(userRouter(&stubUserService{err: notFound(service.ErrUserNotFound)}),
		jsonRequest(http.MethodPost, "/user/get", `{"username":"alice","password":"bad"}`))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(userRouter(&stubUserService{err: errors.New("db down")}),
		jsonRequest(http.MethodPost, "/user/get", `{"username":"alice","password":"pw"}`))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestOrders(t *testing.T) {
	prev := uint(1)
	svc := &stubUserService{orders: []model.Task{
		{ID: 1, Name: "a", Status: model.TaskStatusPending, ObjectKey: "files/7.mp3"},
		{ID: 2, Name: "a", Status: model.TaskStatusDone, ObjectKey: "files/7.mp3", PreviousID: &prev},
	}}
	w := serve(userRouter(svc), httptest.NewRequest(http.MethodGet, "/user/order?token=abc", nil))
	require.Equal(t, http.StatusOK, w.Code)
	orders := decodeBody(t, w)["orders"].([]interface{})
	require.Len(t, orders, 2)
	second := orders[1].(map[string]interface{})
	assert.Equal(t, "done", second["status"])
	assert.Equal(t, "files/7.mp3", second["file_path"])
	assert.Equal(t, float64(1), second["previous_id"])
	assert.Nil(t, second["created_at"])

	invalid := &service.Error{Kind: service.KindValidation, Err: service.ErrInvalidToken}
	w = serve(userRouter(&stubUserService{err: invalid}), httptest.NewRequest(http.MethodGet, "/user/order?token=abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(userRouter(&stubUserService{err: errors.New("db down")}), httptest.NewRequest(http.MethodGet, "/user/order?token=abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(userRouter(svc), httptest.NewRequest(http.MethodGet, "/user/order", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin(t *testing.T) {
	svc := &stubUserService{token: "signed.jwt.value"}
	form := url.Values{"username": {"alice"}, "password": {"pw"}}
	req := httptest.NewRequest(http.MethodPost, "/token/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := serve(userRouter(svc), req)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "signed.jwt.value", body["access_token"])
	assert.Equal(t, "bearer", body["token_type"])

	w = serve(userRouter(svc), jsonRequest(http.MethodPost, "/token/login", `{"username":"alice","password":"pw"}`))
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(userRouter(&stubUserService{err: notFound(service.ErrUserNotFound)}),
		jsonRequest(http.MethodPost, "/token/login", `{"username":"alice","password":"bad"}`))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
