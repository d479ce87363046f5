package handlers

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"smartcrm/internal/authz"
	"smartcrm/internal/models"
	"smartcrm/internal/services"
)

type MockUserService struct {
	mock.Mock
	services.UserService
}

func (m *MockUserService) Create(ctx context.Context, req models.UserCreate, createdBy int) (*models.User, error) {
	args := m.Called(ctx, req, createdBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) SetActive(ctx context.Context, id int, active bool) error {
	return m.Called(ctx, id, active).Error(0)
}

func (m *MockUserService) Delete(ctx context.Context, id, callerID int) error {
	return m.Called(ctx, id, callerID).Error(0)
}

func (m *MockUserService) UploadPhoto(ctx context.Context, id int, filename string, data []byte) (string, error) {
	args := m.Called(ctx, id, filename, data)
	return args.String(0), args.Error(1)
}

func userRouter(sub *authz.Subject, svc *MockUserService, audit *recordingAuditor) http.Handler {
	h := NewUserHandler(svc, audit)
	r := newRouter(sub)
	r.POST("/api/users", h.Create)
	r.PUT("/api/users/:id/status", h.SetStatus)
	r.DELETE("/api/users/:id", h.Delete)
	r.POST("/api/users/:id/photo", h.UploadPhoto)
	return r
}

func photoRequest(t *testing.T, path string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("photo", "me.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUserHandler_UploadPhotoForOtherUserForbidden(t *testing.T) {
	svc := new(MockUserService)
	audit := &recordingAuditor{}

	w := httptest.NewRecorder()
	userRouter(sales, svc, audit).ServeHTTP(w, photoRequest(t, "/api/users/1/photo"))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"Permission denied"}`, w.Body.String())
	assert.False(t, audit.last(t).Success)
	svc.AssertNotCalled(t, "UploadPhoto", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUserHandler_UploadPhotoAllowed(t *testing.T) {
	manager := &authz.Subject{UserID: 3, Role: authz.RoleManager, Legacy: map[string]bool{authz.CanManageUsers: true}}
	cases := []struct {
		name string
		sub  *authz.Subject
		path string
		id   int
	}{
		{"own photo", sales, "/api/users/7/photo", 7},
		{"manager", manager, "/api/users/1/photo", 1},
		{"admin", &authz.Subject{UserID: 1, Role: authz.RoleAdmin}, "/api/users/9/photo", 9},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(MockUserService)
			svc.On("UploadPhoto", anyCtx, tc.id, "me.png", []byte("\x89PNG")).Return("photos/x.png", nil)

			w := httptest.NewRecorder()
			userRouter(tc.sub, svc, &recordingAuditor{}).ServeHTTP(w, photoRequest(t, tc.path))

			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Equal(t, "photos/x.png", decode(t, w)["photo"])
			svc.AssertExpectations(t)
		})
	}
}

func TestUserHandler_DeleteSelf(t *testing.T) {
	svc := new(MockUserService)
	audit := &recordingAuditor{}
	svc.On("Delete", anyCtx, 7, 7).Return(&services.Error{Kind: services.ErrValidation, Msg: "You cannot delete your own account"})

	w := doJSON(userRouter(sales, svc, audit), http.MethodDelete, "/api/users/7", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"You cannot delete your own account"}`, w.Body.String())
	e := audit.last(t)
	assert.Equal(t, "delete", e.Action)
	assert.Equal(t, http.StatusBadRequest, e.StatusCode)
}

func TestUserHandler_CreateDuplicateUsername(t *testing.T) {
	svc := new(MockUserService)
	audit := &recordingAuditor{}
	req := models.UserCreate{Username: "anna", Password: "secret1", FullName: "Anna K", Email: "anna@example.com"}
	svc.On("Create", anyCtx, req, 1).Return(nil, &services.Error{Kind: services.ErrConflict, Msg: "Username already exists"})

	admin := &authz.Subject{UserID: 1, Role: authz.RoleAdmin}
	w := doJSON(userRouter(admin, svc, audit), http.MethodPost, "/api/users", req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"Username already exists"}`, w.Body.String())
	assert.Equal(t, "user", audit.last(t).ResourceType)
	svc.AssertExpectations(t)
}

func TestUserHandler_SetStatus(t *testing.T) {
	svc := new(MockUserService)
	audit := &recordingAuditor{}
	svc.On("SetActive", anyCtx, 4, false).Return(nil)

	w := doJSON(userRouter(sales, svc, audit), http.MethodPut, "/api/users/4/status", map[string]any{"is_active": false})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "update_status", audit.last(t).Action)
	svc.AssertExpectations(t)

	w = doJSON(userRouter(sales, svc, audit), http.MethodPut, "/api/users/4/status", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
