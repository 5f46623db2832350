package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-identity-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func multipartFile(t *testing.T, field string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, "avatar.bin")
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestProfileGet(t *testing.T) {
	svc := &mockProfileSvc{}
	a := &domain.Account{AccountID: "acc1", Email: "alice@example.com", CredentialHash: "secret-hash",
		Profile: domain.Profile{DisplayName: "Alice", AvatarKey: "avatars/acc1/k"}}
	svc.On("Get", mock.Anything, "acc1").Return(a, nil)
	svc.On("AvatarURL", mock.Anything, a).Return("https://signed.example/k")
	h := NewProfileHandler(svc)

	rr := httptest.NewRecorder()
	h.Get(rr, as(httptest.NewRequest(http.MethodGet, "/v1/profile", nil), "acc1", domain.RoleUser))

	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "acc1", body["id"])
	assert.Equal(t, "https://signed.example/k", body["avatar_url"])
	assert.NotContains(t, rr.Body.String(), "secret-hash")
	_, hasSecrets := body["secrets"]
	assert.False(t, hasSecrets)
}

func TestProfileGet_Unauthenticated(t *testing.T) {
	h := NewProfileHandler(&mockProfileSvc{})
	rr := httptest.NewRecorder()
	h.Get(rr, httptest.NewRequest(http.MethodGet, "/v1/profile", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestProfileUpdate_PassesPresenceThrough(t *testing.T) {
	svc := &mockProfileSvc{}
	a := &domain.Account{AccountID: "acc1"}
	svc.On("Update", mock.Anything, "acc1", mock.MatchedBy(func(req domain.UpdateProfileRequest) bool {
		return req.Phone.Set && req.Phone.Value == "555" && !req.Name.Set && req.Addresses.Set && req.Addresses.Value == nil
	})).Return(a, nil)
	svc.On("AvatarURL", mock.Anything, a).Return("")
	h := NewProfileHandler(svc)

	r := httptest.NewRequest(http.MethodPut, "/v1/profile", bytes.NewBufferString(`{"phone":"555","addresses":null}`))
	rr := httptest.NewRecorder()
	h.Update(rr, as(r, "acc1", domain.RoleUser))
	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestProfileUpdate_ValidationError(t *testing.T) {
	svc := &mockProfileSvc{}
	svc.On("Update", mock.Anything, "acc1", mock.Anything).Return(nil, domain.ErrValidation)
	h := NewProfileHandler(svc)

	r := httptest.NewRequest(http.MethodPut, "/v1/profile", bytes.NewBufferString(`{"phone":"1234567890123456789"}`))
	rr := httptest.NewRecorder()
	h.Update(rr, as(r, "acc1", domain.RoleUser))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestUploadAvatar_SniffsContentType(t *testing.T) {
	svc := &mockProfileSvc{}
	a := &domain.Account{AccountID: "acc1", Profile: domain.Profile{AvatarKey: "avatars/acc1/k"}}
	content := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0x01}, 1024)...)
	var uploaded []byte
	svc.On("UploadAvatar", mock.Anything, "acc1", mock.Anything, "image/png").
		Run(func(args mock.Arguments) {
			uploaded, _ = io.ReadAll(args.Get(2).(io.Reader))
		}).
		Return(a, nil)
	svc.On("AvatarURL", mock.Anything, a).Return("https://signed.example/k")
	h := NewProfileHandler(svc)

	body, ct := multipartFile(t, "file", content)
	r := httptest.NewRequest(http.MethodPost, "/v1/profile/avatar", body)
	r.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	h.UploadAvatar(rr, as(r, "acc1", domain.RoleUser))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, content, uploaded)
	svc.AssertExpectations(t)
}

func TestUploadAvatar_MissingField(t *testing.T) {
	h := NewProfileHandler(&mockProfileSvc{})
	body, ct := multipartFile(t, "picture", pngHeader)
	r := httptest.NewRequest(http.MethodPost, "/v1/profile/avatar", body)
	r.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	h.UploadAvatar(rr, as(r, "acc1", domain.RoleUser))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUploadAvatar_NotMultipart(t *testing.T) {
	h := NewProfileHandler(&mockProfileSvc{})
	r := httptest.NewRequest(http.MethodPost, "/v1/profile/avatar", bytes.NewBufferString(`{}`))
	r.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.UploadAvatar(rr, as(r, "acc1", domain.RoleUser))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
