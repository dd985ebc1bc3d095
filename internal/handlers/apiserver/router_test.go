package apiserver

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"socialnet/internal/auth"
	"socialnet/internal/config"
	"socialnet/internal/kafka"
	"socialnet/internal/models"
	"socialnet/internal/relation"
	"socialnet/internal/services"
	"socialnet/internal/storage"
)

type testServer struct {
	router    http.Handler
	producer  *kafka.NoopProducer
	relations *storage.MemoryUserRelationRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zap.NewNop()
	cfg := config.Config{
		Auth:    config.AuthConfig{JWTSecretKey: "router-secret", JWTExpiry: time.Hour},
		Kafka:   config.KafkaConfig{RelationEventsTopic: "relation-events"},
		Message: config.MessageConfig{EditWindow: 3 * time.Minute, MaxHistory: 50},
		Storage: config.StorageConfig{
			Type:                  "local",
			LocalPath:             t.TempDir(),
			BaseURL:               "/uploads",
			MaxFileSizeMB:         1,
			DefaultProfilePicture: models.DefaultProfilePicture,
		},
	}
	pictures, err := storage.NewLocalStorageService(cfg.Storage)
	require.NoError(t, err)

	userRepo := storage.NewMemoryUserRepository()
	blacklist := auth.NewMemoryTokenBlacklist()
	producer := kafka.NewNoopProducer()
	relations := storage.NewMemoryUserRelationRepository()
	userSvc := services.NewUserService(userRepo, pictures, log)
	relationSvc := services.NewRelationService(relations,
		storage.NewMemoryRelationActivityRepository(), userSvc, producer, cfg.Kafka, log)

	router := NewRouter(RouterDeps{
		Config:    cfg,
		Auth:      services.NewAuthService(userRepo, blacklist, cfg, log),
		Users:     userSvc,
		Relations: relationSvc,
		Messages:  services.NewMessageService(storage.NewMemoryMessageRepository(), userSvc, relationSvc, cfg.Message, log),
		Blacklist: blacklist,
		Log:       log,
	})
	return &testServer{router: router, producer: producer, relations: relations}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// signUp registers and logs in a user, returning its id and bearer token.
func (s *testServer) signUp(t *testing.T, name, email string) (uint, string) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/auth/register", "", RegisterRequest{
		Name: name, LastName: "Tester", Email: email, Password: "secret1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created OperationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.True(t, created.Success)

	rec = s.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: email, Password: "secret1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var login LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	require.NotEmpty(t, login.Token)
	return created.ID, login.Token
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func findUser(list []services.UserWithStatus, id uint) *services.UserWithStatus {
	for i := range list {
		if list[i].UserID == id {
			return &list[i]
		}
	}
	return nil
}

func TestRelationFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	alice, aliceToken := s.signUp(t, "Alice", "alice@example.com")
	bob, bobToken := s.signUp(t, "Bob", "bob@example.com")

	rec := s.do(t, http.MethodPost, "/api/v1/relations", aliceToken, CreateRelationRequest{ToUserID: bob, Message: "hi"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	relationID := decodeBody[OperationResult](t, rec).ID
	require.NotZero(t, relationID)

	rec = s.do(t, http.MethodGet, "/api/v1/relations/users", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	row := findUser(decodeBody[[]services.UserWithStatus](t, rec), bob)
	require.NotNil(t, row)
	assert.Equal(t, relation.RequestPending, row.RequestStatusNumber)
	require.NotNil(t, row.RequestMessage)
	assert.Equal(t, "hi", *row.RequestMessage)
	assert.Nil(t, row.MutualFriendNumber)

	rec = s.do(t, http.MethodGet, "/api/v1/relations/users", bobToken, nil)
	row = findUser(decodeBody[[]services.UserWithStatus](t, rec), alice)
	require.NotNil(t, row)
	assert.Equal(t, relation.RevertRequestPending, row.RequestStatusNumber)

	rec = s.do(t, http.MethodPost, "/api/v1/relations", bobToken, CreateRelationRequest{ToUserID: alice})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/relations/accept", aliceToken, AcceptRelationRequest{FromUserID: bob})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/relations/accept", bobToken, AcceptRelationRequest{FromUserID: alice})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, relationID, decodeBody[OperationResult](t, rec).ID)

	rec = s.do(t, http.MethodGet, "/api/v1/relations/users", aliceToken, nil)
	row = findUser(decodeBody[[]services.UserWithStatus](t, rec), bob)
	require.NotNil(t, row)
	assert.Equal(t, relation.RequestAccepted, row.RequestStatusNumber)
	require.NotNil(t, row.MutualFriendNumber)
	assert.Equal(t, 0, *row.MutualFriendNumber)
	assert.Nil(t, row.RequestMessage)

	rec = s.do(t, http.MethodGet, "/api/v1/relations/friends", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, findUser(decodeBody[[]services.UserWithStatus](t, rec), bob))

	rec = s.do(t, http.MethodGet, "/api/v1/relations/friends?userId="+strconv.Itoa(int(bob)), aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, findUser(decodeBody[[]services.UserWithStatus](t, rec), alice))

	rec = s.do(t, http.MethodGet, "/api/v1/relations/mutual/"+strconv.Itoa(int(bob)), aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decodeBody[MutualCountResponse](t, rec).Count)

	assert.Len(t, s.producer.Messages(), 2)
}

func TestRelationErrorsOverHTTP(t *testing.T) {
	s := newTestServer(t)
	alice, aliceToken := s.signUp(t, "Alice", "alice@example.com")
	bob, _ := s.signUp(t, "Bob", "bob@example.com")
	_, carolToken := s.signUp(t, "Carol", "carol@example.com")

	rec := s.do(t, http.MethodPost, "/api/v1/relations", aliceToken, CreateRelationRequest{ToUserID: alice})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	failed := decodeBody[OperationResult](t, rec)
	assert.False(t, failed.Success)
	assert.Equal(t, "a user cannot send a request to themselves", failed.Message)

	rec = s.do(t, http.MethodPost, "/api/v1/relations", aliceToken, CreateRelationRequest{ToUserID: 999})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/relations", aliceToken, CreateRelationRequest{ToUserID: bob, Message: strings.Repeat("x", 101)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/relations", aliceToken, CreateRelationRequest{ToUserID: bob})
	require.Equal(t, http.StatusCreated, rec.Code)
	relationPath := "/api/v1/relations/" + strconv.Itoa(int(decodeBody[OperationResult](t, rec).ID))

	rec = s.do(t, http.MethodPost, relationPath+"/decline", carolToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, relationPath+"/accept", aliceToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/relations/9999/decline", aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	failed = decodeBody[OperationResult](t, rec)
	assert.False(t, failed.Success)
	assert.NotEmpty(t, failed.Message)

	rec = s.do(t, http.MethodPost, relationPath+"/decline", aliceToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/relations/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, decodeBody[OperationResult](t, rec).Success)
}

func TestInconsistentPairIsServerError(t *testing.T) {
	s := newTestServer(t)
	alice, aliceToken := s.signUp(t, "Alice", "alice@example.com")
	bob, _ := s.signUp(t, "Bob", "bob@example.com")
	s.relations.Insert(models.UserRelation{UserAID: alice, UserBID: bob, Approved: true})
	s.relations.Insert(models.UserRelation{UserAID: bob, UserBID: alice, Approved: true})

	rec := s.do(t, http.MethodPost, "/api/v1/messages", aliceToken, SendMessageRequest{ToUserID: bob, Content: "hello"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	failed := decodeBody[OperationResult](t, rec)
	assert.False(t, failed.Success)
	assert.Equal(t, "internal server error", failed.Message)
}

func TestMessagesOverHTTP(t *testing.T) {
	s := newTestServer(t)
	alice, aliceToken := s.signUp(t, "Alice", "alice@example.com")
	bob, bobToken := s.signUp(t, "Bob", "bob@example.com")

	rec := s.do(t, http.MethodPost, "/api/v1/messages", aliceToken, SendMessageRequest{ToUserID: bob, Content: "hello"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/relations", aliceToken, CreateRelationRequest{ToUserID: bob})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/v1/relations/accept", bobToken, AcceptRelationRequest{FromUserID: alice})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/messages", aliceToken, SendMessageRequest{ToUserID: bob, Content: "hello"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	messagePath := "/api/v1/messages/" + strconv.Itoa(int(decodeBody[OperationResult](t, rec).ID))

	rec = s.do(t, http.MethodPut, messagePath, bobToken, EditMessageRequest{Content: "hijack"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPut, messagePath, aliceToken, EditMessageRequest{Content: "hello!"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, messagePath, bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	msg := decodeBody[models.Message](t, rec)
	assert.Equal(t, "hello!", msg.Content)
	assert.True(t, msg.Edited)

	rec = s.do(t, http.MethodGet, "/api/v1/messages/with/"+strconv.Itoa(int(alice))+"?limit=10", bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]models.Message](t, rec), 1)

	rec = s.do(t, http.MethodGet, "/api/v1/messages/with/"+strconv.Itoa(int(alice))+"?limit=-1", bobToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/messages/latest/"+strconv.Itoa(int(bob)), aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, msg.ID, decodeBody[models.Message](t, rec).ID)
}

func TestUserEndpoints(t *testing.T) {
	s := newTestServer(t)
	_, aliceToken := s.signUp(t, "Alice", "alice@example.com")
	bob, _ := s.signUp(t, "Bob", "bob@example.com")

	rec := s.do(t, http.MethodGet, "/api/v1/users/me", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeBody[services.UserProfile](t, rec)
	assert.Equal(t, "alice@example.com", me.Email)
	assert.Equal(t, models.DefaultProfilePicture, me.ProfilePicture)

	rec = s.do(t, http.MethodPut, "/api/v1/users/me", aliceToken, UpdateProfileRequest{Name: "Alicia", LastName: "T", AboutMe: "hi"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Alicia", decodeBody[services.UserProfile](t, rec).Name)

	rec = s.do(t, http.MethodPut, "/api/v1/users/me", aliceToken, UpdateProfileRequest{LastName: "T"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/users/"+strconv.Itoa(int(bob)), aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bob", decodeBody[services.UserProfile](t, rec).Name)

	rec = s.do(t, http.MethodGet, "/api/v1/users/999", aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/users/search?email=bob", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	found := decodeBody[[]models.UserDisplayInfo](t, rec)
	require.Len(t, found, 1)
	assert.Equal(t, bob, found[0].ID)

	rec = s.do(t, http.MethodGet, "/api/v1/users/search", aliceToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/v1/users/me/password", aliceToken, ChangePasswordRequest{
		CurrentPassword: "secret1", NewPassword: "secret2", ConfirmPassword: "secret3",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/v1/users/me/password", aliceToken, ChangePasswordRequest{
		CurrentPassword: "secret1", NewPassword: "secret2", ConfirmPassword: "secret2",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "alice@example.com", Password: "secret2"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	s := newTestServer(t)
	_, token := s.signUp(t, "Alice", "alice@example.com")

	rec := s.do(t, http.MethodPost, "/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/users/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t)
	s.signUp(t, "Alice", "alice@example.com")

	tests := []struct {
		name string
		req  RegisterRequest
		want int
	}{
		{"bad email", RegisterRequest{Name: "A", LastName: "B", Email: "nope", Password: "secret1"}, http.StatusBadRequest},
		{"short password", RegisterRequest{Name: "A", LastName: "B", Email: "a@b.io", Password: "123"}, http.StatusBadRequest},
		{"missing name", RegisterRequest{LastName: "B", Email: "a@b.io", Password: "secret1"}, http.StatusBadRequest},
		{"duplicate email", RegisterRequest{Name: "A", LastName: "B", Email: "ALICE@example.com", Password: "secret1"}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/auth/register", "", tt.req)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	rec := s.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "alice@example.com", Password: "wrong-one"})
	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestProfilePictureUpload(t *testing.T) {
	s := newTestServer(t)
	_, token := s.signUp(t, "Alice", "alice@example.com")

	upload := func(contentType string, data []byte) *httptest.ResponseRecorder {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="file"; filename="me.png"`)
		header.Set("Content-Type", contentType)
		part, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/users/me/picture", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		return rec
	}

	rec := upload("text/plain", []byte("not an image"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = upload("image/png", []byte("\x89PNG fake"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	profile := decodeBody[services.UserProfile](t, rec)
	require.True(t, strings.HasPrefix(profile.ProfilePicture, "/uploads/"), profile.ProfilePicture)

	req := httptest.NewRequest(http.MethodGet, profile.ProfilePicture, nil)
	served := httptest.NewRecorder()
	s.router.ServeHTTP(served, req)
	assert.Equal(t, http.StatusOK, served.Code)
	assert.Equal(t, "\x89PNG fake", served.Body.String())
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
