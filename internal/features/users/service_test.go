package users

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"levelupsolo.app/server/internal/auth"
	"levelupsolo.app/server/internal/common"
	"levelupsolo.app/server/internal/model"
	"levelupsolo.app/server/internal/storage"
)

// fakeRepo — Repository в памяти для тестов сервиса.
type fakeRepo struct {
	mu    sync.Mutex
	seq   int64
	users map[int64]model.User
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: make(map[int64]model.User)}
}

func (f *fakeRepo) Create(_ context.Context, u model.User) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return model.User{}, common.ErrEmailTaken
		}
	}
	f.seq++
	u.ID = f.seq
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeRepo) find(match func(model.User) bool) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if match(u) {
			return u, nil
		}
	}
	return model.User{}, common.ErrNotFound
}

func (f *fakeRepo) GetByID(_ context.Context, id int64) (model.User, error) {
	return f.find(func(u model.User) bool { return u.ID == id })
}

func (f *fakeRepo) GetByEmail(_ context.Context, email string) (model.User, error) {
	return f.find(func(u model.User) bool { return u.Email == email })
}

func (f *fakeRepo) GetByLinkCode(_ context.Context, code string) (model.User, error) {
	return f.find(func(u model.User) bool { return u.TelegramLinkCode != nil && *u.TelegramLinkCode == code })
}

func (f *fakeRepo) GetByChatID(_ context.Context, chatID int64) (model.User, error) {
	return f.find(func(u model.User) bool { return u.TelegramChatID != nil && *u.TelegramChatID == chatID })
}

func (f *fakeRepo) SetLinkCode(_ context.Context, userID int64, code string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return common.ErrNotFound
	}
	u.TelegramLinkCode = &code
	u.TelegramLinkExpiry = &expiresAt
	f.users[userID] = u
	return nil
}

func (f *fakeRepo) LinkTelegram(_ context.Context, userID, chatID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, u := range f.users {
		if u.TelegramChatID != nil && *u.TelegramChatID == chatID && id != userID {
			u.TelegramChatID = nil
			f.users[id] = u
		}
	}
	u, ok := f.users[userID]
	if !ok {
		return common.ErrNotFound
	}
	u.TelegramChatID = &chatID
	u.TelegramLinkCode = nil
	u.TelegramLinkExpiry = nil
	f.users[userID] = u
	return nil
}

func (f *fakeRepo) ListLinked(_ context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.User
	for _, u := range f.users {
		if u.TelegramChatID != nil {
			out = append(out, u)
		}
	}
	return out, nil
}

func newTestService(t *testing.T) (*Service, *fakeRepo, *common.FakeClock) {
	t.Helper()
	clock := common.NewFakeClock(time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC))
	repo := newFakeRepo()
	tokens := auth.NewTokenIssuer("test-secret", time.Hour)
	return NewService(repo, storage.NewMemoryStore(clock), tokens, clock, true), repo, clock
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Register(ctx, Credentials{Email: " Hero@Example.com ", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	require.NotNil(t, sess.User)
	assert.Equal(t, "hero@example.com", sess.User.Email)
	assert.Equal(t, "hero", sess.User.DisplayName)

	_, err = svc.Register(ctx, Credentials{Email: "hero@example.com", Password: "secret1"})
	require.ErrorIs(t, err, common.ErrEmailTaken)

	got, err := svc.Login(ctx, Credentials{Email: "HERO@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, sess.UserID, got.UserID)

	_, err = svc.Login(ctx, Credentials{Email: "hero@example.com", Password: "wrong!!"})
	require.ErrorIs(t, err, common.ErrWrongCredentials)
	_, err = svc.Login(ctx, Credentials{Email: "nobody@example.com", Password: "secret1"})
	require.ErrorIs(t, err, common.ErrWrongCredentials)
}

func TestRegister_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, Credentials{Email: "not-an-email", Password: "secret1"})
	assert.True(t, common.IsInvalidInput(err))

	_, err = svc.Register(ctx, Credentials{Email: "a@b.cn", Password: "123"})
	assert.True(t, common.IsInvalidInput(err))
}

func TestDemo(t *testing.T) {
	svc, _, _ := newTestService(t)

	sess, err := svc.Demo(context.Background())
	require.NoError(t, err)
	assert.True(t, sess.Demo)
	assert.Less(t, sess.UserID, int64(0))

	me, err := svc.Me(context.Background(), auth.Identity{UserID: sess.UserID, Demo: true})
	require.NoError(t, err)
	assert.True(t, me.Demo)
	assert.Nil(t, me.User)

	_, err = svc.IssueLinkCode(context.Background(), auth.Identity{UserID: sess.UserID, Demo: true})
	require.ErrorIs(t, err, common.ErrDemoUnsupported)
}

func TestDemoDisabled(t *testing.T) {
	svc := NewService(nil, storage.NewMemoryStore(nil), auth.NewTokenIssuer("x", time.Hour), common.RealClock{}, false)
	_, err := svc.Demo(context.Background())
	require.ErrorIs(t, err, common.ErrDemoUnsupported)
}

func TestLinkTelegram(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Register(ctx, Credentials{Email: "tg@example.com", Password: "secret1"})
	require.NoError(t, err)
	id := auth.Identity{UserID: sess.UserID}

	code, err := svc.IssueLinkCode(ctx, id)
	require.NoError(t, err)
	assert.Len(t, code.Code, linkCodeLen)

	user, err := svc.LinkTelegram(ctx, strings.ToLower(code.Code), 777)
	require.NoError(t, err)
	assert.Equal(t, sess.UserID, user.ID)

	byChat, err := svc.UserByChat(ctx, 777)
	require.NoError(t, err)
	assert.Equal(t, sess.UserID, byChat.ID)

	// Код одноразовый
	_, err = svc.LinkTelegram(ctx, code.Code, 777)
	require.ErrorIs(t, err, common.ErrLinkCodeInvalid)

	me, err := svc.Me(ctx, id)
	require.NoError(t, err)
	assert.True(t, me.TelegramLinked)

	// Просроченный код
	code, err = svc.IssueLinkCode(ctx, id)
	require.NoError(t, err)
	clock.Advance(LinkCodeTTL + time.Second)
	_, err = svc.LinkTelegram(ctx, code.Code, 888)
	require.ErrorIs(t, err, common.ErrLinkCodeInvalid)
}

func TestHandler_Auth(t *testing.T) {
	svc, _, _ := newTestService(t)
	h := NewHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/auth?action=register",
		strings.NewReader(`{"email":"web@example.com","password":"secret1","name":"Web"}`))
	rec := httptest.NewRecorder()
	h.Auth(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var sess Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.NotEmpty(t, sess.Token)
	assert.NotContains(t, rec.Body.String(), "password")

	req = httptest.NewRequest(http.MethodPost, "/api/auth?action=login",
		strings.NewReader(`{"email":"web@example.com","password":"nope"}`))
	rec = httptest.NewRecorder()
	h.Auth(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/auth?action=reset", nil)
	rec = httptest.NewRecorder()
	h.Auth(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	rec = httptest.NewRecorder()
	h.Me(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
