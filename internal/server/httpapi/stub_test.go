package httpapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/logging"
	"github.com/dmitrijs2005/gophchat/internal/server/auth"
	"github.com/dmitrijs2005/gophchat/internal/server/models"
	"github.com/dmitrijs2005/gophchat/internal/server/services"
)

const goodToken = "good-token"

var alice = auth.Identity{UserID: 1, Username: "alice"}

var fixedTime = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

// stub implements every service the router needs. err, when set, is
// returned by every call; the last arguments are recorded.
type stub struct {
	err error

	gotRegister  services.RegisterRequest
	gotRequester auth.Identity
	gotCreate    services.CreateChatRequest
	gotChatID    int64
	gotUserID    *int64
	gotMsgChatID *int64
	gotText      *string
	gotLimit     int
	gotOffset    int
	messages     []models.Message
}

func (s *stub) Register(_ context.Context, req services.RegisterRequest) (*models.User, error) {
	s.gotRegister = req
	if s.err != nil {
		return nil, s.err
	}
	return &models.User{ID: 7, UserName: req.Username, Email: req.Email}, nil
}

func (s *stub) Login(_ context.Context, _, _ string) (*services.TokenPair, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &services.TokenPair{AccessToken: "a", RefreshToken: "r"}, nil
}

func (s *stub) RefreshToken(_ context.Context, token string) (*services.TokenPair, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &services.TokenPair{AccessToken: "a2", RefreshToken: token + "2"}, nil
}

func (s *stub) Authenticate(token string) (auth.Identity, error) {
	if token != goodToken {
		return auth.Identity{}, common.ErrInvalidToken
	}
	return alice, nil
}

func (s *stub) ListUsers(context.Context) ([]models.UserSummary, error) {
	if s.err != nil {
		return nil, s.err
	}
	t := fixedTime
	return []models.UserSummary{
		{ID: 1, UserName: "alice", LastMessageTime: &t},
		{ID: 2, UserName: "bob"},
	}, nil
}

func (s *stub) LastMessageTime(_ context.Context, userID int64) (*time.Time, error) {
	s.gotUserID = &userID
	if s.err != nil {
		return nil, s.err
	}
	if userID == 1 {
		t := fixedTime
		return &t, nil
	}
	return nil, nil
}

func (s *stub) CreateChat(_ context.Context, requester auth.Identity, req services.CreateChatRequest) (*models.Chat, error) {
	s.gotRequester, s.gotCreate = requester, req
	if s.err != nil {
		return nil, s.err
	}
	return &models.Chat{
		ID:           10,
		IsPrivate:    *req.IsPrivate,
		CreatedAt:    fixedTime,
		Participants: []models.User{{ID: 1, UserName: "alice"}, {ID: 2, UserName: "bob"}},
	}, nil
}

func (s *stub) AddParticipant(_ context.Context, requester auth.Identity, chatID int64, userID *int64) error {
	s.gotRequester, s.gotChatID, s.gotUserID = requester, chatID, userID
	return s.err
}

func (s *stub) RemoveParticipant(_ context.Context, requester auth.Identity, chatID int64, userID *int64) error {
	s.gotRequester, s.gotChatID, s.gotUserID = requester, chatID, userID
	return s.err
}

func (s *stub) GetChat(_ context.Context, requester auth.Identity, chatID int64) (*models.Chat, error) {
	s.gotRequester, s.gotChatID = requester, chatID
	if s.err != nil {
		return nil, s.err
	}
	return &models.Chat{ID: chatID, CreatedAt: fixedTime}, nil
}

func (s *stub) ListChats(_ context.Context, requester auth.Identity, limit, offset int) (*services.ChatPage, error) {
	s.gotRequester, s.gotLimit, s.gotOffset = requester, limit, offset
	if s.err != nil {
		return nil, s.err
	}
	return &services.ChatPage{Chats: []models.Chat{{ID: 10, CreatedAt: fixedTime}}, Total: 1, Limit: 20, Offset: offset}, nil
}

func (s *stub) SendMessage(_ context.Context, requester auth.Identity, chatID *int64, text *string) (*models.Message, error) {
	s.gotRequester, s.gotMsgChatID, s.gotText = requester, chatID, text
	if s.err != nil {
		return nil, s.err
	}
	return &models.Message{ID: 100, ChatID: *chatID, SenderID: requester.UserID, Text: *text, CreatedAt: fixedTime}, nil
}

func (s *stub) EditMessage(_ context.Context, requester auth.Identity, messageID int64, text *string) (*models.Message, error) {
	s.gotRequester, s.gotChatID, s.gotText = requester, messageID, text
	if s.err != nil {
		return nil, s.err
	}
	return &models.Message{ID: messageID, ChatID: 10, SenderID: requester.UserID, Text: *text, CreatedAt: fixedTime, IsEdited: true}, nil
}

func (s *stub) ListMessages(_ context.Context, requester auth.Identity, chatID int64) ([]models.Message, error) {
	s.gotRequester, s.gotChatID = requester, chatID
	if s.err != nil {
		return nil, s.err
	}
	return s.messages, nil
}

func (s *stub) GetMessage(_ context.Context, requester auth.Identity, messageID int64) (*models.Message, error) {
	s.gotRequester, s.gotChatID = requester, messageID
	if s.err != nil {
		return nil, s.err
	}
	return &models.Message{ID: messageID, ChatID: 10, SenderID: 2, Text: "hi", CreatedAt: fixedTime}, nil
}

func newTestRouter(s *stub) http.Handler {
	return NewRouter(NewHandler(s, s, s, logging.Nop()))
}

// do sends a request through h. An empty body sends no body at all.
func do(t *testing.T, h http.Handler, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if authed {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+goodToken)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
