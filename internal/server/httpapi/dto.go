package httpapi

import (
	"time"

	"github.com/samber/lo"

	"github.com/dmitrijs2005/gophchat/internal/server/models"
	"github.com/dmitrijs2005/gophchat/internal/server/services"
)

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type createChatRequest struct {
	Participants []string `json:"participants"`
	IsPrivate    *bool    `json:"is_private"`
}

type participantRequest struct {
	UserID *int64 `json:"user_id"`
}

type sendMessageRequest struct {
	ChatID *int64  `json:"chat_id"`
	Text   *string `json:"text"`
}

type editMessageRequest struct {
	Text *string `json:"text"`
}

type tokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type userSummaryResponse struct {
	ID              int64      `json:"id"`
	Username        string     `json:"username"`
	Email           string     `json:"email"`
	LastMessageTime *time.Time `json:"last_message_time"`
}

type lastMessageTimeResponse struct {
	UserID          int64      `json:"user_id"`
	LastMessageTime *time.Time `json:"last_message_time"`
}

type chatResponse struct {
	ID           int64          `json:"id"`
	IsPrivate    bool           `json:"is_private"`
	CreatedAt    time.Time      `json:"created_at"`
	Participants []userResponse `json:"participants"`
}

type chatPageResponse struct {
	Chats  []chatResponse `json:"chats"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

type messageResponse struct {
	ID        int64     `json:"id"`
	ChatID    int64     `json:"chat_id"`
	SenderID  int64     `json:"sender_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	IsEdited  bool      `json:"is_edited"`
}

func toUser(u models.User) userResponse {
	return userResponse{ID: u.ID, Username: u.UserName, Email: u.Email}
}

func toUserSummary(u models.UserSummary, _ int) userSummaryResponse {
	return userSummaryResponse{ID: u.ID, Username: u.UserName, Email: u.Email, LastMessageTime: u.LastMessageTime}
}

func toChat(c models.Chat) chatResponse {
	return chatResponse{
		ID:           c.ID,
		IsPrivate:    c.IsPrivate,
		CreatedAt:    c.CreatedAt,
		Participants: lo.Map(c.Participants, func(u models.User, _ int) userResponse { return toUser(u) }),
	}
}

func toChatPage(p *services.ChatPage) chatPageResponse {
	return chatPageResponse{
		Chats:  lo.Map(p.Chats, func(c models.Chat, _ int) chatResponse { return toChat(c) }),
		Total:  p.Total,
		Limit:  p.Limit,
		Offset: p.Offset,
	}
}

func toMessage(m models.Message) messageResponse {
	return messageResponse{
		ID:        m.ID,
		ChatID:    m.ChatID,
		SenderID:  m.SenderID,
		Text:      m.Text,
		CreatedAt: m.CreatedAt,
		IsEdited:  m.IsEdited,
	}
}

func toTokenPair(p *services.TokenPair) tokenPairResponse {
	return tokenPairResponse{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken}
}
