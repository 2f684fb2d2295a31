package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/dbx"
	"github.com/dmitrijs2005/gophchat/internal/logging"
	"github.com/dmitrijs2005/gophchat/internal/server/auth"
	"github.com/dmitrijs2005/gophchat/internal/server/models"
	"github.com/dmitrijs2005/gophchat/internal/server/repositories/chats"
	"github.com/dmitrijs2005/gophchat/internal/server/repositories/messages"
	"github.com/dmitrijs2005/gophchat/internal/server/repositories/repomanager"
)

// MessageService applies the message lifecycle rules: sending, editing
// within the edit window, and reading a chat's history.
type MessageService struct {
	db          dbx.Runner
	repomanager repomanager.RepositoryManager
	policy      Policy
	editWindow  time.Duration
	now         func() time.Time
	log         logging.Logger
}

func NewMessageService(db dbx.Runner, m repomanager.RepositoryManager, policy Policy, editWindow time.Duration, log logging.Logger) *MessageService {
	return &MessageService{
		db:          db,
		repomanager: m,
		policy:      policy,
		editWindow:  editWindow,
		now:         time.Now,
		log:         log.With("module", "messages"),
	}
}

type sendState struct {
	requester auth.Identity
	chatID    *int64
	text      *string
	chats     chats.Repository
}

func (s *MessageService) sendRules() []rule[sendState] {
	return []rule[sendState]{
		{"fields_present", func(_ context.Context, st *sendState) error {
			if st.chatID == nil || st.text == nil || *st.text == "" {
				return common.ErrMissingFields
			}
			return nil
		}},
		{"chat_exists", func(ctx context.Context, st *sendState) error {
			_, err := st.chats.Get(ctx, *st.chatID)
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrUnknownChat
			}
			if err != nil {
				return storeFailure("get chat", err)
			}
			return nil
		}},
		{"sender_in_chat", func(ctx context.Context, st *sendState) error {
			ok, err := st.chats.IsParticipant(ctx, *st.chatID, st.requester.UserID)
			if err != nil {
				return storeFailure("check participant", err)
			}
			if ok {
				return nil
			}
			if s.policy.EnforceSendMembership {
				return common.ErrRequesterNotInChat
			}
			s.log.Warn(ctx, "message from non-participant accepted",
				"chat_id", *st.chatID, "user_id", st.requester.UserID)
			return nil
		}},
	}
}

// SendMessage stores a new message from the requester. A nil chatID or text
// means the field was absent from the request.
func (s *MessageService) SendMessage(ctx context.Context, requester auth.Identity, chatID *int64, text *string) (*models.Message, error) {
	rules := s.sendRules()
	var msg *models.Message

	err := s.db.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		st := &sendState{requester: requester, chatID: chatID, text: text, chats: s.repomanager.Chats(tx)}
		if err := runRules(ctx, s.log, st, rules); err != nil {
			return err
		}

		created, err := s.repomanager.Messages(tx).Create(ctx, &models.Message{
			ChatID:    *chatID,
			SenderID:  requester.UserID,
			Text:      *text,
			CreatedAt: s.now().UTC().Truncate(time.Microsecond), // PostgreSQL timestamp precision
			IsEdited:  false,
		})
		if err != nil {
			return storeFailure("create message", err)
		}
		msg = created
		return nil
	})
	if err != nil {
		logStoreFailure(ctx, s.log, "send message failed", err)
		return nil, err
	}

	s.log.Debug(ctx, "message sent", "message_id", msg.ID, "chat_id", msg.ChatID, "user_id", requester.UserID)
	return msg, nil
}

type editState struct {
	requester auth.Identity
	messageID int64
	text      *string
	msg       *models.Message
	messages  messages.Repository
}

func (s *MessageService) editRules() []rule[editState] {
	return []rule[editState]{
		{"message_exists", func(ctx context.Context, st *editState) error {
			m, err := st.messages.GetForUpdate(ctx, st.messageID)
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrUnknownMessage
			}
			if err != nil {
				return storeFailure("get message", err)
			}
			st.msg = m
			return nil
		}},
		{"text_present", func(_ context.Context, st *editState) error {
			if st.text == nil || *st.text == "" {
				return common.ErrMissingText
			}
			return nil
		}},
		{"requester_is_sender", func(_ context.Context, st *editState) error {
			if st.msg.SenderID != st.requester.UserID {
				return common.ErrNotSender
			}
			return nil
		}},
		{"within_edit_window", func(_ context.Context, st *editState) error {
			if s.now().UTC().Sub(st.msg.CreatedAt.UTC()) > s.editWindow {
				return common.ErrEditWindowExpired.WithMessage(
					"you can't edit messages older than " + s.editWindow.String())
			}
			return nil
		}},
	}
}

// EditMessage replaces the text of the requester's own message while it is
// inside the edit window. A nil text means the field was absent.
func (s *MessageService) EditMessage(ctx context.Context, requester auth.Identity, messageID int64, text *string) (*models.Message, error) {
	rules := s.editRules()
	var msg *models.Message

	err := s.db.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		st := &editState{requester: requester, messageID: messageID, text: text, messages: s.repomanager.Messages(tx)}
		if err := runRules(ctx, s.log, st, rules); err != nil {
			return err
		}

		updated := *st.msg
		updated.Text = *text
		updated.IsEdited = true
		if err := st.messages.Update(ctx, &updated); err != nil {
			return storeFailure("update message", err)
		}
		msg = &updated
		return nil
	})
	if err != nil {
		logStoreFailure(ctx, s.log, "edit message failed", err)
		return nil, err
	}

	s.log.Debug(ctx, "message edited", "message_id", msg.ID, "user_id", requester.UserID)
	return msg, nil
}

// ListMessages returns the chat history ordered by creation time.
// Only participants may read it.
func (s *MessageService) ListMessages(ctx context.Context, requester auth.Identity, chatID int64) ([]models.Message, error) {
	conn := s.db.Conn()

	if err := s.requireParticipation(ctx, s.repomanager.Chats(conn), requester, chatID); err != nil {
		return nil, err
	}

	list, err := s.repomanager.Messages(conn).ListByChat(ctx, chatID)
	if err != nil {
		err = storeFailure("list messages", err)
		logStoreFailure(ctx, s.log, "list messages failed", err)
		return nil, err
	}
	return list, nil
}

// GetMessage returns a single message of a chat the requester participates in.
func (s *MessageService) GetMessage(ctx context.Context, requester auth.Identity, messageID int64) (*models.Message, error) {
	conn := s.db.Conn()

	msg, err := s.repomanager.Messages(conn).Get(ctx, messageID)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrUnknownMessage
	}
	if err != nil {
		err = storeFailure("get message", err)
		logStoreFailure(ctx, s.log, "get message failed", err)
		return nil, err
	}

	if err := s.requireParticipation(ctx, s.repomanager.Chats(conn), requester, msg.ChatID); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *MessageService) requireParticipation(ctx context.Context, repo chats.Repository, requester auth.Identity, chatID int64) error {
	_, err := repo.Get(ctx, chatID)
	if errors.Is(err, common.ErrorNotFound) {
		return common.ErrUnknownChat
	}
	if err != nil {
		err = storeFailure("get chat", err)
		logStoreFailure(ctx, s.log, "participation check failed", err)
		return err
	}

	ok, err := repo.IsParticipant(ctx, chatID, requester.UserID)
	if err != nil {
		err = storeFailure("check participant", err)
		logStoreFailure(ctx, s.log, "participation check failed", err)
		return err
	}
	if !ok {
		return common.ErrChatParticipationRequired
	}
	return nil
}
