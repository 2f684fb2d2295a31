package services

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/lo"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/dbx"
	"github.com/dmitrijs2005/gophchat/internal/logging"
	"github.com/dmitrijs2005/gophchat/internal/server/auth"
	"github.com/dmitrijs2005/gophchat/internal/server/models"
	"github.com/dmitrijs2005/gophchat/internal/server/repositories/chats"
	"github.com/dmitrijs2005/gophchat/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophchat/internal/server/repositories/users"
)

// CreateChatRequest is the input of CreateChat. A nil Participants or
// IsPrivate means the field was absent from the request.
type CreateChatRequest struct {
	Participants []string
	IsPrivate    *bool
}

// ChatPage is one page of the requester's chats.
type ChatPage struct {
	Chats  []models.Chat
	Total  int
	Limit  int
	Offset int
}

// ChatService applies the membership rules: chat creation and
// participant add/remove.
type ChatService struct {
	db              dbx.Runner
	repomanager     repomanager.RepositoryManager
	policy          Policy
	defaultPageSize int
	maxPageSize     int
	log             logging.Logger
}

func NewChatService(db dbx.Runner, m repomanager.RepositoryManager, policy Policy, defaultPageSize, maxPageSize int, log logging.Logger) *ChatService {
	return &ChatService{
		db:              db,
		repomanager:     m,
		policy:          policy,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
		log:             log.With("module", "chats"),
	}
}

type createChatState struct {
	requester auth.Identity
	req       CreateChatRequest
	names     []string
	resolved  map[string]models.User
	users     users.Repository
}

var createChatRules = []rule[createChatState]{
	{"participants_present", func(_ context.Context, st *createChatState) error {
		if st.req.Participants == nil {
			return common.ErrMissingParticipants
		}
		return nil
	}},
	{"is_private_present", func(_ context.Context, st *createChatState) error {
		if st.req.IsPrivate == nil {
			return common.ErrMissingIsPrivateFlag
		}
		return nil
	}},
	{"participants_not_empty", func(_ context.Context, st *createChatState) error {
		if len(st.req.Participants) == 0 {
			return common.ErrMissingParticipants
		}
		return nil
	}},
	{"requester_not_listed", func(_ context.Context, st *createChatState) error {
		if lo.Contains(st.req.Participants, st.requester.Username) {
			return common.ErrSelfParticipation
		}
		return nil
	}},
	{"private_chat_size", func(_ context.Context, st *createChatState) error {
		st.names = lo.Uniq(st.req.Participants)
		if *st.req.IsPrivate && len(withRequester(st.names, st.requester.Username)) > 2 {
			return common.ErrInvalidPrivateChatSize
		}
		return nil
	}},
	{"participants_exist", func(ctx context.Context, st *createChatState) error {
		found, missing, err := st.users.ResolveByUsernames(ctx, st.names)
		if err != nil {
			return storeFailure("resolve participants", err)
		}
		if len(missing) > 0 {
			return common.ErrUnknownParticipant.WithMessage(
				"participants do not exist: " + strings.Join(missing, ", "))
		}
		st.resolved = found
		return nil
	}},
}

// withRequester returns the effective participant names: the requested ones
// plus the requester, who is always a member of the chat they create.
func withRequester(names []string, requester string) []string {
	return lo.Uniq(append(append(make([]string, 0, len(names)+1), names...), requester))
}

// CreateChat validates the request and persists the chat together with its
// participants, the requester included.
func (s *ChatService) CreateChat(ctx context.Context, requester auth.Identity, req CreateChatRequest) (*models.Chat, error) {
	var chat *models.Chat

	err := s.db.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		st := &createChatState{requester: requester, req: req, users: s.repomanager.Users(tx)}
		if err := runRules(ctx, s.log, st, createChatRules); err != nil {
			return err
		}

		participants := make([]models.User, 0, len(st.names)+1)
		participants = append(participants, models.User{ID: requester.UserID, UserName: requester.Username})
		for _, n := range st.names {
			participants = append(participants, st.resolved[n])
		}
		ids := lo.Uniq(lo.Map(participants, func(u models.User, _ int) int64 { return u.ID }))

		created, err := s.repomanager.Chats(tx).Create(ctx, *req.IsPrivate, ids)
		if err != nil {
			return storeFailure("create chat", err)
		}
		created.Participants = participants
		chat = created
		return nil
	})
	if err != nil {
		logStoreFailure(ctx, s.log, "create chat failed", err)
		return nil, err
	}

	s.log.Info(ctx, "chat created", "chat_id", chat.ID, "private", chat.IsPrivate,
		"participants", len(chat.Participants), "user_id", requester.UserID)
	return chat, nil
}

type membershipState struct {
	requester auth.Identity
	chatID    int64
	targetID  *int64
	chat      *models.Chat
	target    *models.User
	chats     chats.Repository
	users     users.Repository
}

func requireTargetID(_ context.Context, st *membershipState) error {
	if st.targetID == nil {
		return common.ErrMissingUserID
	}
	return nil
}

// lockChat loads the chat with a row lock so concurrent membership changes
// on it serialize.
func lockChat(ctx context.Context, st *membershipState) error {
	chat, err := st.chats.GetForUpdate(ctx, st.chatID)
	if errors.Is(err, common.ErrorNotFound) {
		return common.ErrUnknownChat
	}
	if err != nil {
		return storeFailure("get chat", err)
	}
	st.chat = chat
	return nil
}

func rejectPrivateChat(_ context.Context, st *membershipState) error {
	if st.chat.IsPrivate {
		return common.ErrChatIsPrivate
	}
	return nil
}

func requireRequesterInChat(ctx context.Context, st *membershipState) error {
	ok, err := st.chats.IsParticipant(ctx, st.chatID, st.requester.UserID)
	if err != nil {
		return storeFailure("check participant", err)
	}
	if !ok {
		return common.ErrRequesterNotInChat
	}
	return nil
}

func loadTargetUser(ctx context.Context, st *membershipState) error {
	u, err := st.users.GetByID(ctx, *st.targetID)
	if errors.Is(err, common.ErrorNotFound) {
		return common.ErrUnknownUser
	}
	if err != nil {
		return storeFailure("get user", err)
	}
	st.target = u
	return nil
}

func rejectExistingMember(ctx context.Context, st *membershipState) error {
	ok, err := st.chats.IsParticipant(ctx, st.chatID, st.target.ID)
	if err != nil {
		return storeFailure("check participant", err)
	}
	if ok {
		return common.ErrAlreadyMember
	}
	return nil
}

func requireTargetInChat(ctx context.Context, st *membershipState) error {
	ok, err := st.chats.IsParticipant(ctx, st.chatID, st.target.ID)
	if err != nil {
		return storeFailure("check participant", err)
	}
	if !ok {
		return common.ErrTargetNotInChat
	}
	return nil
}

var addParticipantRules = []rule[membershipState]{
	{"user_id_present", requireTargetID},
	{"chat_exists", lockChat},
	{"chat_not_private", rejectPrivateChat},
	{"requester_in_chat", requireRequesterInChat},
	{"user_exists", loadTargetUser},
	{"user_not_member", rejectExistingMember},
}

func (s *ChatService) removeParticipantRules() []rule[membershipState] {
	rules := []rule[membershipState]{
		{"user_id_present", requireTargetID},
		{"chat_exists", lockChat},
		{"requester_in_chat", requireRequesterInChat},
	}
	if s.policy.ProtectPrivateMembership {
		rules = append(rules, rule[membershipState]{"chat_not_private", rejectPrivateChat})
	}
	return append(rules,
		rule[membershipState]{"user_exists", loadTargetUser},
		rule[membershipState]{"user_in_chat", requireTargetInChat},
	)
}

// AddParticipant adds userID to a group chat the requester belongs to.
// A nil userID means the id was absent from the request.
func (s *ChatService) AddParticipant(ctx context.Context, requester auth.Identity, chatID int64, userID *int64) error {
	err := s.db.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		st := s.newMembershipState(tx, requester, chatID, userID)
		if err := runRules(ctx, s.log, st, addParticipantRules); err != nil {
			return err
		}

		err := st.chats.AddParticipant(ctx, chatID, st.target.ID)
		if errors.Is(err, common.ErrorAlreadyExists) {
			return common.ErrAlreadyMember
		}
		if err != nil {
			return storeFailure("add participant", err)
		}
		return nil
	})
	if err != nil {
		logStoreFailure(ctx, s.log, "add participant failed", err)
		return err
	}

	s.log.Info(ctx, "participant added", "chat_id", chatID, "target_id", *userID, "user_id", requester.UserID)
	return nil
}

// RemoveParticipant removes userID from a chat the requester belongs to.
// A nil userID means the id was absent from the request.
func (s *ChatService) RemoveParticipant(ctx context.Context, requester auth.Identity, chatID int64, userID *int64) error {
	rules := s.removeParticipantRules()

	err := s.db.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		st := s.newMembershipState(tx, requester, chatID, userID)
		if err := runRules(ctx, s.log, st, rules); err != nil {
			return err
		}

		err := st.chats.RemoveParticipant(ctx, chatID, st.target.ID)
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrTargetNotInChat
		}
		if err != nil {
			return storeFailure("remove participant", err)
		}
		return nil
	})
	if err != nil {
		logStoreFailure(ctx, s.log, "remove participant failed", err)
		return err
	}

	s.log.Info(ctx, "participant removed", "chat_id", chatID, "target_id", *userID, "user_id", requester.UserID)
	return nil
}

func (s *ChatService) newMembershipState(tx dbx.DBTX, requester auth.Identity, chatID int64, userID *int64) *membershipState {
	return &membershipState{
		requester: requester,
		chatID:    chatID,
		targetID:  userID,
		chats:     s.repomanager.Chats(tx),
		users:     s.repomanager.Users(tx),
	}
}

// GetChat returns a chat with its participants. Only participants may see it.
func (s *ChatService) GetChat(ctx context.Context, requester auth.Identity, chatID int64) (*models.Chat, error) {
	repo := s.repomanager.Chats(s.db.Conn())

	chat, err := repo.Get(ctx, chatID)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrUnknownChat
	}
	if err != nil {
		err = storeFailure("get chat", err)
		logStoreFailure(ctx, s.log, "get chat failed", err)
		return nil, err
	}

	participants, err := repo.Participants(ctx, chatID)
	if err != nil {
		err = storeFailure("get participants", err)
		logStoreFailure(ctx, s.log, "get chat failed", err)
		return nil, err
	}
	chat.Participants = participants

	if !chat.HasParticipant(requester.UserID) {
		return nil, common.ErrRequesterNotInChat
	}
	return chat, nil
}

// ListChats returns one page of the chats the requester participates in.
// A non-positive limit selects the default page size; limits above the
// maximum are capped.
func (s *ChatService) ListChats(ctx context.Context, requester auth.Identity, limit, offset int) (*ChatPage, error) {
	if limit <= 0 {
		limit = s.defaultPageSize
	}
	if limit > s.maxPageSize {
		limit = s.maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	var (
		total int
		list  []models.Chat
	)

	// one transaction so Total and the page agree under concurrent changes
	err := s.db.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Chats(tx)

		var err error
		total, err = repo.CountByUser(ctx, requester.UserID)
		if err != nil {
			return storeFailure("count chats", err)
		}

		list, err = repo.ListByUser(ctx, requester.UserID, limit, offset)
		if err != nil {
			return storeFailure("list chats", err)
		}

		ids := lo.Map(list, func(c models.Chat, _ int) int64 { return c.ID })
		byChat, err := repo.ParticipantsByChats(ctx, ids)
		if err != nil {
			return storeFailure("list participants", err)
		}
		for i := range list {
			list[i].Participants = byChat[list[i].ID]
		}
		return nil
	})
	if err != nil {
		logStoreFailure(ctx, s.log, "list chats failed", err)
		return nil, err
	}

	return &ChatPage{Chats: list, Total: total, Limit: limit, Offset: offset}, nil
}
