package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/dbx"
	"github.com/dmitrijs2005/gophchat/internal/server/models"
	"github.com/dmitrijs2005/gophchat/internal/server/repositories/chats"
	"github.com/dmitrijs2005/gophchat/internal/server/repositories/messages"
	refreshtokensrepo "github.com/dmitrijs2005/gophchat/internal/server/repositories/refreshtokens"
	usersrepo "github.com/dmitrijs2005/gophchat/internal/server/repositories/users"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

// memStore is an in-memory stand-in for the PostgreSQL repositories.
// fail makes the named method return errBoom.
type memStore struct {
	mu sync.Mutex

	nextID   int64
	users    map[int64]models.User
	chats    map[int64]models.Chat
	members  map[int64]map[int64]bool
	messages map[int64]models.Message
	tokens   map[string]models.RefreshToken

	fail map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[int64]models.User{},
		chats:    map[int64]models.Chat{},
		members:  map[int64]map[int64]bool{},
		messages: map[int64]models.Message{},
		tokens:   map[string]models.RefreshToken{},
		fail:     map[string]bool{},
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) failing(method string) error {
	if s.fail[method] {
		return errBoom{}
	}
	return nil
}

func (s *memStore) addUser(name string) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := models.User{ID: s.id(), UserName: name, CreatedAt: time.Now()}
	s.users[u.ID] = u
	return u
}

func (s *memStore) participantIDs(chatID int64) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.members[chatID]))
	for id := range s.members[chatID] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// --- users ---

type memUsers struct{ s *memStore }

func (r memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failing("Users.Create"); err != nil {
		return nil, err
	}
	for _, existing := range r.s.users {
		if existing.UserName == u.UserName {
			return nil, common.ErrorAlreadyExists
		}
	}
	u.ID = r.s.id()
	u.CreatedAt = time.Now()
	r.s.users[u.ID] = *u
	return u, nil
}

func (r memUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failing("Users.GetByID"); err != nil {
		return nil, err
	}
	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

func (r memUsers) GetByUsername(_ context.Context, name string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failing("Users.GetByUsername"); err != nil {
		return nil, err
	}
	for _, u := range r.s.users {
		if u.UserName == name {
			return &u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memUsers) ResolveByUsernames(_ context.Context, names []string) (map[string]models.User, []string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failing("Users.ResolveByUsernames"); err != nil {
		return nil, nil, err
	}
	found := map[string]models.User{}
	var missing []string
	for _, n := range names {
		hit := false
		for _, u := range r.s.users {
			if u.UserName == n {
				found[n] = u
				hit = true
			}
		}
		if !hit {
			missing = append(missing, n)
		}
	}
	return found, missing, nil
}

func (r memUsers) List(_ context.Context) ([]models.UserSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failing("Users.List"); err != nil {
		return nil, err
	}
	out := make([]models.UserSummary, 0, len(r.s.users))
	for _, u := range r.s.users {
		out = append(out, models.UserSummary{ID: u.ID, UserName: u.UserName, Email: u.Email, LastMessageTime: r.lastLocked(u.ID)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memUsers) LastMessageTime(_ context.Context, id int64) (*time.Time, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failing("Users.LastMessageTime"); err != nil {
		return nil, err
	}
	return r.lastLocked(id), nil
}

func (r memUsers) lastLocked(id int64) *time.Time {
	var last *time.Time
	for _, m := range r.s.messages {
		if m.SenderID == id && (last == nil || m.CreatedAt.After(*last)) {
			t := m.CreatedAt
			last = &t
		}
	}
	return last
}

// --- chats ---

type memChats struct{ s *memStore }

func (r memChats) Create(_ context.Context, isPrivate bool, ids []int64) (*models.Chat, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failing("Chats.Create"); err != nil {
		return nil, err
	}
	c := models.Chat{ID: r.s.id(), IsPrivate: isPrivate, CreatedAt: time.Now()}
	r.s.chats[c.ID] = c
	r.s.members[c.ID] = map[int64]bool{}
	for _, id := range ids {
		r.s.members[c.ID][id] = true
	}
	return &c, nil
}

func (r memChats) Get(_ context.Context, id int64) (*models.Chat, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failing("Chats.Get"); err != nil {
		return nil, err
	}
	c, ok := r.s.chats[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &c, nil
}

func (r memChats) GetForUpdate(ctx context.Context, id int64) (*models.Chat, error) {
	return r.Get(ctx, id)
}

func (r memChats) Participants(ctx context.Context, chatID int64) ([]models.User, error) {
	m, err := r.ParticipantsByChats(ctx, []int64{chatID})
	if err != nil {
		return nil, err
	}
	return m[chatID], nil
}

func (r memChats) ParticipantsByChats(_ context.Context, chatIDs []int64) (map[int64][]models.User, error) {
	if err := r.s.failing("Chats.Participants"); err != nil {
		return nil, err
	}
	out := map[int64][]models.User{}
	for _, cid := range chatIDs {
		for _, uid := range r.s.participantIDs(cid) {
			r.s.mu.Lock()
			u := r.s.users[uid]
			r.s.mu.Unlock()
			out[cid] = append(out[cid], models.User{ID: u.ID, UserName: u.UserName, Email: u.Email})
		}
	}
	return out, nil
}

func (r memChats) IsParticipant(_ context.Context, chatID, userID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failing("Chats.IsParticipant"); err != nil {
		return false, err
	}
	return r.s.members[chatID][userID], nil
}

func (r memChats) AddParticipant(_ context.Context, chatID, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failing("Chats.AddParticipant"); err != nil {
		return err
	}
	if r.s.members[chatID][userID] {
		return common.ErrorAlreadyExists
	}
	r.s.members[chatID][userID] = true
	return nil
}

func (r memChats) RemoveParticipant(_ context.Context, chatID, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failing("Chats.RemoveParticipant"); err != nil {
		return err
	}
	if !r.s.members[chatID][userID] {
		return common.ErrorNotFound
	}
	delete(r.s.members[chatID], userID)
	return nil
}

func (r memChats) userChatIDs(userID int64) []int64 {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var ids []int64
	for cid, m := range r.s.members {
		if m[userID] {
			ids = append(ids, cid)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r memChats) ListByUser(_ context.Context, userID int64, limit, offset int) ([]models.Chat, error) {
	if err := r.s.failing("Chats.ListByUser"); err != nil {
		return nil, err
	}
	ids := r.userChatIDs(userID)
	out := make([]models.Chat, 0)
	for i := offset; i < len(ids) && i < offset+limit; i++ {
		r.s.mu.Lock()
		out = append(out, r.s.chats[ids[i]])
		r.s.mu.Unlock()
	}
	return out, nil
}

func (r memChats) CountByUser(_ context.Context, userID int64) (int, error) {
	if err := r.s.failing("Chats.CountByUser"); err != nil {
		return 0, err
	}
	return len(r.userChatIDs(userID)), nil
}

// --- messages ---

type memMessages struct{ s *memStore }

func (r memMessages) Create(_ context.Context, m *models.Message) (*models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failing("Messages.Create"); err != nil {
		return nil, err
	}
	m.ID = r.s.id()
	r.s.messages[m.ID] = *m
	return m, nil
}

func (r memMessages) Get(_ context.Context, id int64) (*models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failing("Messages.Get"); err != nil {
		return nil, err
	}
	m, ok := r.s.messages[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &m, nil
}

func (r memMessages) GetForUpdate(ctx context.Context, id int64) (*models.Message, error) {
	return r.Get(ctx, id)
}

func (r memMessages) Update(_ context.Context, m *models.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failing("Messages.Update"); err != nil {
		return err
	}
	old, ok := r.s.messages[m.ID]
	if !ok {
		return common.ErrorNotFound
	}
	old.Text = m.Text
	old.IsEdited = m.IsEdited
	r.s.messages[m.ID] = old
	return nil
}

func (r memMessages) ListByChat(_ context.Context, chatID int64) ([]models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failing("Messages.ListByChat"); err != nil {
		return nil, err
	}
	out := make([]models.Message, 0)
	for _, m := range r.s.messages {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// --- refresh tokens ---

type memTokens struct{ s *memStore }

func (r memTokens) Create(_ context.Context, userID int64, token string, expires time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failing("RefreshTokens.Create"); err != nil {
		return err
	}
	r.s.tokens[token] = models.RefreshToken{ID: r.s.id(), UserID: userID, Token: token, Expires: expires}
	return nil
}

func (r memTokens) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failing("RefreshTokens.Find"); err != nil {
		return nil, err
	}
	t, ok := r.s.tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &t, nil
}

func (r memTokens) Delete(_ context.Context, token string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failing("RefreshTokens.Delete"); err != nil {
		return err
	}
	if _, ok := r.s.tokens[token]; !ok {
		return common.ErrorNotFound
	}
	delete(r.s.tokens, token)
	return nil
}

// --- wiring ---

type fakeRepoManager struct {
	s *memStore

	// wrapChats lets a test intercept chat repository calls.
	wrapChats func(chats.Repository) chats.Repository
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error {
	return nil
}

func (m *fakeRepoManager) Users(dbx.DBTX) usersrepo.Repository {
	return memUsers{m.s}
}

func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokensrepo.Repository {
	return memTokens{m.s}
}

func (m *fakeRepoManager) Chats(dbx.DBTX) chats.Repository {
	if m.wrapChats != nil {
		return m.wrapChats(memChats{m.s})
	}
	return memChats{m.s}
}

func (m *fakeRepoManager) Messages(dbx.DBTX) messages.Repository {
	return memMessages{m.s}
}

// fakeRunner runs units of work inline; the in-memory store has no rollback.
type fakeRunner struct {
	txCount int
	txErr   error
}

func (r *fakeRunner) Conn() dbx.DBTX { return nil }

func (r *fakeRunner) InTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	r.txCount++
	if r.txErr != nil {
		return r.txErr
	}
	return fn(ctx, nil)
}
