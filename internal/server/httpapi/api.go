// Package httpapi exposes the chat services as a JSON API over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/dmitrijs2005/gophchat/internal/logging"
	"github.com/dmitrijs2005/gophchat/internal/server/auth"
	"github.com/dmitrijs2005/gophchat/internal/server/models"
	"github.com/dmitrijs2005/gophchat/internal/server/services"
)

type UserService interface {
	Register(ctx context.Context, req services.RegisterRequest) (*models.User, error)
	Login(ctx context.Context, username, password string) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Authenticate(accessToken string) (auth.Identity, error)
	ListUsers(ctx context.Context) ([]models.UserSummary, error)
	LastMessageTime(ctx context.Context, userID int64) (*time.Time, error)
}

type ChatService interface {
	CreateChat(ctx context.Context, requester auth.Identity, req services.CreateChatRequest) (*models.Chat, error)
	AddParticipant(ctx context.Context, requester auth.Identity, chatID int64, userID *int64) error
	RemoveParticipant(ctx context.Context, requester auth.Identity, chatID int64, userID *int64) error
	GetChat(ctx context.Context, requester auth.Identity, chatID int64) (*models.Chat, error)
	ListChats(ctx context.Context, requester auth.Identity, limit, offset int) (*services.ChatPage, error)
}

type MessageService interface {
	SendMessage(ctx context.Context, requester auth.Identity, chatID *int64, text *string) (*models.Message, error)
	EditMessage(ctx context.Context, requester auth.Identity, messageID int64, text *string) (*models.Message, error)
	ListMessages(ctx context.Context, requester auth.Identity, chatID int64) ([]models.Message, error)
	GetMessage(ctx context.Context, requester auth.Identity, messageID int64) (*models.Message, error)
}

// Handler holds the HTTP handlers of every route.
type Handler struct {
	users    UserService
	chats    ChatService
	messages MessageService
	log      logging.Logger
}

func NewHandler(us UserService, cs ChatService, ms MessageService, log logging.Logger) *Handler {
	return &Handler{
		users:    us,
		chats:    cs,
		messages: ms,
		log:      log.With("module", "http"),
	}
}

// NewRouter wires routes and middleware. Everything except registration,
// login and refresh requires a bearer access token.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(requestLogger(h.log))

	r.Handle("/users/register", wrap(h.log, h.register)).Methods(http.MethodPost)
	r.Handle("/auth/login", wrap(h.log, h.login)).Methods(http.MethodPost)
	r.Handle("/auth/refresh", wrap(h.log, h.refresh)).Methods(http.MethodPost)

	api := r.NewRoute().Subrouter()
	api.Use(bearerAuth(h.users, h.log))

	api.Handle("/users", wrap(h.log, h.listUsers)).Methods(http.MethodGet)
	api.Handle("/users/{id:[0-9]+}/last_message_time", wrap(h.log, h.lastMessageTime)).Methods(http.MethodGet)

	api.Handle("/chats", wrap(h.log, h.createChat)).Methods(http.MethodPost)
	api.Handle("/chats", wrap(h.log, h.listChats)).Methods(http.MethodGet)
	api.Handle("/chats/{id:[0-9]+}", wrap(h.log, h.getChat)).Methods(http.MethodGet)
	api.Handle("/chats/{id:[0-9]+}/participants", wrap(h.log, h.addParticipant)).Methods(http.MethodPost)
	api.Handle("/chats/{id:[0-9]+}/participants", wrap(h.log, h.removeParticipant)).Methods(http.MethodDelete)
	api.Handle("/chats/{id:[0-9]+}/messages", wrap(h.log, h.listMessages)).Methods(http.MethodGet)

	api.Handle("/messages", wrap(h.log, h.sendMessage)).Methods(http.MethodPost)
	api.Handle("/messages/{id:[0-9]+}", wrap(h.log, h.getMessage)).Methods(http.MethodGet)
	api.Handle("/messages/{id:[0-9]+}", wrap(h.log, h.editMessage)).Methods(http.MethodPut)

	return r
}

// Server runs the API until its context is cancelled.
type Server struct {
	srv             *http.Server
	shutdownTimeout time.Duration
	log             logging.Logger
}

func NewServer(addr string, h http.Handler, shutdownTimeout time.Duration, log logging.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
		shutdownTimeout: shutdownTimeout,
		log:             log.With("module", "http_server"),
	}
}

func (s *Server) Run(ctx context.Context) error {
	done := make(chan struct{})

	go func() {
		defer close(done)
		<-ctx.Done()
		s.log.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error(shutdownCtx, "HTTP shutdown error", "error", err)
		}
	}()

	s.log.Info(ctx, "Starting HTTP server", "address", s.srv.Addr)

	if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	<-done
	return nil
}
