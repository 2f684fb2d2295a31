package httpapi

import (
	"net/http"

	"github.com/samber/lo"

	"github.com/dmitrijs2005/gophchat/internal/server/models"
	"github.com/dmitrijs2005/gophchat/internal/server/services"
)

// --- identity ---

func (h *Handler) register(w http.ResponseWriter, r *http.Request) error {
	req, err := decode[registerRequest](w, r)
	if err != nil {
		return err
	}

	u, err := h.users.Register(r.Context(), services.RegisterRequest{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
	})
	if err != nil {
		return err
	}

	writeJSON(w, toUser(*u), http.StatusCreated)
	return nil
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) error {
	req, err := decode[loginRequest](w, r)
	if err != nil {
		return err
	}

	pair, err := h.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		return err
	}

	writeJSON(w, toTokenPair(pair), http.StatusOK)
	return nil
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) error {
	req, err := decode[refreshRequest](w, r)
	if err != nil {
		return err
	}

	pair, err := h.users.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		return err
	}

	writeJSON(w, toTokenPair(pair), http.StatusOK)
	return nil
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) error {
	list, err := h.users.ListUsers(r.Context())
	if err != nil {
		return err
	}

	writeJSON(w, lo.Map(list, toUserSummary), http.StatusOK)
	return nil
}

func (h *Handler) lastMessageTime(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}

	t, err := h.users.LastMessageTime(r.Context(), id)
	if err != nil {
		return err
	}

	writeJSON(w, lastMessageTimeResponse{UserID: id, LastMessageTime: t}, http.StatusOK)
	return nil
}

// --- chats ---

func (h *Handler) createChat(w http.ResponseWriter, r *http.Request) error {
	me, err := identityFrom(r.Context())
	if err != nil {
		return err
	}
	req, err := decode[createChatRequest](w, r)
	if err != nil {
		return err
	}

	chat, err := h.chats.CreateChat(r.Context(), me, services.CreateChatRequest{
		Participants: req.Participants,
		IsPrivate:    req.IsPrivate,
	})
	if err != nil {
		return err
	}

	writeJSON(w, toChat(*chat), http.StatusCreated)
	return nil
}

func (h *Handler) listChats(w http.ResponseWriter, r *http.Request) error {
	me, err := identityFrom(r.Context())
	if err != nil {
		return err
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		return err
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		return err
	}

	page, err := h.chats.ListChats(r.Context(), me, limit, offset)
	if err != nil {
		return err
	}

	writeJSON(w, toChatPage(page), http.StatusOK)
	return nil
}

func (h *Handler) getChat(w http.ResponseWriter, r *http.Request) error {
	me, err := identityFrom(r.Context())
	if err != nil {
		return err
	}
	id, err := pathID(r)
	if err != nil {
		return err
	}

	chat, err := h.chats.GetChat(r.Context(), me, id)
	if err != nil {
		return err
	}

	writeJSON(w, toChat(*chat), http.StatusOK)
	return nil
}

func (h *Handler) addParticipant(w http.ResponseWriter, r *http.Request) error {
	me, err := identityFrom(r.Context())
	if err != nil {
		return err
	}
	id, err := pathID(r)
	if err != nil {
		return err
	}
	req, err := decode[participantRequest](w, r)
	if err != nil {
		return err
	}

	if err := h.chats.AddParticipant(r.Context(), me, id, req.UserID); err != nil {
		return err
	}

	writeJSON(w, map[string]string{"message": "user added to the chat"}, http.StatusCreated)
	return nil
}

func (h *Handler) removeParticipant(w http.ResponseWriter, r *http.Request) error {
	me, err := identityFrom(r.Context())
	if err != nil {
		return err
	}
	id, err := pathID(r)
	if err != nil {
		return err
	}
	req, err := decode[participantRequest](w, r)
	if err != nil {
		return err
	}

	if err := h.chats.RemoveParticipant(r.Context(), me, id, req.UserID); err != nil {
		return err
	}

	writeJSON(w, map[string]string{"message": "user removed from the chat"}, http.StatusOK)
	return nil
}

// --- messages ---

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) error {
	me, err := identityFrom(r.Context())
	if err != nil {
		return err
	}
	id, err := pathID(r)
	if err != nil {
		return err
	}

	list, err := h.messages.ListMessages(r.Context(), me, id)
	if err != nil {
		return err
	}

	writeJSON(w, lo.Map(list, func(m models.Message, _ int) messageResponse { return toMessage(m) }), http.StatusOK)
	return nil
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) error {
	me, err := identityFrom(r.Context())
	if err != nil {
		return err
	}
	req, err := decode[sendMessageRequest](w, r)
	if err != nil {
		return err
	}

	msg, err := h.messages.SendMessage(r.Context(), me, req.ChatID, req.Text)
	if err != nil {
		return err
	}

	writeJSON(w, toMessage(*msg), http.StatusCreated)
	return nil
}

func (h *Handler) getMessage(w http.ResponseWriter, r *http.Request) error {
	me, err := identityFrom(r.Context())
	if err != nil {
		return err
	}
	id, err := pathID(r)
	if err != nil {
		return err
	}

	msg, err := h.messages.GetMessage(r.Context(), me, id)
	if err != nil {
		return err
	}

	writeJSON(w, toMessage(*msg), http.StatusOK)
	return nil
}

func (h *Handler) editMessage(w http.ResponseWriter, r *http.Request) error {
	me, err := identityFrom(r.Context())
	if err != nil {
		return err
	}
	id, err := pathID(r)
	if err != nil {
		return err
	}
	req, err := decode[editMessageRequest](w, r)
	if err != nil {
		return err
	}

	msg, err := h.messages.EditMessage(r.Context(), me, id, req.Text)
	if err != nil {
		return err
	}

	writeJSON(w, toMessage(*msg), http.StatusAccepted)
	return nil
}
