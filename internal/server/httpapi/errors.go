package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/logging"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var kindStatus = map[common.Kind]int{
	common.ErrMissingParticipants.Kind:    http.StatusBadRequest,
	common.ErrMissingIsPrivateFlag.Kind:   http.StatusBadRequest,
	common.ErrSelfParticipation.Kind:      http.StatusBadRequest,
	common.ErrInvalidPrivateChatSize.Kind: http.StatusBadRequest,
	common.ErrUnknownParticipant.Kind:     http.StatusBadRequest,
	common.ErrUnknownUser.Kind:            http.StatusBadRequest,
	common.ErrAlreadyMember.Kind:          http.StatusBadRequest,
	common.ErrMissingUserID.Kind:          http.StatusBadRequest,
	common.ErrTargetNotInChat.Kind:        http.StatusBadRequest,
	common.ErrMissingFields.Kind:          http.StatusBadRequest,
	common.ErrMissingText.Kind:            http.StatusBadRequest,
	common.ErrValidation.Kind:             http.StatusBadRequest,
	common.ErrUsernameTaken.Kind:          http.StatusBadRequest,

	common.ErrUnauthenticated.Kind:    http.StatusUnauthorized,
	common.ErrInvalidCredentials.Kind: http.StatusUnauthorized,

	common.ErrChatIsPrivate.Kind:             http.StatusForbidden,
	common.ErrRequesterNotInChat.Kind:        http.StatusForbidden,
	common.ErrNotSender.Kind:                 http.StatusForbidden,
	common.ErrEditWindowExpired.Kind:         http.StatusForbidden,
	common.ErrChatParticipationRequired.Kind: http.StatusForbidden,

	common.ErrUnknownChat.Kind:    http.StatusNotFound,
	common.ErrUnknownMessage.Kind: http.StatusNotFound,
}

// toBody maps err to a response status and body. Store failures and
// unrecognized errors never leak their text.
func toBody(err error) (int, errorBody) {
	var ce *common.Error
	if errors.As(err, &ce) {
		if code, ok := kindStatus[ce.Kind]; ok {
			return code, errorBody{Error: string(ce.Kind), Message: ce.Message}
		}
	}

	switch {
	case errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized, errorBody{Error: "token_expired", Message: err.Error()}
	case errors.Is(err, common.ErrRefreshTokenExpired):
		return http.StatusUnauthorized, errorBody{Error: "refresh_token_expired", Message: err.Error()}
	case errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized, errorBody{Error: "invalid_token", Message: err.Error()}
	}

	return http.StatusInternalServerError, errorBody{Error: "internal", Message: "internal server error"}
}

func writeError(w http.ResponseWriter, r *http.Request, log logging.Logger, err error) {
	code, body := toBody(err)
	if code == http.StatusInternalServerError {
		log.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, body, code)
}
