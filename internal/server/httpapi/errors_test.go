package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/logging"
)

func TestToBody_KindStatus(t *testing.T) {
	tests := []struct {
		err  *common.Error
		code int
	}{
		{common.ErrMissingParticipants, http.StatusBadRequest},
		{common.ErrMissingIsPrivateFlag, http.StatusBadRequest},
		{common.ErrSelfParticipation, http.StatusBadRequest},
		{common.ErrInvalidPrivateChatSize, http.StatusBadRequest},
		{common.ErrUnknownParticipant, http.StatusBadRequest},
		{common.ErrUnknownUser, http.StatusBadRequest},
		{common.ErrAlreadyMember, http.StatusBadRequest},
		{common.ErrMissingUserID, http.StatusBadRequest},
		{common.ErrTargetNotInChat, http.StatusBadRequest},
		{common.ErrMissingFields, http.StatusBadRequest},
		{common.ErrMissingText, http.StatusBadRequest},
		{common.ErrValidation, http.StatusBadRequest},
		{common.ErrUsernameTaken, http.StatusBadRequest},
		{common.ErrUnauthenticated, http.StatusUnauthorized},
		{common.ErrInvalidCredentials, http.StatusUnauthorized},
		{common.ErrChatIsPrivate, http.StatusForbidden},
		{common.ErrRequesterNotInChat, http.StatusForbidden},
		{common.ErrNotSender, http.StatusForbidden},
		{common.ErrEditWindowExpired, http.StatusForbidden},
		{common.ErrChatParticipationRequired, http.StatusForbidden},
		{common.ErrUnknownChat, http.StatusNotFound},
		{common.ErrUnknownMessage, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Kind), func(t *testing.T) {
			code, body := toBody(tt.err)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, string(tt.err.Kind), body.Error)
			assert.Equal(t, tt.err.Message, body.Message)
		})
	}
}

func TestToBody_Tokens(t *testing.T) {
	tests := []struct {
		err  error
		kind string
	}{
		{common.ErrInvalidToken, "invalid_token"},
		{common.ErrTokenExpired, "token_expired"},
		{common.ErrRefreshTokenExpired, "refresh_token_expired"},
	}

	for _, tt := range tests {
		code, body := toBody(tt.err)
		assert.Equal(t, http.StatusUnauthorized, code)
		assert.Equal(t, tt.kind, body.Error)
	}
}

func TestToBody_StoreFailureIsHidden(t *testing.T) {
	err := fmt.Errorf("create chat: %w: %w", common.ErrStoreFailure, fmt.Errorf("dial tcp 10.0.0.1:5432: refused"))

	code, body := toBody(err)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "internal", body.Error)
	assert.NotContains(t, body.Message, "10.0.0.1")
}

func TestWriteError_LogsServerErrorsOnly(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewJSONLogger(&buf, "debug")
	req := httptest.NewRequest(http.MethodGet, "/x", nil)

	writeError(httptest.NewRecorder(), req, log, common.ErrUnknownChat)
	assert.Empty(t, buf.String())

	rec := httptest.NewRecorder()
	writeError(rec, req, log, common.ErrStoreFailure)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), "request failed")
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}
