package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/logging"
)

// handlerFunc is a handler that reports failures as errors; wrap renders them.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

func wrap(log logging.Logger, fn handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			writeError(w, r, log, err)
		}
	})
}

const maxBodyBytes = 1 << 20

func decode[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	var t T
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	// an empty body decodes as an object with every field absent
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil && !errors.Is(err, io.EOF) {
		return t, common.ErrValidation.WithMessage("malformed JSON body")
	}
	return t, nil
}

func writeJSON(w http.ResponseWriter, v any, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, common.ErrValidation.WithMessage("id must be an integer")
	}
	return id, nil
}

// queryInt returns def for an absent parameter and a validation error for a
// non-integer one.
func queryInt(r *http.Request, key string, def int) (int, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, common.ErrValidation.WithMessage(key + " must be an integer")
	}
	return n, nil
}
