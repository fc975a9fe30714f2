package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/userreg/internal/apperror"
	"github.com/sakif/userreg/internal/model"
	"github.com/sakif/userreg/internal/service"
)

// maxBodyBytes caps a registration body. Real payloads are a few hundred bytes.
const maxBodyBytes = 1 << 20

const msgBadBody = "Send JSON with name, email, password"

// UserService is what UserHandler needs from the service layer.
type UserService interface {
	Register(ctx context.Context, in service.RegisterInput) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	Ready(ctx context.Context) error
}

// UserHandler serves the registration API.
//
//   - HandleRegister → POST /register
//   - HandleList     → GET  /users
//   - HandleHealth   → GET  /healthz
type UserHandler struct {
	users  UserService
	logger *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(users UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// RegisterResponse is the 201 body of POST /register.
type RegisterResponse struct {
	Message string       `json:"message"`
	User    model.Public `json:"user"`
}

// ListResponse is the 200 body of GET /users.
type ListResponse struct {
	Users []model.Public `json:"users"`
}

// HandleRegister creates a user.
//
// HTTP: POST /register
// REQUEST BODY: {"name": "Ann", "email": "ann@example.com", "password": "secret1"}
//
// The body is decoded into a generic map rather than a struct: a field with
// the wrong JSON type (say "name": 5) must count as missing, not make the
// whole body invalid. The Content-Type header is not enforced.
func (h *UserHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	in, err := decodeRegisterInput(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.logger.Debug("rejected registration body", slog.String("error", err.Error()))
		writeError(w, apperror.InvalidRequest(msgBadBody))
		return
	}

	user, err := h.users.Register(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, RegisterResponse{
		Message: "registered successfully",
		User:    user.Public(),
	})
}

// HandleList returns every registered user, newest first.
//
// HTTP: GET /users
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	resp := ListResponse{Users: make([]model.Public, 0, len(users))}
	for i := range users {
		resp.Users = append(resp.Users, users[i].Public())
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleHealth reports whether the store is reachable.
//
// HTTP: GET /healthz
func (h *UserHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Ready(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeRegisterInput reads a JSON object from body. Anything that is not a
// single non-empty JSON object (empty body, {}, array, null, trailing garbage)
// is an error.
// Non-string field values are returned as "".
func decodeRegisterInput(body io.Reader) (service.RegisterInput, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return service.RegisterInput{}, err
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return service.RegisterInput{}, err
	}
	if len(fields) == 0 {
		return service.RegisterInput{}, errors.New("body is null or an empty object")
	}

	return service.RegisterInput{
		Name:     stringField(fields, "name"),
		Email:    stringField(fields, "email"),
		Password: stringField(fields, "password"),
	}, nil
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}
