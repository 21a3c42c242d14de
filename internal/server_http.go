package internal

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"squadchat/internal/storage"
)

type createUserRequest struct {
	Nick     string `json:"nick"`
	Callsign string `json:"callsign"`
	Role     int    `json:"role"`
}

type updateUserRequest struct {
	Callsign *string `json:"callsign"`
	Role     *int    `json:"role"`
}

type signInRequest struct {
	Nick string `json:"nick"`
}

type userResponse struct {
	ID        int64     `json:"id"`
	Nick      string    `json:"nick"`
	Callsign  string    `json:"callsign"`
	Role      int       `json:"role"`
	Online    int64     `json:"online"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toUserResponse(user *storage.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Nick:      user.Nick,
		Callsign:  user.Callsign,
		Role:      int(user.Role),
		Online:    user.Online,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

// HandleUsers serves the collection route: create and list.
func (g *Gateway) HandleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		g.handleCreateUser(w, r)
	case http.MethodGet:
		g.handleListUsers(w, r)
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

func (g *Gateway) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if !g.authLimiter.Allow(g.clientIP(r)) {
		http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		return
	}
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	nick := strings.TrimSpace(req.Nick)
	callsign := strings.TrimSpace(req.Callsign)
	role := storage.Role(req.Role)
	if nick == "" || callsign == "" {
		writeError(w, http.StatusBadRequest, errors.New("nick and callsign are required"))
		return
	}
	if !role.Valid() {
		writeError(w, http.StatusBadRequest, errors.New("unknown role"))
		return
	}
	id, err := g.store.CreateUser(r.Context(), nick, callsign, role)
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			writeError(w, http.StatusConflict, errors.New("nick already taken"))
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	user, err := g.store.GetUserByID(r.Context(), id)
	if err != nil || user == nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

func (g *Gateway) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := g.store.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	list := make([]userResponse, 0, len(users))
	for i := range users {
		list = append(list, toUserResponse(&users[i]))
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleUserByID serves /users/{id}: fetch, partial update, delete.
func (g *Gateway) HandleUserByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/users/"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid user id"))
		return
	}
	switch r.Method {
	case http.MethodGet:
		user, err := g.store.GetUserByID(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if user == nil {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, toUserResponse(user))
	case http.MethodPatch:
		g.handleUpdateUser(w, r, id)
	case http.MethodDelete:
		if err := g.store.DeleteUser(r.Context(), id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
				return
			}
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, "GET, PATCH, DELETE")
	}
}

func (g *Gateway) handleUpdateUser(w http.ResponseWriter, r *http.Request, id int64) {
	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var update storage.UserUpdate
	if req.Callsign != nil {
		callsign := strings.TrimSpace(*req.Callsign)
		if callsign == "" {
			writeError(w, http.StatusBadRequest, errors.New("callsign cannot be empty"))
			return
		}
		update.Callsign = &callsign
	}
	if req.Role != nil {
		role := storage.Role(*req.Role)
		if !role.Valid() {
			writeError(w, http.StatusBadRequest, errors.New("unknown role"))
			return
		}
		update.Role = &role
	}
	user, err := g.store.UpdateUser(r.Context(), id, update)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// HandleSignIn is the lookup-only sign-in: the nick either has a record or it
// does not. No credential is checked; the realtime handshake declares the
// same identity in-band.
func (g *Gateway) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if !g.authLimiter.Allow(g.clientIP(r)) {
		http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		return
	}
	var req signInRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	nick := strings.TrimSpace(req.Nick)
	if nick == "" {
		writeError(w, http.StatusBadRequest, errors.New("nick is required"))
		return
	}
	user, err := g.store.GetUserByNick(r.Context(), nick)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, errors.New("user not found"))
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// MetricsHandler exposes the JSON counters endpoint.
func (g *Gateway) MetricsHandler() http.Handler {
	return g.metrics
}

func (g *Gateway) clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func decodeJSON(r *http.Request, out interface{}) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
