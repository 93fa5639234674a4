package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/petermazzocco/photostockage/internal/auth"
	"github.com/petermazzocco/photostockage/internal/backend"
)

// sessionResponse mirrors the persisted keys, plus the derived flag.
type sessionResponse struct {
	IsLoggedIn    bool   `json:"isLoggedIn"`
	Authenticated bool   `json:"authenticated"`
	TokenExpires  int64  `json:"tokenExpires,omitempty"`
	UserID        string `json:"userId,omitempty"`
	AccessLevel   string `json:"access_level,omitempty"`
	UserIcon      string `json:"user_icon,omitempty"`
}

func newSessionResponse(s auth.Session, sync *auth.Synchronizer) sessionResponse {
	out := sessionResponse{
		IsLoggedIn:    s.IsLoggedIn,
		Authenticated: s.Authenticated(sync.Now()),
		UserID:        s.UserID,
		UserIcon:      s.UserIcon,
	}
	if !s.ExpiresAt.IsZero() {
		out.TokenExpires = s.ExpiresAt.UnixMilli()
	}
	if s.IsLoggedIn {
		out.AccessLevel = string(s.AccessLevel)
	}
	return out
}

// requestSession binds a synchronizer to the cookie store of r. Writes
// signal broker, so websocket listeners hear about them.
func requestSession(w http.ResponseWriter, r *http.Request, broker auth.Broker) (*auth.Synchronizer, bool) {
	store, ok := auth.StoreFromContext(r.Context())
	if !ok {
		hlog.FromRequest(r).Error().Msg("session store missing from context")
		writeError(w, http.StatusInternalServerError, "Session unavailable")
		return nil, false
	}
	return auth.NewSynchronizer(store, broker, *hlog.FromRequest(r)), true
}

func GetSessionHandler(w http.ResponseWriter, r *http.Request, broker auth.Broker) {
	sync, ok := requestSession(w, r, broker)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sync.Current(r.Context()), sync))
}

type loginRequest struct {
	Token    string `json:"token"`
	UserIcon string `json:"user_icon"`
}

// PutSessionHandler starts a session from a backend login token.
func PutSessionHandler(w http.ResponseWriter, r *http.Request, broker auth.Broker) {
	sync, ok := requestSession(w, r, broker)
	if !ok {
		return
	}
	var in loginRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	claims, err := backend.ParseToken(in.Token)
	if err != nil {
		hlog.FromRequest(r).Info().Err(err).Msg("rejected session token")
		writeError(w, http.StatusBadRequest, "Invalid session token")
		return
	}
	level := auth.AccessUser
	if claims.Admin {
		level = auth.AccessAdmin
	}
	sess := auth.NewSession(claims.UserID, level, in.UserIcon, sync.Now())
	if err := sync.Login(r.Context(), sess); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("failed to start session")
		writeError(w, http.StatusInternalServerError, "Failed to start session")
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sess, sync))
}

type iconRequest struct {
	UserIcon string `json:"user_icon"`
}

// PatchSessionHandler replaces the avatar of a live session.
func PatchSessionHandler(w http.ResponseWriter, r *http.Request, broker auth.Broker) {
	sync, ok := requestSession(w, r, broker)
	if !ok {
		return
	}
	if !sync.IsAuthenticated(r.Context()) {
		writeError(w, http.StatusUnauthorized, "Not logged in")
		return
	}
	var in iconRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := sync.SetUserIcon(r.Context(), in.UserIcon); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("failed to update session icon")
		writeError(w, http.StatusInternalServerError, "Failed to update session")
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sync.Current(r.Context()), sync))
}

// DeleteSessionHandler clears the session keys. The consent flag stays.
func DeleteSessionHandler(w http.ResponseWriter, r *http.Request, broker auth.Broker) {
	sync, ok := requestSession(w, r, broker)
	if !ok {
		return
	}
	if err := sync.Logout(r.Context()); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("failed to clear session")
		writeError(w, http.StatusInternalServerError, "Failed to clear session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
