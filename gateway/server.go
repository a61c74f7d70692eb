// Package gateway is the HTTP transport over the messaging core. It maps
// JSON requests onto service operations and bridges the delivery bus to
// server-sent event streams. The core never sees HTTP types.
package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"libroreads/auth"
	"libroreads/contract"
	"libroreads/domain"
	"libroreads/domain/chat"
	apperrors "libroreads/errors"
	"libroreads/services"
)

type Server struct {
	log           *slog.Logger
	chats         services.IChatService
	social        services.ISocialService
	auths         services.IAuthService
	bus           contract.IDeliveryBus
	stats         func() map[string]any
	allowedOrigin string
}

func NewServer(
	log *slog.Logger,
	chats services.IChatService,
	social services.ISocialService,
	auths services.IAuthService,
	bus contract.IDeliveryBus,
	stats func() map[string]any,
	allowedOrigin string,
) *Server {
	return &Server{
		log:           log,
		chats:         chats,
		social:        social,
		auths:         auths,
		bus:           bus,
		stats:         stats,
		allowedOrigin: allowedOrigin,
	}
}

// Handler wires every route. Protected routes require a valid session
// token whose user matches the acting user of the operation.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)

	mux.HandleFunc("POST /api/messages/send", s.authenticated(s.handleSend))
	mux.HandleFunc("GET /api/messages/conversation/{user1Id}/{user2Id}", s.authenticated(s.handleConversation))
	mux.HandleFunc("GET /api/messages/chats/{userId}", s.authenticated(s.handleInbox))
	mux.HandleFunc("POST /api/messages/mark-as-read", s.authenticated(s.handleMarkAsRead))
	mux.HandleFunc("GET /api/messages/unread-counts-by-sender/{userId}", s.authenticated(s.handleUnreadCounts))
	mux.HandleFunc("GET /api/messages/unread-count/{userId}", s.authenticated(s.handleTotalUnread))
	mux.HandleFunc("GET /api/events/{userId}", s.authenticated(s.handleEvents))

	mux.HandleFunc("POST /api/follows/{followerId}/{followingId}", s.authenticated(s.handleFollow))
	mux.HandleFunc("DELETE /api/follows/{followerId}/{followingId}", s.authenticated(s.handleUnfollow))
	mux.HandleFunc("GET /api/follows/following/{userId}", s.authenticated(s.handleFollowing))
	mux.HandleFunc("GET /api/follows/followers/{userId}", s.authenticated(s.handleFollowers))

	mux.HandleFunc("POST /api/shelves/{userId}/{kind}", s.authenticated(s.handleShelfAdd))
	mux.HandleFunc("DELETE /api/shelves/{userId}/{kind}/{bookId}", s.authenticated(s.handleShelfRemove))
	mux.HandleFunc("GET /api/shelves/{userId}/{kind}", s.authenticated(s.handleShelfList))

	mux.HandleFunc("GET /health", s.handleHealth)

	return s.cors(mux)
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type authedHandler func(w http.ResponseWriter, r *http.Request, claims *auth.SessionClaims)

// authenticated validates the bearer token and hands the claims to the
// handler. Handlers enforce that the token's user matches the acting user.
func (s *Server) authenticated(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			s.writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		claims, err := auth.ValidateToken(token)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
			return
		}
		next(w, r, claims)
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return ""
	}
	return header[len(prefix):]
}

// --- auth ---

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	user, token, err := s.auths.Register(req.Username, req.Email, req.Password)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"user":  toUserJSON(user),
		"token": string(token),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	user, token, err := s.auths.Login(req.Email, req.Password)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"user":  toUserJSON(user),
		"token": string(token),
	})
}

// --- messaging ---

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request, claims *auth.SessionClaims) {
	var req struct {
		SenderID   int    `json:"senderId"`
		ReceiverID int    `json:"receiverId"`
		Content    string `json:"content"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if claims.UserID != domain.UserID(req.SenderID) {
		s.writeError(w, http.StatusForbidden, "forbidden", "token does not match sender")
		return
	}
	msg, err := s.chats.Send(chat.SendMessageCommand{
		SenderID:   domain.UserID(req.SenderID),
		ReceiverID: domain.UserID(req.ReceiverID),
		Content:    req.Content,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toMessageJSON(msg))
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request, claims *auth.SessionClaims) {
	a, ok := s.pathUserID(w, r, "user1Id")
	if !ok {
		return
	}
	b, ok := s.pathUserID(w, r, "user2Id")
	if !ok {
		return
	}
	if claims.UserID != a && claims.UserID != b {
		s.writeError(w, http.StatusForbidden, "forbidden", "token holder is not a participant")
		return
	}
	messages, err := s.chats.GetConversation(a, b)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toMessagesJSON(messages))
}

func (s *Server) handleInbox(w http.ResponseWriter, r *http.Request, claims *auth.SessionClaims) {
	userID, ok := s.requireSelf(w, r, claims)
	if !ok {
		return
	}
	messages, err := s.chats.GetInbox(userID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toMessagesJSON(messages))
}

func (s *Server) handleMarkAsRead(w http.ResponseWriter, r *http.Request, claims *auth.SessionClaims) {
	senderID, err := strconv.Atoi(r.URL.Query().Get("senderId"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_argument", "senderId must be an integer")
		return
	}
	receiverID, err := strconv.Atoi(r.URL.Query().Get("receiverId"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_argument", "receiverId must be an integer")
		return
	}
	// Only the reader may mark their own side of the conversation.
	if claims.UserID != domain.UserID(receiverID) {
		s.writeError(w, http.StatusForbidden, "forbidden", "token does not match reader")
		return
	}
	err = s.chats.MarkConversationRead(chat.MarkReadCommand{
		SenderID:   domain.UserID(senderID),
		ReceiverID: domain.UserID(receiverID),
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnreadCounts(w http.ResponseWriter, r *http.Request, claims *auth.SessionClaims) {
	userID, ok := s.requireSelf(w, r, claims)
	if !ok {
		return
	}
	counts, err := s.chats.UnreadCounts(userID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, countsJSON(counts))
}

func (s *Server) handleTotalUnread(w http.ResponseWriter, r *http.Request, claims *auth.SessionClaims) {
	userID, ok := s.requireSelf(w, r, claims)
	if !ok {
		return
	}
	total, err := s.chats.TotalUnread(userID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"unreadCount": total})
}

// --- social graph ---

func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request, claims *auth.SessionClaims) {
	follower, following, ok := s.followPair(w, r, claims)
	if !ok {
		return
	}
	if err := s.social.Follow(follower, following); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleUnfollow(w http.ResponseWriter, r *http.Request, claims *auth.SessionClaims) {
	follower, following, ok := s.followPair(w, r, claims)
	if !ok {
		return
	}
	if err := s.social.Unfollow(follower, following); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) followPair(w http.ResponseWriter, r *http.Request, claims *auth.SessionClaims) (domain.UserID, domain.UserID, bool) {
	follower, ok := s.pathUserID(w, r, "followerId")
	if !ok {
		return 0, 0, false
	}
	following, ok := s.pathUserID(w, r, "followingId")
	if !ok {
		return 0, 0, false
	}
	if claims.UserID != follower {
		s.writeError(w, http.StatusForbidden, "forbidden", "token does not match follower")
		return 0, 0, false
	}
	return follower, following, true
}

func (s *Server) handleFollowing(w http.ResponseWriter, r *http.Request, _ *auth.SessionClaims) {
	userID, ok := s.pathUserID(w, r, "userId")
	if !ok {
		return
	}
	users, err := s.social.Following(userID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toUsersJSON(users))
}

func (s *Server) handleFollowers(w http.ResponseWriter, r *http.Request, _ *auth.SessionClaims) {
	userID, ok := s.pathUserID(w, r, "userId")
	if !ok {
		return
	}
	users, err := s.social.Followers(userID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toUsersJSON(users))
}

// --- shelves ---

func (s *Server) handleShelfAdd(w http.ResponseWriter, r *http.Request, claims *auth.SessionClaims) {
	userID, kind, ok := s.shelfTarget(w, r, claims)
	if !ok {
		return
	}
	var req struct {
		BookID string `json:"bookId"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.BookID == "" {
		s.writeError(w, http.StatusBadRequest, "invalid_argument", "bookId is required")
		return
	}
	if err := s.social.AddToShelf(userID, req.BookID, kind); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleShelfRemove(w http.ResponseWriter, r *http.Request, claims *auth.SessionClaims) {
	userID, kind, ok := s.shelfTarget(w, r, claims)
	if !ok {
		return
	}
	if err := s.social.RemoveFromShelf(userID, r.PathValue("bookId"), kind); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleShelfList(w http.ResponseWriter, r *http.Request, _ *auth.SessionClaims) {
	userID, ok := s.pathUserID(w, r, "userId")
	if !ok {
		return
	}
	kind, ok := shelfKind(r.PathValue("kind"))
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid_argument", "kind must be fav or read")
		return
	}
	entries, err := s.social.Shelf(userID, kind)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	books := make([]map[string]string, 0, len(entries))
	for _, entry := range entries {
		books = append(books, map[string]string{"bookId": entry.BookID})
	}
	s.writeJSON(w, http.StatusOK, books)
}

func (s *Server) shelfTarget(w http.ResponseWriter, r *http.Request, claims *auth.SessionClaims) (domain.UserID, domain.ShelfKind, bool) {
	userID, ok := s.pathUserID(w, r, "userId")
	if !ok {
		return 0, "", false
	}
	if claims.UserID != userID {
		s.writeError(w, http.StatusForbidden, "forbidden", "token does not match shelf owner")
		return 0, "", false
	}
	kind, ok := shelfKind(r.PathValue("kind"))
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid_argument", "kind must be fav or read")
		return 0, "", false
	}
	return userID, kind, true
}

func shelfKind(raw string) (domain.ShelfKind, bool) {
	switch domain.ShelfKind(raw) {
	case domain.ShelfFavorites, domain.ShelfRead:
		return domain.ShelfKind(raw), true
	default:
		return "", false
	}
}

// --- health ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{"status": "ok"}
	if s.stats != nil {
		payload["stats"] = s.stats()
	}
	s.writeJSON(w, http.StatusOK, payload)
}

// --- plumbing ---

func (s *Server) requireSelf(w http.ResponseWriter, r *http.Request, claims *auth.SessionClaims) (domain.UserID, bool) {
	userID, ok := s.pathUserID(w, r, "userId")
	if !ok {
		return 0, false
	}
	if claims.UserID != userID {
		s.writeError(w, http.StatusForbidden, "forbidden", "token does not match user")
		return 0, false
	}
	return userID, true
}

func (s *Server) pathUserID(w http.ResponseWriter, r *http.Request, name string) (domain.UserID, bool) {
	id, err := strconv.Atoi(r.PathValue(name))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_argument", name+" must be an integer")
		return 0, false
	}
	return domain.UserID(id), true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_argument", "malformed JSON body")
		return false
	}
	return true
}

// writeServiceError maps the core error taxonomy onto HTTP status codes.
// Unrecognized errors are treated as transient store failures.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var valErrs validator.ValidationErrors
	switch {
	case errors.Is(err, apperrors.ErrEmptyContent),
		errors.Is(err, apperrors.ErrSelfConversation),
		errors.Is(err, apperrors.ErrSelfFollow),
		errors.Is(err, apperrors.ErrInvalidPassword),
		errors.As(err, &valErrs):
		s.writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
	case errors.Is(err, apperrors.ErrUserNotFound),
		errors.Is(err, apperrors.ErrMessageNotFound),
		errors.Is(err, apperrors.ErrNotFollowing),
		errors.Is(err, apperrors.ErrNotOnShelf):
		s.writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, apperrors.ErrUserAlreadyExists),
		errors.Is(err, apperrors.ErrAlreadyFollowing):
		s.writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		s.writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	default:
		s.log.Error("Request failed on a store error", "error", err)
		s.writeError(w, http.StatusServiceUnavailable, "transient_store_error", "temporarily unavailable")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, kind, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": map[string]string{"kind": kind, "message": message},
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Debug("Response write failed", "error", err)
	}
}
