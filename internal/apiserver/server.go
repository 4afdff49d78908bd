package apiserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/dreamware/ratelsync/internal/resource"
)

// Server is an in-memory Ratel API. It keeps every resource in maps guarded
// by one mutex, counts requests per route and can be told to fail the next
// request to a route.
// Thread-safe: All methods are safe for concurrent access.
type Server struct {
	logger  *zap.Logger
	now     func() time.Time
	latency time.Duration

	mu            sync.RWMutex
	me            string
	spaces        map[string]*resource.Space
	prerequisites map[string]*resource.SpacePrerequisite
	posts         map[string]*resource.Post
	likes         map[string]map[string]bool // post pk -> usernames
	notifications map[string]*resource.Notification
	teams         map[string]*resource.Team
	users         map[string]*resource.User
	codes         map[string]*resource.AttributeCode

	hitsMu sync.Mutex
	hits   map[string]int
	faults map[string][]int
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithLatency delays every response by d.
func WithLatency(d time.Duration) Option {
	return func(s *Server) { s.latency = d }
}

// WithCurrentUser sets the username GET /v3/me resolves to.
func WithCurrentUser(username string) Option {
	return func(s *Server) { s.me = username }
}

// New creates an empty server whose current user exists.
func New(opts ...Option) *Server {
	s := &Server{
		logger:        zap.NewNop(),
		now:           time.Now,
		me:            "alice",
		spaces:        make(map[string]*resource.Space),
		prerequisites: make(map[string]*resource.SpacePrerequisite),
		posts:         make(map[string]*resource.Post),
		likes:         make(map[string]map[string]bool),
		notifications: make(map[string]*resource.Notification),
		teams:         make(map[string]*resource.Team),
		users:         make(map[string]*resource.User),
		codes:         make(map[string]*resource.AttributeCode),
		hits:          make(map[string]int),
		faults:        make(map[string][]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.users[s.me] = &resource.User{Pk: newID(), Username: s.me, Nickname: s.me}
	return s
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("GET /v3/spaces", s.handleListSpaces)
	mux.HandleFunc("GET /v3/spaces/{pk}", s.handleGetSpace)
	mux.HandleFunc("PATCH /v3/spaces/{pk}", s.handleUpdateSpace)
	mux.HandleFunc("DELETE /v3/spaces/{pk}", s.handleDeleteSpace)
	mux.HandleFunc("GET /v3/spaces/{pk}/prerequisite", s.handlePrerequisite)

	mux.HandleFunc("GET /v3/feeds", s.handleFeed)
	mux.HandleFunc("POST /v3/posts", s.handleCreatePost)
	mux.HandleFunc("GET /v3/posts/{pk}", s.handleGetPost)
	mux.HandleFunc("DELETE /v3/posts/{pk}", s.handleDeletePost)
	mux.HandleFunc("POST /v3/posts/{pk}/likes", s.handleLikePost)

	mux.HandleFunc("GET /v3/notifications", s.handleListNotifications)
	mux.HandleFunc("GET /v3/notifications/unread-count", s.handleUnreadCount)
	mux.HandleFunc("DELETE /v3/notifications/{id}", s.handleDeleteNotification)
	mux.HandleFunc("POST /v3/notifications/mark-all-as-read", s.handleMarkAllAsRead)

	mux.HandleFunc("POST /v3/teams", s.handleCreateTeam)
	mux.HandleFunc("GET /v3/teams/{teamname}", s.handleGetTeam)
	mux.HandleFunc("GET /v3/users/{username}/teams", s.handleUserTeams)
	mux.HandleFunc("GET /v3/users/{username}", s.handleGetUser)
	mux.HandleFunc("GET /v3/me", s.handleMe)

	mux.HandleFunc("GET /m3/attribute-codes", s.handleListCodes)
	mux.HandleFunc("POST /m3/attribute-codes", s.handleCreateCode)
	mux.HandleFunc("DELETE /m3/attribute-codes/{id}", s.handleDeleteCode)

	return s.instrument(mux)
}

// instrument counts the request, applies latency and injected faults, and
// logs the outcome.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.Method + " " + r.URL.Path
		status, fail := s.record(route)

		if s.latency > 0 {
			select {
			case <-time.After(s.latency):
			case <-r.Context().Done():
				return
			}
		}

		if fail {
			s.logger.Debug("injected failure", zap.String("route", route), zap.Int("status", status))
			writeError(w, status, http.StatusText(status))
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request served",
			zap.String("route", route),
			zap.Int("status", rec.status),
			zap.String("request_id", r.Header.Get("X-Request-Id")))
	})
}

func (s *Server) record(route string) (int, bool) {
	s.hitsMu.Lock()
	defer s.hitsMu.Unlock()
	s.hits[route]++
	queue := s.faults[route]
	if len(queue) == 0 {
		return 0, false
	}
	status := queue[0]
	if len(queue) == 1 {
		delete(s.faults, route)
	} else {
		s.faults[route] = queue[1:]
	}
	return status, true
}

// Hits returns how many requests reached method and path, query excluded.
//
// Example:
//
//	srv.Hits(http.MethodGet, "/v3/spaces/sp_1")
func (s *Server) Hits(method, path string) int {
	s.hitsMu.Lock()
	defer s.hitsMu.Unlock()
	return s.hits[method+" "+path]
}

// TotalHits returns the number of requests served so far.
func (s *Server) TotalHits() int {
	s.hitsMu.Lock()
	defer s.hitsMu.Unlock()
	n := 0
	for _, h := range s.hits {
		n += h
	}
	return n
}

// FailNext makes the next request to method and path answer status with
// an error body. Calls queue up: two calls fail the next two requests.
func (s *Server) FailNext(method, path string, status int) {
	s.hitsMu.Lock()
	defer s.hitsMu.Unlock()
	route := method + " " + path
	s.faults[route] = append(s.faults[route], status)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func newID() string { return ulid.Make().String() }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, struct {
		Message string `json:"message"`
	}{Message: msg})
}
