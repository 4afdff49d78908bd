package apiserver

import (
	"cmp"
	"encoding/json"
	"net/http"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/dreamware/ratelsync/internal/resource"
)

// PageSize is the number of items a list endpoint returns per page.
const PageSize = 50

func (s *Server) handleListSpaces(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	s.mu.RLock()
	items := make([]resource.Space, 0, len(s.spaces))
	for _, sp := range s.spaces {
		if status == "" || sp.Status == status {
			items = append(items, *sp)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(items, func(a, b resource.Space) int { return cmp.Compare(a.Pk, b.Pk) })
	page, next := paginate(items, func(sp resource.Space) string { return sp.Pk }, r.URL.Query().Get("bookmark"))
	writeJSON(w, http.StatusOK, resource.ListResponse[resource.Space]{Items: page, Bookmark: next})
}

func (s *Server) handleGetSpace(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	sp, ok := s.spaces[r.PathValue("pk")]
	var out resource.Space
	if ok {
		out = *sp
	}
	s.mu.RUnlock()

	if !ok {
		writeError(w, http.StatusNotFound, "space not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateSpace(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title must not be empty")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.spaces[r.PathValue("pk")]
	if !ok {
		writeError(w, http.StatusNotFound, "space not found")
		return
	}
	if req.Title != nil {
		sp.Title = *req.Title
	}
	if req.Description != nil {
		sp.Description = *req.Description
	}
	writeJSON(w, http.StatusOK, *sp)
}

func (s *Server) handleDeleteSpace(w http.ResponseWriter, r *http.Request) {
	pk := r.PathValue("pk")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.spaces[pk]; !ok {
		writeError(w, http.StatusNotFound, "space not found")
		return
	}
	delete(s.spaces, pk)
	delete(s.prerequisites, pk)
	for id, p := range s.posts {
		if p.SpacePk == pk {
			delete(s.posts, id)
			delete(s.likes, id)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePrerequisite(w http.ResponseWriter, r *http.Request) {
	pk := r.PathValue("pk")
	s.mu.RLock()
	_, exists := s.spaces[pk]
	pre, ok := s.prerequisites[pk]
	out := resource.SpacePrerequisite{Completed: true}
	if ok {
		out = resource.SpacePrerequisite{Completed: pre.Completed, Pending: slices.Clone(pre.Pending)}
	}
	s.mu.RUnlock()

	if !exists {
		writeError(w, http.StatusNotFound, "space not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status, username := q.Get("status"), q.Get("username")
	s.mu.RLock()
	items := make([]resource.Post, 0, len(s.posts))
	for _, p := range s.posts {
		if status != "" && p.Status != status {
			continue
		}
		if username != "" && p.AuthorUsername != username {
			continue
		}
		items = append(items, s.viewPost(p))
	}
	s.mu.RUnlock()

	// Newest first; ULIDs order by creation time.
	slices.SortFunc(items, func(a, b resource.Post) int { return cmp.Compare(b.Pk, a.Pk) })
	page, next := paginate(items, func(p resource.Post) string { return p.Pk }, q.Get("bookmark"))
	writeJSON(w, http.StatusOK, resource.ListResponse[resource.Post]{Items: page, Bookmark: next})
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req resource.CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if req.SpacePk != "" {
		if _, ok := s.spaces[req.SpacePk]; !ok {
			writeError(w, http.StatusNotFound, "space not found")
			return
		}
	}
	p := &resource.Post{
		Pk:             newID(),
		Title:          req.Title,
		HTMLContents:   req.HTMLContents,
		AuthorUsername: s.me,
		SpacePk:        req.SpacePk,
		Status:         "published",
		CreatedAt:      s.now().Unix(),
	}
	s.posts[p.Pk] = p
	writeJSON(w, http.StatusCreated, s.viewPost(p))
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	p, ok := s.posts[r.PathValue("pk")]
	var out resource.Post
	if ok {
		out = s.viewPost(p)
	}
	s.mu.RUnlock()

	if !ok {
		writeError(w, http.StatusNotFound, "post not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	pk := r.PathValue("pk")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[pk]; !ok {
		writeError(w, http.StatusNotFound, "post not found")
		return
	}
	delete(s.posts, pk)
	delete(s.likes, pk)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLikePost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Like bool `json:"like"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}

	pk := r.PathValue("pk")
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[pk]
	if !ok {
		writeError(w, http.StatusNotFound, "post not found")
		return
	}
	set := s.likes[pk]
	if set == nil {
		set = make(map[string]bool)
		s.likes[pk] = set
	}
	switch {
	case req.Like && !set[s.me]:
		set[s.me] = true
		p.Likes++
	case !req.Like && set[s.me]:
		delete(set, s.me)
		if p.Likes > 0 {
			p.Likes--
		}
	}
	writeJSON(w, http.StatusOK, s.viewPost(p))
}

// viewPost returns p as the current user sees it. Callers hold s.mu.
func (s *Server) viewPost(p *resource.Post) resource.Post {
	out := *p
	out.Liked = s.likes[p.Pk][s.me]
	return out
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	unreadOnly := r.URL.Query().Get("unread_only") == "true"
	s.mu.RLock()
	items := make([]resource.Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if unreadOnly && n.Read {
			continue
		}
		items = append(items, *n)
	}
	s.mu.RUnlock()

	slices.SortFunc(items, func(a, b resource.Notification) int { return cmp.Compare(b.ID, a.ID) })
	page, next := paginate(items, func(n resource.Notification) string { return n.ID }, r.URL.Query().Get("bookmark"))
	writeJSON(w, http.StatusOK, resource.ListResponse[resource.Notification]{Items: page, Bookmark: next})
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	n := 0
	for _, notif := range s.notifications {
		if !notif.Read {
			n++
		}
	}
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, resource.UnreadCount{Count: n})
}

func (s *Server) handleDeleteNotification(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[id]; !ok {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}
	delete(s.notifications, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMarkAllAsRead(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	for _, n := range s.notifications {
		n.Read = true
	}
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	var req resource.CreateTeamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.Username == "" || req.Nickname == "" {
		writeError(w, http.StatusBadRequest, "username and nickname required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.teams[req.Username]; taken {
		writeError(w, http.StatusConflict, "team already exists")
		return
	}
	if _, taken := s.users[req.Username]; taken {
		writeError(w, http.StatusConflict, "username already taken")
		return
	}
	t := &resource.Team{
		Pk:          newID(),
		Username:    req.Username,
		Nickname:    req.Nickname,
		Description: req.Description,
		Members:     []string{s.me},
	}
	s.teams[t.Username] = t
	if u, ok := s.users[s.me]; ok {
		u.Teams = append(u.Teams, t.Username)
	}
	writeJSON(w, http.StatusCreated, cloneTeam(t))
}

func (s *Server) handleGetTeam(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	t, ok := s.teams[r.PathValue("teamname")]
	var out resource.Team
	if ok {
		out = cloneTeam(t)
	}
	s.mu.RUnlock()

	if !ok {
		writeError(w, http.StatusNotFound, "team not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUserTeams(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	s.mu.RLock()
	_, exists := s.users[username]
	out := make([]resource.Team, 0)
	for _, t := range s.teams {
		if slices.Contains(t.Members, username) {
			out = append(out, cloneTeam(t))
		}
	}
	s.mu.RUnlock()

	if !exists {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	slices.SortFunc(out, func(a, b resource.Team) int { return cmp.Compare(a.Username, b.Username) })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	s.writeUser(w, r.PathValue("username"))
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.writeUser(w, s.me)
}

func (s *Server) writeUser(w http.ResponseWriter, username string) {
	s.mu.RLock()
	u, ok := s.users[username]
	var out resource.User
	if ok {
		out = *u
		out.Teams = slices.Clone(u.Teams)
	}
	s.mu.RUnlock()

	if !ok {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListCodes(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	items := make([]resource.AttributeCode, 0, len(s.codes))
	for _, c := range s.codes {
		items = append(items, *c)
	}
	s.mu.RUnlock()

	slices.SortFunc(items, func(a, b resource.AttributeCode) int { return cmp.Compare(a.ID, b.ID) })
	writeJSON(w, http.StatusOK, resource.ListResponse[resource.AttributeCode]{Items: items})
}

func (s *Server) handleCreateCode(w http.ResponseWriter, r *http.Request) {
	var req resource.CreateAttributeCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, "code required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.codes {
		if c.Code == req.Code {
			writeError(w, http.StatusConflict, "code already exists")
			return
		}
	}
	c := &resource.AttributeCode{ID: newID(), Code: req.Code, Description: req.Description}
	s.codes[c.ID] = c
	writeJSON(w, http.StatusCreated, *c)
}

func (s *Server) handleDeleteCode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.codes[id]; !ok {
		writeError(w, http.StatusNotFound, "attribute code not found")
		return
	}
	delete(s.codes, id)
	w.WriteHeader(http.StatusNoContent)
}

// paginate returns the page following bookmark and the bookmark of the
// page after it, empty on the last page.
func paginate[T any](items []T, pk func(T) string, bookmark string) ([]T, string) {
	start := 0
	if bookmark != "" {
		idx := slices.IndexFunc(items, func(it T) bool { return pk(it) == bookmark })
		if idx < 0 {
			return []T{}, ""
		}
		start = idx + 1
	}
	end := min(start+PageSize, len(items))
	page := items[start:end]
	if end < len(items) {
		return page, pk(items[end-1])
	}
	return page, ""
}

func cloneTeam(t *resource.Team) resource.Team {
	out := *t
	out.Members = slices.Clone(t.Members)
	return out
}
