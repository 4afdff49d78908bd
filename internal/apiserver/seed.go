package apiserver

import (
	"golang.org/x/exp/slices"

	"github.com/dreamware/ratelsync/internal/resource"
)

// AddSpace stores sp, assigning a pk when it has none, and returns it.
func (s *Server) AddSpace(sp resource.Space) resource.Space {
	if sp.Pk == "" {
		sp.Pk = newID()
	}
	if sp.Status == "" {
		sp.Status = "public"
	}
	if sp.CreatedAt == 0 {
		sp.CreatedAt = s.now().Unix()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := sp
	s.spaces[sp.Pk] = &stored
	return sp
}

// Space returns the stored space with pk.
func (s *Server) Space(pk string) (resource.Space, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sp, ok := s.spaces[pk]
	if !ok {
		return resource.Space{}, false
	}
	return *sp, true
}

// SetPrerequisite sets what the current user still has to do to join pk.
func (s *Server) SetPrerequisite(pk string, pending ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prerequisites[pk] = &resource.SpacePrerequisite{
		Completed: len(pending) == 0,
		Pending:   slices.Clone(pending),
	}
}

// AddPost stores p, assigning a pk when it has none, and returns it.
func (s *Server) AddPost(p resource.Post) resource.Post {
	if p.Pk == "" {
		p.Pk = newID()
	}
	if p.Status == "" {
		p.Status = "published"
	}
	if p.AuthorUsername == "" {
		p.AuthorUsername = s.me
	}
	p.Liked = false
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := p
	s.posts[p.Pk] = &stored
	return p
}

// AddNotification stores n, assigning an id when it has none, and returns it.
func (s *Server) AddNotification(n resource.Notification) resource.Notification {
	if n.ID == "" {
		n.ID = newID()
	}
	if n.CreatedAt == 0 {
		n.CreatedAt = s.now().Unix()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := n
	s.notifications[n.ID] = &stored
	return n
}

// AddUser stores u, replacing any user with the same username.
func (s *Server) AddUser(u resource.User) resource.User {
	if u.Pk == "" {
		u.Pk = newID()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := u
	stored.Teams = slices.Clone(u.Teams)
	s.users[u.Username] = &stored
	return u
}

// AddAttributeCode stores c, assigning an id when it has none, and returns it.
func (s *Server) AddAttributeCode(c resource.AttributeCode) resource.AttributeCode {
	if c.ID == "" {
		c.ID = newID()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := c
	s.codes[c.ID] = &stored
	return c
}
