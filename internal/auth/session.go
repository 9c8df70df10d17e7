// Package auth owns the signed-in session: the backends that authenticate users and the
// store that publishes the current session to the rest of the application.
package auth

import (
	"context"
	"sync"
)

type Session struct {
	UserID      string `json:"userId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

type Status string

const (
	// StatusUnknown means startup resolution has not finished. It is not "logged out".
	StatusUnknown  Status = "unknown"
	StatusResolved Status = "resolved"
)

type State struct {
	Status  Status   `json:"status"`
	Session *Session `json:"session"`
}

func (s State) Authenticated() bool {
	return s.Status == StatusResolved && s.Session != nil
}

// Store holds the one live session of the process. Only Service writes to it.
type Store struct {
	mu        sync.RWMutex
	state     State
	subs      map[int]chan State
	nextSubID int
	resolved  chan struct{}
}

func NewStore() *Store {
	return &Store{
		state:    State{Status: StatusUnknown},
		subs:     make(map[int]chan State),
		resolved: make(chan struct{}),
	}
}

func (s *Store) Current() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyState(s.state)
}

// UserID returns the signed-in user's id or "".
func (s *Store) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Session == nil {
		return ""
	}
	return s.state.Session.UserID
}

// WaitResolved blocks until the startup resolution (or an earlier login) has completed.
func (s *Store) WaitResolved(ctx context.Context) (State, error) {
	select {
	case <-s.resolved:
		return s.Current(), nil
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
}

// Subscribe delivers the current state immediately and then every change, keeping
// only the latest state for slow readers.
func (s *Store) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan State, 1)
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = ch
	ch <- copyState(s.state)

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
}

func (s *Store) set(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyLocked(session)
}

// resolve applies the startup resolution unless a login already settled the state.
func (s *Store) resolve(session *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Status != StatusUnknown {
		return false
	}
	s.applyLocked(session)
	return true
}

func (s *Store) applyLocked(session *Session) {
	if s.state.Status == StatusUnknown {
		close(s.resolved)
	}
	var sess *Session
	if session != nil {
		c := *session
		sess = &c
	}
	s.state = State{Status: StatusResolved, Session: sess}

	snapshot := copyState(s.state)
	for _, ch := range s.subs {
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
}

func copyState(st State) State {
	if st.Session != nil {
		c := *st.Session
		st.Session = &c
	}
	return st
}
