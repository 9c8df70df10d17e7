package auth

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Service validates requests, calls the backend and publishes results to the Store.
type Service struct {
	backend Backend
	store   *Store
	logger  *zap.Logger
	once    sync.Once
}

func NewService(backend Backend, store *Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{backend: backend, store: store, logger: logger}
}

func (s *Service) Store() *Store {
	return s.store
}

// Start resolves the persisted session in the background. Later calls do nothing.
func (s *Service) Start(ctx context.Context) {
	s.once.Do(func() {
		go s.resolve(ctx)
	})
}

func (s *Service) resolve(ctx context.Context) {
	sess, err := s.backend.Resolve(ctx)
	if err != nil {
		s.logger.Warn("session resolution failed", zap.Error(err))
		sess = nil
	}
	if s.store.resolve(sess) {
		s.logger.Info("session resolved", zap.Bool("authenticated", sess != nil))
	}
}

func (s *Service) Login(ctx context.Context, creds Credentials) (*Session, error) {
	if strings.TrimSpace(creds.Email) == "" || creds.Password == "" {
		return nil, newError(KindInvalidCredentials, "")
	}
	if err := checkEmail(creds.Email); err != nil {
		return nil, err
	}
	sess, err := s.backend.Login(ctx, creds)
	if err != nil {
		authErr := asAuthError(err)
		s.logger.Info("login failed", zap.String("kind", string(authErr.Kind)))
		return nil, authErr
	}
	s.store.set(sess)
	s.logger.Info("login succeeded", zap.String("user_id", sess.UserID))
	return sess, nil
}

func (s *Service) Signup(ctx context.Context, req SignupRequest) (*Session, error) {
	if err := checkEmail(req.Email); err != nil {
		return nil, err
	}
	if err := CheckPassword(req.Password); err != nil {
		return nil, err
	}
	if req.Password != req.ConfirmPassword {
		return nil, newError(KindPasswordMismatch, "")
	}
	sess, err := s.backend.Signup(ctx, req)
	if err != nil {
		return nil, asAuthError(err)
	}
	s.store.set(sess)
	s.logger.Info("signup succeeded", zap.String("user_id", sess.UserID))
	return sess, nil
}

// Logout always clears the local session, even if the backend call fails.
func (s *Service) Logout(ctx context.Context) error {
	err := s.backend.Logout(ctx)
	if err != nil {
		s.logger.Warn("backend logout failed", zap.Error(err))
	}
	s.store.set(nil)
	return nil
}

func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	if err := checkEmail(email); err != nil {
		return "", err
	}
	msg, err := s.backend.RequestPasswordReset(ctx, email)
	if err != nil {
		return "", asAuthError(err)
	}
	return msg, nil
}

func (s *Service) ResetPassword(ctx context.Context, req ResetRequest) error {
	if err := checkEmail(req.Email); err != nil {
		return err
	}
	if strings.TrimSpace(req.Token) == "" {
		return newError(KindInvalidResetToken, "")
	}
	if err := CheckPassword(req.Password); err != nil {
		return err
	}
	if req.Password != req.ConfirmPassword {
		return newError(KindPasswordMismatch, "")
	}
	if err := s.backend.ResetPassword(ctx, req); err != nil {
		return asAuthError(err)
	}
	return nil
}
