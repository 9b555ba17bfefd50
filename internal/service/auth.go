package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mmeshcher/marketplace-gateway/internal/apperr"
	"github.com/mmeshcher/marketplace-gateway/internal/docstore"
	"github.com/mmeshcher/marketplace-gateway/internal/identity"
	"github.com/mmeshcher/marketplace-gateway/internal/model"
)

// RegisterInput: данные для регистрации.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     model.Role
}

// Register создаёт учётную запись у провайдера, сохраняет профиль и возвращает сессию.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.Session, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if in.Name == "" || in.Email == "" || in.Password == "" {
		return nil, apperr.Invalid(s.messages.MissingFields)
	}
	if in.Role == "" {
		in.Role = model.RoleCustomer
	}
	if !in.Role.Valid() {
		return nil, apperr.Invalid(s.messages.InvalidRole)
	}

	acct, err := s.identity.SignUp(ctx, in.Email, in.Password, in.Name)
	if err != nil {
		return nil, s.registerError(err)
	}

	err = s.docs.Set(ctx, usersCollection, acct.UserID, docstore.Fields{
		"name":       in.Name,
		"email":      in.Email,
		"role":       string(in.Role),
		"created_at": docstore.ServerTimestamp,
	})
	if err != nil {
		return nil, storeError(err)
	}

	return &model.Session{
		Token: acct.IDToken,
		User: model.User{
			ID:    acct.UserID,
			Name:  in.Name,
			Email: in.Email,
			Role:  in.Role,
		},
	}, nil
}

func (s *Service) registerError(err error) error {
	var idErr *identity.Error
	switch {
	case errors.Is(err, identity.ErrNotConfigured):
		return apperr.Internal(s.messages.MissingAPIKey, err)
	case errors.Is(err, identity.ErrUnavailable):
		return apperr.Unavailable(fmt.Sprintf(s.messages.IdentityDown, "sign up"), err)
	case errors.Is(err, identity.ErrIncompleteResponse):
		return apperr.Internal(s.messages.IncompleteIdentity, err)
	case errors.Is(err, identity.ErrEmailExists):
		return apperr.Wrap(apperr.EInvalid, s.messages.EmailExists, err)
	case errors.As(err, &idErr):
		return apperr.Wrap(apperr.EInvalid, fmt.Sprintf(s.messages.Rejected, reasonOrKind(idErr)), err)
	default:
		return apperr.Internal("sign up failed", err)
	}
}

// Login проверяет email и пароль у провайдера и возвращает сессию с профилем пользователя.
func (s *Service) Login(ctx context.Context, email, password string) (*model.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperr.Invalid(s.messages.MissingFields)
	}

	acct, err := s.identity.SignIn(ctx, email, password)
	if err != nil {
		return nil, s.loginError(err)
	}

	user, err := s.loadUser(ctx, acct.UserID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperr.NotFound(s.messages.ProfileNotFound)
		}
		return nil, storeError(err)
	}

	return &model.Session{Token: acct.IDToken, User: user}, nil
}

func (s *Service) loginError(err error) error {
	var idErr *identity.Error
	switch {
	case errors.Is(err, identity.ErrNotConfigured):
		return apperr.Internal(s.messages.MissingAPIKey, err)
	case errors.Is(err, identity.ErrUnavailable):
		return apperr.Unavailable(fmt.Sprintf(s.messages.IdentityDown, "sign in"), err)
	case errors.Is(err, identity.ErrIncompleteResponse):
		return apperr.Internal(s.messages.IncompleteIdentity, err)
	case errors.Is(err, identity.ErrInvalidCredentials):
		return apperr.Wrap(apperr.EUnauthenticated, s.messages.InvalidCredentials, err)
	case errors.Is(err, identity.ErrUserDisabled):
		return apperr.Wrap(apperr.EForbidden, s.messages.UserDisabled, err)
	case errors.As(err, &idErr):
		if idErr.Reason == "" {
			return apperr.Wrap(apperr.EUnauthenticated, s.messages.InvalidIdentity, err)
		}
		return apperr.Wrap(apperr.EUnauthenticated, fmt.Sprintf(s.messages.AuthError, idErr.Reason), err)
	default:
		return apperr.Internal("sign in failed", err)
	}
}

func reasonOrKind(e *identity.Error) string {
	if e.Reason != "" {
		return e.Reason
	}
	return e.Kind.Error()
}

// ResolveIdentity проверяет токен и загружает профиль его владельца.
// Результат не кешируется: каждый запрос проверяет токен заново.
func (s *Service) ResolveIdentity(ctx context.Context, token string) (model.User, error) {
	if token == "" {
		return model.User{}, apperr.Unauthenticated(s.messages.MissingToken)
	}

	acct, err := s.identity.Verify(ctx, token)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrUnavailable):
			return model.User{}, apperr.Unavailable(fmt.Sprintf(s.messages.IdentityDown, "verify"), err)
		case errors.Is(err, identity.ErrNotConfigured):
			return model.User{}, apperr.Internal(s.messages.MissingAPIKey, err)
		default:
			return model.User{}, apperr.Wrap(apperr.EUnauthenticated, s.messages.InvalidToken, err)
		}
	}

	user, err := s.loadUser(ctx, acct.UserID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return model.User{}, apperr.Wrap(apperr.EUnauthenticated, s.messages.InvalidToken, err)
		}
		return model.User{}, storeError(err)
	}
	return user, nil
}

func (s *Service) loadUser(ctx context.Context, id string) (model.User, error) {
	doc, err := s.docs.Get(ctx, usersCollection, id)
	if err != nil {
		return model.User{}, err
	}

	var u model.User
	if err := doc.Decode(&u); err != nil {
		return model.User{}, err
	}
	u.ID = doc.ID
	if u.Role == "" {
		u.Role = model.RoleCustomer
	}
	return u, nil
}
