// Package accesscheck отвечает на вопрос «есть ли у пользователя доступ сегодня».
package accesscheck

import (
	"context"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/subscription-lifecycle/internal/access"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/lib/clock"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/models"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/storage/repository"
)

// ErrUserNotFound пользователь не найден.
var ErrUserNotFound = errors.New("user not found")

// UserGetter загружает пользователя по UID.
type UserGetter interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
}

// Result решение о доступе вместе с данными, на которых оно основано.
type Result struct {
	UserUID            string                    `json:"user_id"`
	SubscriptionStatus models.SubscriptionStatus `json:"subscription_status"`
	Today              string                    `json:"today"`
	access.Decision
}

// Service вычисляет доступ по хранилищу и бизнес-дате.
type Service struct {
	users     UserGetter
	evaluator *access.Evaluator
	clock     clock.Clock
}

// New создаёт Service.
func New(users UserGetter, clk clock.Clock) *Service {
	return &Service{
		users:     users,
		evaluator: access.NewEvaluator(clk.Location()),
		clock:     clk,
	}
}

// Check возвращает решение о доступе пользователя userUID на сегодня.
func (s *Service) Check(ctx context.Context, userUID string) (Result, error) {
	const op = "accesscheck.Check"

	u, err := s.users.GetUser(ctx, userUID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return Result{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	today := s.clock.Today()
	return Result{
		UserUID:            u.UUID,
		SubscriptionStatus: u.SubscriptionStatus,
		Today:              today.String(),
		Decision:           s.evaluator.Evaluate(*u, today),
	}, nil
}
