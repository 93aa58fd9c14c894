package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ironcrew/ironcrew-server/internal/domain"
	domainerrors "github.com/ironcrew/ironcrew-server/internal/errors"
	"github.com/ironcrew/ironcrew-server/internal/store"
)

// Each service declares the store methods it needs; *sqlite.Store satisfies
// all of them.

// GroupReader resolves groups and member roles for permission checks.
type GroupReader interface {
	GetGroup(ctx context.Context, id string) (*domain.Group, error)
	GetMemberRole(ctx context.Context, groupID, userID string) (domain.GroupRole, error)
}

// StatsReader derives the counters achievements and levels are computed from.
type StatsReader interface {
	GetLifetimeStats(ctx context.Context, userID string) (*domain.UserStats, error)
	GetSocialStats(ctx context.Context, userID string) (*domain.SocialStats, error)
}

// translate maps a store error onto the domain taxonomy. Unknown errors are
// wrapped with what so the log shows the failing step.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}

	var se *store.Error
	switch {
	case errors.Is(err, store.ErrNotFound):
		return domainerrors.NotFoundf("%s not found", what)
	case errors.Is(err, store.ErrAlreadyExists), errors.Is(err, store.ErrStateChanged):
		msg := what + " conflicts with its current state"
		if errors.As(err, &se) {
			msg = se.Message
		}
		return domainerrors.Conflict(msg).WithCause(err)
	case isDomainError(err):
		return err
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}

func isDomainError(err error) bool {
	var de *domainerrors.Error
	return errors.As(err, &de)
}

// requireManager fails with NotFound for an unknown group and Forbidden when
// userID is not an owner or admin of it.
func requireManager(ctx context.Context, groups GroupReader, groupID, userID string) error {
	if _, err := groups.GetGroup(ctx, groupID); err != nil {
		return translate(err, "group")
	}
	role, err := groups.GetMemberRole(ctx, groupID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domainerrors.Forbiddenf("not a member of group %s", groupID)
	}
	if err != nil {
		return translate(err, "member role")
	}
	if !role.CanManage() {
		return domainerrors.Forbiddenf("only an owner or admin of group %s can do this", groupID)
	}
	return nil
}

// requireMember fails with NotFound for an unknown group and Forbidden when
// userID does not belong to it.
func requireMember(ctx context.Context, groups GroupReader, groupID, userID string) error {
	if _, err := groups.GetGroup(ctx, groupID); err != nil {
		return translate(err, "group")
	}
	if _, err := groups.GetMemberRole(ctx, groupID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domainerrors.Forbiddenf("not a member of group %s", groupID)
		}
		return translate(err, "member role")
	}
	return nil
}
