package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/logging"
	"github.com/dmitrijs2005/gophchat/internal/server/config"
)

// Policy switches the membership rules that differ between deployments.
type Policy struct {
	// EnforceSendMembership rejects messages from users outside the chat.
	// When off the message is stored and the event is logged.
	EnforceSendMembership bool

	// ProtectPrivateMembership forbids removing anyone from a private chat,
	// so private chats keep exactly two participants.
	ProtectPrivateMembership bool
}

func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		EnforceSendMembership:    cfg.EnforceSendMembership,
		ProtectPrivateMembership: cfg.ProtectPrivateMembership,
	}
}

// rule is one named check of an operation. Rules of an operation run in
// table order and the first failure wins, so the table is the error precedence.
type rule[T any] struct {
	name  string
	check func(ctx context.Context, st *T) error
}

func runRules[T any](ctx context.Context, log logging.Logger, st *T, rules []rule[T]) error {
	for _, r := range rules {
		if err := r.check(ctx, st); err != nil {
			log.Debug(ctx, "rule rejected request", "rule", r.name, "error", err)
			return err
		}
	}
	return nil
}

// storeFailure marks err as an unexpected persistence failure.
func storeFailure(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, common.ErrStoreFailure, err)
}

// logStoreFailure logs err at error level when it is a persistence failure.
// Rule rejections are expected outcomes and are not logged here.
func logStoreFailure(ctx context.Context, log logging.Logger, msg string, err error) {
	if errors.Is(err, common.ErrStoreFailure) {
		log.Error(ctx, msg, "error", err)
	}
}
