package usecase

import (
	"errors"
	"fmt"

	chat "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/domain"
)

// ErrBackend indicates an infrastructure/repository failure inside a use case
var ErrBackend = errors.New("chat use case backend error")

// ErrInvalidArgument reports a malformed request (missing ids, self-pairs, ...)
var ErrInvalidArgument = errors.New("chat use case invalid argument")

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, msg)
}

// backend wraps a repository error as ErrBackend unless it already carries a
// domain meaning the caller should see (not found, rejected by access rules).
func backend(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, chat.ErrNotFound) || errors.Is(err, chat.ErrNotAuthorized) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrBackend, err)
}
