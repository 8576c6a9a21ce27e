package deeplink

import (
	"context"

	"go.uber.org/zap"
)

// Navigator opens in-app targets.
type Navigator interface {
	OpenCommunity(ctx context.Context, communityID string) error
	OpenEvent(ctx context.Context, communityID string) error
	OpenUser(ctx context.Context, userID string) error
	OpenConversation(ctx context.Context, conversationID string) error
}

type Dispatcher struct {
	Navigator Navigator
	Logger    *zap.Logger
}

func NewDispatcher(nav Navigator, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{Navigator: nav, Logger: logger}
}

// Handle parses raw and dispatches it. Empty input is ignored.
func (d *Dispatcher) Handle(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}
	return d.Dispatch(ctx, Parse(raw))
}

// Dispatch routes l to the navigator. Links without an id and unknown kinds
// are logged and dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, l Link) error {
	if l.ID == "" {
		d.Logger.Warn("deeplink: no id in link", zap.String("kind", string(l.Kind)))
		return nil
	}

	var err error
	switch l.Kind {
	case KindCommunity:
		err = d.Navigator.OpenCommunity(ctx, l.ID)
	case KindEvent:
		err = d.Navigator.OpenEvent(ctx, l.ID)
	case KindUser:
		err = d.Navigator.OpenUser(ctx, l.ID)
	case KindChat, KindDM:
		err = d.Navigator.OpenConversation(ctx, l.ID)
	default:
		d.Logger.Warn("deeplink: unknown link kind", zap.String("kind", string(l.Kind)))
		return nil
	}
	if err != nil {
		d.Logger.Error("deeplink: navigation failed",
			zap.String("kind", string(l.Kind)), zap.String("id", l.ID), zap.Error(err))
	}
	return err
}
