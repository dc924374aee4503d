package audit

import (
	"context"

	"github.com/thereayou/ritual-union/pkg/log"
)

const (
	ActionCreateSession = "session.create"
	ActionJoinSession   = "session.join"
	ActionLeaveSession  = "session.leave"
	ActionEndSession    = "session.end"
	ActionDeleteSession = "session.delete"
	ActionRegister      = "user.register"
	ActionLogout        = "user.logout"
)

const FieldAction = "action"

// Log emits a structured audit entry through the context logger.
func Log(ctx context.Context, action string, userID, sessionID uint, msg string) {
	l := log.Ctx(ctx)
	evt := l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Uint(log.FieldUserID, userID)
	if sessionID != 0 {
		evt = evt.Uint(log.FieldSessionID, sessionID)
	}
	evt.Msg(msg)
}
