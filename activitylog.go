package profiles

import (
	"context"
	"time"
)

const (
	ActivitySessionCreated          = "session_created"
	ActivitySessionChangedIp        = "session_changed_ip"
	ActivitySessionChangedUserAgent = "session_changed_user_agent"
	ActivitySignedOut               = "signed_out"
	ActivityProfileUpdated          = "profile_updated"
)

type Activity struct {
	Name string
	Data map[string]interface{}
}

type ActivityLog struct {
	Id        int64
	CreatedAt time.Time
	UserId    UserId
	Name      string
	Data      map[string]interface{}
}

type ActivityStore interface {
	AddLog(ctx context.Context, userId UserId, activity Activity) error

	// Most recent first.
	ByUserId(ctx context.Context, userId UserId) ([]ActivityLog, error)
}
