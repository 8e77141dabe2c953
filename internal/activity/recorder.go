package activity

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/api/middleware"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/database/models"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/tasks"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/pkg/queue"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

// Entry is one auditable action.
type Entry struct {
	OrganizationID *uuid.UUID
	UserID         *uuid.UUID
	Action         string
	Resource       string
	ResourceID     *uuid.UUID
	Details        map[string]interface{}
	IP             string
	UserAgent      string
}

// Recorder writes activity log entries. With a queue client the write is
// enqueued and handled by the worker; without one it falls back to a direct
// insert. Either way a failed write is logged and swallowed, never surfaced
// to the request that triggered it.
type Recorder struct {
	db     *gorm.DB
	client *asynq.Client
	logger *slog.Logger
}

func NewRecorder(db *gorm.DB, client *asynq.Client, logger *slog.Logger) *Recorder {
	return &Recorder{db: db, client: client, logger: logger}
}

func (rec *Recorder) Record(ctx context.Context, entry Entry) {
	if rec.client != nil {
		task, err := tasks.NewActivityRecordTask(tasks.ActivityRecordPayload{
			OrganizationID: entry.OrganizationID,
			UserID:         entry.UserID,
			Action:         entry.Action,
			Resource:       entry.Resource,
			ResourceID:     entry.ResourceID,
			Details:        entry.Details,
			IP:             entry.IP,
			UserAgent:      entry.UserAgent,
		})
		if err == nil {
			if _, err := rec.client.EnqueueContext(ctx, task, asynq.Queue(queue.QueueLow)); err == nil {
				return
			}
			rec.logger.Warn("activity enqueue failed, writing directly", "action", entry.Action)
		}
	}

	log := models.ActivityLog{
		OrganizationID: entry.OrganizationID,
		UserID:         entry.UserID,
		Action:         entry.Action,
		Resource:       entry.Resource,
		ResourceID:     entry.ResourceID,
		Details:        models.JSONMap(entry.Details),
		IP:             entry.IP,
		UserAgent:      entry.UserAgent,
	}
	if err := rec.db.WithContext(ctx).Create(&log).Error; err != nil {
		rec.logger.Error("activity log write failed", "action", entry.Action, "error", err)
	}
}

// RecordRequest fills actor and client fields from the request context.
func (rec *Recorder) RecordRequest(r *http.Request, action, resource string, resourceID *uuid.UUID, details map[string]interface{}) {
	entry := Entry{
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Details:    details,
		IP:         clientIP(r),
		UserAgent:  r.UserAgent(),
	}

	if userID := middleware.GetUserID(r.Context()); userID != uuid.Nil {
		entry.UserID = &userID
	}
	if orgID := middleware.GetOrganizationID(r.Context()); orgID != uuid.Nil {
		entry.OrganizationID = &orgID
	}

	rec.Record(r.Context(), entry)
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for i := 0; i < len(xff); i++ {
			if xff[i] == ',' {
				return xff[:i]
			}
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip := r.RemoteAddr
	for i := len(ip) - 1; i >= 0; i-- {
		if ip[i] == ':' {
			return ip[:i]
		}
	}
	return ip
}
