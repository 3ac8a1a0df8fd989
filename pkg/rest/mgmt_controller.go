package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/listarchive/listarchive/pkg/moderation"
	"github.com/listarchive/listarchive/pkg/rest/model"
	"github.com/listarchive/listarchive/pkg/server/web"
	"github.com/listarchive/listarchive/pkg/storage"
)

const (
	// maxMgmtBody limits the size of moderation requests.
	maxMgmtBody   = 1 << 20
	adminRequired = "You need administrative access to use this endpoint!"
)

// Mgmt applies a moderation request.  The log action renders the audit log as JSON, other
// actions render the outcome text.
func Mgmt(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	if !ctx.Caps.Admin {
		web.RenderText(w, http.StatusForbidden, adminRequired)
		return nil
	}
	body, err := io.ReadAll(io.LimitReader(req.Body, maxMgmtBody))
	if err != nil {
		return fmt.Errorf("failed to read request: %w", err)
	}
	mreq := &moderation.Request{}
	if err := json.Unmarshal(body, mreq); err != nil {
		return web.RenderJSONStatus(w, http.StatusBadRequest,
			&model.JSONError{Error: "Request body must be a JSON object"})
	}

	result, err := ctx.Moderator.Apply(ctx.Caps, mreq)
	var verr *moderation.ValidationError
	switch {
	case err == nil:
	case errors.Is(err, moderation.ErrForbidden):
		web.RenderText(w, http.StatusForbidden, adminRequired)
		return nil
	case errors.Is(err, moderation.ErrUnknownAction):
		web.RenderText(w, http.StatusNotFound, "No such management action!")
		return nil
	case errors.Is(err, storage.ErrNotExist):
		web.RenderText(w, http.StatusNotFound, emailNotFound)
		return nil
	case errors.As(err, &verr):
		return web.RenderJSONStatus(w, http.StatusBadRequest,
			&model.JSONError{Error: verr.Message, Field: verr.Field})
	default:
		return fmt.Errorf("moderation %q failed: %w", mreq.Action, err)
	}

	if result.Action == moderation.Log {
		return web.RenderJSON(w, auditLogModel(result.Entries))
	}
	web.RenderText(w, http.StatusOK, result.Text)
	return nil
}

// GetAuditLog renders the audit log to admins.
func GetAuditLog(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	entries, err := ctx.Audit.Entries(ctx.Caps)
	if errors.Is(err, moderation.ErrForbidden) {
		web.RenderText(w, http.StatusForbidden, adminRequired)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to list audit log: %w", err)
	}
	return web.RenderJSON(w, auditLogModel(entries))
}

func auditLogModel(entries []*storage.AuditEntry) *model.JSONAuditLog {
	log := &model.JSONAuditLog{Entries: make([]*model.JSONAuditEntry, len(entries))}
	for i, e := range entries {
		log.Entries[i] = &model.JSONAuditEntry{
			ID:        e.ID,
			Action:    e.Action,
			Documents: e.Documents,
			Actor:     e.Actor,
			Timestamp: e.Timestamp,
			Affected:  e.Affected,
			Outcome:   e.Outcome,
		}
	}
	return log
}
