package rest

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/listarchive/listarchive/pkg/message"
	"github.com/listarchive/listarchive/pkg/rest/model"
	"github.com/listarchive/listarchive/pkg/server/web"
	"github.com/listarchive/listarchive/pkg/storage"
)

const emailNotFound = "Email not found!"

// GetEmail renders an email by permalink or message-id.
func GetEmail(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	q := req.URL.Query()
	id := strings.TrimSpace(q.Get("id"))
	if id == "" {
		web.RenderText(w, http.StatusNotFound, emailNotFound)
		return nil
	}
	email, err := ctx.Manager.GetEmail(ctx.Caps, id, q.Get("listid"))
	if errors.Is(err, storage.ErrNotExist) {
		web.RenderText(w, http.StatusNotFound, emailNotFound)
		return nil
	}
	if err != nil {
		return fmt.Errorf("GetEmail(%q) failed: %w", id, err)
	}
	return web.RenderJSON(w, emailModel(email))
}

// GetSource renders the raw source of an email.
func GetSource(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	q := req.URL.Query()
	id := strings.TrimSpace(q.Get("id"))
	if id == "" {
		web.RenderText(w, http.StatusNotFound, emailNotFound)
		return nil
	}
	src, err := ctx.Manager.GetSource(ctx.Caps, id, q.Get("listid"))
	if errors.Is(err, storage.ErrNotExist) {
		web.RenderText(w, http.StatusNotFound, emailNotFound)
		return nil
	}
	if err != nil {
		return fmt.Errorf("GetSource(%q) failed: %w", id, err)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write(src.Source); err != nil {
		return fmt.Errorf("failed to write source: %w", err)
	}
	return nil
}

// GetAttachment sends the content of an attachment referenced by an email.
func GetAttachment(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	q := req.URL.Query()
	mid, hash := q.Get("id"), q.Get("file")
	att, err := ctx.Manager.GetAttachment(ctx.Caps, mid, hash)
	if errors.Is(err, storage.ErrNotExist) {
		web.RenderText(w, http.StatusNotFound, "Attachment not found!")
		return nil
	}
	if err != nil {
		return fmt.Errorf("GetAttachment(%q, %q) failed: %w", mid, hash, err)
	}
	ctype := att.ContentType
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)
	if att.Filename != "" {
		w.Header().Set("Content-Disposition",
			mime.FormatMediaType("attachment", map[string]string{"filename": att.Filename}))
	}
	if _, err := w.Write(att.Content); err != nil {
		return fmt.Errorf("failed to write attachment: %w", err)
	}
	return nil
}

// listQuery reads the list, domain and d parameters shared by stats and mbox.  It renders a 400
// response and returns false when they are invalid.
func listQuery(w http.ResponseWriter, req *http.Request) (message.ListQuery, bool) {
	q := req.URL.Query()
	lq := message.ListQuery{
		List:   strings.TrimSpace(q.Get("list")),
		Domain: strings.TrimSpace(q.Get("domain")),
	}
	if lq.List == "" {
		_ = web.RenderJSONStatus(w, http.StatusBadRequest,
			&model.JSONError{Error: "Missing list parameter", Field: "list"})
		return lq, false
	}
	window, err := message.ParseWindow(q.Get("d"), time.Now())
	if err != nil {
		_ = web.RenderJSONStatus(w, http.StatusBadRequest,
			&model.JSONError{Error: err.Error(), Field: "d"})
		return lq, false
	}
	lq.Window = window
	return lq, true
}

// GetStats renders the visible emails and participants of a list.
func GetStats(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	lq, ok := listQuery(w, req)
	if !ok {
		return nil
	}
	stats, err := ctx.Manager.Stats(ctx.Caps, lq)
	if err != nil {
		return fmt.Errorf("Stats(%q) failed: %w", lq.ListRaw(), err)
	}
	name, domain := message.SplitListID(stats.ListRaw)
	result := &model.JSONStats{
		List:       stats.ListRaw,
		Name:       name,
		Domain:     domain,
		Hits:       stats.Hits(),
		FirstYear:  stats.FirstYear,
		FirstMonth: stats.FirstMonth,
		LastYear:   stats.LastYear,
		LastMonth:  stats.LastMonth,
		NumParts:   len(stats.Participants),
		Emails:     make([]*model.JSONEmailSummary, len(stats.Emails)),
	}
	for i, e := range stats.Emails {
		result.Emails[i] = emailSummaryModel(e)
	}
	if !req.URL.Query().Has("emailsOnly") {
		result.Participants = participantsModel(stats.Participants)
	}
	return web.RenderJSON(w, result)
}

// GetMbox streams the visible sources of a list as an mbox file.
func GetMbox(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	lq, ok := listQuery(w, req)
	if !ok {
		return nil
	}
	name, domain := message.SplitListID(lq.ListRaw())
	filename := name + "." + domain
	if d := req.URL.Query().Get("d"); d != "" {
		filename += "_" + d
	}
	w.Header().Set("Content-Type", "application/mbox")
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": filename + ".mbox"}))
	n, err := ctx.Manager.WriteMbox(ctx.Caps, lq, w)
	if err != nil {
		// Headers are already sent, the client sees a truncated file.
		log.Error().Str("module", "rest").Str("list", lq.ListRaw()).Int("written", n).Err(err).
			Msg("Failed to write mbox")
		return nil
	}
	log.Debug().Str("module", "rest").Str("list", lq.ListRaw()).Int("messages", n).
		Msg("Wrote mbox")
	return nil
}

// GetPreferences renders the caller identity and the lists visible to it.
func GetPreferences(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	lists, err := ctx.Manager.Lists(ctx.Caps)
	if err != nil {
		return fmt.Errorf("Lists() failed: %w", err)
	}
	prefs := &model.JSONPreferences{Lists: lists}
	if ctx.Caps.Authenticated {
		prefs.Login.Credentials = &model.JSONCredentials{
			UID:   ctx.Caps.User,
			Admin: ctx.Caps.Admin,
			Lists: ctx.Caps.Lists,
		}
	}
	return web.RenderJSON(w, prefs)
}

func emailModel(e *storage.Email) *model.JSONEmail {
	attachments := make([]*model.JSONAttachment, len(e.Attachments))
	for i, a := range e.Attachments {
		attachments[i] = &model.JSONAttachment{
			Hash:        a.Hash,
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Size:        a.Size,
		}
	}
	return &model.JSONEmail{
		MID:         e.MID,
		ID:          e.MID,
		MessageID:   e.MessageID,
		List:        e.ListRaw,
		ListRaw:     e.ListRaw,
		Private:     e.Private,
		From:        e.From,
		Subject:     e.Subject,
		Date:        e.Date.UTC().Format(model.DateFormat),
		Epoch:       e.Epoch(),
		Body:        e.Body,
		HTML:        e.HTML,
		InReplyTo:   e.InReplyTo,
		References:  e.References,
		Attachments: attachments,
		Permalinks:  []string{e.MID},
	}
}

func emailSummaryModel(e *storage.Email) *model.JSONEmailSummary {
	return &model.JSONEmailSummary{
		MID:         e.MID,
		ID:          e.MID,
		MessageID:   e.MessageID,
		List:        e.ListRaw,
		ListRaw:     e.ListRaw,
		Private:     e.Private,
		From:        e.From,
		Subject:     e.Subject,
		Epoch:       e.Epoch(),
		InReplyTo:   e.InReplyTo,
		Attachments: len(e.Attachments),
	}
}

// participantsModel orders senders by descending email count, then by name.
func participantsModel(counts map[string]int) []*model.JSONParticipant {
	parts := make([]*model.JSONParticipant, 0, len(counts))
	for from, n := range counts {
		parts = append(parts, &model.JSONParticipant{From: from, Count: n})
	}
	sort.Slice(parts, func(i, j int) bool {
		if parts[i].Count != parts[j].Count {
			return parts[i].Count > parts[j].Count
		}
		return parts[i].From < parts[j].From
	})
	return parts
}
