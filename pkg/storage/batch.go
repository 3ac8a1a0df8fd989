package storage

import (
	"sort"
)

// Batch collects document writes that a Store applies as one unit.  Within a batch puts are
// applied before deletes, and audit entries are appended last.
type Batch struct {
	Emails            []*Email
	Sources           []*Source
	Attachments       []*Attachment
	DeleteEmails      []string
	DeleteSources     []string
	DeleteAttachments []string
	Audit             []*AuditEntry
}

// PutEmail queues an email upsert.
func (b *Batch) PutEmail(e *Email) {
	b.Emails = append(b.Emails, e)
}

// PutSource queues a source upsert.
func (b *Batch) PutSource(s *Source) {
	b.Sources = append(b.Sources, s)
}

// PutAttachment queues an attachment upsert.
func (b *Batch) PutAttachment(a *Attachment) {
	b.Attachments = append(b.Attachments, a)
}

// DeleteEmail queues removal of an email.
func (b *Batch) DeleteEmail(mid string) {
	b.DeleteEmails = append(b.DeleteEmails, mid)
}

// DeleteSource queues removal of a source.
func (b *Batch) DeleteSource(mid string) {
	b.DeleteSources = append(b.DeleteSources, mid)
}

// DeleteAttachment queues removal of an attachment.
func (b *Batch) DeleteAttachment(hash string) {
	b.DeleteAttachments = append(b.DeleteAttachments, hash)
}

// AppendAudit queues an audit entry.
func (b *Batch) AppendAudit(e *AuditEntry) {
	b.Audit = append(b.Audit, e)
}

// Empty returns true if the batch contains no changes.
func (b *Batch) Empty() bool {
	return len(b.Emails) == 0 && len(b.Sources) == 0 && len(b.Attachments) == 0 &&
		len(b.DeleteEmails) == 0 && len(b.DeleteSources) == 0 &&
		len(b.DeleteAttachments) == 0 && len(b.Audit) == 0
}

// SortEmails orders emails by date, then mid.  Stores return query results in this order.
func SortEmails(emails []*Email) {
	sort.SliceStable(emails, func(i, j int) bool {
		if emails[i].Date.Equal(emails[j].Date) {
			return emails[i].MID < emails[j].MID
		}
		return emails[i].Date.Before(emails[j].Date)
	})
}
