package policy

import "github.com/listarchive/listarchive/pkg/storage"

// CanAccessEmail returns true if the caller may see the email envelope.  Public emails are
// visible to everyone; private emails require list membership.
func CanAccessEmail(caps Capabilities, email *storage.Email) bool {
	if email == nil {
		return false
	}
	if !email.Private {
		return true
	}
	return caps.Member(email.ListRaw)
}

// CanAccessSource returns true if the caller may read the raw source.  A source hidden by
// moderation is admin only, even when the envelope is public.
func CanAccessSource(caps Capabilities, source *storage.Source, email *storage.Email) bool {
	if source == nil || !CanAccessEmail(caps, email) {
		return false
	}
	if source.Deleted {
		return caps.Admin
	}
	return true
}

// CanAccessAttachment returns true if the caller may see the email and the email still
// references the attachment.
func CanAccessAttachment(caps Capabilities, email *storage.Email, hash string) bool {
	return CanAccessEmail(caps, email) && email.HasAttachment(hash)
}
