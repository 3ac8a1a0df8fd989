package moderation

import (
	"regexp"
	"strings"
)

// listIDPattern matches list ids such as <dev.example.org>.
var listIDPattern = regexp.MustCompile(`^<[^<>\s]+\.[^<>\s]+>$`)

// Request is a moderation request as decoded from JSON.  Fields other than Action keep their
// decoded type so they can be validated here; nil means the field was absent or null.
type Request struct {
	Action    string `json:"action"`
	Document  any    `json:"document,omitempty"`
	Documents any    `json:"documents,omitempty"`
	From      any    `json:"from,omitempty"`
	Subject   any    `json:"subject,omitempty"`
	List      any    `json:"list,omitempty"`
	Body      any    `json:"body,omitempty"`
	Private   any    `json:"private,omitempty"`
}

// DocumentIDs returns the distinct ids named by Documents, or by Document when Documents is
// empty.  Values that are not strings are ignored.
func (r *Request) DocumentIDs() []string {
	ids := make([]string, 0)
	seen := make(map[string]bool)
	add := func(v any) {
		if s, ok := v.(string); ok {
			s = strings.TrimSpace(s)
			if s != "" && !seen[s] {
				seen[s] = true
				ids = append(ids, s)
			}
		}
	}
	switch docs := r.Documents.(type) {
	case []any:
		for _, v := range docs {
			add(v)
		}
	case []string:
		for _, v := range docs {
			add(v)
		}
	case string:
		add(docs)
	}
	if len(ids) == 0 {
		add(r.Document)
	}
	return ids
}

// edit holds a validated edit request.  Nil pointers leave the field unchanged.
type edit struct {
	document string
	from     *string
	subject  *string
	list     *string
	body     *string
	private  *bool
}

// validateEdit checks field types in a fixed order, reporting the first failure.
func (r *Request) validateEdit() (*edit, error) {
	e := &edit{}
	doc, ok := r.Document.(string)
	if !ok || strings.TrimSpace(doc) == "" {
		return nil, &ValidationError{Field: "document", Message: "Document ID is missing or invalid"}
	}
	e.document = strings.TrimSpace(doc)

	var err error
	if e.from, err = optionalText(r.From, "from", "Author field must be a text string!"); err != nil {
		return nil, err
	}
	if e.subject, err = optionalText(r.Subject, "subject", "Subject field must be a text string!"); err != nil {
		return nil, err
	}
	if e.list, err = optionalText(r.List, "list", "List ID field must be a text string!"); err != nil {
		return nil, err
	}
	if e.list != nil && !listIDPattern.MatchString(*e.list) {
		return nil, &ValidationError{Field: "list", Message: "List ID field must match <foo.bar.baz> format!"}
	}
	if e.body, err = optionalText(r.Body, "body", "Email body must be a text string!"); err != nil {
		return nil, err
	}

	switch v := r.Private.(type) {
	case nil:
	case bool:
		e.private = &v
	case string:
		var p bool
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "yes", "true":
			p = true
		case "no", "false":
		default:
			return nil, &ValidationError{Field: "private", Message: "Private field must be a boolean!"}
		}
		e.private = &p
	default:
		return nil, &ValidationError{Field: "private", Message: "Private field must be a boolean!"}
	}
	return e, nil
}

// optionalText returns nil for an absent or empty value, and an error for a non-string value.
func optionalText(v any, field, message string) (*string, error) {
	if v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, &ValidationError{Field: field, Message: message}
	}
	if s == "" {
		return nil, nil
	}
	return &s, nil
}
