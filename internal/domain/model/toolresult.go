package model

import "encoding/json"

// ToolContent is one item in a tool result's content list. The wire shape is
// loose: servers may attach a resource object to any item, or mark an item as
// a resource by type.
type ToolContent struct {
	Type     string          `json:"type,omitempty"`
	Text     string          `json:"text,omitempty"`
	URI      string          `json:"uri,omitempty"`
	MimeType string          `json:"mimeType,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
}

// ToolResult is the result object of a tools/call response.
type ToolResult struct {
	Content []ToolContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// UIResource scans the content list in order and returns the first embedded
// renderable resource: an item carrying an explicit resource object, or an
// item of type "resource" with a URI (returned whole), or a "ui" item's
// resource. Returns nil when no content item carries a resource.
func (r *ToolResult) UIResource() json.RawMessage {
	if r == nil {
		return nil
	}

	for _, item := range r.Content {
		switch {
		case len(item.Resource) > 0:
			return item.Resource
		case item.Type == "resource" && item.URI != "":
			if raw, err := json.Marshal(item); err == nil {
				return raw
			}
		}
	}

	return nil
}

// FirstText returns the first non-empty text content item, or "" when the
// result carries no text.
func (r *ToolResult) FirstText() string {
	if r == nil {
		return ""
	}

	for _, item := range r.Content {
		if item.Type == "text" && item.Text != "" {
			return item.Text
		}
	}

	return ""
}
