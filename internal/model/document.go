package model

import (
	"encoding/json"
	"time"
)

const (
	SourceTypePDF = "pdf"
	SourceTypeURL = "url"
)

type Document struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;index" json:"user_id"`
	Filename   string    `gorm:"size:256;not null" json:"filename"`
	SourceType string    `gorm:"size:16;not null" json:"source_type"` // "pdf" or "url"
	SourceURL  string    `gorm:"size:512" json:"source_url,omitempty"`
	Metadata   string    `gorm:"type:jsonb;default:'{}'" json:"-"`
	UploadedAt time.Time `gorm:"autoCreateTime" json:"uploaded_at"`
}

// SetMeta stores the metadata map as JSON; empty map stores "{}".
func (d *Document) SetMeta(meta map[string]interface{}) {
	if len(meta) == 0 {
		d.Metadata = "{}"
		return
	}
	b, _ := json.Marshal(meta)
	d.Metadata = string(b)
}

// Meta returns the parsed metadata map; empty on parse error.
func (d *Document) Meta() map[string]interface{} {
	meta := map[string]interface{}{}
	if d.Metadata != "" {
		_ = json.Unmarshal([]byte(d.Metadata), &meta)
	}
	return meta
}
