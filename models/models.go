package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ID is an opaque identifier assigned by the backend. Some endpoints send
// numbers and others strings, so both decode into the same string form.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

type User struct {
	ID       ID     `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	UserIcon string `json:"user_icon"`
}

type Category struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Photo struct {
	ID          ID        `json:"id"`
	UserID      ID        `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Path        string    `json:"path"`
	Status      bool      `json:"status"`
	Category    *Category `json:"category,omitempty"`
	User        *User     `json:"user,omitempty"`
}

// StatusLabel renders the moderation status the way every table shows it.
func (p Photo) StatusLabel() string {
	if p.Status {
		return "Visible"
	}
	return "Hidden"
}

type Comment struct {
	ID      ID     `json:"id"`
	Content string `json:"content"`
	PhotoID ID     `json:"id_photo"`
	UserID  ID     `json:"id_user"`
	Status  bool   `json:"status"`
}

// UserComment is the owner-scoped projection returned by comments/user/{id}.
type UserComment struct {
	CommentID     ID     `json:"comment_id"`
	CommentStatus bool   `json:"comment_status"`
	Content       string `json:"content"`
	PhotoID       ID     `json:"photo_id"`
	PhotoName     string `json:"photo_name"`
	PhotoStatus   bool   `json:"photo_status"`
	UserIcon      string `json:"user_icon"`
	Username      string `json:"username"`
}

type LikeCount struct {
	Count string `json:"count"`
}

type LikeStatus struct {
	HasLiked bool `json:"hasLiked"`
}

// LikeRecord and DownloadRecord are existence rows keyed by photo and user.
type LikeRecord struct {
	PhotoID ID `json:"id_photo"`
	UserID  ID `json:"id_user"`
}

type DownloadRecord struct {
	PhotoID ID `json:"id_photo"`
	UserID  ID `json:"id_user"`
}

type PhotoCategory struct {
	PhotoID    ID `json:"photo_id"`
	CategoryID ID `json:"category_id"`
}

// UploadRecord is the same-origin server's ledger of stored files.
type UploadRecord struct {
	ID         uint      `gorm:"primarykey"`
	Identifier uuid.UUID `gorm:"type:uuid;uniqueIndex"`
	FileName   string    `gorm:"size:255;not null;uniqueIndex"`
	Path       string    `gorm:"size:512;not null"`
	MimeType   string    `gorm:"size:128"`
	Size       int64
	CreatedAt  time.Time
}
