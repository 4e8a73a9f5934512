package ticket

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidStatus is returned for a status outside the known set.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrEmptyComment is returned when a comment has no content.
	ErrEmptyComment = errors.New("comment content is required")
	// ErrEmptyUpdate is returned when an update carries no fields.
	ErrEmptyUpdate = errors.New("update has no fields")
	// ErrEmptyDescription is returned when a description is blank.
	ErrEmptyDescription = errors.New("description is required")
	// ErrFieldTooLong is returned when a text field exceeds its limit.
	ErrFieldTooLong = errors.New("field too long")
)

const (
	maxDescription   = 4000
	maxComplaintType = 64
	maxComment       = 2000
)

// Status is the lifecycle state of a ticket.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in-progress"
	StatusResolved   Status = "resolved"
	StatusPending    Status = "pending"
)

// ParseStatus validates s against the closed set of statuses.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.TrimSpace(s)); st {
	case StatusOpen, StatusInProgress, StatusResolved, StatusPending:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, err := ParseStatus(string(s))
	return err == nil
}

// Comment is a single entry in a ticket's discussion.
// CreatedAt is assigned by the persistence layer when the comment is accepted.
type Comment struct {
	AuthorID       string
	Content        string
	IsAdminComment bool
	CreatedAt      time.Time
}

// Ticket is a student complaint with its comments in append order.
type Ticket struct {
	ID            string
	StudentID     string
	ComplaintType string
	Description   string
	Status        Status
	Comments      []Comment
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Clone returns a deep copy safe to hand to other goroutines.
func (t Ticket) Clone() Ticket {
	out := t
	if t.Comments != nil {
		out.Comments = make([]Comment, len(t.Comments))
		copy(out.Comments, t.Comments)
	}
	return out
}

// LastComment returns the most recently appended comment.
func (t Ticket) LastComment() (Comment, bool) {
	if len(t.Comments) == 0 {
		return Comment{}, false
	}
	return t.Comments[len(t.Comments)-1], true
}

// NewComment is the client-supplied part of a comment.
type NewComment struct {
	AuthorID       string
	Content        string
	IsAdminComment bool
}

// Update lists the fields a caller may change on an existing ticket.
// Nil pointers mean "leave unchanged".
type Update struct {
	Description   *string
	ComplaintType *string
	Status        *Status
	Comment       *NewComment
}

// Empty reports whether the update changes nothing.
func (u Update) Empty() bool {
	return u.Description == nil && u.ComplaintType == nil && u.Status == nil && u.Comment == nil
}

// Validate checks every present field.
func (u Update) Validate() error {
	if u.Empty() {
		return ErrEmptyUpdate
	}
	if u.Description != nil {
		if strings.TrimSpace(*u.Description) == "" {
			return ErrEmptyDescription
		}
		if len(*u.Description) > maxDescription {
			return fmt.Errorf("description: %w", ErrFieldTooLong)
		}
	}
	if u.ComplaintType != nil {
		if strings.TrimSpace(*u.ComplaintType) == "" {
			return errors.New("complaint type must not be empty")
		}
		if len(*u.ComplaintType) > maxComplaintType {
			return fmt.Errorf("complaint type: %w", ErrFieldTooLong)
		}
	}
	if u.Status != nil && !u.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, string(*u.Status))
	}
	if u.Comment != nil {
		if strings.TrimSpace(u.Comment.Content) == "" {
			return ErrEmptyComment
		}
		if len(u.Comment.Content) > maxComment {
			return fmt.Errorf("comment: %w", ErrFieldTooLong)
		}
	}
	return nil
}

// ValidateNew checks the fields required to open a ticket.
func ValidateNew(studentID, complaintType, description string) error {
	if strings.TrimSpace(studentID) == "" {
		return errors.New("student id is required")
	}
	if strings.TrimSpace(complaintType) == "" {
		return errors.New("complaint type is required")
	}
	if len(complaintType) > maxComplaintType {
		return fmt.Errorf("complaint type: %w", ErrFieldTooLong)
	}
	if strings.TrimSpace(description) == "" {
		return ErrEmptyDescription
	}
	if len(description) > maxDescription {
		return fmt.Errorf("description: %w", ErrFieldTooLong)
	}
	return nil
}
