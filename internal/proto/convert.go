package proto

import "github.com/vovakirdan/ticketsync-server/internal/ticket"

// CommentFrom converts a domain comment to its wire shape.
func CommentFrom(c ticket.Comment) Comment {
	return Comment{
		AuthorID:       c.AuthorID,
		Content:        c.Content,
		IsAdminComment: c.IsAdminComment,
		CreatedAt:      c.CreatedAt,
	}
}

// Domain converts a wire comment to the domain type.
func (c Comment) Domain() ticket.Comment {
	return ticket.Comment{
		AuthorID:       c.AuthorID,
		Content:        c.Content,
		IsAdminComment: c.IsAdminComment,
		CreatedAt:      c.CreatedAt,
	}
}

// TicketFrom converts a domain ticket to the API document.
func TicketFrom(t *ticket.Ticket) Ticket {
	comments := make([]Comment, 0, len(t.Comments))
	for _, c := range t.Comments {
		comments = append(comments, CommentFrom(c))
	}
	return Ticket{
		ID:            t.ID,
		StudentID:     t.StudentID,
		ComplaintType: t.ComplaintType,
		Description:   t.Description,
		Status:        string(t.Status),
		Comments:      comments,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

// Domain converts the API document to the domain type. Unknown statuses are
// kept verbatim; the server is authoritative.
func (t Ticket) Domain() ticket.Ticket {
	comments := make([]ticket.Comment, 0, len(t.Comments))
	for _, c := range t.Comments {
		comments = append(comments, c.Domain())
	}
	return ticket.Ticket{
		ID:            t.ID,
		StudentID:     t.StudentID,
		ComplaintType: t.ComplaintType,
		Description:   t.Description,
		Status:        ticket.Status(t.Status),
		Comments:      comments,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

// Domain converts the update body into the typed allow-list. Status strings
// are parsed here so invalid values never reach the store.
func (u TicketUpdate) Domain() (ticket.Update, error) {
	var out ticket.Update
	out.Description = u.Description
	out.ComplaintType = u.ComplaintType
	if u.Status != nil {
		st, err := ticket.ParseStatus(*u.Status)
		if err != nil {
			return ticket.Update{}, err
		}
		out.Status = &st
	}
	if u.Comment != nil {
		out.Comment = &ticket.NewComment{
			AuthorID:       u.Comment.AuthorID,
			Content:        u.Comment.Content,
			IsAdminComment: u.Comment.IsAdminComment,
		}
	}
	return out, nil
}
