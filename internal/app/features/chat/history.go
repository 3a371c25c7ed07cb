// internal/app/features/chat/history.go
package chat

import (
	"time"

	"github.com/dalemusser/clubhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TranscriptEntry is one element of a reconstructed transcript: either a
// date separator or a run of consecutive messages by one author. The
// structure is UI-ready so clients render it without re-deriving the
// grouping.
type TranscriptEntry struct {
	IsDate bool   `json:"isDate"`
	Date   string `json:"date,omitempty"` // YYYY-MM-DD, separators only

	AuthorID      string              `json:"authorId,omitempty"`
	AuthorName    string              `json:"authorName,omitempty"`
	AuthorPicture string              `json:"authorPicture,omitempty"`
	IsSelf        bool                `json:"isSelf,omitempty"`
	Messages      []TranscriptMessage `json:"messages,omitempty"`
}

// TranscriptMessage is one message within a run.
type TranscriptMessage struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// BuildTranscript groups messages, already sorted by timestamp
// ascending, into author runs and inserts a date separator whenever a
// message's calendar day (UTC) differs from the previous message's. A
// separator also closes the current run, so runs never span days. The
// result depends only on the input order, making reconstruction
// deterministic.
func BuildTranscript(msgs []models.Message, viewerID primitive.ObjectID) []TranscriptEntry {
	out := []TranscriptEntry{}

	var lastDay string
	var run *TranscriptEntry
	for _, m := range msgs {
		day := m.Timestamp.UTC().Format("2006-01-02")
		if day != lastDay {
			out = append(out, TranscriptEntry{IsDate: true, Date: day})
			lastDay = day
			run = nil
		}

		if run == nil || run.AuthorID != m.AuthorID.Hex() {
			out = append(out, TranscriptEntry{
				AuthorID:   m.AuthorID.Hex(),
				AuthorName: m.AuthorName,
				IsSelf:     m.AuthorID == viewerID,
			})
			run = &out[len(out)-1]
		}
		run.Messages = append(run.Messages, TranscriptMessage{
			ID:        m.ID.Hex(),
			Body:      m.Body,
			Timestamp: m.Timestamp,
		})
	}
	return out
}
