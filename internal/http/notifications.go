package http

import (
	"net/http"
	"time"

	"lifedash/internal/notify"
)

type notificationView struct {
	ID       string      `json:"id"`
	Kind     notify.Kind `json:"kind"`
	RecordID string      `json:"record_id,omitempty"`
	Title    string      `json:"title"`
	Message  string      `json:"message"`
	Amount   *amountView `json:"amount,omitempty"`
	At       string      `json:"at"`
	Read     bool        `json:"read"`
}

func (s *Server) notificationViews(list []notify.Notification) []notificationView {
	out := make([]notificationView, len(list))
	for i, n := range list {
		v := notificationView{
			ID:       n.ID,
			Kind:     n.Kind,
			RecordID: n.RecordID,
			Title:    n.Title,
			Message:  n.Message,
			At:       n.At.In(s.deps.Location).Format(time.RFC3339),
			Read:     n.Read,
		}
		if n.Kind == notify.KindBudget {
			a := s.amount(n.Amount)
			v.Amount = &a
		}
		out[i] = v
	}
	return out
}

// handleNotifications re-evaluates the feed and returns it with unread counts.
// ?unread=true drops read items.
func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	list := s.deps.Notifier.Refresh(r.Context(), s.now())
	if r.URL.Query().Get("unread") == "true" {
		unread := list[:0:0]
		for _, n := range list {
			if !n.Read {
				unread = append(unread, n)
			}
		}
		list = unread
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":  s.notificationViews(list),
		"counts": s.deps.Notifier.Counts(),
	})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Notifier.MarkRead(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"counts": s.deps.Notifier.Counts()})
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Notifier.MarkAllRead(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"counts": s.deps.Notifier.Counts()})
}
