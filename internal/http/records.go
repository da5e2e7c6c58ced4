package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"lifedash/internal/core"
	"lifedash/internal/notify"
	"lifedash/internal/records"
)

// resource describes how one collection is exposed under /api/{name}.
// decode turns a request body into a record; the optional hooks replace the
// plain collection calls when a write has side effects.
type resource[T records.Record, D any] struct {
	coll   *records.Collection[T]
	decode func(D) (T, error)
	encode func(T) any
	withID func(T, string) T

	filter func(r *http.Request, items []T) ([]T, error)
	create func(ctx context.Context, rec T) (T, error)
	update func(ctx context.Context, rec T) (T, error)
	remove func(ctx context.Context, id string) error
}

func registerCRUD[T records.Record, D any](s *Server, mux *http.ServeMux, name string, res resource[T, D]) {
	if res.create == nil {
		res.create = res.coll.Add
	}
	if res.update == nil {
		res.update = res.coll.Update
	}
	if res.remove == nil {
		res.remove = res.coll.Delete
	}
	base := "/api/" + name

	mux.HandleFunc("GET "+base, func(w http.ResponseWriter, r *http.Request) {
		items := res.coll.List()
		if res.filter != nil {
			var err error
			if items, err = res.filter(r, items); err != nil {
				s.writeError(w, r, err)
				return
			}
		}
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = res.encode(item)
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": out, "count": len(out)})
	})

	mux.HandleFunc("GET "+base+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		rec, err := res.coll.Get(r.PathValue("id"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res.encode(rec))
	})

	mux.HandleFunc("POST "+base, func(w http.ResponseWriter, r *http.Request) {
		var body D
		if err := decodeJSON(w, r, &body); err != nil {
			s.writeError(w, r, err)
			return
		}
		rec, err := res.decode(body)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		saved, err := res.create(r.Context(), rec)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, res.encode(saved))
	})

	mux.HandleFunc("PUT "+base+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		var body D
		if err := decodeJSON(w, r, &body); err != nil {
			s.writeError(w, r, err)
			return
		}
		rec, err := res.decode(body)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		saved, err := res.update(r.Context(), res.withID(rec, r.PathValue("id")))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res.encode(saved))
	})

	mux.HandleFunc("DELETE "+base+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		if err := res.remove(r.Context(), r.PathValue("id")); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// decimalInput accepts an amount either as a JSON string ("12.50") or a
// JSON number (12.5), keeping the literal text for exact parsing.
type decimalInput string

func (d *decimalInput) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = decimalInput(s)
		return nil
	}
	if string(b) == "null" {
		*d = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*d = decimalInput(n.String())
	return nil
}

type amountView struct {
	Cents     int64  `json:"cents"`
	Value     string `json:"value"`
	Formatted string `json:"formatted"`
}

func (s *Server) amount(m core.Money) amountView {
	return amountView{Cents: m.Cents, Value: m.Decimal(), Formatted: s.deps.Formatter.Money(m)}
}

// optionalDate parses a YYYY-MM-DD date; empty input yields fallback.
func optionalDate(raw string, fallback core.Date) (core.Date, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	d, err := core.ParseDate(raw)
	if err != nil {
		return core.Date{}, invalidInput("invalid date %q, expected YYYY-MM-DD", raw)
	}
	return d, nil
}

func (s *Server) today() core.Date {
	now := s.now()
	return core.NewDate(now.Year(), int(now.Month()), now.Day())
}

// Transactions

type transactionBody struct {
	Name     string       `json:"name"`
	Amount   decimalInput `json:"amount"`
	Category string       `json:"category"`
	Date     string       `json:"date"`
	Icon     string       `json:"icon"`
}

type transactionView struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Kind     string     `json:"kind"`
	Amount   amountView `json:"amount"`
	Category string     `json:"category"`
	Date     string     `json:"date"`
	Icon     string     `json:"icon,omitempty"`
}

func (s *Server) transactionResource() resource[core.Transaction, transactionBody] {
	return resource[core.Transaction, transactionBody]{
		coll: s.deps.Store.Transactions,
		decode: func(b transactionBody) (core.Transaction, error) {
			cents, err := core.ParseSignedDecimalToCents(string(b.Amount))
			if err != nil {
				return core.Transaction{}, invalidInput("invalid amount %q: %v", string(b.Amount), err)
			}
			date, err := optionalDate(b.Date, s.today())
			if err != nil {
				return core.Transaction{}, err
			}
			return core.Transaction{
				Name:     sanitizeInput(b.Name),
				Amount:   core.Money{Cents: cents},
				Category: sanitizeInput(b.Category),
				Date:     date,
				Icon:     sanitizeInput(b.Icon),
			}, nil
		},
		encode: func(tx core.Transaction) any {
			kind := "expense"
			if tx.IsIncome() {
				kind = "income"
			}
			return transactionView{
				ID:       tx.ID,
				Name:     tx.Name,
				Kind:     kind,
				Amount:   s.amount(tx.Amount),
				Category: tx.Category,
				Date:     tx.Date.String(),
				Icon:     tx.Icon,
			}
		},
		withID: func(tx core.Transaction, id string) core.Transaction { tx.ID = id; return tx },
		filter: filterTransactions,
		create: s.deps.Transactions.Create,
		update: s.deps.Transactions.Update,
		remove: s.deps.Transactions.Delete,
	}
}

// filterTransactions applies the optional ?category= and ?month=YYYY-MM filters.
func filterTransactions(r *http.Request, txs []core.Transaction) ([]core.Transaction, error) {
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	month := strings.TrimSpace(r.URL.Query().Get("month"))
	if category == "" && month == "" {
		return txs, nil
	}
	var year int
	var mon time.Month
	if month != "" {
		t, err := time.Parse("2006-01", month)
		if err != nil {
			return nil, invalidInput("invalid month %q, expected YYYY-MM", month)
		}
		year, mon = t.Year(), t.Month()
	}
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if category != "" && !strings.EqualFold(tx.Category, category) {
			continue
		}
		if month != "" && (tx.Date.IsZero() || tx.Date.Year() != year || tx.Date.Month() != mon) {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

// Budget categories

type categoryBody struct {
	Name  string       `json:"name"`
	Total decimalInput `json:"total"`
	Icon  string       `json:"icon"`
}

type categoryView struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Total amountView `json:"total"`
	Icon  string     `json:"icon,omitempty"`
}

func (s *Server) categoryResource() resource[core.BudgetCategory, categoryBody] {
	return resource[core.BudgetCategory, categoryBody]{
		coll: s.deps.Store.Categories,
		decode: func(b categoryBody) (core.BudgetCategory, error) {
			cents, err := core.ParseDecimalToCents(string(b.Total))
			if err != nil {
				return core.BudgetCategory{}, invalidInput("invalid total %q: %v", string(b.Total), err)
			}
			return core.BudgetCategory{
				Name:  sanitizeInput(b.Name),
				Total: core.Money{Cents: cents},
				Icon:  sanitizeInput(b.Icon),
			}, nil
		},
		encode: func(c core.BudgetCategory) any {
			return categoryView{ID: c.ID, Name: c.Name, Total: s.amount(c.Total), Icon: c.Icon}
		},
		withID: func(c core.BudgetCategory, id string) core.BudgetCategory { c.ID = id; return c },
	}
}

// Tasks

type taskBody struct {
	Title     string `json:"title"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Completed bool   `json:"completed"`
}

func (s *Server) taskResource() resource[core.Task, taskBody] {
	return resource[core.Task, taskBody]{
		coll: s.deps.Store.Tasks,
		decode: func(b taskBody) (core.Task, error) {
			date, err := optionalDate(b.Date, core.Date{})
			if err != nil {
				return core.Task{}, err
			}
			return core.Task{
				Title:     sanitizeInput(b.Title),
				Date:      date,
				Time:      strings.TrimSpace(b.Time),
				Completed: b.Completed,
			}, nil
		},
		encode: func(t core.Task) any { return t },
		withID: func(t core.Task, id string) core.Task { t.ID = id; return t },
	}
}

// Reminders

type reminderBody struct {
	Text     string `json:"text"`
	DateTime string `json:"date_time"`
}

type reminderView struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	DateTime string `json:"date_time"`
	Notified bool   `json:"notified"`
}

func (s *Server) reminderResource() resource[core.Reminder, reminderBody] {
	coll := s.deps.Store.Reminders
	return resource[core.Reminder, reminderBody]{
		coll: coll,
		decode: func(b reminderBody) (core.Reminder, error) {
			ts, err := core.ParseTimestamp(b.DateTime, s.deps.Location)
			if err != nil {
				return core.Reminder{}, invalidInput("invalid date_time %q, expected YYYY-MM-DDTHH:MM", b.DateTime)
			}
			return core.Reminder{Text: sanitizeInput(b.Text), DateTime: ts}, nil
		},
		encode: func(r core.Reminder) any {
			return reminderView{
				ID:       r.ID,
				Text:     r.Text,
				DateTime: r.DateTime.In(s.deps.Location).Format(time.RFC3339),
				Notified: r.Notified,
			}
		},
		withID: func(r core.Reminder, id string) core.Reminder { r.ID = id; return r },
		// Rescheduling re-arms the reminder; editing only the text keeps its state.
		update: func(ctx context.Context, next core.Reminder) (core.Reminder, error) {
			prev, err := coll.Get(next.ID)
			if err != nil {
				return core.Reminder{}, err
			}
			rescheduled := !prev.DateTime.Equal(next.DateTime.Time)
			next.Notified = prev.Notified && !rescheduled
			saved, err := coll.Update(ctx, next)
			if err != nil {
				return saved, err
			}
			if rescheduled && prev.Notified {
				if err := s.deps.Store.SetNotificationRead(ctx, notify.ReminderNotificationID(saved.ID), false); err != nil {
					return saved, err
				}
			}
			return saved, nil
		},
	}
}

// Notes

type noteBody struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (s *Server) noteResource() resource[core.Note, noteBody] {
	return resource[core.Note, noteBody]{
		coll: s.deps.Store.Notes,
		decode: func(b noteBody) (core.Note, error) {
			return core.Note{Title: sanitizeInput(b.Title), Content: strings.TrimSpace(b.Content)}, nil
		},
		encode: func(n core.Note) any { return n },
		withID: func(n core.Note, id string) core.Note { n.ID = id; return n },
	}
}

// Health samples

type healthBody struct {
	Kind  string  `json:"kind"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
	Date  string  `json:"date"`
	Note  string  `json:"note"`
}

func (s *Server) healthResource() resource[core.HealthSample, healthBody] {
	return resource[core.HealthSample, healthBody]{
		coll: s.deps.Store.Health,
		decode: func(b healthBody) (core.HealthSample, error) {
			date, err := optionalDate(b.Date, s.today())
			if err != nil {
				return core.HealthSample{}, err
			}
			return core.HealthSample{
				Kind:  strings.ToLower(sanitizeInput(b.Kind)),
				Value: b.Value,
				Unit:  sanitizeInput(b.Unit),
				Date:  date,
				Note:  sanitizeInput(b.Note),
			}, nil
		},
		encode: func(h core.HealthSample) any { return h },
		withID: func(h core.HealthSample, id string) core.HealthSample { h.ID = id; return h },
		filter: func(r *http.Request, items []core.HealthSample) ([]core.HealthSample, error) {
			kind := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("kind")))
			if kind == "" {
				return items, nil
			}
			out := items[:0:0]
			for _, h := range items {
				if h.Kind == kind {
					out = append(out, h)
				}
			}
			return out, nil
		},
	}
}

// parseMonthParam reads ?month=1..12; empty means the current month.
func parseMonthParam(r *http.Request) (time.Month, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("month"))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > 12 {
		return 0, invalidInput("invalid month %q, expected 1-12", raw)
	}
	return time.Month(n), nil
}
