package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"lifedash/internal/amqp"
	"lifedash/internal/analytics"
	"lifedash/internal/format"
	"lifedash/internal/log"
	"lifedash/internal/notify"
	"lifedash/internal/records"
	"lifedash/internal/services"
	"lifedash/internal/storage"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*amqp.RecordSyncMessage
}

func (p *recordingPublisher) PublishRecordSync(_ context.Context, msg *amqp.RecordSyncMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *recordingPublisher) ops() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.msgs))
	for i, m := range p.msgs {
		out[i] = m.Op
	}
	return out
}

type testEnv struct {
	srv   *Server
	store *records.Store
	pub   *recordingPublisher
}

var fixedNow = time.Date(2025, 11, 5, 12, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T, rpm int) *testEnv {
	t.Helper()
	logger := log.Discard()
	store := records.NewStore(storage.NewMemoryKV(), records.WithLogger(logger))
	pub := &recordingPublisher{}
	formatter, err := format.New("EUR", 1, "en")
	if err != nil {
		t.Fatalf("format.New() error = %v", err)
	}
	srv := NewServer(":0", Deps{
		Store:        store,
		Transactions: services.NewTransactionService(store, pub, logger),
		Dashboard: services.NewDashboardService(store, analytics.NewMemo(16, time.Minute), time.UTC,
			services.WithNow(func() time.Time { return fixedNow })),
		Notifier: notify.NewNotifier(store,
			notify.WithLocation(time.UTC),
			notify.WithNotifierLogger(logger)),
		Formatter:         formatter,
		Logger:            logger,
		Location:          time.UTC,
		RequestsPerMinute: rpm,
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, store: store, pub: pub}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not a JSON object: %v (%q)", err, rec.Body.String())
	}
	return out
}

// field walks nested objects by key, e.g. field(m, "budget", "spent", "cents").
func field(t *testing.T, m map[string]any, path ...string) any {
	t.Helper()
	var cur any = m
	for _, p := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			t.Fatalf("%v: %q is not an object", path, p)
		}
		cur = obj[p]
	}
	return cur
}

func TestServer_TransactionLifecycle(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodPost, "/api/transactions",
		`{"name":"Groceries","amount":"-42.50","category":"Food","date":"2025-11-03"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST status = %d, body %s", rec.Code, rec.Body.String())
	}
	created := decodeBody(t, rec)
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatal("created transaction has no id")
	}
	if got := field(t, created, "kind"); got != "expense" {
		t.Errorf("kind = %v, want expense", got)
	}
	if got := field(t, created, "amount", "cents"); got != float64(-4250) {
		t.Errorf("amount.cents = %v, want -4250", got)
	}
	if got := field(t, created, "amount", "value"); got != "-42.50" {
		t.Errorf("amount.value = %v, want -42.50", got)
	}

	rec = env.do(t, http.MethodPut, "/api/transactions/"+id,
		`{"name":"Groceries","amount":-50,"category":"Food","date":"2025-11-03"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := field(t, decodeBody(t, rec), "amount", "cents"); got != float64(-5000) {
		t.Errorf("updated amount.cents = %v, want -5000", got)
	}

	rec = env.do(t, http.MethodGet, "/api/transactions?month=2025-11", "")
	if got := field(t, decodeBody(t, rec), "count"); got != float64(1) {
		t.Errorf("November count = %v, want 1", got)
	}
	rec = env.do(t, http.MethodGet, "/api/transactions?month=2025-10", "")
	if got := field(t, decodeBody(t, rec), "count"); got != float64(0) {
		t.Errorf("October count = %v, want 0", got)
	}

	if rec = env.do(t, http.MethodDelete, "/api/transactions/"+id, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE status = %d", rec.Code)
	}
	if rec = env.do(t, http.MethodGet, "/api/transactions/"+id, ""); rec.Code != http.StatusNotFound {
		t.Errorf("GET after delete status = %d, want 404", rec.Code)
	}

	ops := env.pub.ops()
	want := []string{amqp.OpUpsert, amqp.OpUpsert, amqp.OpDelete}
	if len(ops) != len(want) {
		t.Fatalf("published %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("op[%d] = %s, want %s", i, ops[i], want[i])
		}
	}
}

func TestServer_TransactionDefaultsToToday(t *testing.T) {
	env := newTestEnv(t, 0)
	rec := env.do(t, http.MethodPost, "/api/transactions",
		`{"name":"Salary","amount":"1500","category":"Work"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if got := field(t, body, "date"); got != "2025-11-05" {
		t.Errorf("date = %v, want 2025-11-05", got)
	}
	if got := field(t, body, "kind"); got != "income" {
		t.Errorf("kind = %v, want income", got)
	}
}

func TestServer_RejectsBadInput(t *testing.T) {
	env := newTestEnv(t, 0)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"zero amount", http.MethodPost, "/api/transactions", `{"name":"x","amount":"0","category":"c"}`, http.StatusUnprocessableEntity},
		{"unparseable amount", http.MethodPost, "/api/transactions", `{"name":"x","amount":"abc","category":"c"}`, http.StatusUnprocessableEntity},
		{"bad date", http.MethodPost, "/api/transactions", `{"name":"x","amount":"1","category":"c","date":"05/11/2025"}`, http.StatusUnprocessableEntity},
		{"empty name", http.MethodPost, "/api/transactions", `{"name":" ","amount":"1","category":"c"}`, http.StatusUnprocessableEntity},
		{"malformed json", http.MethodPost, "/api/transactions", `{"name":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/notes", `{"title":"x","colour":"red"}`, http.StatusBadRequest},
		{"empty body", http.MethodPost, "/api/notes", ``, http.StatusBadRequest},
		{"non-positive category total", http.MethodPost, "/api/categories", `{"name":"Food","total":"0"}`, http.StatusUnprocessableEntity},
		{"negative category total", http.MethodPost, "/api/categories", `{"name":"Food","total":"-5"}`, http.StatusUnprocessableEntity},
		{"task time without date", http.MethodPost, "/api/tasks", `{"title":"Call","time":"10:00"}`, http.StatusUnprocessableEntity},
		{"reminder without time", http.MethodPost, "/api/reminders", `{"text":"Call","date_time":""}`, http.StatusUnprocessableEntity},
		{"health without kind", http.MethodPost, "/api/health", `{"value":70}`, http.StatusUnprocessableEntity},
		{"update unknown note", http.MethodPut, "/api/notes/missing", `{"title":"x"}`, http.StatusNotFound},
		{"delete unknown task", http.MethodDelete, "/api/tasks/missing", ``, http.StatusNotFound},
		{"bad month filter", http.MethodGet, "/api/transactions?month=november", ``, http.StatusUnprocessableEntity},
		{"bad overview month", http.MethodGet, "/api/overview?month=13", ``, http.StatusUnprocessableEntity},
		{"negative settings", http.MethodPut, "/api/settings", `{"savings_goal":"-1"}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
			if rec.Code != http.StatusNoContent {
				if msg := field(t, decodeBody(t, rec), "error"); msg == "" || msg == nil {
					t.Error("error body has no message")
				}
			}
		})
	}

	if n := len(env.pub.ops()); n != 0 {
		t.Errorf("rejected requests published %d sync messages", n)
	}
}

func TestServer_SettingsPartialUpdate(t *testing.T) {
	env := newTestEnv(t, 0)

	if rec := env.do(t, http.MethodPut, "/api/settings", `{"monthly_budget_limit":"500"}`); rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec := env.do(t, http.MethodPut, "/api/settings", `{"savings_goal":1000.5}`); rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, body %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, env.do(t, http.MethodGet, "/api/settings", ""))
	if got := field(t, body, "monthly_budget_limit", "cents"); got != float64(50000) {
		t.Errorf("limit = %v, want 50000", got)
	}
	if got := field(t, body, "savings_goal", "cents"); got != float64(100050) {
		t.Errorf("goal = %v, want 100050", got)
	}
}

func TestServer_ConcurrentSettingsUpdatesKeepBothFields(t *testing.T) {
	env := newTestEnv(t, 0)

	var wg sync.WaitGroup
	codes := make(chan int, 20)
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			codes <- env.do(t, http.MethodPut, "/api/settings", `{"monthly_budget_limit":"500"}`).Code
		}()
		go func() {
			defer wg.Done()
			codes <- env.do(t, http.MethodPut, "/api/settings", `{"savings_goal":"1000"}`).Code
		}()
	}
	wg.Wait()
	close(codes)
	for code := range codes {
		if code != http.StatusOK {
			t.Fatalf("PUT status = %d", code)
		}
	}

	body := decodeBody(t, env.do(t, http.MethodGet, "/api/settings", ""))
	if got := field(t, body, "monthly_budget_limit", "cents"); got != float64(50000) {
		t.Errorf("limit = %v, want 50000", got)
	}
	if got := field(t, body, "savings_goal", "cents"); got != float64(100000) {
		t.Errorf("goal = %v, want 100000", got)
	}
}

func TestServer_Overview(t *testing.T) {
	env := newTestEnv(t, 0)
	for _, body := range []string{
		`{"name":"Salary","amount":"1000","category":"Work","date":"2025-11-01"}`,
		`{"name":"Groceries","amount":"-42.50","category":"Food","date":"2025-11-03"}`,
	} {
		if rec := env.do(t, http.MethodPost, "/api/transactions", body); rec.Code != http.StatusCreated {
			t.Fatalf("seed status = %d, body %s", rec.Code, rec.Body.String())
		}
	}
	env.do(t, http.MethodPost, "/api/categories", `{"name":"food","total":"100"}`)
	env.do(t, http.MethodPut, "/api/settings", `{"monthly_budget_limit":"20","savings_goal":"2000"}`)

	ov := decodeBody(t, env.do(t, http.MethodGet, "/api/overview", ""))
	checks := []struct {
		path []string
		want any
	}{
		{[]string{"month"}, float64(11)},
		{[]string{"year"}, float64(2025)},
		{[]string{"period", "income", "cents"}, float64(100000)},
		{[]string{"period", "expense", "cents"}, float64(4250)},
		{[]string{"period", "balance", "cents"}, float64(95750)},
		{[]string{"budget", "exceeded"}, true},
		{[]string{"budget", "remaining", "cents"}, float64(-2250)},
		{[]string{"savings", "current", "cents"}, float64(95750)},
		{[]string{"currency"}, "EUR"},
	}
	for _, c := range checks {
		if got := field(t, ov, c.path...); got != c.want {
			t.Errorf("%s = %v, want %v", strings.Join(c.path, "."), got, c.want)
		}
	}

	cats, _ := ov["categories"].([]any)
	if len(cats) != 1 {
		t.Fatalf("categories = %v, want 1 entry", ov["categories"])
	}
	food := cats[0].(map[string]any)
	if got := field(t, food, "spent", "cents"); got != float64(4250) {
		t.Errorf("food spent = %v, want 4250", got)
	}
	if got := field(t, food, "label"); got != "Food" {
		t.Errorf("food label = %v, want Food", got)
	}

	weekly, _ := ov["weekly"].([]any)
	monthly, _ := ov["monthly"].([]any)
	if len(weekly) != 7 || len(monthly) != 4 {
		t.Errorf("weekly/monthly buckets = %d/%d, want 7/4", len(weekly), len(monthly))
	}

	october := decodeBody(t, env.do(t, http.MethodGet, "/api/overview?month=10", ""))
	if got := field(t, october, "period", "expense", "cents"); got != float64(0) {
		t.Errorf("October expense = %v, want 0", got)
	}
}

func TestServer_NotificationFeed(t *testing.T) {
	env := newTestEnv(t, 0)
	env.do(t, http.MethodPut, "/api/settings", `{"monthly_budget_limit":"10"}`)
	env.do(t, http.MethodPost, "/api/transactions", `{"name":"Dinner","amount":"-25","category":"Food","date":"2025-11-04"}`)
	env.do(t, http.MethodPost, "/api/tasks", `{"title":"Pay rent","date":"2025-11-04"}`)
	env.do(t, http.MethodPost, "/api/tasks", `{"title":"Future","date":"2025-12-01"}`)
	rec := env.do(t, http.MethodPost, "/api/reminders", `{"text":"Call mum","date_time":"2025-11-05T09:00"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("reminder status = %d, body %s", rec.Code, rec.Body.String())
	}
	reminderID := field(t, decodeBody(t, rec), "id").(string)

	feed := decodeBody(t, env.do(t, http.MethodGet, "/api/notifications", ""))
	if got := field(t, feed, "counts", "total"); got != float64(3) {
		t.Fatalf("unread total = %v, want 3 (feed %v)", got, feed["items"])
	}
	for _, kind := range []string{"task", "reminder", "budget"} {
		if got := field(t, feed, "counts", kind); got != float64(1) {
			t.Errorf("counts.%s = %v, want 1", kind, got)
		}
	}

	reminder := decodeBody(t, env.do(t, http.MethodGet, "/api/reminders/"+reminderID, ""))
	if reminder["notified"] != true {
		t.Errorf("reminder notified = %v after feed evaluation", reminder["notified"])
	}

	rec = env.do(t, http.MethodPost, "/api/notifications/"+notify.BudgetNotificationID+"/read", "")
	if got := field(t, decodeBody(t, rec), "counts", "budget"); got != float64(0) {
		t.Errorf("budget unread after mark read = %v, want 0", got)
	}

	rec = env.do(t, http.MethodPost, "/api/notifications/read", "")
	if got := field(t, decodeBody(t, rec), "counts", "total"); got != float64(0) {
		t.Errorf("unread after mark all = %v, want 0", got)
	}

	unread := decodeBody(t, env.do(t, http.MethodGet, "/api/notifications?unread=true", ""))
	if items, _ := unread["items"].([]any); len(items) != 0 {
		t.Errorf("unread items = %v, want none", items)
	}
}

func TestServer_RescheduledReminderFiresAgain(t *testing.T) {
	env := newTestEnv(t, 0)
	rec := env.do(t, http.MethodPost, "/api/reminders", `{"text":"Dentist","date_time":"2025-11-05T08:00"}`)
	id := field(t, decodeBody(t, rec), "id").(string)

	env.do(t, http.MethodGet, "/api/notifications", "")
	env.do(t, http.MethodPost, "/api/notifications/"+notify.ReminderNotificationID(id)+"/read", "")

	rec = env.do(t, http.MethodPut, "/api/reminders/"+id, `{"text":"Dentist","date_time":"2025-11-05T10:00"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := field(t, decodeBody(t, rec), "notified"); got != false {
		t.Errorf("notified after reschedule = %v, want false", got)
	}
	if env.store.Snapshot().IsRead(notify.ReminderNotificationID(id)) {
		t.Error("rescheduled reminder is still marked read")
	}

	feed := decodeBody(t, env.do(t, http.MethodGet, "/api/notifications", ""))
	if got := field(t, feed, "counts", "reminder"); got != float64(1) {
		t.Errorf("reminder unread = %v, want 1", got)
	}

	// Editing the text alone keeps the fired state.
	rec = env.do(t, http.MethodPut, "/api/reminders/"+id, `{"text":"Dentist at 10","date_time":"2025-11-05T10:00"}`)
	if got := field(t, decodeBody(t, rec), "notified"); got != true {
		t.Errorf("notified after text edit = %v, want true", got)
	}
}

func TestServer_RateLimitsWrites(t *testing.T) {
	env := newTestEnv(t, 2)

	for i := 0; i < 2; i++ {
		if rec := env.do(t, http.MethodPost, "/api/notes", `{"title":"n"}`); rec.Code != http.StatusCreated {
			t.Fatalf("write %d status = %d", i, rec.Code)
		}
	}
	rec := env.do(t, http.MethodPost, "/api/notes", `{"title":"n"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third write status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}

	// Reads are not limited.
	if rec := env.do(t, http.MethodGet, "/api/notes", ""); rec.Code != http.StatusOK {
		t.Errorf("read status = %d, want 200", rec.Code)
	}
}

func TestServer_Probes(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || field(t, decodeBody(t, rec), "status") != "ok" {
		t.Errorf("healthz = %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("response has no X-Request-ID")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}

	env.srv.deps.Ready = func(context.Context) map[string]string {
		return map[string]string{"amqp": "dial failed"}
	}
	rec = env.do(t, http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz with failing check = %d, want 503", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Errorf("metrics status = %d", rec.Code)
	}
	if _, ok := decodeBody(t, rec)["requests"]; !ok {
		t.Error("metrics missing request counters")
	}
}
