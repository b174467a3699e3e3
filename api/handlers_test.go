package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/api"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/generic/store"
	"github.com/warp/leave-engine/metrics"
	"github.com/warp/leave-engine/timeoff"
)

const testSecret = "test-secret"

// =============================================================================
// TEST HELPERS
// =============================================================================

type testServer struct {
	t       *testing.T
	router  http.Handler
	handler *api.Handler
	svc     *timeoff.Service
	store   *store.Memory
	now     time.Time
	tokens  map[generic.EmployeeID]string
}

func newTestServer(t *testing.T) *testServer {
	return newTestServerWith(t, api.RouterConfig{JWTSecret: testSecret})
}

func newTestServerWith(t *testing.T, cfg api.RouterConfig) *testServer {
	t.Helper()

	mem := store.NewMemory()
	ts := &testServer{
		t:      t,
		store:  mem,
		now:    time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC),
		tokens: map[generic.EmployeeID]string{},
	}
	ts.svc = timeoff.NewService(mem, mem, mem)
	ts.svc.Now = func() time.Time { return ts.now }

	var seq int64
	ts.svc.NewID = func() generic.LeaveID {
		return generic.LeaveID(fmt.Sprintf("leave-%04d", atomic.AddInt64(&seq, 1)))
	}

	ts.handler = api.NewHandler(ts.svc, mem, nil)
	require.NoError(t, ts.handler.ApplyScenario(context.Background(), "directory"))

	for _, emp := range api.SeedEmployees() {
		token, err := api.IssueToken(testSecret, emp, time.Hour)
		require.NoError(t, err)
		ts.tokens[emp.ID] = token
	}

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = testSecret
	}
	ts.router = api.NewRouter(ts.handler, cfg)
	return ts
}

func (ts *testServer) advance(d time.Duration) { ts.now = ts.now.Add(d) }

// do sends a request as who (empty for anonymous) and returns the recorder.
func (ts *testServer) do(who generic.EmployeeID, method, path string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if who != "" {
		req.Header.Set("Authorization", "Bearer "+ts.tokens[who])
	}

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) apply(who generic.EmployeeID, from, to string) api.LeaveDTO {
	ts.t.Helper()
	rec := ts.do(who, http.MethodPost, "/api/leaves", api.ApplyLeaveRequest{FromDate: from, ToDate: to, Reason: "personal"})
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[api.LeaveDTO](ts.t, rec)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorDetails(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var resp struct {
		Error   string            `json:"error"`
		Details map[string]string `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp.Details
}

// =============================================================================
// AUTHENTICATION
// =============================================================================

func TestAuth_RejectsMissingAndInvalidTokens(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do("", http.MethodGet, "/api/leaves/mine", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/leaves/mine", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec = httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Signed with another secret.
	forged, err := api.IssueToken("other-secret", api.SeedEmployees()[0], time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/leaves/mine", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	rec = httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_ExpiredToken(t *testing.T) {
	ts := newTestServer(t)

	expired, err := api.IssueToken(testSecret, api.SeedEmployees()[0], -time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/leaves/mine", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestParseToken_MapsClaimsToActor(t *testing.T) {
	jane := api.SeedEmployees()[1]
	token, err := api.IssueToken(testSecret, jane, time.Hour)
	require.NoError(t, err)

	actor, err := api.ParseToken([]byte(testSecret), token)
	require.NoError(t, err)
	assert.Equal(t, generic.Actor{ID: api.SeedJane, Role: generic.RoleManager, Department: "Engineering"}, actor)
}

func TestRequireRole_ForbidsEmployeesFromTeamRoutes(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/api/team/pending", "/api/team/balances", "/api/employees/"} {
		rec := ts.do(api.SeedJohn, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
	}

	// Managers are not HR.
	rec := ts.do(api.SeedJane, http.MethodGet, "/api/employees/", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// =============================================================================
// APPLY
// =============================================================================

func TestApplyLeave_CreatesPendingWithCountdown(t *testing.T) {
	ts := newTestServer(t)

	leave := ts.apply(api.SeedJohn, "2025-03-10", "2025-03-12")

	assert.Equal(t, "Pending", leave.Status)
	assert.Equal(t, string(api.SeedJohn), leave.EmployeeID)
	assert.Equal(t, "John Employee", leave.EmployeeName)
	assert.Equal(t, 3.0, leave.Days)
	require.NotNil(t, leave.RemainingSeconds)
	assert.Equal(t, int64(300), *leave.RemainingSeconds)
	assert.Equal(t, "2025-03-03T10:05:00Z", leave.Deadline)
}

func TestApplyLeave_Validation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name  string
		body  api.ApplyLeaveRequest
		field string
	}{
		{"blank reason", api.ApplyLeaveRequest{FromDate: "2025-03-10", ToDate: "2025-03-10", Reason: "   "}, "reason"},
		{"reversed range", api.ApplyLeaveRequest{FromDate: "2025-03-12", ToDate: "2025-03-10", Reason: "x"}, "from_date"},
		{"bad from date", api.ApplyLeaveRequest{FromDate: "03/10/2025", ToDate: "2025-03-10", Reason: "x"}, "from_date"},
		{"missing to date", api.ApplyLeaveRequest{FromDate: "2025-03-10", Reason: "x"}, "to_date"},
		{"year one", api.ApplyLeaveRequest{FromDate: "0001-01-01", ToDate: "2025-03-10", Reason: "x"}, "from_date"},
		{"before 1900", api.ApplyLeaveRequest{FromDate: "1899-12-31", ToDate: "2025-03-10", Reason: "x"}, "from_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(api.SeedJohn, http.MethodPost, "/api/leaves", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, tt.field, errorDetails(t, rec)["field"])
		})
	}
}

func TestApplyLeave_MalformedBody(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/leaves", strings.NewReader("{"))
	req.Header.Set("Authorization", "Bearer "+ts.tokens[api.SeedJohn])
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApplyLeave_HRCannotApply(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(api.SeedAdmin, http.MethodPost, "/api/leaves", api.ApplyLeaveRequest{FromDate: "2025-03-10", ToDate: "2025-03-10", Reason: "x"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// =============================================================================
// DECIDE
// =============================================================================

func TestDecideLeave_WithinWindow(t *testing.T) {
	ts := newTestServer(t)
	leave := ts.apply(api.SeedJohn, "2025-03-10", "2025-03-12")

	ts.advance(299 * time.Second)
	rec := ts.do(api.SeedJane, http.MethodPost, "/api/leaves/"+leave.ID+"/decision", api.DecisionRequest{Status: "Rejected"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	decided := decode[api.LeaveDTO](t, rec)
	assert.Equal(t, "Rejected", decided.Status)
	assert.Equal(t, string(api.SeedJane), decided.DecidedBy)
	assert.False(t, decided.AutoApproved)
	assert.Nil(t, decided.RemainingSeconds)

	// Terminal is final.
	rec = ts.do(api.SeedJane, http.MethodPost, "/api/leaves/"+leave.ID+"/decision", api.DecisionRequest{Status: "Approved"})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Rejected", errorDetails(t, rec)["status"])
}

func TestDecideLeave_AfterWindowReportsAutoApproval(t *testing.T) {
	ts := newTestServer(t)
	leave := ts.apply(api.SeedJohn, "2025-03-10", "2025-03-12")

	ts.advance(301 * time.Second)
	rec := ts.do(api.SeedJane, http.MethodPost, "/api/leaves/"+leave.ID+"/decision", api.DecisionRequest{Status: "Rejected"})
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.Equal(t, "Approved", errorDetails(t, rec)["status"])

	rec = ts.do(api.SeedJohn, http.MethodGet, "/api/leaves/"+leave.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[api.LeaveDTO](t, rec)
	assert.Equal(t, "Approved", got.Status)
	assert.True(t, got.AutoApproved)
	assert.Equal(t, string(generic.SystemActorID), got.DecidedBy)
}

func TestDecideLeave_Errors(t *testing.T) {
	ts := newTestServer(t)
	johns := ts.apply(api.SeedJohn, "2025-03-10", "2025-03-10")
	alices := ts.apply(api.SeedAlice, "2025-03-10", "2025-03-10")

	t.Run("bad status", func(t *testing.T) {
		rec := ts.do(api.SeedJane, http.MethodPost, "/api/leaves/"+johns.ID+"/decision", api.DecisionRequest{Status: "Pending"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "status", errorDetails(t, rec)["field"])
	})
	t.Run("employee role", func(t *testing.T) {
		rec := ts.do(api.SeedBob, http.MethodPost, "/api/leaves/"+johns.ID+"/decision", api.DecisionRequest{Status: "Approved"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
	t.Run("out of scope", func(t *testing.T) {
		rec := ts.do(api.SeedJane, http.MethodPost, "/api/leaves/"+alices.ID+"/decision", api.DecisionRequest{Status: "Approved"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
	t.Run("unknown leave", func(t *testing.T) {
		rec := ts.do(api.SeedJane, http.MethodPost, "/api/leaves/nope/decision", api.DecisionRequest{Status: "Approved"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
	t.Run("hr decides anyone", func(t *testing.T) {
		rec := ts.do(api.SeedAdmin, http.MethodPost, "/api/leaves/"+alices.ID+"/decision", api.DecisionRequest{Status: "approved"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "Approved", decode[api.LeaveDTO](t, rec).Status)
	})
}

func TestBulkDecide_PartialSuccess(t *testing.T) {
	ts := newTestServer(t)
	a := ts.apply(api.SeedJohn, "2025-03-10", "2025-03-10")
	b := ts.apply(api.SeedBob, "2025-03-11", "2025-03-11")
	c := ts.apply(api.SeedAlice, "2025-03-12", "2025-03-12")

	rec := ts.do(api.SeedJane, http.MethodPost, "/api/leaves/bulk-decision", api.BulkDecisionRequest{
		LeaveIDs: []string{a.ID, b.ID, c.ID, "missing"},
		Status:   "Approved",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[api.BulkDecisionResponse](t, rec)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, res.Updated)

	codes := map[string]string{}
	for _, s := range res.Skipped {
		codes[s.ID] = s.Code
	}
	assert.Equal(t, map[string]string{c.ID: "unauthorized", "missing": "not_found"}, codes)
}

// failingStore fails TransitionPending for one id.
type failingStore struct {
	*store.Memory
	failOn generic.LeaveID
}

func (s *failingStore) TransitionPending(ctx context.Context, id generic.LeaveID, to generic.Status, by generic.EmployeeID, at time.Time) (*generic.LeaveRequest, error) {
	if id == s.failOn {
		return nil, errors.New("disk I/O error")
	}
	return s.Memory.TransitionPending(ctx, id, to, by, at)
}

func TestBulkDecide_StoreFailureReportsDecidedItems(t *testing.T) {
	ts := newTestServer(t)
	a := ts.apply(api.SeedJohn, "2025-03-10", "2025-03-10")
	b := ts.apply(api.SeedBob, "2025-03-11", "2025-03-11")
	ts.svc.Store = &failingStore{Memory: ts.store, failOn: generic.LeaveID(b.ID)}

	rec := ts.do(api.SeedJane, http.MethodPost, "/api/leaves/bulk-decision", api.BulkDecisionRequest{
		LeaveIDs: []string{a.ID, b.ID},
		Status:   "Approved",
	})
	require.Equal(t, http.StatusInternalServerError, rec.Code, rec.Body.String())

	res := decode[api.BulkDecisionResponse](t, rec)
	assert.Equal(t, []string{a.ID}, res.Updated)
	assert.Empty(t, res.Skipped)
	assert.NotEmpty(t, res.Error)
	assert.NotContains(t, rec.Body.String(), "disk I/O")

	got, err := ts.store.Get(context.Background(), generic.LeaveID(a.ID))
	require.NoError(t, err)
	assert.Equal(t, generic.StatusApproved, got.Status)
}

func TestBulkDecide_EmptyIDs(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(api.SeedJane, http.MethodPost, "/api/leaves/bulk-decision", api.BulkDecisionRequest{LeaveIDs: []string{" "}, Status: "Approved"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "leave_ids", errorDetails(t, rec)["field"])
}

// =============================================================================
// CANCEL AND HISTORY
// =============================================================================

func TestCancelLeave_DeletesAndKeepsHistory(t *testing.T) {
	ts := newTestServer(t)
	leave := ts.apply(api.SeedJohn, "2025-03-10", "2025-03-12")

	// Only the owner may cancel.
	rec := ts.do(api.SeedBob, http.MethodDelete, "/api/leaves/"+leave.ID, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(api.SeedJohn, http.MethodDelete, "/api/leaves/"+leave.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = ts.do(api.SeedJohn, http.MethodGet, "/api/leaves/"+leave.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(api.SeedJane, http.MethodGet, "/api/leaves/"+leave.ID+"/history", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	history := decode[[]api.AuditEntryDTO](t, rec)
	require.Len(t, history, 2)
	assert.Equal(t, "leave_created", history[0].Action)
	assert.Equal(t, "leave_cancelled", history[1].Action)
	assert.Equal(t, "2025-03-10", history[1].Payload["from_date"])
}

func TestCancelLeave_AfterDecision(t *testing.T) {
	ts := newTestServer(t)
	leave := ts.apply(api.SeedJohn, "2025-03-10", "2025-03-12")

	rec := ts.do(api.SeedJane, http.MethodPost, "/api/leaves/"+leave.ID+"/decision", api.DecisionRequest{Status: "Approved"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(api.SeedJohn, http.MethodDelete, "/api/leaves/"+leave.ID, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Approved", errorDetails(t, rec)["status"])
}

// =============================================================================
// QUERIES
// =============================================================================

func TestListMyLeaves_NewestFirst(t *testing.T) {
	ts := newTestServer(t)
	ts.apply(api.SeedJohn, "2025-03-10", "2025-03-10")
	ts.apply(api.SeedJohn, "2025-04-01", "2025-04-02")
	ts.apply(api.SeedBob, "2025-05-01", "2025-05-01")

	rec := ts.do(api.SeedJohn, http.MethodGet, "/api/leaves/mine", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	mine := decode[[]api.LeaveDTO](t, rec)
	require.Len(t, mine, 2)
	assert.Equal(t, "2025-04-01", mine[0].FromDate)
	assert.Equal(t, "2025-03-10", mine[1].FromDate)
}

func TestListMyLeaves_EmptyIsArray(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(api.SeedBob, http.MethodGet, "/api/leaves/mine", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestListTeamPending_CountdownAndScope(t *testing.T) {
	ts := newTestServer(t)
	ts.apply(api.SeedJohn, "2025-03-10", "2025-03-10")
	ts.apply(api.SeedAlice, "2025-03-10", "2025-03-10")

	ts.advance(90 * time.Second)
	rec := ts.do(api.SeedJane, http.MethodGet, "/api/team/pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	pending := decode[[]api.LeaveDTO](t, rec)
	require.Len(t, pending, 1)
	assert.Equal(t, string(api.SeedJohn), pending[0].EmployeeID)
	require.NotNil(t, pending[0].RemainingSeconds)
	assert.Equal(t, int64(210), *pending[0].RemainingSeconds)

	rec = ts.do(api.SeedAdmin, http.MethodGet, "/api/team/pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.LeaveDTO](t, rec), 2)
}

func TestGetTeamCalendar_FlagsConflicts(t *testing.T) {
	ts := newTestServer(t)
	ts.apply(api.SeedJohn, "2025-03-10", "2025-03-12")
	ts.apply(api.SeedBob, "2025-03-12", "2025-03-13")
	ts.apply(api.SeedAlice, "2025-03-12", "2025-03-12")

	rec := ts.do(api.SeedJane, http.MethodGet, "/api/team/calendar?start_date=2025-03-10&end_date=2025-03-14", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	cal := decode[api.CalendarResponse](t, rec)
	assert.Equal(t, []string{"2025-03-12"}, cal.Conflicts)
	require.Len(t, cal.Days, 5)
	assert.True(t, cal.Days[2].Conflict)
	assert.Len(t, cal.Days[2].Events, 2)
	assert.False(t, cal.Days[4].Conflict)
	assert.Empty(t, cal.Days[4].Events)
	require.Len(t, cal.Events, 2)
	for _, ev := range cal.Events {
		assert.True(t, ev.HasConflict)
	}
}

func TestGetTeamCalendar_Validation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		query string
		field string
	}{
		{"end_date=2025-03-14", "start_date"},
		{"start_date=2025-03-10", "end_date"},
		{"start_date=2025-03-14&end_date=2025-03-10", "start_date"},
		{"start_date=tomorrow&end_date=2025-03-10", "start_date"},
		{"start_date=2025-01-01&end_date=2026-12-31", "end_date"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := ts.do(api.SeedJane, http.MethodGet, "/api/team/calendar?"+tt.query, nil)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, tt.field, errorDetails(t, rec)["field"])
		})
	}
}

func TestGetTeamBalances(t *testing.T) {
	ts := newTestServer(t)
	for _, rng := range [][2]string{{"2025-03-10", "2025-03-12"}, {"2025-04-07", "2025-04-09"}} {
		leave := ts.apply(api.SeedJohn, rng[0], rng[1])
		rec := ts.do(api.SeedJane, http.MethodPost, "/api/leaves/"+leave.ID+"/decision", api.DecisionRequest{Status: "Approved"})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := ts.do(api.SeedJane, http.MethodGet, "/api/team/balances", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var johns *api.BalanceDTO
	balances := decode[[]api.BalanceDTO](t, rec)
	for i := range balances {
		if balances[i].EmployeeID == string(api.SeedJohn) {
			johns = &balances[i]
		}
	}
	require.NotNil(t, johns)
	assert.Equal(t, 2025, johns.Year)
	assert.Equal(t, 20.0, johns.Total)
	assert.Equal(t, 6.0, johns.Used)
	assert.Equal(t, 14.0, johns.Remaining)

	rec = ts.do(api.SeedJane, http.MethodGet, "/api/team/balances?year=abc", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "year", errorDetails(t, rec)["field"])

	rec = ts.do(api.SeedJane, http.MethodGet, "/api/team/balances?year=2024", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, b := range decode[[]api.BalanceDTO](t, rec) {
		assert.Zero(t, b.Used, b.EmployeeID)
	}
}

// =============================================================================
// DIRECTORY AND ADMIN
// =============================================================================

func TestEmployees_ListAndSave(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(api.SeedAdmin, http.MethodGet, "/api/employees/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.EmployeeDTO](t, rec), len(api.SeedEmployees()))

	rec = ts.do(api.SeedAdmin, http.MethodPost, "/api/employees/", api.SaveEmployeeRequest{
		ID: "emp-carol", Name: "Carol Ops", Role: "Employee", Department: "Engineering", ManagerID: string(api.SeedJane), TotalLeaves: 18,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	saved := decode[api.EmployeeDTO](t, rec)
	assert.Equal(t, "employee", saved.Role)

	emp, err := ts.store.GetEmployee(context.Background(), "emp-carol")
	require.NoError(t, err)
	assert.Equal(t, 18, emp.TotalLeaves)

	rec = ts.do(api.SeedAdmin, http.MethodPost, "/api/employees/", api.SaveEmployeeRequest{ID: "x", Name: "X", Role: "ceo"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "role", errorDetails(t, rec)["field"])

	rec = ts.do(api.SeedAdmin, http.MethodPost, "/api/employees/", api.SaveEmployeeRequest{ID: "x", Name: "X", Role: "hr", TotalLeaves: -1})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "total_leaves", errorDetails(t, rec)["field"])
}

func TestTriggerSweep(t *testing.T) {
	ts := newTestServer(t)
	old := ts.apply(api.SeedJohn, "2025-03-10", "2025-03-10")
	ts.advance(4 * time.Minute)
	fresh := ts.apply(api.SeedBob, "2025-03-10", "2025-03-10")
	ts.advance(90 * time.Second)

	rec := ts.do(api.SeedJane, http.MethodPost, "/api/admin/sweep", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(api.SeedAdmin, http.MethodPost, "/api/admin/sweep", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[api.SweepResponse](t, rec).Approved)

	got, err := ts.store.Get(context.Background(), generic.LeaveID(old.ID))
	require.NoError(t, err)
	assert.Equal(t, generic.StatusApproved, got.Status)

	got, err = ts.store.Get(context.Background(), generic.LeaveID(fresh.ID))
	require.NoError(t, err)
	assert.Equal(t, generic.StatusPending, got.Status)
}

func TestGetAuditLog(t *testing.T) {
	ts := newTestServer(t)
	a := ts.apply(api.SeedJohn, "2025-03-10", "2025-03-10")
	ts.apply(api.SeedBob, "2025-03-11", "2025-03-11")
	rec := ts.do(api.SeedJane, http.MethodPost, "/api/leaves/"+a.ID+"/decision", api.DecisionRequest{Status: "Rejected"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(api.SeedJane, http.MethodGet, "/api/admin/audit", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(api.SeedAdmin, http.MethodGet, "/api/admin/audit?employee_id="+string(api.SeedJohn), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	entries := decode[[]api.AuditEntryDTO](t, rec)
	require.Len(t, entries, 2)
	assert.Equal(t, "leave_created", entries[0].Action)
	assert.Equal(t, "leave_rejected", entries[1].Action)

	rec = ts.do(api.SeedAdmin, http.MethodGet, "/api/admin/audit?actor_id="+string(api.SeedJane)+"&action=leave_rejected", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries = decode[[]api.AuditEntryDTO](t, rec)
	require.Len(t, entries, 1)
	assert.Equal(t, a.ID, entries[0].LeaveID)

	rec = ts.do(api.SeedAdmin, http.MethodGet, "/api/admin/audit?from=2025-03-03T11:00:00Z", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]api.AuditEntryDTO](t, rec))

	rec = ts.do(api.SeedAdmin, http.MethodGet, "/api/admin/audit?action=leave_exploded", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "action", errorDetails(t, rec)["field"])

	rec = ts.do(api.SeedAdmin, http.MethodGet, "/api/admin/audit?to=yesterday", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "to", errorDetails(t, rec)["field"])
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func TestRequestLogger_RecordsActor(t *testing.T) {
	ts := newTestServer(t)
	logger, hook := logrustest.NewNullLogger()
	router := api.NewRouter(api.NewHandler(ts.svc, ts.store, logger), api.RouterConfig{JWTSecret: testSecret})

	req := httptest.NewRequest(http.MethodGet, "/api/leaves/mine", nil)
	req.Header.Set("Authorization", "Bearer "+ts.tokens[api.SeedJohn])
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "request", entry.Message)
	assert.Equal(t, api.SeedJohn, entry.Data["actor"])
	assert.Equal(t, http.StatusOK, entry.Data["status"])

	// Anonymous requests log without an actor.
	hook.Reset()
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/leaves/mine", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	entry = hook.LastEntry()
	require.NotNil(t, entry)
	assert.NotContains(t, entry.Data, "actor")
}

func TestHealthz_IsPublic(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do("", http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRequestID_EchoedOrGenerated(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))

	rec = ts.do("", http.MethodGet, "/healthz", nil)
	assert.Len(t, rec.Header().Get("X-Request-ID"), 36)
}

func TestRateLimit_Returns429(t *testing.T) {
	ts := newTestServerWith(t, api.RouterConfig{RateLimitRPS: 0.001, RateLimitBurst: 2})

	assert.Equal(t, http.StatusOK, ts.do(api.SeedJohn, http.MethodGet, "/api/leaves/mine", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(api.SeedJohn, http.MethodGet, "/api/leaves/mine", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, ts.do(api.SeedJohn, http.MethodGet, "/api/leaves/mine", nil).Code)

	// Health checks are outside the limited group.
	assert.Equal(t, http.StatusOK, ts.do("", http.MethodGet, "/healthz", nil).Code)
}

func TestMetrics_ServedWhenConfigured(t *testing.T) {
	collector := metrics.NewCollector()
	ts := newTestServerWith(t, api.RouterConfig{Metrics: collector})
	ts.svc.Observer = collector

	ts.apply(api.SeedJohn, "2025-03-10", "2025-03-10")

	rec := ts.do("", http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "leave_requests_applied_total 1")
	assert.Contains(t, body, `api_requests_total{method="POST",path="/api/leaves`)
	assert.Contains(t, body, `status="201"} 1`)
}

func TestMetrics_AbsentByDefault(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do("", http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
