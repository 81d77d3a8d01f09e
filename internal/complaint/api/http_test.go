package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/resolveit/grievance-platform/internal/complaint/domain"
	"github.com/resolveit/grievance-platform/internal/complaint/infrastructure"
	"github.com/resolveit/grievance-platform/internal/complaint/service"
	"github.com/resolveit/grievance-platform/internal/escalation"
	"github.com/resolveit/grievance-platform/internal/identity"
	"github.com/resolveit/grievance-platform/internal/shared/auth"
	"github.com/resolveit/grievance-platform/internal/shared/types"
)

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, *domain.Complaint, domain.Status, string) {}

type testServer struct {
	store   *infrastructure.MemoryStore
	router  http.Handler
	citizen identity.Actor
	officer identity.Actor
	admin   identity.Actor

	// actor injected by the fake auth middleware for the next request
	actor *identity.Actor
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := infrastructure.NewMemoryStore()

	citizenUser := identity.User{ID: types.NewID(), Username: "asha", Email: "asha@example.org", Role: identity.RoleCitizen, Active: true}
	officerUser := identity.User{ID: types.NewID(), Username: "officer", Email: "o@example.org", Role: identity.RoleOfficer, OfficerLevel: identity.LevelL1, Active: true}
	l2User := identity.User{ID: types.NewID(), Username: "l2", Email: "l2@example.org", Role: identity.RoleOfficer, OfficerLevel: identity.LevelL2, Active: true}
	adminUser := identity.User{ID: types.NewID(), Username: "admin", Email: "a@example.org", Role: identity.RoleAdmin, Active: true}
	store.AddUser(&citizenUser)
	store.AddUser(&officerUser)
	store.AddUser(&l2User)
	store.AddUser(&adminUser)

	logger := zap.NewNop().Sugar()
	lifecycle := service.NewLifecycle(store, noopNotifier{}, nil, logger)
	sweeper := escalation.NewSweeper(store, lifecycle, time.Hour, rand.New(rand.NewSource(1)), logger)
	handler := NewHandler(lifecycle, sweeper, store)

	ts := &testServer{
		store:   store,
		citizen: identity.ActorFor(&citizenUser),
		officer: identity.ActorFor(&officerUser),
		admin:   identity.ActorFor(&adminUser),
	}

	// Fake auth middleware: injects whichever actor the test selected
	authMW := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ts.actor == nil {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithActor(r.Context(), *ts.actor)))
		})
	}
	ts.router = handler.Routes(authMW)
	return ts
}

func (ts *testServer) do(t *testing.T, actor *identity.Actor, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	ts.actor = actor

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) createComplaint(t *testing.T) types.ID {
	t.Helper()
	rec := ts.do(t, &ts.citizen, http.MethodPost, "/", CreateComplaintRequest{
		Title:       "Street flooding after rain",
		Description: "Drainage blocked near the market",
		Priority:    domain.PriorityHigh,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var c domain.Complaint
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&c))
	return c.ID
}

func TestCreateAndFetchOwnComplaint(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createComplaint(t)

	rec := ts.do(t, &ts.citizen, http.MethodGet, "/mine/"+id.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var detail service.Detail
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&detail))
	assert.Equal(t, id, detail.Complaint.ID)
	assert.Len(t, detail.History, 1)
}

func TestAnonymousIntakeIsPublic(t *testing.T) {
	ts := newTestServer(t)

	// No actor at all: the endpoint sits outside the auth group
	rec := ts.do(t, nil, http.MethodPost, "/anonymous", AnonymousComplaintRequest{
		CreateComplaintRequest: CreateComplaintRequest{
			Title:       "Illegal dumping",
			Description: "Construction waste by the river",
		},
		Email: "tip@example.org",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Ticket string `json:"ticket"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Contains(t, resp.Ticket, "CMP-")
}

func TestOwnerCannotReadStrangersComplaint(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createComplaint(t)

	stranger := identity.Actor{ID: types.NewID(), Role: identity.RoleCitizen}
	rec := ts.do(t, &stranger, http.MethodGet, "/mine/"+id.String(), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWithdrawAfterProcessingConflicts(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createComplaint(t)

	status := domain.StatusInProgress
	rec := ts.do(t, &ts.admin, http.MethodPut, "/"+id.String()+"/admin", AdminUpdateRequest{Status: &status})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, &ts.citizen, http.MethodPost, "/mine/"+id.String()+"/withdraw", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	var errResp struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&errResp))
	assert.Equal(t, "INVALID_STATE_TRANSITION", errResp.Code)
}

func TestRoleGates(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createComplaint(t)

	// Citizens cannot use the staff view
	rec := ts.do(t, &ts.citizen, http.MethodGet, "/"+id.String(), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Officers can
	rec = ts.do(t, &ts.officer, http.MethodGet, "/"+id.String(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Officers cannot use the admin update
	status := domain.StatusResolved
	rec = ts.do(t, &ts.officer, http.MethodPut, "/"+id.String()+"/admin", AdminUpdateRequest{Status: &status})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Admins can list everything
	rec = ts.do(t, &ts.admin, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownComplaintReturns404(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, &ts.officer, http.MethodGet, "/"+types.NewID().String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, &ts.officer, http.MethodGet, "/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
