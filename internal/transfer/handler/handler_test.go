package handler

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"civreg/internal/directory"
	familymodels "civreg/internal/family/models"
	familystore "civreg/internal/family/store"
	"civreg/internal/token"
	"civreg/internal/transfer/models"
	"civreg/internal/transfer/service"
	"civreg/internal/transfer/store/ledger"
	id "civreg/pkg/domain"
	"civreg/pkg/testutil"
)

// The fixture mirrors the service tests: O-A and O-C in division D-1, O-B in
// division D-2, family F001 registered at O-A.
type fixture struct {
	router http.Handler
	tokens *token.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := directory.NewInMemory()
	seed := func(office, division string) {
		dir.Seed(directory.Location{
			Office:   directory.Office{ID: id.OfficeID(office), Name: office},
			Division: directory.Division{ID: id.DivisionID(division), Name: division},
			District: directory.District{ID: "DT-1", Name: "District 1"},
			Province: directory.Province{ID: "P-1", Name: "Province 1"},
		})
	}
	seed("O-A", "D-1")
	seed("O-B", "D-2")
	seed("O-C", "D-1")

	families := familystore.NewInMemory()
	require.NoError(t, families.Put(context.Background(), &familymodels.FamilyRecord{
		ID:             "F001",
		OfficeOfRecord: "O-A",
	}))

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	svc := service.New(ledger.NewInMemory(), families, dir, service.WithLogger(logger))
	tokens := token.NewService("test-signing-key", "civreg-test")

	h := New(svc, logger, nil, tokens)
	r := chi.NewRouter()
	h.Register(r)

	return &fixture{router: r, tokens: tokens}
}

func (f *fixture) bearer(t *testing.T, actorID string, role id.Role, office string) string {
	t.Helper()
	signed, err := f.tokens.GenerateAccessToken(id.ActorID(actorID), role, id.OfficeID(office), time.Hour)
	require.NoError(t, err)
	return "Bearer " + signed
}

func TestAuthRequired(t *testing.T) {
	f := newFixture(t)

	req := testutil.NewRequest(t, http.MethodGet, "/offices/O-A/transfers")
	rr := testutil.DoRequest(f.router, req)
	testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")

	req = testutil.NewRequest(t, http.MethodGet, "/offices/O-A/transfers")
	req.Header.Set("Authorization", "Bearer not-a-token")
	rr = testutil.DoRequest(f.router, req)
	testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
}

func TestTransferLifecycleViaHandlers(t *testing.T) {
	f := newFixture(t)
	clerkA := f.bearer(t, "clerk-a", id.RoleClerk, "O-A")
	clerkB := f.bearer(t, "clerk-b", id.RoleClerk, "O-B")
	officer := f.bearer(t, "officer-1", id.RoleDivisionalOfficer, "O-C")

	// Request.
	req := testutil.NewJSONRequest(t, http.MethodPost, "/transfers", map[string]string{
		"family_id":    "F001",
		"to_office_id": "O-B",
		"reason":       "family relocated",
	})
	req.Header.Set("Authorization", clerkA)
	rr := testutil.DoRequest(f.router, req)
	testutil.AssertStatus(t, rr, http.StatusCreated)

	created := testutil.UnmarshalResponse[models.TransferRequest](t, rr)
	require.False(t, created.ID.IsNil())
	require.Equal(t, models.StatusPending, created.Status)
	transferID := created.ID.String()

	// Fetch.
	req = testutil.NewRequest(t, http.MethodGet, "/transfers/"+transferID)
	req.Header.Set("Authorization", clerkB)
	rr = testutil.DoRequest(f.router, req)
	testutil.AssertStatus(t, rr, http.StatusOK)

	// Approve.
	req = testutil.NewJSONRequest(t, http.MethodPost, "/transfers/"+transferID+"/approve", map[string]string{"note": "verified"})
	req.Header.Set("Authorization", officer)
	rr = testutil.DoRequest(f.router, req)
	testutil.AssertStatus(t, rr, http.StatusOK)
	approved := testutil.UnmarshalResponse[models.TransferRequest](t, rr)
	require.Equal(t, models.StatusApproved, approved.Status)
	require.Equal(t, id.ActorID("officer-1"), approved.ApprovedBy)

	// Complete, from the receiving office, with no body at all.
	req = testutil.NewRequest(t, http.MethodPost, "/transfers/"+transferID+"/complete")
	req.Header.Set("Authorization", clerkB)
	rr = testutil.DoRequest(f.router, req)
	testutil.AssertStatus(t, rr, http.StatusOK)
	completed := testutil.UnmarshalResponse[models.TransferRequest](t, rr)
	require.Equal(t, models.StatusCompleted, completed.Status)

	// The office history shows the finished transfer.
	req = testutil.NewRequest(t, http.MethodGet, "/offices/O-B/transfers?status=completed")
	req.Header.Set("Authorization", clerkB)
	rr = testutil.DoRequest(f.router, req)
	testutil.AssertStatus(t, rr, http.StatusOK)
	list := testutil.UnmarshalResponse[struct {
		Transfers []models.TransferRequest `json:"transfers"`
	}](t, rr)
	require.Len(t, list.Transfers, 1)
}

func TestRequestValidationErrors(t *testing.T) {
	f := newFixture(t)
	clerkA := f.bearer(t, "clerk-a", id.RoleClerk, "O-A")

	cases := []struct {
		name       string
		body       map[string]string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "missing reason",
			body:       map[string]string{"family_id": "F001", "to_office_id": "O-B"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_input",
		},
		{
			name:       "same office",
			body:       map[string]string{"family_id": "F001", "to_office_id": "O-A", "reason": "r"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "same_office",
		},
		{
			name:       "unknown destination",
			body:       map[string]string{"family_id": "F001", "to_office_id": "O-X", "reason": "r"},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "invalid_office",
		},
		{
			name:       "unknown family",
			body:       map[string]string{"family_id": "F999", "to_office_id": "O-B", "reason": "r"},
			wantStatus: http.StatusNotFound,
			wantCode:   "not_found",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := testutil.NewJSONRequest(t, http.MethodPost, "/transfers", tc.body)
			req.Header.Set("Authorization", clerkA)
			rr := testutil.DoRequest(f.router, req)
			testutil.AssertStatusAndError(t, rr, tc.wantStatus, tc.wantCode)
		})
	}
}

func TestConflictResponses(t *testing.T) {
	f := newFixture(t)
	clerkA := f.bearer(t, "clerk-a", id.RoleClerk, "O-A")
	officer := f.bearer(t, "officer-1", id.RoleDivisionalOfficer, "O-C")

	create := func() string {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/transfers", map[string]string{
			"family_id":    "F001",
			"to_office_id": "O-B",
			"reason":       "family relocated",
		})
		req.Header.Set("Authorization", clerkA)
		rr := testutil.DoRequest(f.router, req)
		testutil.AssertStatus(t, rr, http.StatusCreated)
		return testutil.UnmarshalResponse[models.TransferRequest](t, rr).ID.String()
	}

	transferID := create()

	t.Run("duplicate active transfer", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/transfers", map[string]string{
			"family_id":    "F001",
			"to_office_id": "O-C",
			"reason":       "second",
		})
		req.Header.Set("Authorization", clerkA)
		rr := testutil.DoRequest(f.router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusConflict, "active_transfer_exists")
	})

	t.Run("double approval", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/transfers/"+transferID+"/approve", nil)
		req.Header.Set("Authorization", officer)
		rr := testutil.DoRequest(f.router, req)
		testutil.AssertStatus(t, rr, http.StatusOK)

		req = testutil.NewJSONRequest(t, http.MethodPost, "/transfers/"+transferID+"/approve", nil)
		req.Header.Set("Authorization", officer)
		rr = testutil.DoRequest(f.router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusConflict, "invalid_transition")
	})
}

func TestAuthorizationResponses(t *testing.T) {
	f := newFixture(t)
	clerkA := f.bearer(t, "clerk-a", id.RoleClerk, "O-A")
	clerkB := f.bearer(t, "clerk-b", id.RoleClerk, "O-B")
	farOfficer := f.bearer(t, "officer-2", id.RoleDivisionalOfficer, "O-B")

	req := testutil.NewJSONRequest(t, http.MethodPost, "/transfers", map[string]string{
		"family_id":    "F001",
		"to_office_id": "O-B",
		"reason":       "family relocated",
	})
	req.Header.Set("Authorization", clerkA)
	rr := testutil.DoRequest(f.router, req)
	testutil.AssertStatus(t, rr, http.StatusCreated)
	transferID := testutil.UnmarshalResponse[models.TransferRequest](t, rr).ID.String()

	t.Run("officer outside the division cannot approve", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/transfers/"+transferID+"/approve", nil)
		req.Header.Set("Authorization", farOfficer)
		rr := testutil.DoRequest(f.router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "unauthorized")
	})

	t.Run("only the requester can cancel", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/transfers/"+transferID+"/cancel", nil)
		req.Header.Set("Authorization", clerkB)
		rr := testutil.DoRequest(f.router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "unauthorized")
	})

	t.Run("clerk cannot list another office", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodGet, "/offices/O-A/transfers")
		req.Header.Set("Authorization", clerkB)
		rr := testutil.DoRequest(f.router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "unauthorized")
	})
}

func TestRejectRequiresReason(t *testing.T) {
	f := newFixture(t)
	clerkA := f.bearer(t, "clerk-a", id.RoleClerk, "O-A")
	officer := f.bearer(t, "officer-1", id.RoleDivisionalOfficer, "O-C")

	req := testutil.NewJSONRequest(t, http.MethodPost, "/transfers", map[string]string{
		"family_id":    "F001",
		"to_office_id": "O-B",
		"reason":       "family relocated",
	})
	req.Header.Set("Authorization", clerkA)
	rr := testutil.DoRequest(f.router, req)
	testutil.AssertStatus(t, rr, http.StatusCreated)
	transferID := testutil.UnmarshalResponse[models.TransferRequest](t, rr).ID.String()

	req = testutil.NewJSONRequest(t, http.MethodPost, "/transfers/"+transferID+"/reject", map[string]string{"reason": "  "})
	req.Header.Set("Authorization", officer)
	rr = testutil.DoRequest(f.router, req)
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_input")

	req = testutil.NewJSONRequest(t, http.MethodPost, "/transfers/"+transferID+"/reject", map[string]string{"reason": "records incomplete"})
	req.Header.Set("Authorization", officer)
	rr = testutil.DoRequest(f.router, req)
	testutil.AssertStatus(t, rr, http.StatusOK)
	rejected := testutil.UnmarshalResponse[models.TransferRequest](t, rr)
	require.Equal(t, models.StatusRejected, rejected.Status)
	require.Equal(t, "records incomplete", rejected.RejectionReason)
}

func TestBadIdentifiers(t *testing.T) {
	f := newFixture(t)
	clerkA := f.bearer(t, "clerk-a", id.RoleClerk, "O-A")

	t.Run("malformed transfer id", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodGet, "/transfers/not-a-uuid")
		req.Header.Set("Authorization", clerkA)
		rr := testutil.DoRequest(f.router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_input")
	})

	t.Run("unknown transfer id", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodGet, "/transfers/"+id.NewTransferID().String())
		req.Header.Set("Authorization", clerkA)
		rr := testutil.DoRequest(f.router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
	})

	t.Run("bad status filter", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodGet, "/offices/O-A/transfers?status=bogus")
		req.Header.Set("Authorization", clerkA)
		rr := testutil.DoRequest(f.router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_input")
	})
}
