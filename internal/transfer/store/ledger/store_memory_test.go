package ledger

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"civreg/internal/transfer/models"
	id "civreg/pkg/domain"
	"civreg/pkg/platform/sentinel"
)

type LedgerStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func (s *LedgerStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
}

func TestLedgerStoreSuite(t *testing.T) {
	suite.Run(t, new(LedgerStoreSuite))
}

func (s *LedgerStoreSuite) newRequest(family, from, to string) *models.TransferRequest {
	req, err := models.NewTransferRequest(id.NewTransferID(), id.FamilyID(family), id.OfficeID(from), id.OfficeID(to), "clerk-1", "family relocated", "", s.now)
	s.Require().NoError(err)
	return req
}

func (s *LedgerStoreSuite) TestCreateAndGet() {
	s.Run("round-trips a request", func() {
		req := s.newRequest("F001", "O-A", "O-B")
		s.Require().NoError(s.store.Create(s.ctx, req))

		found, err := s.store.Get(s.ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(req.FamilyID, found.FamilyID)
		s.Equal(models.StatusPending, found.Status)
	})

	s.Run("returns ErrNotFound for unknown id", func() {
		_, err := s.store.Get(s.ctx, id.NewTransferID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("rejects duplicate transfer id", func() {
		req := s.newRequest("F002", "O-A", "O-B")
		s.Require().NoError(s.store.Create(s.ctx, req))
		err := s.store.Create(s.ctx, req)
		s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("hands out copies, not aliases", func() {
		req := s.newRequest("F003", "O-A", "O-B")
		s.Require().NoError(s.store.Create(s.ctx, req))

		found, err := s.store.Get(s.ctx, req.ID)
		s.Require().NoError(err)
		found.Status = models.StatusCompleted

		again, err := s.store.Get(s.ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, again.Status)
	})
}

func (s *LedgerStoreSuite) TestOneActivePerFamily() {
	s.Run("second request for same family conflicts", func() {
		first := s.newRequest("F001", "O-A", "O-B")
		s.Require().NoError(s.store.Create(s.ctx, first))

		second := s.newRequest("F001", "O-A", "O-C")
		err := s.store.Create(s.ctx, second)
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("terminal transfer frees the family", func() {
		first := s.newRequest("F002", "O-A", "O-B")
		s.Require().NoError(s.store.Create(s.ctx, first))

		_, err := s.store.CompareAndTransition(s.ctx, first.ID, models.StatusPending, func(t *models.TransferRequest) error {
			t.ApplyRejection("officer-1", "incomplete", s.now)
			return nil
		})
		s.Require().NoError(err)

		second := s.newRequest("F002", "O-A", "O-C")
		s.Require().NoError(s.store.Create(s.ctx, second))
	})

	s.Run("approval keeps the family blocked", func() {
		first := s.newRequest("F003", "O-A", "O-B")
		s.Require().NoError(s.store.Create(s.ctx, first))

		_, err := s.store.CompareAndTransition(s.ctx, first.ID, models.StatusPending, func(t *models.TransferRequest) error {
			t.ApplyApproval("officer-1", "", s.now)
			return nil
		})
		s.Require().NoError(err)

		second := s.newRequest("F003", "O-A", "O-C")
		s.Require().ErrorIs(s.store.Create(s.ctx, second), sentinel.ErrConflict)
	})
}

func (s *LedgerStoreSuite) TestCompareAndTransition() {
	s.Run("applies the mutation when status matches", func() {
		req := s.newRequest("F001", "O-A", "O-B")
		s.Require().NoError(s.store.Create(s.ctx, req))

		updated, err := s.store.CompareAndTransition(s.ctx, req.ID, models.StatusPending, func(t *models.TransferRequest) error {
			t.ApplyApproval("officer-1", "ok", s.now)
			return nil
		})
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, updated.Status)
	})

	s.Run("rejects a stale expectation", func() {
		req := s.newRequest("F002", "O-A", "O-B")
		s.Require().NoError(s.store.Create(s.ctx, req))

		_, err := s.store.CompareAndTransition(s.ctx, req.ID, models.StatusPending, func(t *models.TransferRequest) error {
			t.ApplyApproval("officer-1", "", s.now)
			return nil
		})
		s.Require().NoError(err)

		_, err = s.store.CompareAndTransition(s.ctx, req.ID, models.StatusPending, func(t *models.TransferRequest) error {
			t.ApplyRejection("officer-2", "late", s.now)
			return nil
		})
		s.Require().ErrorIs(err, sentinel.ErrInvalidState)
	})

	s.Run("keeps the row untouched when mutate fails", func() {
		req := s.newRequest("F003", "O-A", "O-B")
		s.Require().NoError(s.store.Create(s.ctx, req))

		wantErr := sentinel.ErrInvalidState
		_, err := s.store.CompareAndTransition(s.ctx, req.ID, models.StatusPending, func(t *models.TransferRequest) error {
			t.ApplyApproval("officer-1", "", s.now)
			return wantErr
		})
		s.Require().ErrorIs(err, wantErr)

		found, err := s.store.Get(s.ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, found.Status)
	})

	s.Run("exactly one concurrent approver wins", func() {
		req := s.newRequest("F004", "O-A", "O-B")
		s.Require().NoError(s.store.Create(s.ctx, req))

		const racers = 32
		var wins, losses atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.store.CompareAndTransition(s.ctx, req.ID, models.StatusPending, func(t *models.TransferRequest) error {
					t.ApplyApproval("officer-1", "", s.now)
					return nil
				})
				if err == nil {
					wins.Add(1)
				} else {
					losses.Add(1)
				}
			}()
		}
		wg.Wait()

		s.Equal(int32(1), wins.Load(), "exactly one transition should win")
		s.Equal(int32(racers-1), losses.Load())
	})
}

func (s *LedgerStoreSuite) TestListForOffice() {
	mk := func(family, from, to string, offset time.Duration) *models.TransferRequest {
		req, err := models.NewTransferRequest(id.NewTransferID(), id.FamilyID(family), id.OfficeID(from), id.OfficeID(to), "clerk-1", "reason", "", s.now.Add(offset))
		s.Require().NoError(err)
		s.Require().NoError(s.store.Create(s.ctx, req))
		return req
	}

	outbound := mk("F001", "O-A", "O-B", 0)
	inbound := mk("F002", "O-C", "O-A", time.Minute)
	mk("F003", "O-B", "O-C", 2*time.Minute)

	s.Run("matches origin and destination, newest first", func() {
		rows, err := s.store.ListForOffice(s.ctx, "O-A", models.ListFilter{})
		s.Require().NoError(err)
		s.Require().Len(rows, 2)
		s.Equal(inbound.ID, rows[0].ID)
		s.Equal(outbound.ID, rows[1].ID)
	})

	s.Run("filters by status", func() {
		_, err := s.store.CompareAndTransition(s.ctx, outbound.ID, models.StatusPending, func(t *models.TransferRequest) error {
			t.ApplyRejection("officer-1", "no", s.now)
			return nil
		})
		s.Require().NoError(err)

		rows, err := s.store.ListForOffice(s.ctx, "O-A", models.ListFilter{Status: models.StatusRejected})
		s.Require().NoError(err)
		s.Require().Len(rows, 1)
		s.Equal(outbound.ID, rows[0].ID)
	})

	s.Run("applies the limit after sorting", func() {
		rows, err := s.store.ListForOffice(s.ctx, "O-A", models.ListFilter{Limit: 1})
		s.Require().NoError(err)
		s.Require().Len(rows, 1)
		s.Equal(inbound.ID, rows[0].ID)
	})
}
