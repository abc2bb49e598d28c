package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"civreg/internal/family/models"
	id "civreg/pkg/domain"
	"civreg/pkg/platform/sentinel"
)

type FamilyStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *FamilyStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestFamilyStoreSuite(t *testing.T) {
	suite.Run(t, new(FamilyStoreSuite))
}

func (s *FamilyStoreSuite) seed(family, office string) {
	err := s.store.Put(s.ctx, &models.FamilyRecord{
		ID:             id.FamilyID(family),
		OfficeOfRecord: id.OfficeID(office),
	})
	s.Require().NoError(err)
}

func (s *FamilyStoreSuite) TestGet() {
	s.Run("round-trips a record", func() {
		s.seed("F001", "O-A")

		record, err := s.store.Get(s.ctx, "F001")
		s.Require().NoError(err)
		s.Equal(id.OfficeID("O-A"), record.OfficeOfRecord)
		s.False(record.TransferPending)
		s.False(record.Transferred)
	})

	s.Run("returns ErrNotFound for unknown family", func() {
		_, err := s.store.Get(s.ctx, "F999")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("hands out copies", func() {
		s.seed("F002", "O-A")
		record, err := s.store.Get(s.ctx, "F002")
		s.Require().NoError(err)
		record.OfficeOfRecord = "O-Z"

		again, err := s.store.Get(s.ctx, "F002")
		s.Require().NoError(err)
		s.Equal(id.OfficeID("O-A"), again.OfficeOfRecord)
	})
}

func (s *FamilyStoreSuite) TestSetOfficeOfRecord() {
	s.Run("moves the family and marks it transferred", func() {
		s.seed("F001", "O-A")
		s.Require().NoError(s.store.SetPendingFlag(s.ctx, "F001", true))

		err := s.store.SetOfficeOfRecord(s.ctx, "F001", "O-B", true)
		s.Require().NoError(err)

		record, err := s.store.Get(s.ctx, "F001")
		s.Require().NoError(err)
		s.Equal(id.OfficeID("O-B"), record.OfficeOfRecord)
		s.True(record.Transferred)
		s.False(record.TransferPending)
	})

	s.Run("returns ErrNotFound for unknown family", func() {
		err := s.store.SetOfficeOfRecord(s.ctx, "F999", "O-B", false)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *FamilyStoreSuite) TestSetPendingFlag() {
	s.seed("F001", "O-A")

	s.Require().NoError(s.store.SetPendingFlag(s.ctx, "F001", true))
	record, err := s.store.Get(s.ctx, "F001")
	s.Require().NoError(err)
	s.True(record.TransferPending)

	s.Require().NoError(s.store.SetPendingFlag(s.ctx, "F001", false))
	record, err = s.store.Get(s.ctx, "F001")
	s.Require().NoError(err)
	s.False(record.TransferPending)

	s.Require().ErrorIs(s.store.SetPendingFlag(s.ctx, "F999", true), sentinel.ErrNotFound)
}
