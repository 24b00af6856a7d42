package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"posture/api/internal/app/mocks"
	"posture/api/internal/cache"
	"posture/api/internal/profile"
	"posture/api/internal/store"
)

type ServiceOrderingSuite struct {
	suite.Suite
	ctrl  *gomock.Controller
	store *mocks.MockDocumentStore
	cache *mocks.MockDocumentCache
	svc   *Service
}

func (s *ServiceOrderingSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockDocumentStore(s.ctrl)
	s.cache = mocks.NewMockDocumentCache(s.ctrl)
	s.svc = New(s.store, s.cache, Options{CacheTTL: time.Minute, StoreTimeout: time.Second})
}

func TestServiceOrderingSuite(t *testing.T) {
	suite.Run(t, new(ServiceOrderingSuite))
}

func (s *ServiceOrderingSuite) TestSaveInvalidatesAfterSuccessfulWrite() {
	gomock.InOrder(
		s.store.EXPECT().Upsert(gomock.Any(), "u1", gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, fields store.RawDocument) error {
				s.Contains(fields, "WAN1")
				s.NotContains(fields, "userId")
				return nil
			}),
		s.cache.EXPECT().Invalidate("u1"),
	)

	_, err := s.svc.Save(context.Background(), "u1", json.RawMessage(`{"WAN1":"Yes","userId":"u2"}`))
	s.Require().NoError(err)
}

func (s *ServiceOrderingSuite) TestFailedWriteDoesNotInvalidate() {
	s.store.EXPECT().Upsert(gomock.Any(), "u1", gomock.Any()).Return(errors.New("connection reset"))

	_, err := s.svc.Save(context.Background(), "u1", json.RawMessage(`{"WAN1":"Yes"}`))
	s.ErrorIs(err, ErrStoreUnavailable)
}

func (s *ServiceOrderingSuite) TestUnsafePayloadTouchesNothing() {
	_, err := s.svc.Save(context.Background(), "u1", json.RawMessage(`{"$set":{"admin":true}}`))
	s.ErrorIs(err, ErrValidation)
}

func (s *ServiceOrderingSuite) TestCacheHitSkipsStore() {
	cached := profile.Document{Controls: map[string]profile.ControlField{
		"WAN1": {Choice: profile.ChoiceYes},
	}}
	s.cache.EXPECT().Get("u1").Return(cached, true)

	doc, err := s.svc.Get(context.Background(), "u1")
	s.Require().NoError(err)
	s.Equal(profile.ChoiceYes, doc.Controls["WAN1"].Choice)
}

func (s *ServiceOrderingSuite) TestMissFillsWithStampTakenBeforeRead() {
	stamp := cache.Stamp{}
	gomock.InOrder(
		s.cache.EXPECT().Get("u1").Return(profile.Document{}, false),
		s.cache.EXPECT().Stamp().Return(stamp),
		s.store.EXPECT().Get(gomock.Any(), "u1").
			Return(store.RawDocument{"WAN1": json.RawMessage(`"Vendor:ATT"`)}, true, nil),
		s.cache.EXPECT().SetIfUnchanged("u1", gomock.Any(), time.Minute, stamp).Return(true),
	)

	doc, err := s.svc.Get(context.Background(), "u1")
	s.Require().NoError(err)
	s.Equal("ATT", doc.Controls["WAN1"].Vendor)
}

func (s *ServiceOrderingSuite) TestAbsentProfileIsNotCached() {
	gomock.InOrder(
		s.cache.EXPECT().Get("u1").Return(profile.Document{}, false),
		s.cache.EXPECT().Stamp().Return(cache.Stamp{}),
		s.store.EXPECT().Get(gomock.Any(), "u1").Return(nil, false, nil),
	)

	doc, err := s.svc.Get(context.Background(), "u1")
	s.Require().NoError(err)
	s.True(doc.IsEmpty())
}

func TestStoreErrorsAreClassified(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"deadline", context.DeadlineExceeded, ErrStoreTimeout},
		{"already classified timeout", store.ErrStoreTimeout, ErrStoreTimeout},
		{"driver failure", errors.New("dial tcp: connection refused"), ErrStoreUnavailable},
		{"validation", &store.ValidationError{Key: "$x", Reason: "bad"}, ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			docs := mocks.NewMockDocumentStore(ctrl)
			docs.EXPECT().Upsert(gomock.Any(), "u1", gomock.Any()).Return(tc.err)

			svc := New(docs, mocks.NewMockDocumentCache(ctrl), Options{})
			_, err := svc.Save(context.Background(), "u1", json.RawMessage(`{"WAN1":"Yes"}`))
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)

			status, code, message, _ := mapError(err)
			assert.NotContains(t, message, "connection refused")
			assert.NotEqual(t, 500, status, code)
		})
	}
}
