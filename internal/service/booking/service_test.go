package booking

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmassage/booking-api/internal/model"
	apperrors "github.com/openmassage/booking-api/pkg/errors"
)

// state is the shared in-memory store behind the fake repositories.
type state struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*model.User
	services map[uuid.UUID]*model.Service
	bookings map[uuid.UUID]*model.Booking
	events   []*model.OutboxEvent
}

func newState() *state {
	return &state{
		users:    make(map[uuid.UUID]*model.User),
		services: make(map[uuid.UUID]*model.Service),
		bookings: make(map[uuid.UUID]*model.Booking),
	}
}

func (s *state) addUser(role model.Role, name string) *model.User {
	u := &model.User{
		Base: model.Base{ID: uuid.New(), CreatedAt: time.Now()},
		Name: name,
		Role: role,
	}
	s.users[u.ID] = u
	return u
}

func (s *state) addService(owner *model.User, title string) *model.Service {
	svc := &model.Service{
		Base:   model.Base{ID: uuid.New(), CreatedAt: time.Now()},
		UserID: owner.ID,
		Title:  title,
	}
	s.services[svc.ID] = svc
	return svc
}

type fakeUsers struct{ st *state }

func (f *fakeUsers) Create(ctx context.Context, u *model.User) error { return nil }

func (f *fakeUsers) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	u, ok := f.st.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, sql.ErrNoRows
}

func (f *fakeUsers) Update(ctx context.Context, u *model.User) error { return nil }
func (f *fakeUsers) Delete(ctx context.Context, id uuid.UUID) error { return nil }
func (f *fakeUsers) HasBookings(ctx context.Context, id uuid.UUID) (bool, error) {
	return false, nil
}

type fakeServices struct{ st *state }

func (f *fakeServices) Create(ctx context.Context, svc *model.Service) error { return nil }

func (f *fakeServices) Get(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	svc, ok := f.st.services[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return svc, nil
}

func (f *fakeServices) Update(ctx context.Context, svc *model.Service) error { return nil }
func (f *fakeServices) Delete(ctx context.Context, id uuid.UUID) error { return nil }

func (f *fakeServices) List(ctx context.Context) ([]*model.ServiceWithPractitioner, error) {
	return nil, nil
}

func (f *fakeServices) ListByPractitioner(ctx context.Context, practitionerID uuid.UUID) ([]*model.Service, error) {
	return nil, nil
}

func (f *fakeServices) ListIDsByPractitioner(ctx context.Context, practitionerID uuid.UUID) ([]uuid.UUID, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	var ids []uuid.UUID
	for _, svc := range f.st.services {
		if svc.UserID == practitionerID {
			ids = append(ids, svc.ID)
		}
	}
	return ids, nil
}

func (f *fakeServices) HasBookings(ctx context.Context, serviceID uuid.UUID) (bool, error) {
	return false, nil
}

type fakeBookings struct{ st *state }

func (f *fakeBookings) Create(ctx context.Context, b *model.Booking, event *model.OutboxEvent) error {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	b.CreatedAt = time.Now()
	stored := *b
	f.st.bookings[b.ID] = &stored
	if event != nil {
		f.st.events = append(f.st.events, event)
	}
	return nil
}

func (f *fakeBookings) Get(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	b, ok := f.st.bookings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *b
	return &copied, nil
}

// UpdateStatusIfPending mirrors the conditional UPDATE: the whole
// check-and-set happens under one lock, as it does inside the database.
func (f *fakeBookings) UpdateStatusIfPending(ctx context.Context, id uuid.UUID, status model.BookingStatus, event *model.OutboxEvent) (bool, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	b, ok := f.st.bookings[id]
	if !ok || b.Status != model.BookingStatusPending {
		return false, nil
	}
	b.Status = status
	b.UpdatedAt = time.Now()
	if event != nil {
		f.st.events = append(f.st.events, event)
	}
	return true, nil
}

func (f *fakeBookings) ListByClient(ctx context.Context, clientID uuid.UUID) ([]*model.BookingWithDetails, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	var out []*model.BookingWithDetails
	for _, b := range f.st.bookings {
		if b.ClientID == clientID {
			out = append(out, f.detailed(b))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (f *fakeBookings) ListByPractitioner(ctx context.Context, practitionerID uuid.UUID) ([]*model.BookingWithDetails, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	var out []*model.BookingWithDetails
	for _, b := range f.st.bookings {
		svc, ok := f.st.services[b.ServiceID]
		if ok && svc.UserID == practitionerID {
			out = append(out, f.detailed(b))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (f *fakeBookings) detailed(b *model.Booking) *model.BookingWithDetails {
	d := &model.BookingWithDetails{Booking: *b}
	if svc, ok := f.st.services[b.ServiceID]; ok {
		d.ServiceTitle = svc.Title
		if owner, ok := f.st.users[svc.UserID]; ok {
			d.PractitionerName = owner.Name
		}
	}
	if client, ok := f.st.users[b.ClientID]; ok {
		d.ClientName = client.Name
	}
	return d
}

func sortNewestFirst(bookings []*model.BookingWithDetails) {
	sort.Slice(bookings, func(i, j int) bool {
		return bookings[i].CreatedAt.After(bookings[j].CreatedAt)
	})
}

func newTestService(st *state) *Service {
	return NewService(&fakeBookings{st}, &fakeServices{st}, &fakeUsers{st}, nil, nil)
}

func TestCreateBooking(t *testing.T) {
	st := newState()
	svc := newTestService(st)
	client := st.addUser(model.RoleClient, "Alice")
	practitioner := st.addUser(model.RolePractitioner, "Bob")
	massage := st.addService(practitioner, "Deep Tissue")

	date, _ := time.Parse(time.RFC3339, "2025-12-31T14:30:00Z")

	booking, err := svc.CreateBooking(context.Background(), client.ID, &model.CreateBookingRequest{
		ServiceID:       massage.ID,
		BookingDate:     date,
		SpecialRequests: "lower back focus",
	})
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusPending, booking.Status)
	assert.Equal(t, client.ID, booking.ClientID)
	assert.Equal(t, massage.ID, booking.ServiceID)
	assert.NotEqual(t, uuid.Nil, booking.ID)

	require.Len(t, st.events, 1)
	assert.Equal(t, model.EventBookingCreated, st.events[0].EventType)
}

func TestCreateBookingValidation(t *testing.T) {
	st := newState()
	svc := newTestService(st)
	client := st.addUser(model.RoleClient, "Alice")
	practitioner := st.addUser(model.RolePractitioner, "Bob")
	massage := st.addService(practitioner, "Deep Tissue")
	date := time.Now().Add(24 * time.Hour)

	tests := []struct {
		name     string
		clientID uuid.UUID
		req      *model.CreateBookingRequest
		wantCode apperrors.ErrorCode
	}{
		{
			name:     "zero booking date",
			clientID: client.ID,
			req:      &model.CreateBookingRequest{ServiceID: massage.ID},
			wantCode: apperrors.ErrValidation,
		},
		{
			name:     "unknown client",
			clientID: uuid.New(),
			req:      &model.CreateBookingRequest{ServiceID: massage.ID, BookingDate: date},
			wantCode: apperrors.ErrNotFound,
		},
		{
			name:     "practitioner cannot book",
			clientID: practitioner.ID,
			req:      &model.CreateBookingRequest{ServiceID: massage.ID, BookingDate: date},
			wantCode: apperrors.ErrForbidden,
		},
		{
			name:     "unknown service",
			clientID: client.ID,
			req:      &model.CreateBookingRequest{ServiceID: uuid.New(), BookingDate: date},
			wantCode: apperrors.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateBooking(context.Background(), tt.clientID, tt.req)
			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, tt.wantCode), "got %v", err)
		})
	}
}

func TestRespondToBooking(t *testing.T) {
	newBooking := func(st *state, client *model.User, svc *model.Service) *model.Booking {
		b := &model.Booking{
			Base:        model.Base{ID: uuid.New(), CreatedAt: time.Now()},
			ServiceID:   svc.ID,
			ClientID:    client.ID,
			BookingDate: time.Now().Add(48 * time.Hour),
			Status:      model.BookingStatusPending,
		}
		st.bookings[b.ID] = b
		return b
	}

	t.Run("owner accepts pending", func(t *testing.T) {
		st := newState()
		svc := newTestService(st)
		client := st.addUser(model.RoleClient, "Alice")
		owner := st.addUser(model.RolePractitioner, "Bob")
		massage := st.addService(owner, "Swedish")
		b := newBooking(st, client, massage)

		updated, err := svc.RespondToBooking(context.Background(), b.ID, owner.ID, model.BookingDecisionAccepted)
		require.NoError(t, err)
		assert.Equal(t, model.BookingStatusAccepted, updated.Status)
		assert.Equal(t, model.BookingStatusAccepted, st.bookings[b.ID].Status)
	})

	t.Run("owner declines pending", func(t *testing.T) {
		st := newState()
		svc := newTestService(st)
		client := st.addUser(model.RoleClient, "Alice")
		owner := st.addUser(model.RolePractitioner, "Bob")
		massage := st.addService(owner, "Swedish")
		b := newBooking(st, client, massage)

		updated, err := svc.RespondToBooking(context.Background(), b.ID, owner.ID, model.BookingDecisionDeclined)
		require.NoError(t, err)
		assert.Equal(t, model.BookingStatusDeclined, updated.Status)
	})

	t.Run("non-owner practitioner forbidden", func(t *testing.T) {
		st := newState()
		svc := newTestService(st)
		client := st.addUser(model.RoleClient, "Alice")
		owner := st.addUser(model.RolePractitioner, "Bob")
		other := st.addUser(model.RolePractitioner, "Carol")
		massage := st.addService(owner, "Swedish")
		b := newBooking(st, client, massage)

		_, err := svc.RespondToBooking(context.Background(), b.ID, other.ID, model.BookingDecisionAccepted)
		require.Error(t, err)
		assert.True(t, apperrors.IsForbidden(err), "got %v", err)
		assert.Equal(t, model.BookingStatusPending, st.bookings[b.ID].Status)
	})

	t.Run("invalid decision", func(t *testing.T) {
		st := newState()
		svc := newTestService(st)
		client := st.addUser(model.RoleClient, "Alice")
		owner := st.addUser(model.RolePractitioner, "Bob")
		massage := st.addService(owner, "Swedish")
		b := newBooking(st, client, massage)

		_, err := svc.RespondToBooking(context.Background(), b.ID, owner.ID, model.BookingDecision("maybe"))
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrValidation), "got %v", err)
	})

	t.Run("unknown booking", func(t *testing.T) {
		st := newState()
		svc := newTestService(st)
		owner := st.addUser(model.RolePractitioner, "Bob")

		_, err := svc.RespondToBooking(context.Background(), uuid.New(), owner.ID, model.BookingDecisionAccepted)
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err), "got %v", err)
	})

	t.Run("terminal booking rejects response", func(t *testing.T) {
		for _, terminal := range []model.BookingStatus{
			model.BookingStatusAccepted,
			model.BookingStatusDeclined,
			model.BookingStatusCancelled,
		} {
			st := newState()
			svc := newTestService(st)
			client := st.addUser(model.RoleClient, "Alice")
			owner := st.addUser(model.RolePractitioner, "Bob")
			massage := st.addService(owner, "Swedish")
			b := newBooking(st, client, massage)
			b.Status = terminal

			_, err := svc.RespondToBooking(context.Background(), b.ID, owner.ID, model.BookingDecisionAccepted)
			require.Error(t, err)
			assert.True(t, apperrors.IsInvalidTransition(err), "status %s: got %v", terminal, err)
			assert.Equal(t, terminal, st.bookings[b.ID].Status, "stored status must not change")
		}
	})
}

func TestCancelBooking(t *testing.T) {
	st := newState()
	svc := newTestService(st)
	client := st.addUser(model.RoleClient, "Alice")
	stranger := st.addUser(model.RoleClient, "Mallory")
	owner := st.addUser(model.RolePractitioner, "Bob")
	massage := st.addService(owner, "Hot Stone")

	b := &model.Booking{
		Base:        model.Base{ID: uuid.New(), CreatedAt: time.Now()},
		ServiceID:   massage.ID,
		ClientID:    client.ID,
		BookingDate: time.Now().Add(48 * time.Hour),
		Status:      model.BookingStatusPending,
	}
	st.bookings[b.ID] = b

	t.Run("non-owner client forbidden", func(t *testing.T) {
		_, err := svc.CancelBooking(context.Background(), b.ID, stranger.ID)
		require.Error(t, err)
		assert.True(t, apperrors.IsForbidden(err), "got %v", err)
		assert.Equal(t, model.BookingStatusPending, st.bookings[b.ID].Status)
	})

	t.Run("owner cancels pending", func(t *testing.T) {
		updated, err := svc.CancelBooking(context.Background(), b.ID, client.ID)
		require.NoError(t, err)
		assert.Equal(t, model.BookingStatusCancelled, updated.Status)
		assert.Equal(t, model.BookingStatusCancelled, st.bookings[b.ID].Status)
	})

	t.Run("cancel after terminal rejected", func(t *testing.T) {
		_, err := svc.CancelBooking(context.Background(), b.ID, client.ID)
		require.Error(t, err)
		assert.True(t, apperrors.IsInvalidTransition(err), "got %v", err)
	})
}

// Two actors race on one pending booking. Exactly one conditional
// write wins; the loser sees InvalidTransition and the stored status
// reflects the winner only.
func TestConcurrentDecisions(t *testing.T) {
	for i := 0; i < 20; i++ {
		st := newState()
		svc := newTestService(st)
		client := st.addUser(model.RoleClient, "Alice")
		owner := st.addUser(model.RolePractitioner, "Bob")
		massage := st.addService(owner, "Sports")

		b := &model.Booking{
			Base:        model.Base{ID: uuid.New(), CreatedAt: time.Now()},
			ServiceID:   massage.ID,
			ClientID:    client.ID,
			BookingDate: time.Now().Add(48 * time.Hour),
			Status:      model.BookingStatusPending,
		}
		st.bookings[b.ID] = b

		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, errs[0] = svc.RespondToBooking(context.Background(), b.ID, owner.ID, model.BookingDecisionAccepted)
		}()
		go func() {
			defer wg.Done()
			_, errs[1] = svc.CancelBooking(context.Background(), b.ID, client.ID)
		}()
		wg.Wait()

		var wins, losses int
		for _, err := range errs {
			if err == nil {
				wins++
			} else {
				require.True(t, apperrors.IsInvalidTransition(err), "loser must see InvalidTransition, got %v", err)
				losses++
			}
		}
		assert.Equal(t, 1, wins, "exactly one writer must win")
		assert.Equal(t, 1, losses)
		assert.True(t, st.bookings[b.ID].Status.Terminal())
	}
}

func TestListVisibleBookings(t *testing.T) {
	st := newState()
	svc := newTestService(st)
	alice := st.addUser(model.RoleClient, "Alice")
	carol := st.addUser(model.RoleClient, "Carol")
	bob := st.addUser(model.RolePractitioner, "Bob")
	dave := st.addUser(model.RolePractitioner, "Dave")
	bobSvc := st.addService(bob, "Deep Tissue")
	daveSvc := st.addService(dave, "Shiatsu")

	mk := func(client *model.User, s *model.Service, created time.Time) *model.Booking {
		b := &model.Booking{
			Base:        model.Base{ID: uuid.New(), CreatedAt: created},
			ServiceID:   s.ID,
			ClientID:    client.ID,
			BookingDate: created.Add(72 * time.Hour),
			Status:      model.BookingStatusPending,
		}
		st.bookings[b.ID] = b
		return b
	}

	base := time.Now()
	aliceOnBob := mk(alice, bobSvc, base)
	aliceOnDave := mk(alice, daveSvc, base.Add(time.Minute))
	carolOnBob := mk(carol, bobSvc, base.Add(2*time.Minute))

	t.Run("client sees exactly their own, newest first", func(t *testing.T) {
		got, err := svc.ListVisibleBookings(context.Background(), alice.ID, model.RoleClient)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, aliceOnDave.ID, got[0].ID)
		assert.Equal(t, aliceOnBob.ID, got[1].ID)
	})

	t.Run("practitioner sees exactly bookings on owned services", func(t *testing.T) {
		got, err := svc.ListVisibleBookings(context.Background(), bob.ID, model.RolePractitioner)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, carolOnBob.ID, got[0].ID)
		assert.Equal(t, aliceOnBob.ID, got[1].ID)
		assert.Equal(t, "Deep Tissue", got[0].ServiceTitle)
		assert.Equal(t, "Carol", got[0].ClientName)
	})

	t.Run("unknown role rejected", func(t *testing.T) {
		_, err := svc.ListVisibleBookings(context.Background(), alice.ID, model.Role("admin"))
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrValidation), "got %v", err)
	})
}

func TestGetBookingVisibility(t *testing.T) {
	st := newState()
	svc := newTestService(st)
	alice := st.addUser(model.RoleClient, "Alice")
	carol := st.addUser(model.RoleClient, "Carol")
	bob := st.addUser(model.RolePractitioner, "Bob")
	dave := st.addUser(model.RolePractitioner, "Dave")
	bobSvc := st.addService(bob, "Deep Tissue")

	b := &model.Booking{
		Base:        model.Base{ID: uuid.New(), CreatedAt: time.Now()},
		ServiceID:   bobSvc.ID,
		ClientID:    alice.ID,
		BookingDate: time.Now().Add(24 * time.Hour),
		Status:      model.BookingStatusPending,
	}
	st.bookings[b.ID] = b

	t.Run("owning client", func(t *testing.T) {
		got, err := svc.GetBooking(context.Background(), b.ID, alice.ID, model.RoleClient)
		require.NoError(t, err)
		assert.Equal(t, b.ID, got.ID)
	})

	t.Run("other client forbidden", func(t *testing.T) {
		_, err := svc.GetBooking(context.Background(), b.ID, carol.ID, model.RoleClient)
		assert.True(t, apperrors.IsForbidden(err), "got %v", err)
	})

	t.Run("owning practitioner", func(t *testing.T) {
		got, err := svc.GetBooking(context.Background(), b.ID, bob.ID, model.RolePractitioner)
		require.NoError(t, err)
		assert.Equal(t, b.ID, got.ID)
	})

	t.Run("other practitioner forbidden", func(t *testing.T) {
		_, err := svc.GetBooking(context.Background(), b.ID, dave.ID, model.RolePractitioner)
		assert.True(t, apperrors.IsForbidden(err), "got %v", err)
	})
}

// Full lifecycle: request goes in pending, practitioner accepts, a
// late cancel bounces off the terminal state.
func TestBookingLifecycle(t *testing.T) {
	st := newState()
	svc := newTestService(st)
	client := st.addUser(model.RoleClient, "Alice")
	owner := st.addUser(model.RolePractitioner, "Bob")
	massage := st.addService(owner, "Deep Tissue")

	date, err := time.Parse(time.RFC3339, "2025-12-31T14:30:00Z")
	require.NoError(t, err)

	created, err := svc.CreateBooking(context.Background(), client.ID, &model.CreateBookingRequest{
		ServiceID:   massage.ID,
		BookingDate: date,
	})
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusPending, created.Status)

	accepted, err := svc.RespondToBooking(context.Background(), created.ID, owner.ID, model.BookingDecisionAccepted)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusAccepted, accepted.Status)

	_, err = svc.CancelBooking(context.Background(), created.ID, client.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidTransition(err), "got %v", err)
	assert.Equal(t, model.BookingStatusAccepted, st.bookings[created.ID].Status)

	require.Len(t, st.events, 2)
	assert.Equal(t, model.EventBookingCreated, st.events[0].EventType)
	assert.Equal(t, model.EventBookingAccepted, st.events[1].EventType)
}
