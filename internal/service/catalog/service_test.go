package catalog

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmassage/booking-api/internal/model"
	apperrors "github.com/openmassage/booking-api/pkg/errors"
)

type fakeServiceRepo struct {
	services map[uuid.UUID]*model.Service
	booked   map[uuid.UUID]bool
}

func newFakeServiceRepo() *fakeServiceRepo {
	return &fakeServiceRepo{
		services: make(map[uuid.UUID]*model.Service),
		booked:   make(map[uuid.UUID]bool),
	}
}

func (f *fakeServiceRepo) Create(ctx context.Context, svc *model.Service) error {
	svc.ID = uuid.New()
	svc.CreatedAt = time.Now()
	f.services[svc.ID] = svc
	return nil
}

func (f *fakeServiceRepo) Get(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	svc, ok := f.services[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *svc
	return &copied, nil
}

func (f *fakeServiceRepo) Update(ctx context.Context, svc *model.Service) error {
	if _, ok := f.services[svc.ID]; !ok {
		return sql.ErrNoRows
	}
	stored := *svc
	f.services[svc.ID] = &stored
	return nil
}

func (f *fakeServiceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.services[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.services, id)
	return nil
}

func (f *fakeServiceRepo) List(ctx context.Context) ([]*model.ServiceWithPractitioner, error) {
	var out []*model.ServiceWithPractitioner
	for _, svc := range f.services {
		out = append(out, &model.ServiceWithPractitioner{Service: *svc})
	}
	return out, nil
}

func (f *fakeServiceRepo) ListByPractitioner(ctx context.Context, practitionerID uuid.UUID) ([]*model.Service, error) {
	var out []*model.Service
	for _, svc := range f.services {
		if svc.UserID == practitionerID {
			out = append(out, svc)
		}
	}
	return out, nil
}

func (f *fakeServiceRepo) ListIDsByPractitioner(ctx context.Context, practitionerID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, svc := range f.services {
		if svc.UserID == practitionerID {
			ids = append(ids, svc.ID)
		}
	}
	return ids, nil
}

func (f *fakeServiceRepo) HasBookings(ctx context.Context, serviceID uuid.UUID) (bool, error) {
	return f.booked[serviceID], nil
}

type fakeUserRepo struct {
	users map[uuid.UUID]*model.User
}

func (f *fakeUserRepo) Create(ctx context.Context, u *model.User) error { return nil }

func (f *fakeUserRepo) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, sql.ErrNoRows
}

func (f *fakeUserRepo) Update(ctx context.Context, u *model.User) error { return nil }
func (f *fakeUserRepo) Delete(ctx context.Context, id uuid.UUID) error  { return nil }
func (f *fakeUserRepo) HasBookings(ctx context.Context, id uuid.UUID) (bool, error) {
	return false, nil
}

func setup() (*Service, *fakeServiceRepo, *model.User, *model.User) {
	repo := newFakeServiceRepo()
	practitioner := &model.User{
		Base: model.Base{ID: uuid.New()},
		Name: "Bob",
		Role: model.RolePractitioner,
	}
	client := &model.User{
		Base: model.Base{ID: uuid.New()},
		Name: "Alice",
		Role: model.RoleClient,
	}
	users := &fakeUserRepo{users: map[uuid.UUID]*model.User{
		practitioner.ID: practitioner,
		client.ID:       client,
	}}
	return NewService(repo, users, nil), repo, practitioner, client
}

func TestCreateService(t *testing.T) {
	svc, _, practitioner, client := setup()

	t.Run("practitioner creates", func(t *testing.T) {
		created, err := svc.CreateService(context.Background(), practitioner.ID, &model.CreateServiceRequest{
			Title:       "Deep Tissue",
			Description: "60 minute session",
			Price:       80,
			Specialties: []string{"deep_tissue", "sports"},
		})
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, created.ID)
		assert.Equal(t, practitioner.ID, created.UserID)
	})

	t.Run("client forbidden", func(t *testing.T) {
		_, err := svc.CreateService(context.Background(), client.ID, &model.CreateServiceRequest{Title: "Nope"})
		assert.True(t, apperrors.IsForbidden(err), "got %v", err)
	})

	t.Run("negative price rejected", func(t *testing.T) {
		_, err := svc.CreateService(context.Background(), practitioner.ID, &model.CreateServiceRequest{
			Title: "Bad",
			Price: -1,
		})
		assert.True(t, apperrors.IsValidation(err), "got %v", err)
	})
}

func TestUpdateServiceOwnership(t *testing.T) {
	svc, repo, practitioner, _ := setup()
	other := uuid.New()

	created, err := svc.CreateService(context.Background(), practitioner.ID, &model.CreateServiceRequest{
		Title: "Swedish",
		Price: 60,
	})
	require.NoError(t, err)

	newTitle := "Swedish Classic"
	_, err = svc.UpdateService(context.Background(), created.ID, other, &model.UpdateServiceRequest{Title: &newTitle})
	assert.True(t, apperrors.IsForbidden(err), "got %v", err)

	updated, err := svc.UpdateService(context.Background(), created.ID, practitioner.ID, &model.UpdateServiceRequest{Title: &newTitle})
	require.NoError(t, err)
	assert.Equal(t, newTitle, updated.Title)
	assert.Equal(t, newTitle, repo.services[created.ID].Title)
}

func TestDeleteServiceRestrictedByBookings(t *testing.T) {
	svc, repo, practitioner, _ := setup()

	created, err := svc.CreateService(context.Background(), practitioner.ID, &model.CreateServiceRequest{
		Title: "Hot Stone",
		Price: 90,
	})
	require.NoError(t, err)

	repo.booked[created.ID] = true
	err = svc.DeleteService(context.Background(), created.ID, practitioner.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidTransition(err), "got %v", err)
	assert.Contains(t, repo.services, created.ID)

	repo.booked[created.ID] = false
	require.NoError(t, svc.DeleteService(context.Background(), created.ID, practitioner.ID))
	assert.NotContains(t, repo.services, created.ID)
}
