package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tekni-portal/tekni-portal/internal/shared"
	_ "github.com/tekni-portal/tekni-portal/testing"
)

type memoryRepo struct {
	users  map[string]User
	hashes map[string]string
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: make(map[string]User), hashes: make(map[string]string)}
}

func (r *memoryRepo) ListUsers(ctx context.Context) ([]User, error) {
	out := make([]User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	return out, nil
}

func (r *memoryRepo) GetUser(ctx context.Context, id string) (User, error) {
	u, ok := r.users[id]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	return u, nil
}

func (r *memoryRepo) CreateUser(ctx context.Context, user User, passwordHash string) (User, error) {
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return User{}, shared.ErrDuplicateEmail
		}
	}
	r.users[user.ID] = user
	r.hashes[user.ID] = passwordHash
	return user, nil
}

func (r *memoryRepo) UpdateUser(ctx context.Context, user User) (User, error) {
	if _, ok := r.users[user.ID]; !ok {
		return User{}, shared.ErrNotFound
	}
	r.users[user.ID] = user
	return user, nil
}

func (r *memoryRepo) DeleteUser(ctx context.Context, id string) error {
	if _, ok := r.users[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

var _ RepositoryPort = (*memoryRepo)(nil)

func TestCreateUser(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)

	created, err := svc.CreateUser(context.Background(), "actor", CreateUserInput{
		Email:     " Admin@Tekni.Local ",
		FirstName: "  דנה ",
		LastName:  "לוי",
		Password:  "temp-password",
		Roles:     []string{"Admin", "admin", ""},
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, "admin@tekni.local", created.Email)
	require.Equal(t, "דנה", created.FirstName)
	require.Equal(t, []string{"admin"}, created.Roles)
	require.True(t, created.NeedsPasswordChange)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.hashes[created.ID]), []byte("temp-password")))
}

func TestCreateUserRequiresEmail(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil, nil)
	_, err := svc.CreateUser(context.Background(), "actor", CreateUserInput{Password: "temp-password"})
	require.Error(t, err)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.CreateUser(context.Background(), "actor", CreateUserInput{Email: "a@tekni.local", Password: "temp-password"})
	require.NoError(t, err)
	_, err = svc.CreateUser(context.Background(), "actor", CreateUserInput{Email: "a@tekni.local", Password: "temp-password"})
	require.ErrorIs(t, err, shared.ErrDuplicateEmail)
}

func TestUpdateUserReassignsRoles(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)

	created, err := svc.CreateUser(context.Background(), "actor", CreateUserInput{Email: "a@tekni.local", Password: "temp-password", Roles: []string{"user"}})
	require.NoError(t, err)

	updated, err := svc.UpdateUser(context.Background(), "actor", created.ID, UpdateUserInput{
		FirstName: "Dana",
		LastName:  "Levi",
		Roles:     []string{"Editor", "ADMIN"},
		IsActive:  true,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"editor", "admin"}, updated.Roles)
	require.True(t, updated.IsActive)
	require.False(t, updated.NeedsPasswordChange)
}

func TestDeleteUser(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)

	created, err := svc.CreateUser(context.Background(), "actor", CreateUserInput{Email: "a@tekni.local", Password: "temp-password"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteUser(context.Background(), "actor", created.ID))
	require.ErrorIs(t, svc.DeleteUser(context.Background(), "actor", created.ID), shared.ErrNotFound)
}

func TestListUsersSortedByName(t *testing.T) {
	repo := newMemoryRepo()
	repo.users["1"] = User{ID: "1", FirstName: "גיל"}
	repo.users["2"] = User{ID: "2", FirstName: "אורי"}
	repo.users["3"] = User{ID: "3", FirstName: "בר"}
	svc := NewService(repo, nil, nil, nil)

	users, err := svc.ListUsers(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"אורי", "בר", "גיל"}, []string{users[0].FirstName, users[1].FirstName, users[2].FirstName})
}
