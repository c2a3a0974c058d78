package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/frontandrew/attestation/internal/domain"
	"github.com/google/uuid"
)

type userRepository struct {
	h *handle
}

func (st *state) hydrateUser(u domain.User) *domain.User {
	if u.AgencyID != nil {
		id := *u.AgencyID
		u.AgencyID = &id
		if a, ok := st.agencies[id]; ok {
			u.AgencyName = a.Name
		}
	}
	return &u
}

func (st *state) checkUserAgency(u *domain.User) error {
	if u.AgencyID == nil {
		return nil
	}
	if _, ok := st.agencies[*u.AgencyID]; !ok {
		return domain.ErrAgencyNotFound
	}
	return nil
}

func (r *userRepository) Create(_ context.Context, user *domain.User) error {
	return r.h.run(func(st *state) error {
		for _, u := range st.users {
			if u.Email == user.Email {
				return domain.ErrUserAlreadyExists
			}
		}
		if err := st.checkUserAgency(user); err != nil {
			return err
		}
		user.ID = uuid.New()
		user.CreatedAt = time.Now()
		user.UpdatedAt = user.CreatedAt
		st.users[user.ID] = *st.hydrateUser(*user)
		return nil
	})
}

func (r *userRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	var out *domain.User
	err := r.h.run(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return domain.ErrUserNotFound
		}
		out = st.hydrateUser(u)
		return nil
	})
	return out, err
}

func (r *userRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	email = strings.ToLower(email)
	var out *domain.User
	err := r.h.run(func(st *state) error {
		for _, u := range st.users {
			if u.Email == email {
				out = st.hydrateUser(u)
				return nil
			}
		}
		return domain.ErrUserNotFound
	})
	return out, err
}

func (r *userRepository) Update(_ context.Context, user *domain.User) error {
	return r.h.run(func(st *state) error {
		current, ok := st.users[user.ID]
		if !ok {
			return domain.ErrUserNotFound
		}
		for id, u := range st.users {
			if id != user.ID && u.Email == user.Email {
				return domain.ErrUserAlreadyExists
			}
		}
		if err := st.checkUserAgency(user); err != nil {
			return err
		}
		user.CreatedAt = current.CreatedAt
		user.UpdatedAt = time.Now()
		st.users[user.ID] = *st.hydrateUser(*user)
		return nil
	})
}

func (r *userRepository) Delete(_ context.Context, id uuid.UUID) error {
	return r.h.run(func(st *state) error {
		if _, ok := st.users[id]; !ok {
			return domain.ErrUserNotFound
		}
		delete(st.users, id)
		return nil
	})
}

func (r *userRepository) List(_ context.Context, filter domain.UserFilter) ([]*domain.User, int, error) {
	var users []*domain.User
	err := r.h.run(func(st *state) error {
		for _, u := range st.users {
			if filter.Matches(&u) {
				users = append(users, st.hydrateUser(u))
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	total := len(users)
	return paginate(users, filter.Limit, filter.Offset), total, nil
}

func (r *userRepository) CountByAgency(_ context.Context, agencyID uuid.UUID) (int, error) {
	count := 0
	err := r.h.run(func(st *state) error {
		for _, u := range st.users {
			if u.AgencyID != nil && *u.AgencyID == agencyID {
				count++
			}
		}
		return nil
	})
	return count, err
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
