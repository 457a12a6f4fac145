package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/TTR-x/ttr-gestion-sub002/core/member"
)

type memberRepository struct {
	db *memberTable
}

func NewMemberRepository(db *DB) member.Repository {
	return &memberRepository{db: db.member}
}

func (repo *memberRepository) query() []member.Member {
	members := make([]member.Member, 0, len(repo.db.table))
	for _, m := range repo.db.table {
		members = append(members, *m)
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].CreatedAt.Equal(members[j].CreatedAt) {
			return members[i].ID < members[j].ID
		}
		return members[i].CreatedAt.Before(members[j].CreatedAt)
	})
	return members
}

func (repo *memberRepository) CheckEmailUniqueness(_ context.Context, email string, excluded ...member.Member) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, m := range repo.db.table {
		if m.Email == email && !isExcluded(*m, excluded) {
			return member.ErrEmailExists
		}
	}
	return nil
}

func (repo *memberRepository) CreateMember(_ context.Context, m member.Member) (member.Member, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, other := range repo.db.table {
		if other.Email == m.Email {
			return member.Member{}, member.ErrEmailExists
		}
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.Roles = append([]string(nil), m.Roles...)
	repo.db.table[m.ID] = &m
	return m, nil
}

func (repo *memberRepository) GetMember(_ context.Context, filter member.GetFilter) (member.Member, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	switch {
	case filter.ID != "":
		if m, ok := repo.db.table[filter.ID]; ok {
			return *m, nil
		}
	case filter.Email != "":
		for _, m := range repo.db.table {
			if m.Email == filter.Email {
				return *m, nil
			}
		}
	}
	return member.Member{}, member.ErrNotFound
}

func (repo *memberRepository) QueryMembers(_ context.Context, businessID string) ([]member.Member, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	members := make([]member.Member, 0)
	for _, m := range repo.query() {
		if m.BusinessID == businessID {
			members = append(members, m)
		}
	}
	return members, nil
}

func (repo *memberRepository) UpdateMember(_ context.Context, m member.Member) (member.Member, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[m.ID]; !ok {
		return member.Member{}, member.ErrNotFound
	}
	m.Roles = append([]string(nil), m.Roles...)
	repo.db.table[m.ID] = &m
	return m, nil
}

func isExcluded(m member.Member, excluded []member.Member) bool {
	for _, ex := range excluded {
		if ex.ID == m.ID {
			return true
		}
	}
	return false
}
