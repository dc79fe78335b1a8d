package mockapi

import (
	"context"
	"strings"

	"github.com/joshuarp/branchdesk/internal/domain"
	"github.com/joshuarp/branchdesk/internal/domain/vo"
)

// StaticStaff is a StaffDirectory built from configuration.
type StaticStaff struct {
	byEmail map[string]domain.Staff
}

var _ StaffDirectory = (*StaticStaff)(nil)

func NewStaticStaff(staff []domain.Staff) *StaticStaff {
	s := &StaticStaff{byEmail: make(map[string]domain.Staff, len(staff))}
	for _, member := range staff {
		s.byEmail[strings.ToLower(strings.TrimSpace(member.Email))] = member
	}
	return s
}

func (s *StaticStaff) StaffByEmail(_ context.Context, email string) (domain.Staff, error) {
	member, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return domain.Staff{}, vo.ErrInvalidCredentials
	}
	return member, nil
}
