package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/joshuarp/branchdesk/internal/domain/vo"
)

func newSQLXMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mockDB, err := sqlmock.New()
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return sqlx.NewDb(sqlDB, "sqlmock"), mockDB
}

type StaffRepositorySuite struct{ suite.Suite }

func (s *StaffRepositorySuite) TestStaffByEmail_TableDriven() {
	repoErr := errors.New("query failed")
	columns := []string{"id", "email", "name", "branch_id", "role", "password_hash", "status"}
	selectStaff := regexp.QuoteMeta("SELECT id::text AS id, email, name, branch_id, role, password_hash, status")

	tests := []struct {
		name      string
		email     string
		setupMock func(sqlmock.Sqlmock)
		assertion func(error)
	}{
		{
			name:  "invalid when email empty",
			email: "   ",
			assertion: func(err error) {
				assert.ErrorIs(s.T(), err, vo.ErrInvalidCredentials)
			},
		},
		{
			name:  "invalid when staff not found",
			email: "amira@branch.test",
			setupMock: func(mockDB sqlmock.Sqlmock) {
				mockDB.ExpectQuery(selectStaff).WithArgs("amira@branch.test").WillReturnError(sql.ErrNoRows)
			},
			assertion: func(err error) {
				assert.ErrorIs(s.T(), err, vo.ErrInvalidCredentials)
			},
		},
		{
			name:  "wraps query errors",
			email: "amira@branch.test",
			setupMock: func(mockDB sqlmock.Sqlmock) {
				mockDB.ExpectQuery(selectStaff).WithArgs("amira@branch.test").WillReturnError(repoErr)
			},
			assertion: func(err error) {
				assert.ErrorContains(s.T(), err, "get staff by email failed")
				assert.ErrorIs(s.T(), err, repoErr)
			},
		},
		{
			name:  "invalid when staff disabled",
			email: "amira@branch.test",
			setupMock: func(mockDB sqlmock.Sqlmock) {
				rows := sqlmock.NewRows(columns).AddRow("staff-1", "amira@branch.test", "Amira", "br-1", "manager", "hashed", "disabled")
				mockDB.ExpectQuery(selectStaff).WithArgs("amira@branch.test").WillReturnRows(rows)
			},
			assertion: func(err error) {
				assert.ErrorIs(s.T(), err, vo.ErrInvalidCredentials)
			},
		},
		{
			name:  "success",
			email: " Amira@Branch.test ",
			setupMock: func(mockDB sqlmock.Sqlmock) {
				rows := sqlmock.NewRows(columns).AddRow("staff-1", "amira@branch.test", "Amira", "br-1", "manager", "hashed", "active")
				mockDB.ExpectQuery(selectStaff).WithArgs("amira@branch.test").WillReturnRows(rows)
			},
			assertion: func(err error) {
				require.NoError(s.T(), err)
			},
		},
	}

	for _, tc := range tests {
		s.Run(tc.name, func() {
			db, mockDB := newSQLXMock(s.T())
			repo := NewStaffRepository(db)
			if tc.setupMock != nil {
				tc.setupMock(mockDB)
			}

			staff, err := repo.StaffByEmail(context.Background(), tc.email)
			tc.assertion(err)
			if err == nil {
				assert.Equal(s.T(), "staff-1", staff.ID)
				assert.Equal(s.T(), "br-1", staff.BranchID)
				assert.Equal(s.T(), "hashed", staff.PasswordHash)
			}
			require.NoError(s.T(), mockDB.ExpectationsWereMet())
		})
	}
}

func TestStaffRepositorySuite(t *testing.T) {
	suite.Run(t, new(StaffRepositorySuite))
}

type SeenOrdersRepositorySuite struct {
	suite.Suite

	mockDB sqlmock.Sqlmock
	repo   *SeenOrdersRepository
	now    time.Time
}

func (s *SeenOrdersRepositorySuite) SetupTest() {
	var db *sqlx.DB
	db, s.mockDB = newSQLXMock(s.T())
	s.now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.repo = NewSeenOrdersRepository(db, "br-1")
	s.repo.now = func() time.Time { return s.now }
}

func (s *SeenOrdersRepositorySuite) TearDownTest() {
	require.NoError(s.T(), s.mockDB.ExpectationsWereMet())
}

func (s *SeenOrdersRepositorySuite) TestEnsureSchema() {
	s.mockDB.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS seen_orders")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(s.T(), s.repo.EnsureSchema(context.Background()))
}

func (s *SeenOrdersRepositorySuite) TestFilter_TableDriven() {
	queryErr := errors.New("select failed")
	selectSeen := regexp.QuoteMeta("SELECT order_id FROM seen_orders WHERE branch_id = ")

	tests := []struct {
		name      string
		ids       []string
		setupMock func()
		want      []string
		wantErr   error
	}{
		{name: "empty input skips query", ids: nil, want: nil},
		{
			name: "returns unseen in input order",
			ids:  []string{"o-3", "o-1", "o-2"},
			setupMock: func() {
				s.mockDB.ExpectQuery(selectSeen).
					WithArgs("br-1", "o-3", "o-1", "o-2").
					WillReturnRows(sqlmock.NewRows([]string{"order_id"}).AddRow("o-1"))
			},
			want: []string{"o-3", "o-2"},
		},
		{
			name: "wraps query errors",
			ids:  []string{"o-1"},
			setupMock: func() {
				s.mockDB.ExpectQuery(selectSeen).WithArgs("br-1", "o-1").WillReturnError(queryErr)
			},
			wantErr: queryErr,
		},
	}

	for _, tc := range tests {
		s.Run(tc.name, func() {
			s.SetupTest()
			if tc.setupMock != nil {
				tc.setupMock()
			}

			got, err := s.repo.Filter(context.Background(), tc.ids)
			if tc.wantErr != nil {
				assert.ErrorIs(s.T(), err, tc.wantErr)
				return
			}
			require.NoError(s.T(), err)
			assert.Equal(s.T(), tc.want, got)
			require.NoError(s.T(), s.mockDB.ExpectationsWereMet())
		})
	}
}

func (s *SeenOrdersRepositorySuite) TestMarkInsertsInOneTransaction() {
	insert := regexp.QuoteMeta("INSERT INTO seen_orders (branch_id, order_id, seen_at)")
	s.mockDB.ExpectBegin()
	s.mockDB.ExpectExec(insert).WithArgs("br-1", "o-1", s.now).WillReturnResult(sqlmock.NewResult(0, 1))
	s.mockDB.ExpectExec(insert).WithArgs("br-1", "o-2", s.now).WillReturnResult(sqlmock.NewResult(0, 0))
	s.mockDB.ExpectCommit()

	require.NoError(s.T(), s.repo.Mark(context.Background(), []string{"o-1", "o-2"}))
}

func (s *SeenOrdersRepositorySuite) TestMarkRollsBackOnError() {
	execErr := errors.New("insert failed")
	s.mockDB.ExpectBegin()
	s.mockDB.ExpectExec(regexp.QuoteMeta("INSERT INTO seen_orders")).WillReturnError(execErr)
	s.mockDB.ExpectRollback()

	err := s.repo.Mark(context.Background(), []string{"o-1"})

	assert.ErrorIs(s.T(), err, execErr)
	assert.ErrorContains(s.T(), err, "failed to mark order o-1 seen")
}

func (s *SeenOrdersRepositorySuite) TestMarkEmptyIsNoop() {
	require.NoError(s.T(), s.repo.Mark(context.Background(), nil))
}

func (s *SeenOrdersRepositorySuite) TestPrune() {
	s.mockDB.ExpectExec(regexp.QuoteMeta("DELETE FROM seen_orders WHERE branch_id = $1 AND seen_at < $2")).
		WithArgs("br-1", s.now.Add(-7*24*time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 4))

	removed, err := s.repo.Prune(context.Background(), 7*24*time.Hour)

	require.NoError(s.T(), err)
	assert.EqualValues(s.T(), 4, removed)
}

func TestSeenOrdersRepositorySuite(t *testing.T) {
	suite.Run(t, new(SeenOrdersRepositorySuite))
}

func TestSeenOrdersRedisRepository(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	repo := NewSeenOrdersRedisRepository(client, "br-1", 0)
	assert.Equal(t, "branchdesk:seen_orders:br-1", repo.key)
	assert.Equal(t, defaultSeenOrdersTTL, repo.ttl)

	unseen, err := repo.Filter(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, unseen)
	require.NoError(t, repo.Mark(context.Background(), nil))

	_, err = repo.Filter(context.Background(), []string{"o-1"})
	assert.ErrorContains(t, err, "SMISMEMBER failed")
	assert.ErrorContains(t, repo.Mark(context.Background(), []string{"o-1"}), "mark seen failed")
}
