package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/behavior-tracker-api/internal/models"
)

func TestStudentRepositoryListWithSearch(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE 1=1 AND school_id = $1 AND (LOWER(first_name || ' ' || last_name) LIKE $2 OR LOWER(code) LIKE $2) ORDER BY last_name ASC, first_name ASC LIMIT 100")).
		WithArgs("school-1", "%ana%").
		WillReturnRows(sqlmock.NewRows([]string{"id", "school_id", "first_name", "last_name", "code", "class_id", "created_at"}).
			AddRow("stu-1", "school-1", "Ana", "Lopez", "S-01", "class-1", time.Now()))

	students, err := repo.List(context.Background(), models.StudentFilter{SchoolID: "school-1", Search: "Ana"})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "S-01", students[0].Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindByIDMissing(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE id = $1")).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestStudentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").
		WithArgs(sqlmock.AnyArg(), "school-1", "Ana", "Lopez", "S-01", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	student := &models.Student{SchoolID: "school-1", FirstName: "Ana", LastName: "Lopez", Code: "S-01"}
	require.NoError(t, repo.Create(context.Background(), student))
	assert.NotEmpty(t, student.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, school_id, name, room, created_at FROM classes WHERE id = $1")).
		WithArgs("class-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "school_id", "name", "room", "created_at"}).
			AddRow("class-1", "school-1", "7A", "Room 12", time.Now()))

	class, err := repo.FindByID(context.Background(), "class-1")
	require.NoError(t, err)
	require.NotNil(t, class.Room)
	assert.Equal(t, "Room 12", *class.Room)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchoolRepositoryList(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewSchoolRepository(db)

	mock.ExpectQuery("SELECT id, name, created_at FROM schools ORDER BY name ASC").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_at"}).AddRow("school-1", "North High", time.Now()))

	schools, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, schools, 1)
	assert.Equal(t, "North High", schools[0].Name)
}

func TestMessageRepositoryListByRoom(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewMessageRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM messages WHERE room_id = $1 ORDER BY created_at DESC LIMIT 50")).
		WithArgs("room-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "room_id", "sender_id", "body", "created_at"}).
			AddRow("msg-1", "room-1", "user-1", "hello", time.Now()))

	messages, err := repo.ListByRoom(context.Background(), "room-1", 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "hello", messages[0].Body)
}
