package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/huangang/taskboard/internal/config"
	"github.com/huangang/taskboard/internal/models"
	"github.com/huangang/taskboard/internal/utils"
	"github.com/huangang/taskboard/pkg/response"
	"gorm.io/gorm"
)

var ctx = context.Background()

// newTestDB opens a migrated in-memory sqlite database private to the test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	utils.SetJWTSecret("test-secret")

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	db, err := models.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    "file:" + name + "?mode=memory&cache=shared",
	}, false)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func createUser(t *testing.T, db *gorm.DB, email, fullname string) *models.User {
	t.Helper()
	u := &models.User{
		Email:    email,
		Username: email,
		Password: "not-a-hash",
		Fullname: fullname,
		IsActive: true,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

func createBoard(t *testing.T, db *gorm.DB, owner *models.User, members ...*models.User) *BoardDetail {
	t.Helper()
	ids := make([]uint, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	b, err := NewBoardService(db).Create(ctx, owner.ID, &CreateBoardRequest{Title: "Board", Members: ids})
	if err != nil {
		t.Fatalf("create board: %v", err)
	}
	return b
}

func createTask(t *testing.T, db *gorm.DB, actor *models.User, boardID uint, title string) *TaskView {
	t.Helper()
	task, err := NewTaskService(db).Create(ctx, actor.ID, &CreateTaskRequest{Board: &boardID, Title: title})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func uintPtr(v uint) *uint { return &v }

func strPtr(s string) *string { return &s }

// expectAppError fails unless err is an *AppError matching target with the given field.
func expectAppError(t *testing.T, err error, target *response.AppError, field string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with status %d, got nil", target.HTTPStatus)
	}
	if !errors.Is(err, target) {
		t.Fatalf("error = %v, expected status %d", err, target.HTTPStatus)
	}
	if field == "" {
		return
	}
	var appErr *response.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("error %v is not an AppError", err)
	}
	if _, ok := appErr.Fields[field]; !ok {
		t.Errorf("error fields = %v, expected field %q", appErr.Fields, field)
	}
}
