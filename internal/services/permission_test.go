package services

import (
	"testing"

	"github.com/huangang/taskboard/internal/models"
)

func TestBoardPermissions(t *testing.T) {
	board := &models.Board{ID: 1, OwnerID: 1, Members: []models.User{{ID: 2}}}

	tests := []struct {
		name   string
		actor  uint
		access bool
		update bool
		mutate bool
		manage bool
	}{
		{"owner", 1, true, true, true, true},
		{"member", 2, true, true, false, false},
		{"outsider", 3, false, false, false, false},
		{"anonymous", 0, false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanAccessBoard(tt.actor, board); got != tt.access {
				t.Errorf("CanAccessBoard() = %v, expected %v", got, tt.access)
			}
			if got := CanUpdateBoard(tt.actor, board); got != tt.update {
				t.Errorf("CanUpdateBoard() = %v, expected %v", got, tt.update)
			}
			if got := CanMutateBoard(tt.actor, board); got != tt.mutate {
				t.Errorf("CanMutateBoard() = %v, expected %v", got, tt.mutate)
			}
			if got := CanManageBoardMembers(tt.actor, board); got != tt.manage {
				t.Errorf("CanManageBoardMembers() = %v, expected %v", got, tt.manage)
			}
		})
	}
}

func TestBoardPermissions_NilBoard(t *testing.T) {
	if CanAccessBoard(1, nil) || CanMutateBoard(1, nil) || CanUpdateBoard(1, nil) {
		t.Error("nil board must deny everything")
	}
}

func TestTaskPermissions(t *testing.T) {
	board := &models.Board{ID: 1, OwnerID: 1, Members: []models.User{{ID: 2}, {ID: 3}}}
	task := &models.Task{ID: 10, BoardID: 1, Board: board, CreatedByID: uintPtr(2)}

	tests := []struct {
		name   string
		actor  uint
		access bool
		delete bool
	}{
		{"board owner", 1, true, true},
		{"creator", 2, true, true},
		{"other member", 3, true, false},
		{"outsider", 4, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanAccessTask(tt.actor, task); got != tt.access {
				t.Errorf("CanAccessTask() = %v, expected %v", got, tt.access)
			}
			if got := CanDeleteTask(tt.actor, task); got != tt.delete {
				t.Errorf("CanDeleteTask() = %v, expected %v", got, tt.delete)
			}
		})
	}
}

func TestCanDeleteTask_NoCreator(t *testing.T) {
	task := &models.Task{Board: &models.Board{OwnerID: 1}}
	if CanDeleteTask(2, task) {
		t.Error("non-owner should not delete a task without creator")
	}
	if !CanDeleteTask(1, task) {
		t.Error("owner should delete a task without creator")
	}
}

func TestCanDeleteComment(t *testing.T) {
	c := &models.Comment{AuthorID: 5}
	if !CanDeleteComment(5, c) {
		t.Error("author should delete own comment")
	}
	if CanDeleteComment(6, c) {
		t.Error("other users should not delete the comment")
	}
	if CanDeleteComment(5, nil) {
		t.Error("nil comment must deny")
	}
}
