package services

import "github.com/huangang/taskboard/internal/models"

// The functions below decide who may see or change what. They expect the
// relations they inspect (board members, task board) to be loaded and never
// touch the database. actorID 0 is an anonymous caller and is always denied.

// CanAccessBoard: owner or member.
func CanAccessBoard(actorID uint, board *models.Board) bool {
	if actorID == 0 || board == nil {
		return false
	}
	return board.OwnerID == actorID || board.HasMember(actorID)
}

// CanUpdateBoard lets any member patch title and members, not only the owner.
func CanUpdateBoard(actorID uint, board *models.Board) bool {
	return CanAccessBoard(actorID, board)
}

// CanMutateBoard covers destructive board operations: owner only.
func CanMutateBoard(actorID uint, board *models.Board) bool {
	if actorID == 0 || board == nil {
		return false
	}
	return board.OwnerID == actorID
}

// CanManageBoardMembers covers add-member, remove-member and invitations: owner only.
func CanManageBoardMembers(actorID uint, board *models.Board) bool {
	return CanMutateBoard(actorID, board)
}

// CanAccessTask delegates to the task's board.
func CanAccessTask(actorID uint, task *models.Task) bool {
	if task == nil {
		return false
	}
	return CanAccessBoard(actorID, task.Board)
}

// CanDeleteTask: the task's creator or the board owner.
func CanDeleteTask(actorID uint, task *models.Task) bool {
	if actorID == 0 || task == nil {
		return false
	}
	if task.CreatedByID != nil && *task.CreatedByID == actorID {
		return true
	}
	return task.Board != nil && task.Board.OwnerID == actorID
}

// CanDeleteComment: the comment's author only.
func CanDeleteComment(actorID uint, comment *models.Comment) bool {
	if actorID == 0 || comment == nil {
		return false
	}
	return comment.AuthorID == actorID
}

// canBeAssigned reports whether userID may be a task's assignee or reviewer on board.
func canBeAssigned(userID uint, board *models.Board) bool {
	return CanAccessBoard(userID, board)
}
