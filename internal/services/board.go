package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/huangang/taskboard/internal/models"
	"github.com/huangang/taskboard/pkg/response"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	msgRequired = "This field is required."
	msgBlank    = "This field may not be blank."
)

type BoardService struct {
	db *gorm.DB
}

func NewBoardService(db *gorm.DB) *BoardService {
	return &BoardService{db: db}
}

type CreateBoardRequest struct {
	Title   string `json:"title" binding:"max=255"`
	Members []uint `json:"members"`
}

// UpdateBoardRequest leaves a field untouched when its key is absent.
type UpdateBoardRequest struct {
	Title   *string `json:"title" binding:"omitempty,max=255"`
	Members *[]uint `json:"members"`
}

type MemberEmailRequest struct {
	Email string `json:"email"`
}

// List returns summaries of every board the actor owns or belongs to, ordered by id.
func (s *BoardService) List(ctx context.Context, actorID uint) ([]BoardSummary, error) {
	db := s.db.WithContext(ctx)

	var boards []models.Board
	memberOf := db.Model(&models.BoardMember{}).Select("board_id").Where("user_id = ?", actorID)
	if err := db.Preload("Members").
		Where("owner_id = ? OR id IN (?)", actorID, memberOf).
		Order("id").
		Find(&boards).Error; err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}

	summaries := make([]BoardSummary, 0, len(boards))
	if len(boards) == 0 {
		return summaries, nil
	}

	ids := make([]uint, 0, len(boards))
	for _, b := range boards {
		ids = append(ids, b.ID)
	}
	counts, err := s.taskCounts(db, ids)
	if err != nil {
		return nil, err
	}

	for _, b := range boards {
		c := counts[b.ID]
		summaries = append(summaries, BoardSummary{
			ID:                 b.ID,
			Title:              b.Title,
			OwnerID:            b.OwnerID,
			MemberCount:        len(b.Members),
			TicketCount:        c.Total,
			TasksToDoCount:     c.ToDo,
			TasksHighPrioCount: c.HighPrio,
		})
	}
	return summaries, nil
}

type boardTaskCounts struct {
	BoardID  uint
	Total    int
	ToDo     int
	HighPrio int
}

func (s *BoardService) taskCounts(db *gorm.DB, boardIDs []uint) (map[uint]boardTaskCounts, error) {
	var rows []boardTaskCounts
	err := db.Model(&models.Task{}).
		Select("board_id, COUNT(*) AS total, "+
			"SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS to_do, "+
			"SUM(CASE WHEN priority = ? THEN 1 ELSE 0 END) AS high_prio",
			models.StatusToDo, models.PriorityHigh).
		Where("board_id IN ?", boardIDs).
		Group("board_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count board tasks: %w", err)
	}

	counts := make(map[uint]boardTaskCounts, len(rows))
	for _, r := range rows {
		counts[r.BoardID] = r
	}
	return counts, nil
}

// Create makes the actor the owner. Every member id must name an existing user.
func (s *BoardService) Create(ctx context.Context, actorID uint, req *CreateBoardRequest) (*BoardDetail, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, response.NewValidation("title", msgBlank)
	}

	board := models.Board{Title: title, OwnerID: actorID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		memberIDs, err := resolveUserIDs(tx, req.Members)
		if err != nil {
			return err
		}
		if err := tx.Create(&board).Error; err != nil {
			return fmt.Errorf("create board: %w", err)
		}
		return addMemberRows(tx, board.ID, memberIDs)
	})
	if err != nil {
		return nil, err
	}

	return s.detail(ctx, board.ID)
}

// Get returns the board detail for an owner or member.
func (s *BoardService) Get(ctx context.Context, actorID, boardID uint) (*BoardDetail, error) {
	board, err := findBoard(s.db.WithContext(ctx), boardID)
	if err != nil {
		return nil, err
	}
	if !CanAccessBoard(actorID, board) {
		return nil, response.NewForbidden("You do not have access to this board.")
	}
	return s.detail(ctx, boardID)
}

// Update patches the title and replaces the member set when given. Users that
// drop out of the set lose their assignee and reviewer slots on this board.
func (s *BoardService) Update(ctx context.Context, actorID, boardID uint, req *UpdateBoardRequest) (*BoardDetail, error) {
	board, err := findBoard(s.db.WithContext(ctx), boardID)
	if err != nil {
		return nil, err
	}
	if !CanUpdateBoard(actorID, board) {
		return nil, response.NewForbidden("You do not have access to this board.")
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, response.NewValidation("title", msgBlank)
		}
		updates["title"] = title
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.Members != nil {
			newIDs, err := resolveUserIDs(tx, *req.Members)
			if err != nil {
				return err
			}
			locked, err := lockBoard(tx, boardID)
			if err != nil {
				return err
			}
			if err := replaceMembers(tx, locked, newIDs); err != nil {
				return err
			}
		}
		if len(updates) > 0 {
			if err := tx.Model(board).Updates(updates).Error; err != nil {
				return fmt.Errorf("update board: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.detail(ctx, boardID)
}

// Delete removes the board with its tasks, comments, memberships and invitations.
func (s *BoardService) Delete(ctx context.Context, actorID, boardID uint) error {
	board, err := findBoard(s.db.WithContext(ctx), boardID)
	if err != nil {
		return err
	}
	if !CanMutateBoard(actorID, board) {
		return response.NewForbidden("Only the board owner can delete this board.")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taskIDs := tx.Model(&models.Task{}).Select("id").Where("board_id = ?", boardID)
		if err := tx.Where("task_id IN (?)", taskIDs).Delete(&models.Comment{}).Error; err != nil {
			return fmt.Errorf("delete board comments: %w", err)
		}
		if err := tx.Where("board_id = ?", boardID).Delete(&models.Task{}).Error; err != nil {
			return fmt.Errorf("delete board tasks: %w", err)
		}
		if err := tx.Where("board_id = ?", boardID).Delete(&models.Invitation{}).Error; err != nil {
			return fmt.Errorf("delete board invitations: %w", err)
		}
		if err := tx.Where("board_id = ?", boardID).Delete(&models.BoardMember{}).Error; err != nil {
			return fmt.Errorf("delete board members: %w", err)
		}
		if err := tx.Delete(&models.Board{}, boardID).Error; err != nil {
			return fmt.Errorf("delete board: %w", err)
		}
		return nil
	})
}

// AddMember adds the user with the given email. Adding the owner or an
// existing member changes nothing.
func (s *BoardService) AddMember(ctx context.Context, actorID, boardID uint, email string) (*BoardDetail, error) {
	board, user, err := s.memberTarget(ctx, actorID, boardID, email)
	if err != nil {
		return nil, err
	}

	if user.ID != board.OwnerID && !board.HasMember(user.ID) {
		row := models.BoardMember{BoardID: board.ID, UserID: user.ID}
		if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return nil, fmt.Errorf("add board member: %w", err)
		}
	}

	return s.detail(ctx, boardID)
}

// RemoveMember drops the user with the given email from the member set.
func (s *BoardService) RemoveMember(ctx context.Context, actorID, boardID uint, email string) (*BoardDetail, error) {
	board, user, err := s.memberTarget(ctx, actorID, boardID, email)
	if err != nil {
		return nil, err
	}
	if !board.HasMember(user.ID) {
		return nil, response.NewValidation("email", "User is not a member of this board.")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := lockBoard(tx, boardID)
		if err != nil {
			return err
		}
		if !locked.HasMember(user.ID) {
			return response.NewValidation("email", "User is not a member of this board.")
		}
		if err := tx.Where("board_id = ? AND user_id = ?", boardID, user.ID).Delete(&models.BoardMember{}).Error; err != nil {
			return fmt.Errorf("remove board member: %w", err)
		}
		if user.ID == board.OwnerID {
			return nil
		}
		return clearAssignments(tx, boardID, []uint{user.ID})
	})
	if err != nil {
		return nil, err
	}

	return s.detail(ctx, boardID)
}

func (s *BoardService) memberTarget(ctx context.Context, actorID, boardID uint, email string) (*models.Board, *models.User, error) {
	db := s.db.WithContext(ctx)
	board, err := findBoard(db, boardID)
	if err != nil {
		return nil, nil, err
	}
	if !CanManageBoardMembers(actorID, board) {
		return nil, nil, response.NewForbidden("Only the board owner can manage members.")
	}

	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, nil, response.NewValidation("email", msgBlank)
	}
	user, err := findUserByEmail(db, email)
	if err != nil {
		return nil, nil, err
	}
	return board, user, nil
}

func (s *BoardService) detail(ctx context.Context, boardID uint) (*BoardDetail, error) {
	var board models.Board
	err := s.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("users.id") }).
		Preload("Tasks", orderTasks).
		Preload("Tasks.Assignee").
		Preload("Tasks.Reviewer").
		Preload("Tasks.Comments", orderComments).
		Preload("Tasks.Comments.Author").
		First(&board, boardID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("board")
		}
		return nil, fmt.Errorf("load board %d: %w", boardID, err)
	}
	return NewBoardDetail(&board), nil
}

func orderTasks(db *gorm.DB) *gorm.DB {
	return db.Order("tasks.id DESC")
}

func orderComments(db *gorm.DB) *gorm.DB {
	return db.Order("comments.created_at ASC").Order("comments.id ASC")
}

// findBoard loads a board with its member set, or a NotFound error.
func findBoard(db *gorm.DB, boardID uint) (*models.Board, error) {
	var board models.Board
	if err := db.Preload("Members").First(&board, boardID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("board")
		}
		return nil, fmt.Errorf("find board %d: %w", boardID, err)
	}
	return &board, nil
}

// lockBoard reloads the board and its members inside tx. On MySQL and
// Postgres the board row stays locked until tx ends, which serializes
// membership changes against writes that validate membership.
func lockBoard(tx *gorm.DB, boardID uint) (*models.Board, error) {
	if tx.Dialector.Name() != "sqlite" {
		tx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return findBoard(tx, boardID)
}

func findUserByEmail(db *gorm.DB, email string) (*models.User, error) {
	var user models.User
	if err := db.Where("email = ?", models.NormalizeEmail(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("user")
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// resolveUserIDs dedupes ids and fails if any of them has no user.
func resolveUserIDs(db *gorm.DB, ids []uint) ([]uint, error) {
	seen := make(map[uint]struct{}, len(ids))
	unique := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return unique, nil
	}

	var found []uint
	if err := db.Model(&models.User{}).Where("id IN ?", unique).Pluck("id", &found).Error; err != nil {
		return nil, fmt.Errorf("resolve members: %w", err)
	}
	if len(found) != len(unique) {
		missing := make([]string, 0, len(unique)-len(found))
		present := make(map[uint]struct{}, len(found))
		for _, id := range found {
			present[id] = struct{}{}
		}
		for _, id := range unique {
			if _, ok := present[id]; !ok {
				missing = append(missing, fmt.Sprint(id))
			}
		}
		return nil, response.NewValidation("members", "Unknown user id(s): "+strings.Join(missing, ", ")+".")
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i] < unique[j] })
	return unique, nil
}

func addMemberRows(tx *gorm.DB, boardID uint, userIDs []uint) error {
	if len(userIDs) == 0 {
		return nil
	}
	rows := make([]models.BoardMember, 0, len(userIDs))
	for _, id := range userIDs {
		rows = append(rows, models.BoardMember{BoardID: boardID, UserID: id})
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
		return fmt.Errorf("add board members: %w", err)
	}
	return nil
}

// replaceMembers swaps the member set of board for newIDs.
func replaceMembers(tx *gorm.DB, board *models.Board, newIDs []uint) error {
	keep := make(map[uint]struct{}, len(newIDs))
	for _, id := range newIDs {
		keep[id] = struct{}{}
	}

	var dropped []uint
	for _, id := range board.MemberIDs() {
		if _, ok := keep[id]; !ok {
			dropped = append(dropped, id)
		}
	}

	if len(dropped) > 0 {
		if err := tx.Where("board_id = ? AND user_id IN ?", board.ID, dropped).Delete(&models.BoardMember{}).Error; err != nil {
			return fmt.Errorf("drop board members: %w", err)
		}
		var unassign []uint
		for _, id := range dropped {
			if id != board.OwnerID {
				unassign = append(unassign, id)
			}
		}
		if err := clearAssignments(tx, board.ID, unassign); err != nil {
			return err
		}
	}

	var added []uint
	for _, id := range newIDs {
		if !board.HasMember(id) {
			added = append(added, id)
		}
	}
	return addMemberRows(tx, board.ID, added)
}

// clearAssignments nulls the assignee and reviewer slots held by userIDs on the board's tasks.
func clearAssignments(tx *gorm.DB, boardID uint, userIDs []uint) error {
	if len(userIDs) == 0 {
		return nil
	}
	if err := tx.Model(&models.Task{}).
		Where("board_id = ? AND assignee_id IN ?", boardID, userIDs).
		Update("assignee_id", nil).Error; err != nil {
		return fmt.Errorf("clear assignees: %w", err)
	}
	if err := tx.Model(&models.Task{}).
		Where("board_id = ? AND reviewer_id IN ?", boardID, userIDs).
		Update("reviewer_id", nil).Error; err != nil {
		return fmt.Errorf("clear reviewers: %w", err)
	}
	return nil
}
