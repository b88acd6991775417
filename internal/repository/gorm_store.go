package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/spec-kit/school-support/internal/domain"
)

// UserModel is the gorm row for users.
type UserModel struct {
	ID           string `gorm:"primaryKey;size:36"`
	Username     string `gorm:"uniqueIndex;size:100;not null"`
	PasswordHash string `gorm:"not null"`
	DisplayName  string `gorm:"size:200;not null;default:''"`
	RoleID       int    `gorm:"not null;index"`
	FirstLogin   bool   `gorm:"not null"`
	IsActive     bool   `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName pins the table name.
func (UserModel) TableName() string { return "users" }

// TicketModel is the gorm row for active tickets.
type TicketModel struct {
	ID           string    `gorm:"primaryKey;size:36"`
	CreatorID    string    `gorm:"size:36;not null;index"`
	AssigneeID   *string   `gorm:"size:36;index"`
	MainCategory string    `gorm:"size:50;not null;index"`
	SubCategory  string    `gorm:"size:50;not null"`
	Priority     string    `gorm:"size:20;not null;index"`
	Description  string    `gorm:"type:text;not null"`
	Location     string    `gorm:"size:200;not null;default:''"`
	Remarks      string    `gorm:"type:text;not null"`
	AISummary    *string   `gorm:"type:text"`
	Status       string    `gorm:"size:20;not null;index"`
	CreatedAt    time.Time `gorm:"index;autoCreateTime:false"`
	ResolvedAt   *time.Time
	UpdatedAt    time.Time `gorm:"autoUpdateTime:false"`
}

// TableName pins the table name.
func (TicketModel) TableName() string { return "tickets" }

// ArchiveModel is the gorm row for archived tickets.
type ArchiveModel struct {
	ID               string `gorm:"primaryKey;size:36"`
	OriginalTicketID string `gorm:"size:36;uniqueIndex;not null"`
	Summary          string `gorm:"type:text;not null"`
	MainCategory     string `gorm:"size:50;not null"`
	SubCategory      string `gorm:"size:50;not null"`
	Year             string `gorm:"size:4;not null"`
	FinalStatus      string `gorm:"size:20;not null"`
	ArchivedAt       time.Time
}

// TableName pins the table name.
func (ArchiveModel) TableName() string { return "archived_tickets" }

// AutoMigrateGorm creates or updates the tables used by the gorm repositories.
func AutoMigrateGorm(db *gorm.DB) error {
	return db.AutoMigrate(&UserModel{}, &TicketModel{}, &ArchiveModel{})
}

// GormStore exposes gorm-backed repositories over one database handle.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps db.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Users returns the user repository view.
func (s *GormStore) Users() UserRepository { return gormUsers{db: s.db} }

// Tickets returns the ticket repository view.
func (s *GormStore) Tickets() TicketRepository { return gormTickets{db: s.db} }

// Archives returns the archive repository view.
func (s *GormStore) Archives() ArchiveRepository { return gormArchives{db: s.db} }

func mapGormError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrDuplicate
	}
	return err
}

type gormUsers struct{ db *gorm.DB }

func (r gormUsers) Create(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	model := userToModel(user)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return mapGormError(err)
	}
	user.CreatedAt, user.UpdatedAt = model.CreatedAt, model.UpdatedAt
	return nil
}

func (r gormUsers) Update(ctx context.Context, user *domain.User) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&UserModel{}).Where("id = ?", user.ID).Updates(map[string]any{
		"password_hash": user.PasswordHash,
		"display_name":  user.DisplayName,
		"role_id":       int(user.Role),
		"first_login":   user.FirstLogin,
		"is_active":     user.Active,
		"updated_at":    now,
	})
	if result.Error != nil {
		return mapGormError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	user.UpdatedAt = now
	return nil
}

func (r gormUsers) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var model UserModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, mapGormError(err)
	}
	return modelToUser(&model), nil
}

func (r gormUsers) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	var model UserModel
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&model).Error; err != nil {
		return nil, mapGormError(err)
	}
	return modelToUser(&model), nil
}

func (r gormUsers) List(ctx context.Context, filter UserFilter) ([]domain.User, error) {
	q := r.db.WithContext(ctx).Model(&UserModel{})
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(username) LIKE ? OR LOWER(display_name) LIKE ?", like, like)
	}
	if len(filter.Roles) > 0 {
		roles := make([]int, len(filter.Roles))
		for i, role := range filter.Roles {
			roles[i] = int(role)
		}
		q = q.Where("role_id IN ?", roles)
	}
	if filter.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}
	q = applyPage(q.Order("role_id").Order("username"), filter.Limit, filter.Offset)

	var models []UserModel
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(models))
	for i := range models {
		users = append(users, *modelToUser(&models[i]))
	}
	return users, nil
}

type gormTickets struct{ db *gorm.DB }

func (r gormTickets) Create(ctx context.Context, ticket *domain.Ticket) error {
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	model, err := ticketToModel(ticket)
	if err != nil {
		return err
	}
	return mapGormError(r.db.WithContext(ctx).Create(&model).Error)
}

func (r gormTickets) Update(ctx context.Context, ticket *domain.Ticket) error {
	model, err := ticketToModel(ticket)
	if err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Model(&TicketModel{}).Where("id = ?", ticket.ID).Updates(map[string]any{
		"assignee_id":   model.AssigneeID,
		"main_category": model.MainCategory,
		"sub_category":  model.SubCategory,
		"priority":      model.Priority,
		"location":      model.Location,
		"remarks":       model.Remarks,
		"ai_summary":    model.AISummary,
		"status":        model.Status,
		"resolved_at":   model.ResolvedAt,
		"updated_at":    model.UpdatedAt,
	})
	if result.Error != nil {
		return mapGormError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r gormTickets) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	var model TicketModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, mapGormError(err)
	}
	return modelToTicket(&model)
}

func (r gormTickets) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	q := r.db.WithContext(ctx).Model(&TicketModel{})
	if filter.CreatorID != nil {
		q = q.Where("creator_id = ?", *filter.CreatorID)
	}
	if filter.AssigneeID != nil {
		q = q.Where("assignee_id = ?", *filter.AssigneeID)
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", statusLabels(filter.Statuses))
	}
	if len(filter.ExcludeStatuses) > 0 {
		q = q.Where("status NOT IN ?", statusLabels(filter.ExcludeStatuses))
	}
	if filter.CreatedBefore != nil {
		q = q.Where("created_at < ?", filter.CreatedBefore.UTC())
	}
	q = applyPage(q.Order("created_at DESC").Order("id"), filter.Limit, filter.Offset)

	var models []TicketModel
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	tickets := make([]domain.Ticket, 0, len(models))
	for i := range models {
		ticket, err := modelToTicket(&models[i])
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *ticket)
	}
	return tickets, nil
}

func (r gormTickets) CountOpenByUser(ctx context.Context, userID string) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&TicketModel{}).
		Where("(creator_id = ? OR assignee_id = ?) AND status IN ?", userID, userID, statusLabels(domain.OpenStatuses())).
		Count(&count).Error
	return int(count), err
}

func (r gormTickets) CountByCategory(ctx context.Context) ([]CategoryCount, error) {
	var rows []struct {
		MainCategory string
		Total        int
	}
	err := r.db.WithContext(ctx).Model(&TicketModel{}).
		Select("main_category, COUNT(*) AS total").
		Where("status <> ?", domain.StatusResolved.String()).
		Group("main_category").
		Order("total DESC").Order("main_category").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make([]CategoryCount, 0, len(rows))
	for _, row := range rows {
		counts = append(counts, CategoryCount{MainCategory: row.MainCategory, Count: row.Total})
	}
	return counts, nil
}

func (r gormTickets) CountByPriority(ctx context.Context) ([]PriorityCount, error) {
	var rows []struct {
		Priority string
		Total    int
	}
	err := r.db.WithContext(ctx).Model(&TicketModel{}).
		Select("priority, COUNT(*) AS total").
		Where("status <> ?", domain.StatusResolved.String()).
		Group("priority").
		Order("total DESC").Order("priority").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make([]PriorityCount, 0, len(rows))
	for _, row := range rows {
		counts = append(counts, PriorityCount{Priority: domain.TicketPriority(row.Priority), Count: row.Total})
	}
	return counts, nil
}

func (r gormTickets) CountResolvedByAssignee(ctx context.Context) ([]AssigneeCount, error) {
	var rows []struct {
		ID          string
		DisplayName string
		Total       int
	}
	err := r.db.WithContext(ctx).Table("users AS u").
		Select("u.id AS id, u.display_name AS display_name, COUNT(t.id) AS total").
		Joins("LEFT JOIN tickets t ON t.assignee_id = u.id AND t.status = ?", domain.StatusResolved.String()).
		Where("u.role_id IN ? AND u.is_active = ?", []int{int(domain.RoleLeader), int(domain.RoleTechnician)}, true).
		Group("u.id, u.display_name").
		Order("total DESC").Order("u.display_name").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make([]AssigneeCount, 0, len(rows))
	for _, row := range rows {
		counts = append(counts, AssigneeCount{UserID: row.ID, DisplayName: row.DisplayName, Resolved: row.Total})
	}
	return counts, nil
}

type gormArchives struct{ db *gorm.DB }

func (r gormArchives) MoveToArchive(ctx context.Context, rec *domain.ArchiveRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := ArchiveModel{
			ID:               rec.ID,
			OriginalTicketID: rec.OriginalTicketID,
			Summary:          rec.Summary,
			MainCategory:     rec.MainCategory,
			SubCategory:      rec.SubCategory,
			Year:             rec.Year,
			FinalStatus:      rec.FinalStatus.String(),
			ArchivedAt:       rec.ArchivedAt.UTC(),
		}
		if err := tx.Create(&model).Error; err != nil {
			return mapGormError(err)
		}
		result := tx.Where("id = ? AND status IN ?", rec.OriginalTicketID, statusLabels(domain.TerminalStatuses())).
			Delete(&TicketModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotArchivable
		}
		return nil
	})
}

func (r gormArchives) List(ctx context.Context, filter ArchiveFilter) ([]domain.ArchiveRecord, error) {
	q := r.db.WithContext(ctx).Model(&ArchiveModel{})
	if kw := strings.TrimSpace(filter.Keyword); kw != "" {
		q = q.Where("LOWER(summary) LIKE ?", "%"+strings.ToLower(kw)+"%")
	}
	q = applyPage(q.Order("archived_at DESC").Order("id"), filter.Limit, filter.Offset)

	var models []ArchiveModel
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	records := make([]domain.ArchiveRecord, 0, len(models))
	for _, m := range models {
		status, err := domain.ParseTicketStatus(m.FinalStatus)
		if err != nil {
			return nil, err
		}
		records = append(records, domain.ArchiveRecord{
			ID:               m.ID,
			OriginalTicketID: m.OriginalTicketID,
			Summary:          m.Summary,
			MainCategory:     m.MainCategory,
			SubCategory:      m.SubCategory,
			Year:             m.Year,
			FinalStatus:      status,
			ArchivedAt:       m.ArchivedAt,
		})
	}
	return records, nil
}

func applyPage(q *gorm.DB, limit, offset int) *gorm.DB {
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	return q
}

func userToModel(u *domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		DisplayName:  u.DisplayName,
		RoleID:       int(u.Role),
		FirstLogin:   u.FirstLogin,
		IsActive:     u.Active,
	}
}

func modelToUser(m *UserModel) *domain.User {
	return &domain.User{
		ID:           m.ID,
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		DisplayName:  m.DisplayName,
		Role:         domain.Role(m.RoleID),
		FirstLogin:   m.FirstLogin,
		Active:       m.IsActive,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func ticketToModel(t *domain.Ticket) (TicketModel, error) {
	remarks, err := json.Marshal(remarksOrEmpty(t.Remarks))
	if err != nil {
		return TicketModel{}, err
	}
	return TicketModel{
		ID:           t.ID,
		CreatorID:    t.CreatorID,
		AssigneeID:   t.AssigneeID,
		MainCategory: t.MainCategory,
		SubCategory:  t.SubCategory,
		Priority:     string(t.Priority),
		Description:  t.Description,
		Location:     t.Location,
		Remarks:      string(remarks),
		AISummary:    t.AISummary,
		Status:       t.Status.String(),
		CreatedAt:    t.CreatedAt.UTC(),
		ResolvedAt:   utcPtr(t.ResolvedAt),
		UpdatedAt:    t.UpdatedAt.UTC(),
	}, nil
}

// SQLite keeps timestamps as text and compares them as strings, so every
// stored time shares one offset.
func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func modelToTicket(m *TicketModel) (*domain.Ticket, error) {
	status, err := domain.ParseTicketStatus(m.Status)
	if err != nil {
		return nil, err
	}
	remarks := domain.RemarkLog{}
	if m.Remarks != "" {
		if err := json.Unmarshal([]byte(m.Remarks), &remarks); err != nil {
			return nil, err
		}
	}
	return &domain.Ticket{
		ID:           m.ID,
		CreatorID:    m.CreatorID,
		AssigneeID:   m.AssigneeID,
		MainCategory: m.MainCategory,
		SubCategory:  m.SubCategory,
		Priority:     domain.TicketPriority(m.Priority),
		Description:  m.Description,
		Location:     m.Location,
		Remarks:      remarks,
		AISummary:    m.AISummary,
		Status:       status,
		CreatedAt:    m.CreatedAt,
		ResolvedAt:   m.ResolvedAt,
		UpdatedAt:    m.UpdatedAt,
	}, nil
}
