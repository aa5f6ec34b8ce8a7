package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"bitbucket.org/nordfoods/mrp_backend/config"
	"bitbucket.org/nordfoods/mrp_backend/utils"
	"gorm.io/gorm"
)

type History struct {
	ID            int       `gorm:"primary_key" json:"id"`
	BusinessId    string    `gorm:"index;not null" json:"business_id"`
	ActionType    string    `gorm:"size:10;not null" json:"action_type" binding:"required"`
	Before        string    `gorm:"type:text" json:"before"`
	After         string    `gorm:"type:text" json:"after"`
	Description   string    `gorm:"type:text;not null" json:"description"`
	ReferenceID   int       `gorm:"index" json:"reference_id"`
	ReferenceType string    `gorm:"size:255" json:"reference_type"`
	UserId        int       `gorm:"index;not null" json:"user_id"`
	UserName      string    `gorm:"size:100" json:"user_name"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type NewHistory struct {
	BusinessId    string `json:"business_id"`
	ActionType    string `json:"action_type" binding:"required"`
	Before        string `json:"before"`
	After         string `json:"after"`
	Description   string `json:"description"`
	ReferenceID   int    `json:"reference_id"`
	ReferenceType string `json:"reference_type"`
	UserId        int    `json:"user_id"`
	UserName      string `json:"user_name"`
}

func createHistory(tx *gorm.DB,
	actionType string,
	referenceId int,
	referenceType string,
	before interface{},
	after interface{},
	description string) (err error) {

	var history History

	b, _ := json.Marshal(before)
	a, _ := json.Marshal(after)

	ctx := tx.Statement.Context
	// get businessId, userId, userName from context
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return errors.New("business id is required")
	}
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok {
		return errors.New("user id is required")
	}
	userName, ok := utils.GetUserNameFromContext(ctx)
	if !ok {
		return errors.New("user id is required")
	}

	history.BusinessId = businessId
	history.ActionType = actionType
	history.Before = string(b)
	history.After = string(a)
	history.Description = description
	history.ReferenceID = referenceId
	history.ReferenceType = referenceType
	history.UserId = userId
	history.UserName = userName

	//err = tx.WithContext(ctx).Create(&history).Error
	err = tx.Create(&history).Error
	// fmt.Printf("%#v\n", history)
	return err
}

// SaveHistoryCreate writes an audit row for a freshly created record. The tx
// must carry the request context (pass tx.WithContext(ctx)); createHistory
// reads businessId, userId and userName from it.
func SaveHistoryCreate(tx *gorm.DB, id int, referenceType string, obj interface{}, description string) error {
	return createHistory(tx, "CREATE", id, referenceType, nil, obj, description)
}

func SaveHistoryUpdate(tx *gorm.DB, id int, referenceType string, before interface{}, after interface{}, description string) error {
	return createHistory(tx, "UPDATE", id, referenceType, before, after, description)
}

func SaveHistoryDelete(tx *gorm.DB, id int, referenceType string, obj interface{}, description string) error {
	return createHistory(tx, "DELETE", id, referenceType, obj, nil, description)
}

type HistoriesConnection struct {
	Edges    []*HistoriesEdge `json:"edges"`
	PageInfo *PageInfo        `json:"pageInfo"`
}

type HistoriesEdge Edge[History]

func (obj History) GetId() int {
	return obj.ID
}

func (h History) GetCursor() string {
	return h.CreatedAt.String()
}

func CreateManualHistory(ctx context.Context, input *NewHistory) (*History, error) {
	db := config.GetDB()

	history := History{
		BusinessId:    input.BusinessId,
		ActionType:    input.ActionType,
		Before:        input.Before,
		After:         input.After,
		Description:   input.Description,
		ReferenceID:   input.ReferenceID,
		ReferenceType: input.ReferenceType,
		UserId:        input.UserId,
		UserName:      input.UserName,
	}

	err := db.WithContext(ctx).Create(&history).Error
	if err != nil {
		return nil, err
	}
	return &history, nil
}

func DeleteHistory(ctx context.Context, id int) (*History, error) {

	db := config.GetDB()
	var result History

	err := db.WithContext(ctx).First(&result, id).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	err = db.WithContext(ctx).Delete(&result).Error
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func GetHistory(ctx context.Context, id int) (*History, error) {

	db := config.GetDB()
	var result History

	err := db.WithContext(ctx).First(&result, id).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}

func GetHistories(ctx context.Context, referenceId *int, referenceType *string, userId *int) ([]*History, error) {

	db := config.GetDB()
	var results []*History

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if referenceId != nil && *referenceId > 0 {
		dbCtx = dbCtx.Where("reference_id = ?", referenceId)
	}
	if referenceType != nil && len(*referenceType) > 0 {
		dbCtx = dbCtx.Where("reference_type = ?", referenceType)
	}
	if userId != nil && *userId > 0 {
		dbCtx = dbCtx.Where("user_id = ?", userId)
	}
	err := dbCtx.Order("created_at DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
func PaginateHistory(ctx context.Context,
	limit *int,
	after *string,
	referenceType *string,
	referenceID *int,
	userID *int,
	actionType *string,
) (*HistoriesConnection, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if referenceType != nil && *referenceType != "" {
		dbCtx.Where("reference_type = ?", *referenceType)
	}
	if referenceID != nil && *referenceID > 0 {
		dbCtx.Where("reference_id = ?", *referenceID)
	}
	if userID != nil && *userID > 0 {
		dbCtx.Where("user_id = ?", *userID)
	}
	if actionType != nil && *actionType != "" {
		dbCtx.Where("action_type = ?", *actionType)
	}

	edges, pageInfo, err := FetchPageCompositeCursor[History](dbCtx, *limit, after, "created_at", "<")
	if err != nil {
		return nil, err
	}
	var historysConnection HistoriesConnection
	historysConnection.PageInfo = pageInfo
	for _, edge := range edges {
		historysEdge := HistoriesEdge(edge)
		historysConnection.Edges = append(historysConnection.Edges, &historysEdge)
	}

	return &historysConnection, err
}
