// Package ddb is the DynamoDB-backed appointment store.
package ddb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/kylejryan/appointment-lifecycle/internal/apperr"
	"github.com/kylejryan/appointment-lifecycle/internal/models"
)

// DefaultIndex is the GSI keyed by insuredId.
const DefaultIndex = "insuredId-index"

// API is the subset of the DynamoDB client the repo needs.
type API interface {
	dynamodb.QueryAPIClient
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// Repo wraps a DynamoDB client and table name for appointment operations.
type Repo struct {
	DB    API
	Table string
	Index string
	Log   *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewRepo returns a repo on table using the insuredId GSI.
func NewRepo(db API, table string, log *slog.Logger) *Repo {
	return &Repo{
		DB:    db,
		Table: table,
		Index: DefaultIndex,
		Log:   log.With("component", "appointment_store"),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Create stores a new pending appointment for req.
func (r *Repo) Create(ctx context.Context, req models.AppointmentRequest) (models.AppointmentRecord, error) {
	rec := models.NewPendingRecord(r.newID(), req, r.now())

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return models.AppointmentRecord{}, fmt.Errorf("%w: marshal appointment: %v", apperr.ErrStorageWrite, err)
	}
	r.Log.Debug("saving appointment", "id", rec.ID, "insured_id", rec.InsuredID)
	if _, err := r.DB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &r.Table,
		Item:      item,
	}); err != nil {
		r.Log.Error("failed to save appointment", "id", rec.ID, "error", err)
		return models.AppointmentRecord{}, fmt.Errorf("%w: put appointment %s: %v", apperr.ErrStorageWrite, rec.ID, err)
	}
	r.Log.Info("appointment saved", "id", rec.ID)
	return rec, nil
}

// FindByInsuredID returns every appointment of the insured, following pagination.
func (r *Repo) FindByInsuredID(ctx context.Context, insuredID string) ([]models.AppointmentRecord, error) {
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key("insuredId").Equal(expression.Value(insuredID))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("%w: build query: %v", apperr.ErrStorageRead, err)
	}

	p := dynamodb.NewQueryPaginator(r.DB, &dynamodb.QueryInput{
		TableName:                 &r.Table,
		IndexName:                 &r.Index,
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})

	out := []models.AppointmentRecord{}
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			r.Log.Error("failed to query appointments", "insured_id", insuredID, "error", err)
			return nil, fmt.Errorf("%w: query insuredId %s: %v", apperr.ErrStorageRead, insuredID, err)
		}
		var items []models.AppointmentRecord
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("%w: unmarshal appointments: %v", apperr.ErrStorageRead, err)
		}
		out = append(out, items...)
	}
	return out, nil
}

// CompleteIfPending moves the matching pending appointment to completed.
// found is false when nothing is pending for the triple, including when a
// concurrent or earlier delivery already completed it.
func (r *Repo) CompleteIfPending(ctx context.Context, insuredID string, scheduleID int, country models.CountryISO) (rec models.AppointmentRecord, found bool, err error) {
	items, err := r.FindByInsuredID(ctx, insuredID)
	if err != nil {
		return models.AppointmentRecord{}, false, err
	}

	matches := models.PendingMatches(items, scheduleID, country)
	if len(matches) == 0 {
		r.Log.Info("no pending appointment", "insured_id", insuredID, "schedule_id", scheduleID, "country", country)
		return models.AppointmentRecord{}, false, nil
	}
	if len(matches) > 1 {
		r.Log.Warn("several pending appointments share a schedule, completing the oldest",
			"insured_id", insuredID, "schedule_id", scheduleID, "country", country, "matches", len(matches))
	}
	target := matches[0]

	expr, err := expression.NewBuilder().
		WithUpdate(expression.
			Set(expression.Name("status"), expression.Value(models.StatusCompleted)).
			Set(expression.Name("updatedAt"), expression.Value(models.EpochMillis(r.now())))).
		WithCondition(expression.Name("status").Equal(expression.Value(models.StatusPending))).
		Build()
	if err != nil {
		return models.AppointmentRecord{}, false, fmt.Errorf("%w: build update: %v", apperr.ErrStorageWrite, err)
	}

	out, err := r.DB.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 &r.Table,
		Key:                       map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: target.ID}},
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			r.Log.Info("appointment no longer pending", "id", target.ID)
			return models.AppointmentRecord{}, false, nil
		}
		r.Log.Error("failed to complete appointment", "id", target.ID, "error", err)
		return models.AppointmentRecord{}, false, fmt.Errorf("%w: complete %s: %v", apperr.ErrStorageWrite, target.ID, err)
	}

	if err := attributevalue.UnmarshalMap(out.Attributes, &rec); err != nil {
		return models.AppointmentRecord{}, false, fmt.Errorf("%w: unmarshal appointment: %v", apperr.ErrStorageRead, err)
	}
	r.Log.Info("appointment completed", "id", rec.ID)
	return rec, true, nil
}
