package activity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-interaction/types"
	"github.com/saiset-co/sai-interaction/utils"
)

const messageTypeActivity = "activity"

// Broadcaster owns activity records: it persists them through the record
// store and only then forwards them to the user's live connections. The
// notification step is best-effort and never rolls the persisted record
// back.
type Broadcaster struct {
	store      types.RecordStore
	notifier   types.Notifier
	logger     types.Logger
	collection string
}

func NewBroadcaster(store types.RecordStore, notifier types.Notifier, logger types.Logger) *Broadcaster {
	return &Broadcaster{
		store:      store,
		notifier:   notifier,
		logger:     logger,
		collection: "activities",
	}
}

// LogActivity returns nil when the record could not be validated or
// persisted. Callers must treat nil as "activity not recorded", never as a
// fatal error for the surrounding request.
func (b *Broadcaster) LogActivity(ctx context.Context, userID, activityType, description, downloadURL string, success bool) *types.ActivityRecord {
	if userID == "" || activityType == "" {
		b.logger.Warn("Rejecting invalid activity",
			zap.String("user_id", userID),
			zap.String("type", activityType))
		return nil
	}

	record := &types.ActivityRecord{
		ID:          uuid.New().String(),
		UserID:      userID,
		Type:        activityType,
		Description: description,
		DownloadURL: downloadURL,
		Success:     success,
		CreatedAt:   time.Now(),
	}

	doc, err := b.toDocument(record)
	if err != nil {
		b.logger.Error("Failed to encode activity record",
			zap.String("user_id", userID), zap.Error(err))
		return nil
	}

	if _, err := b.store.Create(ctx, b.collection, doc); err != nil {
		b.logger.Error("Failed to persist activity record",
			zap.String("user_id", userID),
			zap.String("type", activityType),
			zap.Error(err))
		return nil
	}

	if b.notifier != nil {
		if err := b.notifier.SendToUser(userID, record, messageTypeActivity); err != nil {
			b.logger.Warn("Activity notification failed",
				zap.String("user_id", userID),
				zap.String("activity_id", record.ID),
				zap.Error(err))
		}
	}

	return record
}

// ListByUser returns the persisted activities of a user, newest first. Reads
// are best-effort: a store failure yields an empty list.
func (b *Broadcaster) ListByUser(ctx context.Context, userID string) []types.ActivityRecord {
	if userID == "" {
		return []types.ActivityRecord{}
	}

	docs, err := b.store.FindByField(ctx, b.collection, "user_id", userID)
	if err != nil {
		b.logger.Warn("Failed to read activities",
			zap.String("user_id", userID), zap.Error(err))
		return []types.ActivityRecord{}
	}

	records := make([]types.ActivityRecord, 0, len(docs))
	for _, doc := range docs {
		var record types.ActivityRecord
		if err := utils.UnmarshalConfig(doc, &record); err != nil {
			b.logger.Warn("Skipping undecodable activity record", zap.Error(err))
			continue
		}
		records = append(records, record)
	}

	return records
}

func (b *Broadcaster) toDocument(record *types.ActivityRecord) (types.Document, error) {
	data, err := utils.Marshal(record)
	if err != nil {
		return nil, err
	}

	var doc types.Document
	if err := utils.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	return doc, nil
}
