package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sewerwatch/portal/internal/core/domain"
	"github.com/sewerwatch/portal/internal/core/ports"
)

const auditCollection = "portal_audit"

// AuditRepository implements ports.AuditRepository using MongoDB.
type AuditRepository struct {
	col       *mongo.Collection
	retention time.Duration
}

var _ ports.AuditRepository = (*AuditRepository)(nil)

// NewAuditRepository creates an AuditRepository. Documents older than
// retention are expired by MongoDB; zero keeps them forever.
func NewAuditRepository(db *mongo.Database, retention time.Duration) *AuditRepository {
	return &AuditRepository{col: db.Collection(auditCollection), retention: retention}
}

// Insert persists one audit event.
func (r *AuditRepository) Insert(ctx context.Context, event *domain.AuditEvent) error {
	doc := bson.M{
		"kind":      string(event.Kind),
		"client":    event.Client,
		"timestamp": event.Timestamp.UTC(),
	}
	if event.UserID != "" {
		doc["user_id"] = string(event.UserID)
	}
	if event.Role != "" {
		doc["role"] = string(event.Role)
	}
	if event.Path != "" {
		doc["path"] = event.Path
	}
	if event.Detail != "" {
		doc["detail"] = event.Detail
	}

	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// EnsureIndexes creates the lookup and retention indexes of the audit collection.
func (r *AuditRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	ttl := options.Index()
	if r.retention > 0 {
		ttl.SetExpireAfterSeconds(int32(r.retention / time.Second))
	}

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "client", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "kind", Value: 1}}},
		{Keys: bson.D{{Key: "timestamp", Value: 1}}, Options: ttl},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
