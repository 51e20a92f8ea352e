package repositories

import (
	"github.com/white/crm-backend/pkg/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Indexes lists the indexes the repositories rely on. Every tenant scoped
// collection leads with tenant_id.
func Indexes() []mongodb.IndexSpec {
	return []mongodb.IndexSpec{
		{Collection: "activities", Model: mongo.IndexModel{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "created_at", Value: -1}}}},
		{Collection: "activities", Model: mongo.IndexModel{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "type", Value: 1}, {Key: "is_completed", Value: 1}}}},
		{Collection: "contacts", Model: mongo.IndexModel{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "first_name", Value: 1}, {Key: "last_name", Value: 1}}}},
		{Collection: "contacts", Model: mongo.IndexModel{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "email", Value: 1}}}},
		{Collection: "pipelines", Model: mongo.IndexModel{Keys: bson.D{{Key: "tenant_id", Value: 1}}}},
		{Collection: "pipelines", Model: mongo.IndexModel{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "is_default", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"is_default": true}),
		}},
		{Collection: "deals", Model: mongo.IndexModel{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "pipeline_id", Value: 1}, {Key: "stage_id", Value: 1}}}},
		{Collection: "emails", Model: mongo.IndexModel{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "created_at", Value: -1}}}},
		{Collection: "emails", Model: mongo.IndexModel{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "message_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"message_id": bson.M{"$type": "string"}}),
		}},
		{Collection: "users", Model: mongo.IndexModel{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)}},
		{Collection: "users", Model: mongo.IndexModel{Keys: bson.D{{Key: "tenant_id", Value: 1}}}},
		{Collection: "sessions", Model: mongo.IndexModel{Keys: bson.D{{Key: "token_hash", Value: 1}}, Options: options.Index().SetUnique(true)}},
		{Collection: "sessions", Model: mongo.IndexModel{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)}},
		{Collection: "social_posts", Model: mongo.IndexModel{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "created_at", Value: -1}}}},
		{Collection: "social_leads", Model: mongo.IndexModel{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "created_at", Value: -1}}}},
	}
}
