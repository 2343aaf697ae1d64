package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectMongoDB(cfg *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	// Test connection
	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	// Create indexes
	err = createIndexes(client, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexes: %v", err)
	}

	return client, nil
}

func createIndexes(client *mongo.Client, dbName string) error {
	db := client.Database(dbName)

	// Users collection indexes
	usersCollection := db.Collection("users")
	userIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err := usersCollection.Indexes().CreateMany(context.Background(), userIndexes)
	if err != nil {
		return err
	}

	// RFPs collection indexes
	rfpsCollection := db.Collection("rfps")
	rfpIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "updated_at", Value: 1}},
		},
	}
	_, err = rfpsCollection.Indexes().CreateMany(context.Background(), rfpIndexes)
	if err != nil {
		return err
	}

	// App settings: single active row, read before every upload attempt
	settingsCollection := db.Collection("app_settings")
	settingsIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "updated_at", Value: -1}},
		},
	}
	_, err = settingsCollection.Indexes().CreateMany(context.Background(), settingsIndexes)
	if err != nil {
		return err
	}

	// Analysis results, written by the downstream engine
	analysisCollection := db.Collection("analysis_results")
	analysisIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "rfp_id", Value: 1}}},
		{Keys: bson.D{{Key: "company_profile_id", Value: 1}}},
	}
	_, err = analysisCollection.Indexes().CreateMany(context.Background(), analysisIndexes)
	if err != nil {
		return err
	}

	// Q&A logs, written by chat
	qaLogsCollection := db.Collection("qa_logs")
	qaLogIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "rfp_id", Value: 1}}},
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
	}
	_, err = qaLogsCollection.Indexes().CreateMany(context.Background(), qaLogIndexes)
	if err != nil {
		return err
	}

	return nil
}
