package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pdfmarker/pdfmarker/internal/annotation"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDocumentRepo stores documents keyed by a string "id" field rather than ObjectIDs,
// so ids stay opaque strings on the wire.
type MongoDocumentRepo struct {
	col *mongo.Collection
}

func NewMongoDocumentRepo(ctx context.Context, col *mongo.Collection) (*MongoDocumentRepo, error) {
	idx := mongo.IndexModel{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)}
	if _, err := col.Indexes().CreateOne(ctx, idx); err != nil {
		return nil, err
	}
	return &MongoDocumentRepo{col: col}, nil
}

func (m *MongoDocumentRepo) Create(ctx context.Context, doc *annotation.Document) (string, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if _, err := m.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", ErrConflict
		}
		return "", err
	}
	return doc.ID, nil
}

func (m *MongoDocumentRepo) Get(ctx context.Context, id string) (*annotation.Document, error) {
	var d annotation.Document
	if err := m.col.FindOne(ctx, bson.M{"id": id}).Decode(&d); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (m *MongoDocumentRepo) List(ctx context.Context) ([]*annotation.Document, error) {
	cur, err := m.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*annotation.Document{}
	for cur.Next(ctx) {
		var d annotation.Document
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, cur.Err()
}

// MongoCommentRepo stores comments in a single collection indexed by document.
type MongoCommentRepo struct {
	col *mongo.Collection
}

func NewMongoCommentRepo(ctx context.Context, col *mongo.Collection) (*MongoCommentRepo, error) {
	_, err := col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "documentId", Value: 1}, {Key: "createdAt", Value: 1}}},
	})
	if err != nil {
		return nil, err
	}
	return &MongoCommentRepo{col: col}, nil
}

func (m *MongoCommentRepo) Create(ctx context.Context, c *annotation.Comment) (string, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if _, err := m.col.InsertOne(ctx, c); err != nil {
		return "", err
	}
	return c.ID, nil
}

func (m *MongoCommentRepo) Get(ctx context.Context, documentID, id string) (*annotation.Comment, error) {
	var c annotation.Comment
	if err := m.col.FindOne(ctx, bson.M{"documentId": documentID, "id": id}).Decode(&c); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (m *MongoCommentRepo) ListByDocument(ctx context.Context, documentID string) ([]*annotation.Comment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := m.col.Find(ctx, bson.M{"documentId": documentID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*annotation.Comment{}
	for cur.Next(ctx) {
		var c annotation.Comment
		if err := cur.Decode(&c); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, cur.Err()
}

func (m *MongoCommentRepo) MarkResolved(ctx context.Context, documentID, id string) (*annotation.Comment, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var c annotation.Comment
	err := m.col.FindOneAndUpdate(ctx,
		bson.M{"documentId": documentID, "id": id},
		bson.M{"$set": bson.M{"isResolved": true}},
		opts,
	).Decode(&c)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}
