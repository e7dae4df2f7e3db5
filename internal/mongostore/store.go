// Package mongostore keeps tree nodes in a MongoDB collection.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"drive-api/internal/models"
	"drive-api/internal/tree"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "nodes"

var _ tree.Store = (*Store)(nil)

type Store struct {
	client *mongo.Client
	nodes  *mongo.Collection
	now    func() time.Time
}

// Open connects to uri and prepares the nodes collection of database.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	s := &Store{
		client: client,
		nodes:  client.Database(database).Collection(collectionName),
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

// ensureIndexes creates the sibling name index. Root nodes store a null
// parent_id, and null compares equal inside a unique index, so names are
// unique at the root as well.
func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.nodes.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "owner_id", Value: 1},
				{Key: "parent_id", Value: 1},
				{Key: "kind", Value: 1},
				{Key: "name", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("sibling_name_uq"),
		},
		{
			Keys:    bson.D{{Key: "parent_id", Value: 1}},
			Options: options.Index().SetName("parent_id_idx"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create node indexes: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func siblingFilter(ownerID int64, parentID *string, kind models.NodeKind, name string) bson.M {
	return bson.M{
		"owner_id":  ownerID,
		"parent_id": tree.NormalizeParent(parentID),
		"kind":      kind,
		"name":      name,
	}
}

func writeError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return tree.ErrConflict
	}
	return err
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (*models.Node, error) {
	var node models.Node
	err := s.nodes.FindOne(ctx, filter).Decode(&node)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &node, nil
}

// deletingField marks a node whose removal has started. Writes under a
// folder check it after they land, and the delete counts children only after
// setting it, so either the delete sees the new child or the child sees the
// mark and is withdrawn.
const deletingField = "deleting"

// checkParent requires parentID to be the root or a folder of the owner that
// is not being deleted.
func (s *Store) checkParent(ctx context.Context, ownerID int64, parentID *string) error {
	if parentID == nil {
		return nil
	}
	var parent struct {
		Kind     models.NodeKind `bson:"kind"`
		Deleting bool            `bson:"deleting"`
	}
	err := s.nodes.FindOne(ctx,
		bson.M{"_id": *parentID, "owner_id": ownerID},
		options.FindOne().SetProjection(bson.M{"kind": 1, deletingField: 1}),
	).Decode(&parent)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("parent folder: %w", tree.ErrNotFound)
	case err != nil:
		return err
	case parent.Kind != models.KindFolder:
		return tree.ErrNotAFolder
	case parent.Deleting:
		return fmt.Errorf("parent folder is being deleted: %w", tree.ErrNotFound)
	}
	return nil
}

// withdraw removes a node that was just inserted under a parent that went
// away, and returns cause.
func (s *Store) withdraw(ctx context.Context, id string, cause error) error {
	if _, err := s.nodes.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return errors.Join(cause, fmt.Errorf("withdraw node %s: %w", id, err))
	}
	return cause
}

func (s *Store) CreateNode(ctx context.Context, node *models.Node) (*models.Node, error) {
	n := *node
	n.ParentID = tree.NormalizeParent(n.ParentID)
	n.CreatedAt = s.now()
	n.UpdatedAt = n.CreatedAt

	if err := s.checkParent(ctx, n.OwnerID, n.ParentID); err != nil {
		return nil, err
	}

	if _, err := s.nodes.InsertOne(ctx, n); err != nil {
		return nil, writeError(err)
	}
	if err := s.checkParent(ctx, n.OwnerID, n.ParentID); err != nil {
		return nil, s.withdraw(ctx, n.ID, err)
	}
	return &n, nil
}

// UpsertFile updates the content of an existing file in one atomic
// find-and-modify, or inserts it. Two concurrent first uploads of the same
// name race on the unique index; the loser retries and becomes the replace.
func (s *Store) UpsertFile(ctx context.Context, arg tree.UpsertFileParams) (*tree.UpsertResult, error) {
	parentID := tree.NormalizeParent(arg.ParentID)
	if err := s.checkParent(ctx, arg.OwnerID, parentID); err != nil {
		return nil, err
	}

	filter := siblingFilter(arg.OwnerID, parentID, models.KindFile, arg.Name)
	for attempt := 0; ; attempt++ {
		now := s.now()
		update := bson.M{
			"$set": bson.M{
				"content_ref": arg.ContentRef,
				"media_type":  arg.MediaType,
				"size_bytes":  arg.SizeBytes,
				"updated_at":  now,
			},
			"$setOnInsert": bson.M{
				"_id":        arg.ID,
				"created_at": now,
			},
		}
		opts := options.FindOneAndUpdate().
			SetUpsert(true).
			SetReturnDocument(options.Before)

		var before models.Node
		err := s.nodes.FindOneAndUpdate(ctx, filter, update, opts).Decode(&before)
		switch {
		case err == nil:
			after, err := s.findOne(ctx, bson.M{"_id": before.ID})
			if err != nil {
				return nil, err
			}
			if after == nil {
				return nil, fmt.Errorf("file %s vanished during upsert: %w", before.ID, tree.ErrNotFound)
			}
			return &tree.UpsertResult{Node: after, Replaced: true, PreviousRef: before.ContentRef}, nil
		case errors.Is(err, mongo.ErrNoDocuments):
			inserted, err := s.findOne(ctx, bson.M{"_id": arg.ID})
			if err != nil {
				return nil, err
			}
			if inserted == nil {
				return nil, fmt.Errorf("file %s vanished during upsert: %w", arg.ID, tree.ErrNotFound)
			}
			if err := s.checkParent(ctx, arg.OwnerID, parentID); err != nil {
				return nil, s.withdraw(ctx, arg.ID, err)
			}
			return &tree.UpsertResult{Node: inserted}, nil
		case mongo.IsDuplicateKeyError(err) && attempt == 0:
			continue
		default:
			return nil, writeError(err)
		}
	}
}

func (s *Store) GetNode(ctx context.Context, ownerID int64, id string) (*models.Node, error) {
	return s.findOne(ctx, bson.M{"_id": id, "owner_id": ownerID})
}

func (s *Store) FindChild(ctx context.Context, ownerID int64, parentID *string, kind models.NodeKind, name string) (*models.Node, error) {
	return s.findOne(ctx, siblingFilter(ownerID, parentID, kind, name))
}

func (s *Store) ListChildren(ctx context.Context, ownerID int64, parentID *string) ([]models.Node, error) {
	filter := bson.M{"owner_id": ownerID, "parent_id": tree.NormalizeParent(parentID)}
	cursor, err := s.nodes.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	nodes := []models.Node{}
	if err := cursor.All(ctx, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

func (s *Store) DeleteNode(ctx context.Context, ownerID int64, id string) (bool, error) {
	filter := bson.M{"_id": id, "owner_id": ownerID}
	err := s.nodes.FindOneAndUpdate(ctx, filter, bson.M{"$set": bson.M{deletingField: true}}).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, err
	}

	children, err := s.nodes.CountDocuments(ctx, bson.M{"parent_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	if children > 0 {
		notEmpty := fmt.Errorf("node %s: %w", id, tree.ErrFolderNotEmpty)
		if _, err := s.nodes.UpdateOne(ctx, filter, bson.M{"$unset": bson.M{deletingField: ""}}); err != nil {
			return false, errors.Join(notEmpty, err)
		}
		return false, notEmpty
	}

	res, err := s.nodes.DeleteOne(ctx, filter)
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (s *Store) RenameNode(ctx context.Context, ownerID int64, id string, name string) (bool, error) {
	res, err := s.nodes.UpdateOne(ctx,
		bson.M{"_id": id, "owner_id": ownerID},
		bson.M{"$set": bson.M{"name": name, "updated_at": s.now()}},
	)
	if err != nil {
		return false, writeError(err)
	}
	return res.MatchedCount > 0, nil
}

func (s *Store) MoveNode(ctx context.Context, ownerID int64, id string, parentID *string, name string) (bool, error) {
	parentID = tree.NormalizeParent(parentID)
	if err := s.checkParent(ctx, ownerID, parentID); err != nil {
		return false, err
	}

	var before models.Node
	err := s.nodes.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "owner_id": ownerID},
		bson.M{"$set": bson.M{"parent_id": parentID, "name": name, "updated_at": s.now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&before)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, writeError(err)
	}

	if err := s.checkParent(ctx, ownerID, parentID); err != nil {
		_, undoErr := s.nodes.UpdateOne(ctx,
			bson.M{"_id": id, "owner_id": ownerID},
			bson.M{"$set": bson.M{"parent_id": before.ParentID, "name": before.Name, "updated_at": before.UpdatedAt}},
		)
		if undoErr != nil {
			return false, errors.Join(err, fmt.Errorf("move node %s back: %w", id, undoErr))
		}
		return false, err
	}
	return true, nil
}
