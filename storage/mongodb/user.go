package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kazimoto/mipango/core/user"
)

type userDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Name         string             `bson:"name"`
	Username     string             `bson:"username,omitempty"`
	Email        string             `bson:"email,omitempty"`
	IsActive     bool               `bson:"is_active"`
	Roles        []string           `bson:"roles,omitempty"`
	PasswordHash []byte             `bson:"password_hash,omitempty"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
	LastLogin    time.Time          `bson:"last_login"`
}

func (d userDoc) toCore() user.User {
	return user.User{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Username:     d.Username,
		Email:        d.Email,
		IsActive:     d.IsActive,
		Roles:        d.Roles,
		PasswordHash: d.PasswordHash,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
		LastLogin:    d.LastLogin,
	}
}

type userRepository struct {
	col *mongo.Collection
}

func NewUserRepository(db *mongo.Database) user.Repository {
	return &userRepository{col: db.Collection(colUsers)}
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	exclIDs := make([]primitive.ObjectID, 0, len(excludedUsers))
	for _, usr := range excludedUsers {
		if oid, err := primitive.ObjectIDFromHex(usr.ID); err == nil {
			exclIDs = append(exclIDs, oid)
		}
	}

	check := func(field, value string, existsErr error) error {
		if value == "" {
			return nil
		}
		filter := bson.M{field: value}
		if len(exclIDs) > 0 {
			filter["_id"] = bson.M{"$nin": exclIDs}
		}
		n, err := repo.col.CountDocuments(ctx, filter)
		if err != nil {
			return errors.Wrap(err, "counting users")
		}
		if n > 0 {
			return existsErr
		}
		return nil
	}

	if err := check("username", username, user.ErrUsernameExists); err != nil {
		return err
	}
	return check("email", email, user.ErrEmailExists)
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	doc := userDoc{
		ID:           primitive.NewObjectID(),
		Name:         usr.Name,
		Username:     usr.Username,
		Email:        usr.Email,
		IsActive:     usr.IsActive,
		Roles:        usr.Roles,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt,
		UpdatedAt:    usr.UpdatedAt,
		LastLogin:    usr.LastLogin,
	}
	if _, err := repo.col.InsertOne(ctx, doc); err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return doc.toCore(), nil
}

func (repo *userRepository) getOne(ctx context.Context, filter bson.M) (user.User, error) {
	var doc userDoc
	if err := repo.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		return user.User{}, trapNoDocsErr(err, user.ErrNotFound)
	}
	return doc.toCore(), nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	oid, err := parseID(id, user.ErrNotFound)
	if err != nil {
		return user.User{}, err
	}
	return repo.getOne(ctx, bson.M{"_id": oid})
}

func (repo *userRepository) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	return repo.getOne(ctx, bson.M{"username": username})
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getOne(ctx, bson.M{"email": email})
}

func (repo *userRepository) GetUserByUsernameOrEmail(ctx context.Context, username string) (user.User, error) {
	return repo.getOne(ctx, bson.M{"$or": bson.A{
		bson.M{"username": username},
		bson.M{"email": username},
	}})
}

func (repo *userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	query := bson.M{}
	if filter.Search != "" {
		re := containsRegex(filter.Search)
		query["$or"] = bson.A{
			bson.M{"name": re},
			bson.M{"username": re},
			bson.M{"email": re},
		}
	}
	if filter.Roles != nil {
		ors := make(bson.A, 0, len(filter.Roles))
		for _, role := range filter.Roles {
			ors = append(ors, bson.M{"roles": prefixRegex(role)})
		}
		query["$and"] = bson.A{bson.M{"$or": ors}}
	}
	if filter.IsActive != nil {
		query["is_active"] = *filter.IsActive
	}
	if !filter.CreatedFrom.IsZero() || !filter.CreatedTo.IsZero() {
		createdAt := bson.M{}
		if !filter.CreatedFrom.IsZero() {
			createdAt["$gte"] = filter.CreatedFrom
		}
		if !filter.CreatedTo.IsZero() {
			createdAt["$lte"] = filter.CreatedTo
		}
		query["created_at"] = createdAt
	}

	cur, err := repo.col.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	var docs []userDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding users")
	}

	users := make([]user.User, 0, len(docs))
	for _, doc := range docs {
		users = append(users, doc.toCore())
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool) (user.User, error) {
	oid, err := parseID(usr.ID, user.ErrNotFound)
	if err != nil {
		return user.User{}, err
	}

	// only save set fields
	set := bson.M{}
	if usr.Name != "" {
		set["name"] = usr.Name
	}
	if usr.Username != "" {
		set["username"] = usr.Username
	}
	if usr.Email != "" {
		set["email"] = usr.Email
	}
	if usr.Roles != nil {
		set["roles"] = usr.Roles
	}
	if usr.PasswordHash != nil {
		set["password_hash"] = usr.PasswordHash
	}
	if isActive != nil {
		set["is_active"] = *isActive
	}
	if !usr.UpdatedAt.IsZero() {
		set["updated_at"] = usr.UpdatedAt
	}
	if !usr.LastLogin.IsZero() {
		set["last_login"] = usr.LastLogin
	}

	var doc userDoc
	err = repo.col.FindOneAndUpdate(
		ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return user.User{}, trapNoDocsErr(err, user.ErrNotFound)
	}
	return doc.toCore(), nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return nil
	}
	_, err := repo.col.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": oids}})
	return errors.Wrap(err, "deleting users")
}
