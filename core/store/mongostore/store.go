// Package mongostore implements core/store.Store on top of MongoDB,
// storing each key's bytes and metadata as one document keyed by the key's
// string path.
package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/liquers/liquers-go/core/lqerror"
	"github.com/liquers/liquers-go/core/metadata"
	"github.com/liquers/liquers-go/core/query"
	"github.com/liquers/liquers-go/core/store"
)

const (
	defaultCollection = "liquers_store"
	defaultOpTimeout  = 10 * time.Second
)

// Options configures a Store.
type Options struct {
	Client     *mongodriver.Client
	Database   string
	Collection string
	// KeyPrefix restricts the store to keys under this prefix; empty
	// claims all keys.
	KeyPrefix query.Key
	Timeout   time.Duration
}

// Store is a store.Store backed by a single Mongo collection. Each
// document's "_id" is the key's "/"-joined path; "path" carries the same
// value (indexed) so directory operations can prefix-match it.
// RemoveDirectory deletes the whole subtree; it does not require the
// directory to be empty.
type Store struct {
	coll    *mongodriver.Collection
	prefix  query.Key
	timeout time.Duration
}

var _ store.Store = (*Store)(nil)

// New returns a Store, creating the backing collection's indexes if
// necessary.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	coll := opts.Client.Database(opts.Database).Collection(collName)
	ictx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	index := mongodriver.IndexModel{
		Keys: bson.D{{Key: "path", Value: 1}},
	}
	if _, err := coll.Indexes().CreateOne(ictx, index); err != nil {
		return nil, err
	}
	return &Store{coll: coll, prefix: opts.KeyPrefix, timeout: timeout}, nil
}

type document struct {
	ID       string          `bson:"_id"`
	Path     string          `bson:"path"`
	Data     []byte          `bson:"data,omitempty"`
	HasData  bool            `bson:"has_data"`
	IsDir    bool            `bson:"is_dir"`
	Metadata *recordDocument `bson:"metadata,omitempty"`
}

// recordDocument mirrors metadata.Record for BSON storage; it is kept
// separate from Record so the store's on-disk shape doesn't couple to the
// in-memory Go type's field tags.
type recordDocument struct {
	Query          string `bson:"query"`
	Status         string `bson:"status"`
	TypeIdentifier string `bson:"type_identifier"`
	DataFormat     string `bson:"data_format"`
	Message        string `bson:"message"`
	IsError        bool   `bson:"is_error"`
	ErrorKind      string `bson:"error_kind,omitempty"`
	ErrorMessage   string `bson:"error_message,omitempty"`
	MediaType      string `bson:"media_type"`
	Filename       string `bson:"filename"`
	FileSize       int64  `bson:"file_size"`
	IsDir          bool   `bson:"is_dir"`
	UnicodeIcon    string `bson:"unicode_icon"`
}

func toDocument(m *metadata.Record) *recordDocument {
	if m == nil {
		return nil
	}
	d := &recordDocument{
		Query:          m.Query,
		Status:         string(m.Status),
		TypeIdentifier: m.TypeIdentifier,
		DataFormat:     m.DataFormat,
		Message:        m.Message,
		IsError:        m.IsError,
		MediaType:      m.MediaType,
		Filename:       m.Filename,
		FileSize:       m.FileSize,
		IsDir:          m.IsDir,
		UnicodeIcon:    m.UnicodeIcon,
	}
	if m.ErrorData != nil {
		d.ErrorKind = string(m.ErrorData.Kind)
		d.ErrorMessage = m.ErrorData.Message
	}
	return d
}

func fromDocument(d *recordDocument) *metadata.Record {
	if d == nil {
		return metadata.New()
	}
	m := &metadata.Record{
		Query:          d.Query,
		Status:         metadata.Status(d.Status),
		TypeIdentifier: d.TypeIdentifier,
		DataFormat:     d.DataFormat,
		Message:        d.Message,
		IsError:        d.IsError,
		MediaType:      d.MediaType,
		Filename:       d.Filename,
		FileSize:       d.FileSize,
		IsDir:          d.IsDir,
		UnicodeIcon:    d.UnicodeIcon,
	}
	if d.IsError {
		m.ErrorData = lqerror.New(lqerror.Kind(d.ErrorKind), d.ErrorMessage)
	}
	return m
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Store) StoreName() string {
	if s.prefix.IsEmpty() {
		return "mongo"
	}
	return "mongo:" + s.prefix.String()
}

func (s *Store) KeyPrefix() query.Key {
	return s.prefix
}

func (s *Store) IsSupported(_ context.Context, key query.Key) bool {
	return key.HasPrefix(s.prefix)
}

func (s *Store) Get(ctx context.Context, key query.Key) ([]byte, *metadata.Record, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var doc document
	err := s.coll.FindOne(ctx, bson.M{"_id": key.String()}).Decode(&doc)
	if errors.Is(err, mongodriver.ErrNoDocuments) || (err == nil && !doc.HasData) {
		return nil, nil, lqerror.Errorf(lqerror.KindKeyNotFound, "key %q not found", key.String())
	}
	if err != nil {
		return nil, nil, lqerror.NewWithCause(lqerror.KindKeyReadError, "read key from mongo", err)
	}
	return doc.Data, fromDocument(doc.Metadata), nil
}

func (s *Store) GetBytes(ctx context.Context, key query.Key) ([]byte, error) {
	data, _, err := s.Get(ctx, key)
	return data, err
}

func (s *Store) GetMetadata(ctx context.Context, key query.Key) (*metadata.Record, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var doc document
	err := s.coll.FindOne(ctx, bson.M{"_id": key.String()}).Decode(&doc)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return nil, lqerror.Errorf(lqerror.KindKeyNotFound, "key %q not found", key.String())
	}
	if err != nil {
		return nil, lqerror.NewWithCause(lqerror.KindKeyReadError, "read metadata from mongo", err)
	}
	return fromDocument(doc.Metadata), nil
}

func (s *Store) Set(ctx context.Context, key query.Key, data []byte, meta *metadata.Record) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	update := bson.M{
		"$set": bson.M{
			"path":     key.String(),
			"data":     data,
			"has_data": true,
		},
	}
	if meta != nil {
		update["$set"].(bson.M)["metadata"] = toDocument(meta)
	}
	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": key.String()}, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return lqerror.NewWithCause(lqerror.KindKeyWriteError, "write key to mongo", err)
	}
	return nil
}

func (s *Store) SetMetadata(ctx context.Context, key query.Key, meta *metadata.Record) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	update := bson.M{"$set": bson.M{"path": key.String(), "metadata": toDocument(meta)}}
	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": key.String()}, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return lqerror.NewWithCause(lqerror.KindKeyWriteError, "write metadata to mongo", err)
	}
	return nil
}

func (s *Store) Contains(ctx context.Context, key query.Key) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	n, err := s.coll.CountDocuments(ctx, bson.M{"_id": key.String()})
	if err != nil {
		return false, lqerror.NewWithCause(lqerror.KindKeyReadError, "count documents in mongo", err)
	}
	return n > 0, nil
}

func (s *Store) Remove(ctx context.Context, key query.Key) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": key.String()})
	if err != nil {
		return lqerror.NewWithCause(lqerror.KindKeyWriteError, "delete key from mongo", err)
	}
	return nil
}

func (s *Store) RemoveDirectory(ctx context.Context, key query.Key) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	filter := bson.M{"$or": bson.A{
		bson.M{"_id": key.String()},
		bson.M{"path": bson.M{"$regex": "^" + regexpQuoteMeta(key.String()) + "/"}},
	}}
	_, err := s.coll.DeleteMany(ctx, filter)
	if err != nil {
		return lqerror.NewWithCause(lqerror.KindKeyWriteError, "delete directory from mongo", err)
	}
	return nil
}

func (s *Store) Makedir(ctx context.Context, key query.Key) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	update := bson.M{"$set": bson.M{"path": key.String(), "is_dir": true}}
	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": key.String()}, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return lqerror.NewWithCause(lqerror.KindKeyWriteError, "create directory in mongo", err)
	}
	return nil
}

// descendantPaths returns the paths of every document strictly below key.
func (s *Store) descendantPaths(ctx context.Context, key query.Key) ([]query.Key, error) {
	filter := bson.M{"path": bson.M{"$regex": "^" + regexpQuoteMeta(key.String()) + "/"}}
	if key.IsEmpty() {
		filter = bson.M{}
	}
	cur, err := s.coll.Find(ctx, filter, options.Find().SetProjection(bson.M{"path": 1}))
	if err != nil {
		return nil, lqerror.NewWithCause(lqerror.KindKeyReadError, "list directory in mongo", err)
	}
	defer cur.Close(ctx)
	var keys []query.Key
	for cur.Next(ctx) {
		var doc struct {
			Path string `bson:"path"`
		}
		if err := cur.Decode(&doc); err != nil {
			continue
		}
		candidate := query.ParseKey(doc.Path)
		if len(candidate) > len(key) && candidate.HasPrefix(key) {
			keys = append(keys, candidate)
		}
	}
	return keys, cur.Err()
}

func (s *Store) Keys(ctx context.Context) ([]query.Key, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	keys, err := s.descendantPaths(ctx, s.prefix)
	if err != nil {
		return nil, err
	}
	if !s.prefix.IsEmpty() {
		if ok, err := s.Contains(ctx, s.prefix); err == nil && ok {
			keys = append([]query.Key{s.prefix}, keys...)
		}
	}
	return keys, nil
}

func (s *Store) Listdir(ctx context.Context, key query.Key) ([]string, error) {
	children, err := s.ListdirKeys(ctx, key)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(children))
	for i, c := range children {
		names[i] = c.Filename()
	}
	return names, nil
}

func (s *Store) ListdirKeys(ctx context.Context, key query.Key) ([]query.Key, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	descendants, err := s.descendantPaths(ctx, key)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var children []query.Key
	for _, d := range descendants {
		child := d[:len(key)+1]
		if seen[child.String()] {
			continue
		}
		seen[child.String()] = true
		children = append(children, child)
	}
	return children, nil
}

func (s *Store) ListdirKeysDeep(ctx context.Context, key query.Key) ([]query.Key, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	stored, err := s.descendantPaths(ctx, key)
	if err != nil {
		return nil, err
	}
	// Directories implied by deeper paths are descendants too.
	seen := make(map[string]bool)
	var descendants []query.Key
	for _, k := range stored {
		for n := len(key) + 1; n <= len(k); n++ {
			if d := k[:n]; !seen[d.String()] {
				seen[d.String()] = true
				descendants = append(descendants, d)
			}
		}
	}
	return descendants, nil
}

func (s *Store) IsDir(ctx context.Context, key query.Key) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var doc document
	err := s.coll.FindOne(ctx, bson.M{"_id": key.String()}).Decode(&doc)
	if err == nil && doc.IsDir {
		return true, nil
	}
	if err != nil && !errors.Is(err, mongodriver.ErrNoDocuments) {
		return false, lqerror.NewWithCause(lqerror.KindKeyReadError, "read key from mongo", err)
	}
	children, err := s.ListdirKeys(ctx, key)
	if err != nil {
		return false, err
	}
	return len(children) > 0, nil
}

// regexpQuoteMeta escapes regex metacharacters for use in a Mongo $regex
// prefix filter; key paths contain no newlines, so this need not handle
// them specially.
func regexpQuoteMeta(s string) string {
	special := `\.+*?()|[]{}^$`
	out := make([]byte, 0, len(s)*2)
	for i := 0; i < len(s); i++ {
		c := s[i]
		for _, sp := range []byte(special) {
			if c == sp {
				out = append(out, '\\')
				break
			}
		}
		out = append(out, c)
	}
	return string(out)
}
