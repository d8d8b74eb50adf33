package scenario

import (
	"context"
	"errors"
	"fmt"
	"os"

	"git.fiblab.net/sim/walkability/optimizer"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gopkg.in/yaml.v3"
)

// 集合中每个文档的class字段
const (
	classMeta        = "meta"
	classNode        = "node"
	classEdge        = "edge"
	classAmenityType = "amenity_type"
	classResidential = "residential"
	classCandidate   = "candidate"
	classExisting    = "existing"
)

type item struct {
	Class string   `bson:"class"`
	Data  bson.Raw `bson:"data"`
}

type metaDoc struct {
	Name   string `bson:"name"`
	Config Config `bson:"config"`
}

type idDoc struct {
	ID int64 `bson:"id"`
}

// Store loads scenarios and saves reports from YAML files or MongoDB
// collections. The MongoDB client is created on first use.
type Store struct {
	uri    string
	client *mongo.Client
}

func NewStore(mongoURI string) *Store {
	return &Store{uri: mongoURI}
}

func (s *Store) lazyClient(ctx context.Context) (*mongo.Client, error) {
	if s.client != nil {
		return s.client, nil
	}
	if s.uri == "" {
		return nil, errors.New("mongo uri is empty")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(s.uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	s.client = client
	return client, nil
}

func (s *Store) coll(ctx context.Context, path *Path) (*mongo.Collection, error) {
	client, err := s.lazyClient(ctx)
	if err != nil {
		return nil, err
	}
	return client.Database(path.DB).Collection(path.Coll), nil
}

func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	err := s.client.Disconnect(ctx)
	s.client = nil
	return err
}

func (s *Store) Load(ctx context.Context, path *Path) (*Document, error) {
	if path == nil {
		return nil, errors.New("empty scenario path")
	}
	if path.IsFile() {
		return LoadFile(path.File)
	}
	coll, err := s.coll(ctx, path)
	if err != nil {
		return nil, err
	}
	cur, err := coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	doc := &Document{}
	for cur.Next(ctx) {
		var it item
		if err := cur.Decode(&it); err != nil {
			return nil, err
		}
		if err := doc.add(it); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	log.Infof("loaded scenario %s from %s", doc.Name, path)
	return doc, nil
}

func (d *Document) add(it item) error {
	switch it.Class {
	case classMeta:
		var m metaDoc
		if err := bson.Unmarshal(it.Data, &m); err != nil {
			return err
		}
		d.Name, d.Config = m.Name, m.Config
	case classNode:
		var n NodeDoc
		if err := bson.Unmarshal(it.Data, &n); err != nil {
			return err
		}
		d.Nodes = append(d.Nodes, n)
	case classEdge:
		var e EdgeDoc
		if err := bson.Unmarshal(it.Data, &e); err != nil {
			return err
		}
		d.Edges = append(d.Edges, e)
	case classAmenityType:
		var a AmenityTypeDoc
		if err := bson.Unmarshal(it.Data, &a); err != nil {
			return err
		}
		d.Amenities = append(d.Amenities, a)
	case classResidential:
		var r idDoc
		if err := bson.Unmarshal(it.Data, &r); err != nil {
			return err
		}
		d.Residentials = append(d.Residentials, r.ID)
	case classCandidate:
		var c optimizer.CandidateSite
		if err := bson.Unmarshal(it.Data, &c); err != nil {
			return err
		}
		d.Candidates = append(d.Candidates, c)
	case classExisting:
		var e optimizer.ExistingAmenity
		if err := bson.Unmarshal(it.Data, &e); err != nil {
			return err
		}
		d.Existing = append(d.Existing, e)
	default:
		log.Warnf("skipping document of unknown class %q", it.Class)
	}
	return nil
}

// items splits the document into class/data records for a collection.
func (d *Document) items() ([]any, error) {
	out := make([]any, 0, 1+len(d.Nodes)+len(d.Edges))
	push := func(class string, v any) error {
		raw, err := bson.Marshal(v)
		if err != nil {
			return err
		}
		out = append(out, item{Class: class, Data: raw})
		return nil
	}
	if err := push(classMeta, metaDoc{Name: d.Name, Config: d.Config}); err != nil {
		return nil, err
	}
	for _, n := range d.Nodes {
		if err := push(classNode, n); err != nil {
			return nil, err
		}
	}
	for _, e := range d.Edges {
		if err := push(classEdge, e); err != nil {
			return nil, err
		}
	}
	for _, a := range d.Amenities {
		if err := push(classAmenityType, a); err != nil {
			return nil, err
		}
	}
	for _, r := range d.Residentials {
		if err := push(classResidential, idDoc{ID: r}); err != nil {
			return nil, err
		}
	}
	for _, c := range d.Candidates {
		if err := push(classCandidate, c); err != nil {
			return nil, err
		}
	}
	for _, e := range d.Existing {
		if err := push(classExisting, e); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// SaveDocument writes a scenario to a YAML file or replaces a collection.
func (s *Store) SaveDocument(ctx context.Context, path *Path, doc *Document) error {
	if path == nil {
		return errors.New("empty scenario path")
	}
	if path.IsFile() {
		return writeYAML(path.File, doc)
	}
	items, err := doc.items()
	if err != nil {
		return err
	}
	coll, err := s.coll(ctx, path)
	if err != nil {
		return err
	}
	if _, err := coll.DeleteMany(ctx, bson.D{}); err != nil {
		return err
	}
	_, err = coll.InsertMany(ctx, items)
	return err
}

// SaveReports writes run reports to a YAML file or appends them to a
// collection.
func (s *Store) SaveReports(ctx context.Context, path *Path, reports []*Report) error {
	if path == nil {
		return errors.New("empty report path")
	}
	if path.IsFile() {
		return writeYAML(path.File, reports)
	}
	if len(reports) == 0 {
		return nil
	}
	coll, err := s.coll(ctx, path)
	if err != nil {
		return err
	}
	docs := make([]any, len(reports))
	for i, r := range reports {
		docs[i] = r
	}
	if _, err := coll.InsertMany(ctx, docs); err != nil {
		return err
	}
	log.Infof("%d reports saved to %s", len(reports), path)
	return nil
}

func LoadFile(file string) (*Document, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	doc := &Document{}
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", file, err)
	}
	log.Infof("loaded scenario %s from %s", doc.Name, file)
	return doc, nil
}

func writeYAML(file string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(file, data, 0o644)
}
