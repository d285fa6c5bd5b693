package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Identifiable is implemented by every document that can be referenced.
type Identifiable interface {
	GetID() string
}

// Ref points at another document either by id or by its loaded value.
// Stores always persist the id; the entity is only filled for responses.
type Ref[T Identifiable] struct {
	ID     string
	Entity *T
}

// RefTo builds an unresolved reference.
func RefTo[T Identifiable](id string) Ref[T] {
	return Ref[T]{ID: id}
}

// Resolved builds a reference carrying the loaded entity.
func Resolved[T Identifiable](entity *T) Ref[T] {
	if entity == nil {
		return Ref[T]{}
	}
	return Ref[T]{ID: (*entity).GetID(), Entity: entity}
}

// ResolveID returns the identifier regardless of how the reference was loaded.
func ResolveID[T Identifiable](r Ref[T]) string {
	if r.Entity != nil {
		if id := (*r.Entity).GetID(); id != "" {
			return id
		}
	}
	return r.ID
}

// IsZero reports whether the reference points at nothing.
func (r Ref[T]) IsZero() bool {
	return ResolveID(r) == ""
}

// Is reports whether the reference points at id.
func (r Ref[T]) Is(id string) bool {
	return id != "" && ResolveID(r) == id
}

func (r Ref[T]) MarshalJSON() ([]byte, error) {
	if r.Entity != nil {
		return json.Marshal(r.Entity)
	}
	if r.ID == "" {
		return []byte("null"), nil
	}
	return json.Marshal(r.ID)
}

func (r *Ref[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*r = Ref[T]{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		return json.Unmarshal(data, &r.ID)
	}
	if data[0] != '{' {
		return fmt.Errorf("reference must be an id string or an object, got %s", string(data))
	}

	entity := new(T)
	if err := json.Unmarshal(data, entity); err != nil {
		return err
	}
	id := (*entity).GetID()
	if id == "" {
		// legacy documents embed the storage identity as _id
		var raw struct {
			ID string `json:"_id"`
		}
		if err := json.Unmarshal(data, &raw); err == nil {
			id = raw.ID
		}
	}
	r.ID = id
	r.Entity = entity
	return nil
}

func (r Ref[T]) MarshalBSONValue() (bsontype.Type, []byte, error) {
	id := ResolveID(r)
	if id == "" {
		return bson.TypeNull, nil, nil
	}
	return bson.MarshalValue(id)
}

func (r *Ref[T]) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	*r = Ref[T]{}
	raw := bson.RawValue{Type: t, Value: data}

	switch t {
	case bson.TypeNull, bson.TypeUndefined:
		return nil
	case bson.TypeString:
		r.ID = raw.StringValue()
		return nil
	case bson.TypeObjectID:
		r.ID = raw.ObjectID().Hex()
		return nil
	case bson.TypeEmbeddedDocument:
		idVal, err := raw.Document().LookupErr("_id")
		if err != nil {
			return fmt.Errorf("embedded reference has no _id: %w", err)
		}
		if s, ok := idVal.StringValueOK(); ok {
			r.ID = s
			return nil
		}
		if oid, ok := idVal.ObjectIDOK(); ok {
			r.ID = oid.Hex()
			return nil
		}
		return fmt.Errorf("unsupported _id type %s in embedded reference", idVal.Type)
	default:
		return fmt.Errorf("unsupported reference type %s", t)
	}
}

// RefIDs resolves every reference in refs, skipping empty ones.
func RefIDs[T Identifiable](refs []Ref[T]) []string {
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		if id := ResolveID(ref); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
