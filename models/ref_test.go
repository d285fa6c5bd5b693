package models

import (
	"encoding/json"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestRefJSONAcceptsIDOrObject(t *testing.T) {
	var p struct {
		Author Ref[User] `json:"author"`
		Hub    Ref[Hub]  `json:"hub"`
	}
	if err := json.Unmarshal([]byte(`{"author":"u-1","hub":{"id":"h-9","name":"ICML"}}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := ResolveID(p.Author); got != "u-1" {
		t.Fatalf("expected author u-1, got %q", got)
	}
	if got := ResolveID(p.Hub); got != "h-9" {
		t.Fatalf("expected hub h-9, got %q", got)
	}
	if p.Hub.Entity == nil || p.Hub.Entity.Name != "ICML" {
		t.Fatalf("expected hub entity to be populated, got %+v", p.Hub.Entity)
	}
}

func TestRefJSONLegacyUnderscoreID(t *testing.T) {
	var r Ref[User]
	if err := json.Unmarshal([]byte(`{"_id":"legacy","name":"Ada"}`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !r.Is("legacy") {
		t.Fatalf("expected legacy id, got %q", ResolveID(r))
	}
}

func TestRefJSONNullIsZero(t *testing.T) {
	var r Ref[Hub]
	if err := json.Unmarshal([]byte(`null`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !r.IsZero() {
		t.Fatalf("expected zero ref")
	}
	out, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != "null" {
		t.Fatalf("expected null, got %s", out)
	}
}

func TestRefBSONStoresOnlyID(t *testing.T) {
	type doc struct {
		Owner Ref[User] `bson:"owner"`
	}
	raw, err := bson.Marshal(doc{Owner: Resolved(&User{ID: "u-7", Name: "Grace"})})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got := bson.Raw(raw).Lookup("owner").StringValue(); got != "u-7" {
		t.Fatalf("expected owner persisted as id, got %q", got)
	}

	var decoded doc
	if err := bson.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Owner.Entity != nil || decoded.Owner.ID != "u-7" {
		t.Fatalf("unexpected decoded ref %+v", decoded.Owner)
	}
}

func TestRefBSONEmbeddedDocument(t *testing.T) {
	raw, err := bson.Marshal(bson.M{"owner": bson.M{"_id": "u-3", "name": "Lin"}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded struct {
		Owner Ref[User] `bson:"owner"`
	}
	if err := bson.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !decoded.Owner.Is("u-3") {
		t.Fatalf("expected u-3, got %q", decoded.Owner.ID)
	}
}

func TestPaperAuthorIDsDeduplicates(t *testing.T) {
	p := Paper{
		MainAuthor:          RefTo[User]("a"),
		CorrespondingAuthor: RefTo[User]("a"),
		SubmittedBy:         RefTo[User]("b"),
		CoAuthors:           []Ref[User]{RefTo[User]("c"), RefTo[User]("b"), {}},
	}
	ids := p.AuthorIDs()
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Fatalf("unexpected author ids %v", ids)
	}
	if p.IsAuthor("c") {
		t.Fatalf("co-authors must not act as authors")
	}
}
