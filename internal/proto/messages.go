package proto

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// Request keys inside the structpb envelopes.
const (
	keyCollection = "collection"
	keyID         = "id"
	keyFields     = "fields"
	keyUserID     = "user_id"
)

// PingOK is the status returned by a healthy server.
const PingOK = "OK"

var ErrMalformedMessage = errors.New("malformed message")

// Document is a remote record: server-assigned id plus its field map.
type Document struct {
	ID     string
	Fields map[string]any
}

type CreateRequest struct {
	Collection string
	Fields     map[string]any
}

type UpdateRequest struct {
	Collection string
	ID         string
	Fields     map[string]any
}

type QueryRequest struct {
	Collection string
	UserID     string
}

func (r CreateRequest) Marshal() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		keyCollection: r.Collection,
		keyFields:     r.Fields,
	})
}

func (r UpdateRequest) Marshal() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		keyCollection: r.Collection,
		keyID:         r.ID,
		keyFields:     r.Fields,
	})
}

func (r QueryRequest) Marshal() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		keyCollection: r.Collection,
		keyUserID:     r.UserID,
	})
}

func ParseCreateRequest(s *structpb.Struct) (CreateRequest, error) {
	m := s.AsMap()
	collection, err := stringField(m, keyCollection)
	if err != nil {
		return CreateRequest{}, err
	}
	fields, err := mapField(m, keyFields)
	if err != nil {
		return CreateRequest{}, err
	}
	return CreateRequest{Collection: collection, Fields: fields}, nil
}

func ParseUpdateRequest(s *structpb.Struct) (UpdateRequest, error) {
	m := s.AsMap()
	collection, err := stringField(m, keyCollection)
	if err != nil {
		return UpdateRequest{}, err
	}
	id, err := stringField(m, keyID)
	if err != nil {
		return UpdateRequest{}, err
	}
	fields, err := mapField(m, keyFields)
	if err != nil {
		return UpdateRequest{}, err
	}
	return UpdateRequest{Collection: collection, ID: id, Fields: fields}, nil
}

func ParseQueryRequest(s *structpb.Struct) (QueryRequest, error) {
	m := s.AsMap()
	collection, err := stringField(m, keyCollection)
	if err != nil {
		return QueryRequest{}, err
	}
	userID, err := stringField(m, keyUserID)
	if err != nil {
		return QueryRequest{}, err
	}
	return QueryRequest{Collection: collection, UserID: userID}, nil
}

// MarshalDocuments encodes docs as a list of {"id", "fields"} structs.
func MarshalDocuments(docs []Document) (*structpb.ListValue, error) {
	items := make([]any, 0, len(docs))
	for _, d := range docs {
		items = append(items, map[string]any{keyID: d.ID, keyFields: d.Fields})
	}
	return structpb.NewList(items)
}

func ParseDocuments(l *structpb.ListValue) ([]Document, error) {
	docs := make([]Document, 0, len(l.GetValues()))
	for i, v := range l.GetValues() {
		s := v.GetStructValue()
		if s == nil {
			return nil, fmt.Errorf("%w: document %d is not a struct", ErrMalformedMessage, i)
		}
		m := s.AsMap()
		id, err := stringField(m, keyID)
		if err != nil {
			return nil, err
		}
		fields, err := mapField(m, keyFields)
		if err != nil {
			return nil, err
		}
		docs = append(docs, Document{ID: id, Fields: fields})
	}
	return docs, nil
}

func stringField(m map[string]any, key string) (string, error) {
	v, ok := m[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %q must be a non-empty string", ErrMalformedMessage, key)
	}
	return v, nil
}

func mapField(m map[string]any, key string) (map[string]any, error) {
	v, ok := m[key].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %q must be an object", ErrMalformedMessage, key)
	}
	return v, nil
}
