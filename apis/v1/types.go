package v1

import (
	"errors"
	"fmt"

	"github.com/emrgen/linkstore/internal/rid"
)

var ErrMissingField = errors.New("missing field")

func required(name, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s", ErrMissingField, name)
	}

	return nil
}

func validRID(name, value string) error {
	if err := required(name, value); err != nil {
		return err
	}
	if _, err := rid.Parse(value); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	return nil
}

func validRIDs(name string, values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("%w: %s", ErrMissingField, name)
	}
	for _, v := range values {
		if err := validRID(name, v); err != nil {
			return err
		}
	}

	return nil
}

// Bag describes a link bag of a record.
type Bag struct {
	Size     int    `json:"size"`
	Embedded bool   `json:"embedded"`
	Tree     string `json:"tree,omitempty"`
}

type Record struct {
	Id      string         `json:"id"`
	Class   string         `json:"class"`
	Version int64          `json:"version"`
	Fields  map[string]any `json:"fields,omitempty"`
	Bags    map[string]Bag `json:"bags,omitempty"`
}

type CreateRecordRequest struct {
	Cluster int32               `json:"cluster"`
	Class   string              `json:"class"`
	Fields  map[string]any      `json:"fields,omitempty"`
	Links   map[string][]string `json:"links,omitempty"`
}

func (r *CreateRecordRequest) Validate() error {
	if r.Cluster < 0 {
		return fmt.Errorf("cluster must not be negative: %d", r.Cluster)
	}
	if err := required("class", r.Class); err != nil {
		return err
	}
	for field, links := range r.Links {
		if err := validRIDs("links."+field, links); err != nil {
			return err
		}
	}

	return nil
}

type CreateRecordResponse struct {
	Record *Record `json:"record"`
}

type GetRecordRequest struct {
	Id string `json:"id"`
}

func (r *GetRecordRequest) Validate() error {
	return validRID("id", r.Id)
}

type GetRecordResponse struct {
	Record *Record `json:"record"`
}

type DeleteRecordRequest struct {
	Id string `json:"id"`
}

func (r *DeleteRecordRequest) Validate() error {
	return validRID("id", r.Id)
}

type DeleteRecordResponse struct {
	Id string `json:"id"`
}

type AddLinksRequest struct {
	Id    string   `json:"id"`
	Field string   `json:"field"`
	Links []string `json:"links"`
}

func (r *AddLinksRequest) Validate() error {
	if err := validRID("id", r.Id); err != nil {
		return err
	}
	if err := required("field", r.Field); err != nil {
		return err
	}

	return validRIDs("links", r.Links)
}

type AddLinksResponse struct {
	Bag Bag `json:"bag"`
}

type RemoveLinksRequest struct {
	Id    string   `json:"id"`
	Field string   `json:"field"`
	Links []string `json:"links"`
}

func (r *RemoveLinksRequest) Validate() error {
	if err := validRID("id", r.Id); err != nil {
		return err
	}
	if err := required("field", r.Field); err != nil {
		return err
	}

	return validRIDs("links", r.Links)
}

type RemoveLinksResponse struct {
	// Removed counts the links that were present.
	Removed int `json:"removed"`
	Bag     Bag `json:"bag"`
}

type ListLinksRequest struct {
	Id     string `json:"id"`
	Field  string `json:"field"`
	Offset int    `json:"offset,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

func (r *ListLinksRequest) Validate() error {
	if err := validRID("id", r.Id); err != nil {
		return err
	}
	if r.Offset < 0 || r.Limit < 0 {
		return errors.New("offset and limit must not be negative")
	}

	return required("field", r.Field)
}

type Link struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary,omitempty"`
}

type ListLinksResponse struct {
	Links []Link `json:"links"`
	Bag   Bag    `json:"bag"`
}

type DefineIndexRequest struct {
	Name   string   `json:"name"`
	Class  string   `json:"class"`
	Fields []string `json:"fields"`
}

func (r *DefineIndexRequest) Validate() error {
	if err := required("name", r.Name); err != nil {
		return err
	}
	if err := required("class", r.Class); err != nil {
		return err
	}
	if len(r.Fields) == 0 {
		return fmt.Errorf("%w: fields", ErrMissingField)
	}

	return nil
}

type DefineIndexResponse struct {
	Name string `json:"name"`
	Keys int    `json:"keys"`
}

type QueryIndexRequest struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

func (r *QueryIndexRequest) Validate() error {
	return required("name", r.Name)
}

type QueryIndexResponse struct {
	Records []string `json:"records"`
}

type AuditTreesRequest struct{}

type TreeDrift struct {
	Tree     string `json:"tree"`
	Owner    string `json:"owner"`
	Field    string `json:"field"`
	Counted  int64  `json:"counted"`
	Stored   int64  `json:"stored"`
	Orphaned bool   `json:"orphaned"`
}

type AuditTreesResponse struct {
	Trees  int         `json:"trees"`
	Drifts []TreeDrift `json:"drifts"`
}
