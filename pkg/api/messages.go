package api

import (
	"encoding/json"

	"github.com/fgrzl/json/polymorphic"
	"github.com/fgrzl/lexkey"
)

func init() {
	polymorphic.Register(func() *PullTrait { return &PullTrait{} })
	polymorphic.Register(func() *PullCollection { return &PullCollection{} })
	polymorphic.Register(func() *GetTrait { return &GetTrait{} })
	polymorphic.Register(func() *UpdateTrait { return &UpdateTrait{} })
	polymorphic.Register(func() *ListCollection { return &ListCollection{} })
	polymorphic.Register(func() *GetCollections { return &GetCollections{} })
	polymorphic.Register(func() *UpsertItem { return &UpsertItem{} })
	polymorphic.Register(func() *DeleteItem { return &DeleteItem{} })
}

// ─── Payloads ─────────────────────────────────────────────────────────────────

// TraitValue is the current value of one trait (light, air quality,
// occupancy, ...) of one device. Payload is the trait-specific document.
type TraitValue struct {
	Device     string          `json:"device"`
	Trait      string          `json:"trait"`
	Payload    json.RawMessage `json:"payload"`
	ChangeTime int64           `json:"change_time,omitempty"`
}

func (v *TraitValue) GetKey() lexkey.LexKey {
	return lexkey.Encode(TRAITS, v.Device, v.Trait)
}

// Item is one member of a keyed collection (alerts, devices, zones, ...).
type Item struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// CollectionChange carries the previous and/or next version of an item.
// A change with NewValue set is an upsert; one with only OldValue is a delete.
type CollectionChange struct {
	Collection string `json:"collection"`
	OldValue   *Item  `json:"old_value,omitempty"`
	NewValue   *Item  `json:"new_value,omitempty"`
	ChangeTime int64  `json:"change_time,omitempty"`
}

func GetItemKey(collection, id string) lexkey.LexKey {
	return lexkey.Encode(ITEMS, collection, id)
}

// ─── Server streams ───────────────────────────────────────────────────────────

// PullTrait streams the current value of a trait followed by every change.
type PullTrait struct {
	Device string `json:"device"`
	Trait  string `json:"trait"`
}

func (m *PullTrait) GetDiscriminator() string {
	return "resourcekit://api/v1/pull_trait"
}

// PullCollection streams the collection as upserts followed by every change.
type PullCollection struct {
	Collection string `json:"collection"`
}

func (m *PullCollection) GetDiscriminator() string {
	return "resourcekit://api/v1/pull_collection"
}

// ListCollection streams the current items of a collection and ends.
type ListCollection struct {
	Collection string `json:"collection"`
}

func (m *ListCollection) GetDiscriminator() string {
	return "resourcekit://api/v1/list_collection"
}

// GetCollections streams the names of every collection and ends.
type GetCollections struct{}

func (m *GetCollections) GetDiscriminator() string {
	return "resourcekit://api/v1/get_collections"
}

// ─── Unary calls ──────────────────────────────────────────────────────────────

type GetTrait struct {
	Device string `json:"device"`
	Trait  string `json:"trait"`
}

func (m *GetTrait) GetDiscriminator() string {
	return "resourcekit://api/v1/get_trait"
}

type UpdateTrait struct {
	Device  string          `json:"device"`
	Trait   string          `json:"trait"`
	Payload json.RawMessage `json:"payload"`
}

func (m *UpdateTrait) GetDiscriminator() string {
	return "resourcekit://api/v1/update_trait"
}

type UpsertItem struct {
	Collection string `json:"collection"`
	Item       *Item  `json:"item"`
}

func (m *UpsertItem) GetDiscriminator() string {
	return "resourcekit://api/v1/upsert_item"
}

type DeleteItem struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

func (m *DeleteItem) GetDiscriminator() string {
	return "resourcekit://api/v1/delete_item"
}
