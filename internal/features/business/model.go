package business

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ListingConnection links a business to its record on the external
// listing provider.
type ListingConnection struct {
	Connected    bool       `json:"connected" bson:"connected"`
	LocationRef  string     `json:"location_ref,omitempty" bson:"location_ref,omitempty"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty" bson:"last_synced_at,omitempty"`
}

type Address struct {
	Street  string `json:"street,omitempty" bson:"street,omitempty"`
	City    string `json:"city,omitempty" bson:"city,omitempty"`
	State   string `json:"state,omitempty" bson:"state,omitempty"`
	Zip     string `json:"zip,omitempty" bson:"zip,omitempty"`
	Country string `json:"country,omitempty" bson:"country,omitempty"`
}

type DayHours struct {
	Open   string `json:"open,omitempty" bson:"open,omitempty"`
	Close  string `json:"close,omitempty" bson:"close,omitempty"`
	Closed bool   `json:"closed,omitempty" bson:"closed,omitempty"`
}

// Business is the locally-owned entity the sync engine keeps consistent
// with the remote listing.
type Business struct {
	ID          primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	OwnerID     primitive.ObjectID  `json:"owner_id,omitempty" bson:"owner_id,omitempty"`
	Name        string              `json:"name" bson:"name"`
	Category    string              `json:"category,omitempty" bson:"category,omitempty"`
	Phone       string              `json:"phone,omitempty" bson:"phone,omitempty"`
	Website     string              `json:"website,omitempty" bson:"website,omitempty"`
	Description string              `json:"description,omitempty" bson:"description,omitempty"`
	Address     Address             `json:"address" bson:"address"`
	Hours       map[string]DayHours `json:"hours,omitempty" bson:"hours,omitempty"`
	Attributes  map[string]any      `json:"attributes,omitempty" bson:"attributes,omitempty"`

	Listing ListingConnection `json:"listing" bson:"listing"`

	// DataSources records per field whether the current value came from
	// the local app or the remote listing.
	DataSources map[string]string `json:"data_sources,omitempty" bson:"data_sources,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}
