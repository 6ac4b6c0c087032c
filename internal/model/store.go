package model

import "time"

// Store represents a retailer/storefront as stored in the `stores` table.
// StoreID is assigned by the pricing API and stays stable across
// ingestion runs, so it is used as the natural key for upserts.
//
// Fields:
//  StoreID   – primary key, external identifier.
//  Name      – display name of the storefront.
//  IsActive  – whether the storefront is currently active upstream.
//  CreatedAt – timestamp of creation.
//  UpdatedAt – timestamp of last update.
type Store struct {
	StoreID   int       // stores.store_id
	Name      string    // stores.name
	IsActive  bool      // stores.is_active
	CreatedAt time.Time // stores.created_at
	UpdatedAt time.Time // stores.updated_at
}
