package model

import (
	"encoding/json"
	"time"
)

// SKU represents a purchasable product variant with its own stock
// count.  The catalog service owns most SKU data; this core only
// ever mutates `stock_quantity`, and only through the inventory
// ledger (see InventoryTransaction).  Prices are integer cents.
//
// Fields:
//  ID                   – primary key identifier.
//  ProductID            – owning product.
//  VendorID             – vendor profile that owns the product.
//  SKUCode              – unique human-readable code (e.g. "TSHIRT-RED-M").
//  Attributes           – free-form variant attributes as JSON.
//  PriceAdjustmentCents – delta applied on top of the product base price.
//  StockQuantity        – authoritative on-hand count; never negative.
//  IsActive             – whether the SKU can be sold.
type SKU struct {
	ID                   uint64          // skus.id
	ProductID            uint64          // skus.product_id
	VendorID             uint64          // skus.vendor_id
	SKUCode              string          // skus.sku_code
	Attributes           json.RawMessage // skus.attributes (JSON)
	PriceAdjustmentCents int64           // skus.price_adjustment_cents
	StockQuantity        int64           // skus.stock_quantity
	IsActive             bool            // skus.is_active
	CreatedAt            time.Time       // skus.created_at
	UpdatedAt            time.Time       // skus.updated_at
}

// Inventory transaction types.  The signed quantity carries the
// direction; the type records intent for auditing.
const (
	TxPurchase   = "purchase"   // vendor restock, positive quantity
	TxSale       = "sale"       // checkout settlement, negative quantity
	TxReturn     = "return"     // customer return, positive quantity
	TxAdjustment = "adjustment" // manual correction, either sign
)

// InventoryTransaction is an immutable, append-only record of a
// stock change.  The sum of Quantity over all transactions for a
// SKU must always equal that SKU's StockQuantity; rows are never
// updated or deleted.
//
// Fields:
//  ID        – primary key identifier.
//  SKUID     – SKU whose stock changed.
//  Type      – one of the Tx* constants above.
//  Quantity  – signed stock delta.
//  Reference – correlating identifier, e.g. an order id.
//  Note      – optional free-form annotation.
//  CreatedBy – acting user, nil for system/guest activity.
//  CreatedAt – when the change was applied.
type InventoryTransaction struct {
	ID        uint64    // inventory_transactions.id
	SKUID     uint64    // inventory_transactions.sku_id
	Type      string    // inventory_transactions.transaction_type
	Quantity  int64     // inventory_transactions.quantity (signed)
	Reference string    // inventory_transactions.reference
	Note      string    // inventory_transactions.note
	CreatedBy *uint64   // inventory_transactions.created_by (nullable)
	CreatedAt time.Time // inventory_transactions.created_at
}
