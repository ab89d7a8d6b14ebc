package models

import "time"

// ProductMetadata is the per-product taxonomy snapshot, upserted on catalog
// sync. ProductID is the commerce product id.
type ProductMetadata struct {
	ProductID string `gorm:"column:product_id;primaryKey"`
	Title     string `gorm:"column:title"`

	AnimalType    string `gorm:"column:animal_type;index"`
	AnimalDisplay string `gorm:"column:animal_display"`
	AnimalIcon    string `gorm:"column:animal_icon"`

	FlavorPrimary   string `gorm:"column:flavor_primary;index"`
	FlavorSecondary string `gorm:"column:flavor_secondary"`
	FlavorDisplay   string `gorm:"column:flavor_display"`
	FlavorIcon      string `gorm:"column:flavor_icon"`

	ProteinCategory string `gorm:"column:protein_category;index"`

	// ForceRankable lets the operator open a product for ranking without a
	// purchase.
	ForceRankable bool `gorm:"column:force_rankable;not null;default:false"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
