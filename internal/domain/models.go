package domain

type Category struct {
	ID        string `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	CreatedAt string `db:"created_at" json:"createdAt"`
	UpdatedAt string `db:"updated_at" json:"updatedAt,omitempty"`
}

type Product struct {
	ID            string         `db:"id" json:"id"`
	CategoryID    string         `db:"category_id" json:"categoryId"`
	Name          string         `db:"name" json:"name"`
	Description   string         `db:"description" json:"description"`
	Price         float64        `db:"price" json:"price"`
	Stock         int            `db:"stock" json:"stock"`
	ImagesJSON    string         `db:"images_json" json:"-"`
	Active        bool           `db:"active" json:"active"`
	CreatedAt     string         `db:"created_at" json:"createdAt"`
	UpdatedAt     string         `db:"updated_at" json:"updatedAt,omitempty"`
	ColorVariants []ColorVariant `db:"-" json:"colorVariants,omitempty"`
}

// ColorVariant carries its own stock count. It is adjusted alongside the
// product aggregate but never re-derived from it.
type ColorVariant struct {
	ProductID   string `db:"product_id" json:"-"`
	Name        string `db:"name" json:"name"`
	Code        string `db:"code" json:"code"`
	Stock       int    `db:"stock" json:"stock"`
	IsAvailable bool   `db:"is_available" json:"isAvailable"`
}

// Variant returns the variant whose name matches color, ignoring case.
func (p Product) Variant(color string) (ColorVariant, bool) {
	for _, v := range p.ColorVariants {
		if color != "" && equalFold(v.Name, color) {
			return v, true
		}
	}
	return ColorVariant{}, false
}

type Availability struct {
	Status string `json:"status"` // IN_STOCK | LOW_STOCK | OUT_OF_STOCK
	Qty    int    `json:"qty"`
}
