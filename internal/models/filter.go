package models

// BookingFilter narrows a booking list. Nil / empty predicates are not applied.
type BookingFilter struct {
	HallID   *int64         `json:"hall_id,omitempty"`
	District string         `json:"district,omitempty"`
	Status   *BookingStatus `json:"status,omitempty"`
}

// IsEmpty reports whether no predicate is set.
func (f BookingFilter) IsEmpty() bool {
	return f.HallID == nil && f.District == "" && f.Status == nil
}

// Merge overlays the predicates set in other on top of f.
func (f BookingFilter) Merge(other BookingFilter) BookingFilter {
	if other.HallID != nil {
		f.HallID = other.HallID
	}
	if other.District != "" {
		f.District = other.District
	}
	if other.Status != nil {
		f.Status = other.Status
	}
	return f
}

// HallSort orders a hall list. The zero value keeps id order.
type HallSort string

const (
	SortPriceAsc     HallSort = "price_asc"
	SortPriceDesc    HallSort = "price_desc"
	SortCapacityAsc  HallSort = "capacity_asc"
	SortCapacityDesc HallSort = "capacity_desc"
)

// Valid reports whether s is empty or a known order.
func (s HallSort) Valid() bool {
	switch s {
	case "", SortPriceAsc, SortPriceDesc, SortCapacityAsc, SortCapacityDesc:
		return true
	}
	return false
}

// HallQuery narrows and orders a hall list.
type HallQuery struct {
	ApprovedOnly bool     `json:"approved_only,omitempty"`
	District     string   `json:"district,omitempty"` // без учета регистра
	Search       string   `json:"search,omitempty"`   // подстрока имени или адреса
	Sort         HallSort `json:"sort,omitempty"`
}
