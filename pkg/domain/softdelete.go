package domain

import "time"

// SoftDeletable is an entity which is not removed from storage but marked as deleted.
//
// Deleted entities are kept for audit, and are excluded from active queries.
type SoftDeletable interface {
	DeletedAt() *time.Time
	IsDeleted() bool
}

// SoftDelete implements SoftDeletable. Embed it into entities.
type SoftDelete struct {
	Deleted *time.Time
}

var _ SoftDeletable = SoftDelete{}

func (s SoftDelete) DeletedAt() *time.Time {
	return s.Deleted
}

func (s SoftDelete) IsDeleted() bool {
	return s.Deleted != nil
}

// Active filters out deleted entities.
func Active[T SoftDeletable](items []T) []T {
	ret := make([]T, 0, len(items))
	for _, i := range items {
		if i.IsDeleted() {
			continue
		}
		ret = append(ret, i)
	}
	return ret
}
