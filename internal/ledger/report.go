package ledger

import (
	"sort"

	"github.com/samber/lo"

	"github.com/appstract/appstract/internal/component"
)

// Report describes what a Retire or Sweep did to the shared store.
type Report struct {
	// Removed components were deleted from the shared store.
	Removed []component.ID
	// Retained components are still insured by a record with holders.
	Retained []component.ID
	// Failed components could not be removed; their record stays pending.
	Failed map[component.ID]error
	// Retired records were deleted from the ledger.
	Retired []string
	// Pending records have no holders left but still own components.
	Pending []string
	// Orphaned holds the PIDs of exited processes dropped by a sweep.
	Orphaned []int
}

func newReport() *Report {
	return &Report{Failed: map[component.ID]error{}}
}

func (r *Report) sort() {
	r.Removed = sortIDs(lo.Uniq(r.Removed))
	r.Retained = sortIDs(lo.Uniq(r.Retained))
	sort.Strings(r.Retired)
	sort.Strings(r.Pending)
	sort.Ints(r.Orphaned)
}

func sortIDs(ids []component.ID) []component.ID {
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
	return ids
}
