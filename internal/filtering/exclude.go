package filtering

import (
	"context"
	"strconv"
	"strings"
)

type excludedFilter struct {
	toggle
	ids []string
}

// NewExcluded creates a filter that removes configured candidate ids and the
// submitter's own profile.
func NewExcluded(ids []string) Filter {
	return &excludedFilter{ids: ids}
}

func (f *excludedFilter) Name() string { return "excluded" }

func (f *excludedFilter) Validate(*Config) error { return nil }

func (f *excludedFilter) Apply(_ context.Context, deps Deps, p Pool) (Pool, Step, error) {
	initial := p.Len()
	ids := f.ids
	if deps.SubmitterID != "" {
		ids = append(append([]string{}, ids...), deps.SubmitterID)
	}

	kept, dropped := p.Exclude(ids)
	return kept, Step{Initial: initial, Dropped: len(dropped), Left: kept.Len()}, nil
}

func (f *excludedFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{
			"ids":   strings.Join(f.ids, ","),
			"count": strconv.Itoa(len(f.ids)),
		},
	}
}
