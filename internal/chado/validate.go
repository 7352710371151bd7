package chado

import (
	"fmt"
	"unicode/utf8"

	"github.com/spf13/cast"

	"github.com/mesh-intelligence/chadostore/pkg/types"
)

// ValidateValues checks values against their property types: required
// properties hold a value, varchar values fit the declared size and int
// values are integers. Record ids are not checked for presence since they
// are unset before an insert.
func (s *Storage) ValidateValues(values types.Values) []error {
	var errs []error
	for _, e := range values.Entries() {
		if err := e.Info.Check(e.Field, e.Key); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := validateEntry(e); err != nil {
			errs = append(errs, fmt.Errorf("%s.%s[%d]: %w", e.Field, e.Key, e.Delta, err))
		}
	}
	return errs
}

func validateEntry(e types.Entry) error {
	pt := e.Info.Type
	v := e.Info.Value.Value()
	settings := pt.StorageSettings()

	if pt.Required() && e.Info.Value.IsEmpty() && !isIDProperty(e.Key, settings.Action) {
		return types.ErrRequired
	}
	if v == nil {
		return nil
	}
	switch pt.Kind() {
	case types.KindInt:
		if _, err := cast.ToInt64E(v); err != nil {
			return fmt.Errorf("%w: %v is not an integer", types.ErrTypeMismatch, v)
		}
	case types.KindVarChar:
		sized, ok := pt.(types.Sized)
		if !ok {
			return nil
		}
		if n := utf8.RuneCountInString(cast.ToString(v)); n > sized.MaxSize() {
			return fmt.Errorf("%w: %d characters, at most %d allowed", types.ErrTooLong, n, sized.MaxSize())
		}
	}
	return nil
}
