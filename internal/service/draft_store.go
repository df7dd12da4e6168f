package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"listing-composer/internal/model"
)

// Draft mutations. Each one returns a new draft and leaves its input
// untouched, including on error.

// MergeImages appends refs after the existing images.
func MergeImages(d model.ListingDraft, refs []model.ImageRef) (model.ListingDraft, error) {
	if len(d.Images)+len(refs) > model.MaxImages {
		return d, fmt.Errorf("%w: %d attached, %d new", ErrTooManyImages, len(d.Images), len(refs))
	}
	out := d.Clone()
	out.Images = append(out.Images, refs...)
	return out, nil
}

// RemoveImageAt drops the image at index, shifting later images left.
func RemoveImageAt(d model.ListingDraft, index int) (model.ListingDraft, error) {
	if index < 0 || index >= len(d.Images) {
		return d, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, index, len(d.Images))
	}
	out := d.Clone()
	out.Images = append(out.Images[:index], out.Images[index+1:]...)
	return out, nil
}

// Field names a text or numeric draft field.
type Field string

const (
	FieldName          Field = "name"
	FieldDescription   Field = "description"
	FieldAddress       Field = "address"
	FieldBedrooms      Field = "bedrooms"
	FieldBathrooms     Field = "bathrooms"
	FieldRegularPrice  Field = "regularPrice"
	FieldDiscountPrice Field = "discountPrice"
)

// FieldUpdate assigns one field. Values are built only through the
// constructors below, so the field and the value type always agree.
type FieldUpdate struct {
	field  Field
	text   string
	count  int
	amount float64
}

func SetName(v string) FieldUpdate        { return FieldUpdate{field: FieldName, text: v} }
func SetDescription(v string) FieldUpdate { return FieldUpdate{field: FieldDescription, text: v} }
func SetAddress(v string) FieldUpdate     { return FieldUpdate{field: FieldAddress, text: v} }
func SetBedrooms(n int) FieldUpdate       { return FieldUpdate{field: FieldBedrooms, count: n} }
func SetBathrooms(n int) FieldUpdate      { return FieldUpdate{field: FieldBathrooms, count: n} }
func SetRegularPrice(v float64) FieldUpdate {
	return FieldUpdate{field: FieldRegularPrice, amount: v}
}
func SetDiscountPrice(v float64) FieldUpdate {
	return FieldUpdate{field: FieldDiscountPrice, amount: v}
}

func (u FieldUpdate) Field() Field { return u.field }

// SetField applies u. Ranges are not checked here; see SubmissionController.
func SetField(d model.ListingDraft, u FieldUpdate) (model.ListingDraft, error) {
	out := d.Clone()
	switch u.field {
	case FieldName:
		out.Name = u.text
	case FieldDescription:
		out.Description = u.text
	case FieldAddress:
		out.Address = u.text
	case FieldBedrooms:
		out.Bedrooms = u.count
	case FieldBathrooms:
		out.Bathrooms = u.count
	case FieldRegularPrice, FieldDiscountPrice:
		if math.IsNaN(u.amount) || math.IsInf(u.amount, 0) {
			return d, fmt.Errorf("%w: %s", ErrNonFiniteNumber, u.field)
		}
		if u.field == FieldRegularPrice {
			out.RegularPrice = u.amount
		} else {
			out.DiscountPrice = u.amount
		}
	default:
		return d, fmt.Errorf("%w: %q", ErrUnknownField, u.field)
	}
	return out, nil
}

// ParseFieldUpdate turns a wire key and JSON value into a FieldUpdate.
func ParseFieldUpdate(key string, raw json.RawMessage) (FieldUpdate, error) {
	switch Field(key) {
	case FieldName, FieldDescription, FieldAddress:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return FieldUpdate{}, fmt.Errorf("%w: %s expects a string", ErrFieldType, key)
		}
		return FieldUpdate{field: Field(key), text: s}, nil
	case FieldBedrooms, FieldBathrooms:
		n, err := decodeNumber(raw)
		if err != nil || n != math.Trunc(n) || math.Abs(n) > math.MaxInt32 {
			return FieldUpdate{}, fmt.Errorf("%w: %s expects a whole number", ErrFieldType, key)
		}
		return FieldUpdate{field: Field(key), count: int(n)}, nil
	case FieldRegularPrice, FieldDiscountPrice:
		n, err := decodeNumber(raw)
		if err != nil {
			return FieldUpdate{}, fmt.Errorf("%w: %s expects a number", ErrFieldType, key)
		}
		return FieldUpdate{field: Field(key), amount: n}, nil
	default:
		return FieldUpdate{}, fmt.Errorf("%w: %q", ErrUnknownField, key)
	}
}

func decodeNumber(raw json.RawMessage) (float64, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, err
	}
	num, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("not a number")
	}
	return num.Float64()
}

// SetPropertyType switches between sale and rent.
func SetPropertyType(d model.ListingDraft, which model.PropertyType) (model.ListingDraft, error) {
	if !which.Valid() {
		return d, fmt.Errorf("%w: %q", ErrInvalidPropertyType, which)
	}
	out := d.Clone()
	out.PropertyType = which
	return out, nil
}

// ToggleFlag flips one of the boolean amenities.
func ToggleFlag(d model.ListingDraft, flag model.Flag) (model.ListingDraft, error) {
	out := d.Clone()
	switch flag {
	case model.FlagHasOffer:
		out.HasOffer = !out.HasOffer
	case model.FlagHasParking:
		out.HasParking = !out.HasParking
	case model.FlagIsFurnished:
		out.IsFurnished = !out.IsFurnished
	default:
		return d, fmt.Errorf("%w: %q", ErrUnknownFlag, flag)
	}
	return out, nil
}
