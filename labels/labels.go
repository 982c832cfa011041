// Package labels defines the BIO label scheme: the tag alphabet {O, B-<TYPE>, I-<TYPE>} over a fixed
// set of entity types, its mapping to the integer ids a token classifier predicts, and which entity
// types count as personally identifiable information (PII).
//
// A Scheme is immutable once built and is shared, read-only, by the span encoder, the span decoder
// and the inference driver.
package labels

import (
	"slices"
	"strings"

	"github.com/pkg/errors"
)

// Outside is the tag of tokens that are not part of any entity.
const Outside = "O"

// BIO prefixes.
const (
	Begin  = "B"
	Inside = "I"
)

// Entity types of the default scheme.
const (
	PersonName = "PERSON_NAME"
	Phone      = "PHONE"
	Email      = "EMAIL"
	CreditCard = "CREDIT_CARD"
	Date       = "DATE"
	City       = "CITY"
	Location   = "LOCATION"
)

// Scheme is the bidirectional mapping between BIO tags and label ids, plus the PII predicate.
type Scheme struct {
	types []string
	tags  []string
	tagID map[string]int
	pii   map[string]bool
}

// New creates a scheme with tags ordered as O, B-t1, I-t1, B-t2, I-t2, ... for the given types.
// pii lists the types classified as PII; each must be one of types.
func New(types []string, pii []string) (*Scheme, error) {
	tags := make([]string, 0, 1+2*len(types))
	tags = append(tags, Outside)
	for _, typ := range types {
		tags = append(tags, BeginTag(typ), InsideTag(typ))
	}
	return FromTags(tags, pii)
}

// FromTags creates a scheme from an explicit id-ordered tag list, as stored with a trained model:
// tags[i] is the tag of label id i. The list must contain O, and every B-/I- tag must name a type.
func FromTags(tags []string, pii []string) (*Scheme, error) {
	s := &Scheme{
		tags:  slices.Clone(tags),
		tagID: make(map[string]int, len(tags)),
		pii:   make(map[string]bool, len(pii)),
	}
	seenType := make(map[string]bool)
	for id, tag := range tags {
		if _, dup := s.tagID[tag]; dup {
			return nil, errors.Errorf("duplicate tag %q in label scheme", tag)
		}
		s.tagID[tag] = id
		if tag == Outside {
			continue
		}
		prefix, typ := Split(tag)
		if typ == "" || (prefix != Begin && prefix != Inside) {
			return nil, errors.Errorf("invalid tag %q in label scheme, want O, B-<TYPE> or I-<TYPE>", tag)
		}
		if !seenType[typ] {
			seenType[typ] = true
			s.types = append(s.types, typ)
		}
	}
	if _, ok := s.tagID[Outside]; !ok {
		return nil, errors.Errorf("label scheme has no %q tag", Outside)
	}
	for _, typ := range pii {
		if !seenType[typ] {
			return nil, errors.Errorf("PII type %q is not an entity type of the scheme", typ)
		}
		s.pii[typ] = true
	}
	return s, nil
}

// Default returns the scheme the PII tagger was trained with: names, phone numbers, emails, credit
// cards and dates are PII; cities and locations are not.
func Default() *Scheme {
	s, err := New(
		[]string{PersonName, Phone, Email, CreditCard, Date, City, Location},
		[]string{PersonName, Phone, Email, CreditCard, Date},
	)
	if err != nil {
		panic(err)
	}
	return s
}

// BeginTag returns "B-<typ>".
func BeginTag(typ string) string { return Begin + "-" + typ }

// InsideTag returns "I-<typ>".
func InsideTag(typ string) string { return Inside + "-" + typ }

// Split splits a tag into its BIO prefix and entity type. "O" (or any tag without a dash) returns
// an empty prefix and the tag itself as type.
func Split(tag string) (prefix, typ string) {
	prefix, typ, found := strings.Cut(tag, "-")
	if !found {
		return "", tag
	}
	return prefix, typ
}

// ID returns the label id of tag. Unknown tags map to the id of O.
func (s *Scheme) ID(tag string) int {
	if id, ok := s.tagID[tag]; ok {
		return id
	}
	return s.tagID[Outside]
}

// Tag returns the tag of a label id. Unknown ids (including the ignore index) map to O.
func (s *Scheme) Tag(id int) string {
	if id < 0 || id >= len(s.tags) {
		return Outside
	}
	return s.tags[id]
}

// OutsideID returns the label id of O.
func (s *Scheme) OutsideID() int { return s.tagID[Outside] }

// NumLabels returns the size of the label vocabulary.
func (s *Scheme) NumLabels() int { return len(s.tags) }

// Tags returns a copy of the id-ordered tags.
func (s *Scheme) Tags() []string { return slices.Clone(s.tags) }

// Types returns a copy of the entity types, in first-appearance order.
func (s *Scheme) Types() []string { return slices.Clone(s.types) }

// IsPII reports whether the entity type is classified as PII.
func (s *Scheme) IsPII(typ string) bool { return s.pii[typ] }

// PIITypes returns the PII entity types, in scheme order.
func (s *Scheme) PIITypes() []string {
	var out []string
	for _, typ := range s.types {
		if s.pii[typ] {
			out = append(out, typ)
		}
	}
	return out
}
