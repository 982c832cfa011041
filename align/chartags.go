package align

import (
	"strings"

	"github.com/piitag/piitag/labels"
	"k8s.io/klog/v2"
)

// CharTags returns one BIO tag per character (rune) of text: the first character of an entity is
// tagged B-<label>, the following ones I-<label>, everything else O.
//
// Entities out of bounds or empty are dropped. Overlapping entities are written in order, so
// later entities overwrite earlier ones on the characters they share.
func CharTags(text string, entities []Entity) []string {
	numRunes := len([]rune(text))
	tags := make([]string, numRunes)
	for ii := range tags {
		tags[ii] = labels.Outside
	}
	for _, ent := range entities {
		if ent.Start < 0 || ent.End > numRunes || ent.Start >= ent.End {
			klog.V(2).Infof("dropping entity %s [%d, %d) of text with %d characters", ent.Label, ent.Start, ent.End, numRunes)
			continue
		}
		tags[ent.Start] = labels.BeginTag(ent.Label)
		inside := labels.InsideTag(ent.Label)
		for ii := ent.Start + 1; ii < ent.End; ii++ {
			tags[ii] = inside
		}
	}
	return tags
}

// tokenTag picks the tag of a token covering charTags: the first B- tag if any, else the
// first I- tag, else O.
func tokenTag(charTags []string) string {
	for _, tag := range charTags {
		if strings.HasPrefix(tag, labels.Begin+"-") {
			return tag
		}
	}
	for _, tag := range charTags {
		if strings.HasPrefix(tag, labels.Inside+"-") {
			return tag
		}
	}
	return labels.Outside
}
