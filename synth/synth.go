// Package synth generates synthetic annotated utterances in the style of noisy speech-to-text
// transcripts: lower case, no punctuation, numbers sometimes spelled out digit by digit.
//
// The corpus is used to smoke-test training pipelines and as a fixture for encode/decode tests.
package synth

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/piitag/piitag/align"
	"github.com/piitag/piitag/dataset"
	"github.com/piitag/piitag/labels"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Default corpus sizes.
const (
	NumTrain = 1000
	NumDev   = 200
)

var (
	names     = []string{"ramesh", "suresh", "priya", "anita", "john", "doe", "vikram", "rahul", "sneha", "arun", "deepak", "meera"}
	surnames  = []string{"sharma", "verma", "gupta", "patel", "singh", "kumar", "reddy", "rao", "nair", "iyer", "malik", "khan"}
	cities    = []string{"mumbai", "delhi", "bangalore", "chennai", "kolkata", "hyderabad", "pune", "jaipur", "ahmedabad", "surat"}
	locations = []string{"mg road", "indira nagar", "connaught place", "marine drive", "airport", "central station", "whitefield", "andheri"}
	domains   = []string{"gmail", "yahoo", "outlook", "hotmail", "example"}
	digits    = []string{"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine"}
)

// Template is an utterance with numbered placeholders "{0}", "{1}", ... filled with values of
// the entity types in Labels (Labels[i] fills "{i}").
type Template struct {
	Text   string
	Labels []string
}

// Templates used by the default Generator. Date templates are repeated to boost their frequency.
var Templates = []Template{
	{"my name is {0}", []string{labels.PersonName}},
	{"i am {0} calling from {1}", []string{labels.PersonName, labels.City}},
	{"contact me at {0}", []string{labels.Phone}},
	{"my number is {0} and email is {1}", []string{labels.Phone, labels.Email}},
	{"credit card is {0}", []string{labels.CreditCard}},
	{"pay using card {0} expiry {1}", []string{labels.CreditCard, labels.Date}},
	{"i live in {0} near {1}", []string{labels.City, labels.Location}},
	{"traveling to {0} on {1}", []string{labels.City, labels.Date}},
	{"email id is {0}", []string{labels.Email}},
	{"send details to {0}", []string{labels.Email}},
	{"my phone is {0}", []string{labels.Phone}},
	{"card number {0}", []string{labels.CreditCard}},
	{"this is {0} from {1}", []string{labels.PersonName, labels.City}},
	{"meeting on {0} at {1}", []string{labels.Date, labels.Location}},
	{"i will travel on {0}", []string{labels.Date}},
	{"i will travel on {0}", []string{labels.Date}},
	{"traveling on {0}", []string{labels.Date}},
	{"departure on {0}", []string{labels.Date}},
	{"date is {0}", []string{labels.Date}},
	{"on {0}", []string{labels.Date}},
	{"my card number is {0}", []string{labels.CreditCard}},
	{"please charge my card {0}", []string{labels.CreditCard}},
	{"the card is {0}", []string{labels.CreditCard}},
	{"date of birth {0}", []string{labels.Date}},
	{"schedule for {0}", []string{labels.Date}},
}

// Generator produces random records from templates. It is not safe for concurrent use.
type Generator struct {
	rng       *rand.Rand
	templates []Template
}

// New creates a Generator over the default Templates, seeded for reproducibility.
func New(seed uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), templates: Templates}
}

// WithTemplates replaces the templates used by the generator.
func (g *Generator) WithTemplates(templates []Template) *Generator {
	g.templates = templates
	return g
}

// ID returns the id of the i-th generated record: "syn_0042".
func ID(i int) string { return fmt.Sprintf("syn_%04d", i) }

// Generate returns n records with ids ID(startID) ... ID(startID+n-1).
func (g *Generator) Generate(n, startID int) ([]dataset.Record, error) {
	records := make([]dataset.Record, 0, n)
	for ii := range n {
		tmpl := g.templates[g.rng.IntN(len(g.templates))]
		rec, err := g.Fill(tmpl)
		if err != nil {
			return nil, err
		}
		rec.ID = ID(startID + ii)
		records = append(records, rec)
	}
	return records, nil
}

// Fill fills the placeholders of tmpl with random values of their entity type, recording the
// character offsets of each value as an entity.
func (g *Generator) Fill(tmpl Template) (dataset.Record, error) {
	var (
		text     strings.Builder
		entities []align.Entity
		pos      int
	)
	rest := tmpl.Text
	for {
		before, after, found := strings.Cut(rest, "{")
		text.WriteString(before)
		pos += utf8.RuneCountInString(before)
		if !found {
			break
		}
		num, tail, ok := strings.Cut(after, "}")
		if !ok {
			return dataset.Record{}, errors.Errorf("unterminated placeholder in template %q", tmpl.Text)
		}
		idx, err := strconv.Atoi(num)
		if err != nil || idx < 0 || idx >= len(tmpl.Labels) {
			return dataset.Record{}, errors.Errorf("invalid placeholder {%s} in template %q", num, tmpl.Text)
		}
		label := tmpl.Labels[idx]
		value, err := g.Value(label)
		if err != nil {
			return dataset.Record{}, errors.WithMessagef(err, "template %q", tmpl.Text)
		}
		length := utf8.RuneCountInString(value)
		entities = append(entities, align.Entity{Start: pos, End: pos + length, Label: label})
		text.WriteString(value)
		pos += length
		rest = tail
	}
	return dataset.Record{Text: text.String(), Entities: entities}, nil
}

// Value returns a random value of the entity type.
func (g *Generator) Value(label string) (string, error) {
	switch label {
	case labels.PersonName:
		return g.pick(names) + " " + g.pick(surnames), nil
	case labels.Phone:
		return g.phone(), nil
	case labels.Email:
		return fmt.Sprintf("%s dot %s at %s dot com", g.pick(names), g.pick(surnames), g.pick(domains)), nil
	case labels.CreditCard:
		groups := make([]string, 4)
		for ii := range groups {
			groups[ii] = g.digitString(4)
		}
		return strings.Join(groups, " "), nil
	case labels.Date:
		return fmt.Sprintf("%02d %02d %d", 1+g.rng.IntN(31), 1+g.rng.IntN(12), 2020+g.rng.IntN(6)), nil
	case labels.City:
		return g.pick(cities), nil
	case labels.Location:
		return g.pick(locations), nil
	}
	return "", errors.Errorf("no synthetic values for entity type %q", label)
}

// phone returns 10 digits, either as a number or spelled out one word per digit.
func (g *Generator) phone() string {
	number := g.digitString(10)
	if g.rng.IntN(2) == 0 {
		return number
	}
	words := make([]string, len(number))
	for ii, d := range number {
		words[ii] = digits[d-'0']
	}
	return strings.Join(words, " ")
}

func (g *Generator) digitString(n int) string {
	b := make([]byte, n)
	for ii := range b {
		b[ii] = byte('0' + g.rng.IntN(10))
	}
	return string(b)
}

func (g *Generator) pick(values []string) string {
	return values[g.rng.IntN(len(values))]
}

// WriteSplits generates the train and dev corpora and writes them as JSONL. Dev ids continue
// after the train ids.
func (g *Generator) WriteSplits(trainPath string, numTrain int, devPath string, numDev int) error {
	train, err := g.Generate(numTrain, 0)
	if err != nil {
		return err
	}
	if err := dataset.Save(trainPath, train); err != nil {
		return err
	}
	klog.Infof("generated %d samples to %s", numTrain, trainPath)

	dev, err := g.Generate(numDev, numTrain)
	if err != nil {
		return err
	}
	if err := dataset.Save(devPath, dev); err != nil {
		return err
	}
	klog.Infof("generated %d samples to %s", numDev, devPath)
	return nil
}
