package dataset

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

// RecordSchema is the JSON schema of one annotation line.
const RecordSchema = `{
  "type": "object",
  "required": ["text"],
  "properties": {
    "id": {"type": "string"},
    "text": {"type": "string"},
    "entities": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["start", "end", "label"],
        "properties": {
          "start": {"type": "integer"},
          "end": {"type": "integer"},
          "label": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`

var recordSchema = func() *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(RecordSchema))
	if err != nil {
		panic(err)
	}
	return schema
}()

// validateRecord validates one JSON line against RecordSchema.
func validateRecord(line []byte) error {
	result, err := recordSchema.Validate(gojsonschema.NewBytesLoader(line))
	if err != nil {
		return errors.Wrap(err, "invalid JSON")
	}
	if result.Valid() {
		return nil
	}
	var errs []string
	for _, desc := range result.Errors() {
		errs = append(errs, desc.String())
	}
	return errors.Errorf("record does not match schema: %s", strings.Join(errs, ", "))
}
