package log

// Field is a single structured key/value pair attached to a log entry.
type Field struct {
	Key   string
	Value interface{}
}

// F creates a Field with an arbitrary value.
func F(key string, value interface{}) Field { return Field{Key: key, Value: value} }

// Str creates a string-valued Field.
func Str(key, value string) Field { return Field{Key: key, Value: value} }

// Int creates an int-valued Field.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Int64 creates an int64-valued Field.
func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }

// Err creates a Field carrying an error's message, or nil if err is nil.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Component creates the standard component-tag Field.
func Component(name string) Field { return Field{Key: ComponentKey, Value: name} }

func fieldsToMap(fields []Field) Fields {
	if len(fields) == 0 {
		return nil
	}
	m := make(Fields, len(fields))
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	return m
}
