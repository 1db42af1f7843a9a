package eduplus

import (
	"bytes"
	"encoding/json"
	"reflect"
)

// object is a JSON object as it was received from eduplus. Only a few of its fields are
// modeled, the rest are carried along untouched so that artifacts keep everything the
// API returned.
type object map[string]json.RawMessage

func decodeObject(data []byte) (object, error) {
	var o object
	err := json.Unmarshal(data, &o)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (o object) clone() object {
	out := make(object, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// encode is json.Marshal without escaping <, > and &, question content is html.
func encode(v any) ([]byte, error) {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	err := encoder.Encode(v)
	if err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buffer.Bytes(), []byte("\n")), nil
}

// put stores a modeled field. When the received value decodes to the same thing it is
// kept verbatim (numbers stay numbers), zero values that were never received are left out.
func put[T any](o object, key string, value T) error {
	raw, received := o[key]
	if received {
		var decoded T
		if json.Unmarshal(raw, &decoded) == nil && reflect.DeepEqual(decoded, value) {
			return nil
		}
	} else if reflect.ValueOf(&value).Elem().IsZero() {
		return nil
	}

	encoded, err := encode(value)
	if err != nil {
		return err
	}
	o[key] = encoded
	return nil
}
