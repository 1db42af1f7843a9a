package eduplus

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ID is an opaque eduplus identifier. The API is not consistent about whether ids are
// JSON strings or numbers, both are accepted. A bare ID is written as a string, the
// payload types keep the form that was received.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var str string
		err := json.Unmarshal(data, &str)
		if err != nil {
			return err
		}
		*id = ID(str)
		return nil
	}

	var num json.Number
	err := json.Unmarshal(data, &num)
	if err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	*id = ID(num.String())
	return nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(id))
}

// FlexInt is an integer that may be sent as a JSON number or as a numeric string.
type FlexInt int

func (n *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var str string
		err := json.Unmarshal(data, &str)
		if err != nil {
			return err
		}
		parsed, err := strconv.Atoi(strings.TrimSpace(str))
		if err != nil {
			return fmt.Errorf("decode integer: %w", err)
		}
		*n = FlexInt(parsed)
		return nil
	}

	var num float64
	err := json.Unmarshal(data, &num)
	if err != nil {
		return fmt.Errorf("decode integer: %w", err)
	}
	*n = FlexInt(num)
	return nil
}

// Int returns the value of a possibly missing FlexInt, or fallback if it is missing.
func (n *FlexInt) Int(fallback int) int {
	if n == nil {
		return fallback
	}
	return int(*n)
}

// Homework is an assignment of a course, it is only used as a key to fetch its questions.
type Homework struct {
	Name string `json:"name"`
	Id   ID     `json:"id"`

	rawId json.RawMessage
}

// RawId returns the id exactly as eduplus sent it, or nil if the homework was not
// decoded from a response.
func (h Homework) RawId() json.RawMessage {
	return h.rawId
}

func (h *Homework) UnmarshalJSON(data []byte) error {
	var dto homeworkDTO
	err := json.Unmarshal(data, &dto)
	if err != nil {
		return err
	}
	*h = Homework{}
	if dto.Name != nil {
		h.Name = *dto.Name
	}
	if len(dto.Id) > 0 && string(dto.Id) != "null" {
		err = json.Unmarshal(dto.Id, &h.Id)
		if err != nil {
			return err
		}
		h.rawId = dto.Id
	}
	return nil
}

// MissingOrderNumber is the sort key used for questions without an order number,
// it sorts them after every numbered question.
const MissingOrderNumber = math.MaxInt

// Question is an entry of a homework's question list. Fields of the payload that are not
// modeled are kept and written back by MarshalJSON.
type Question struct {
	Id          ID       `json:"id"`
	OrderNumber *FlexInt `json:"orderNumber,omitempty"`
	Detail      *Detail  `json:"detail,omitempty"`

	fields object
}

func (q *Question) UnmarshalJSON(data []byte) error {
	type plain Question
	var typed plain
	err := json.Unmarshal(data, &typed)
	if err != nil {
		return err
	}
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}
	*q = Question(typed)
	q.fields = fields
	return nil
}

func (q Question) MarshalJSON() ([]byte, error) {
	out := q.fields.clone()
	err := errors.Join(
		put(out, "id", q.Id),
		put(out, "orderNumber", q.OrderNumber),
		put(out, "detail", q.Detail),
	)
	if err != nil {
		return nil, err
	}
	return encode(out)
}

// SortKey returns the order number of the question, or MissingOrderNumber.
func (q Question) SortKey() int {
	return q.OrderNumber.Int(MissingOrderNumber)
}

type Option struct {
	Id            ID     `json:"id"`
	OptionContent string `json:"optionContent"`

	fields object
}

func (o *Option) UnmarshalJSON(data []byte) error {
	type plain Option
	var typed plain
	err := json.Unmarshal(data, &typed)
	if err != nil {
		return err
	}
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}
	*o = Option(typed)
	o.fields = fields
	return nil
}

func (o Option) MarshalJSON() ([]byte, error) {
	out := o.fields.clone()
	err := errors.Join(
		put(out, "id", o.Id),
		put(out, "optionContent", o.OptionContent),
	)
	if err != nil {
		return nil, err
	}
	return encode(out)
}

// Detail is the rich content of a question. Blanks are only checked for presence, answers,
// analysis and the like are not modeled but survive a decode/encode round trip.
type Detail struct {
	QsnType   *FlexInt          `json:"qsnType"`
	TitleText string            `json:"titleText"`
	Options   []Option          `json:"options"`
	Blanks    []json.RawMessage `json:"blanks"`

	fields object
}

func (d *Detail) UnmarshalJSON(data []byte) error {
	type plain Detail
	var typed plain
	err := json.Unmarshal(data, &typed)
	if err != nil {
		return err
	}
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}
	*d = Detail(typed)
	d.fields = fields
	return nil
}

func (d Detail) MarshalJSON() ([]byte, error) {
	out := d.fields.clone()
	err := errors.Join(
		put(out, "qsnType", d.QsnType),
		put(out, "titleText", d.TitleText),
		put(out, "options", d.Options),
		put(out, "blanks", d.Blanks),
	)
	if err != nil {
		return nil, err
	}
	return encode(out)
}

// status is the `code` field of an eduplus envelope.
type status json.RawMessage

const statusOkNumber = 2000000

// ok reports whether the status is one of the two values eduplus uses for success,
// the number 2000000 or the string "OK".
func (s status) ok() bool {
	var num float64
	if json.Unmarshal(s, &num) == nil {
		return num == statusOkNumber
	}
	var str string
	if json.Unmarshal(s, &str) == nil {
		return str == "OK"
	}
	return false
}

func (s status) String() string {
	if len(s) == 0 {
		return "<missing>"
	}
	return string(s)
}

type codeEnvelope[T any] struct {
	Code    json.RawMessage `json:"code"`
	Message string          `json:"message"`
	Data    T               `json:"data"`
}

type homeworkDTO struct {
	Id   json.RawMessage `json:"id"`
	Name *string         `json:"name"`
}

type homeworkItem struct {
	Sequence *FlexInt    `json:"sequence"`
	Homework homeworkDTO `json:"homeworkDTO"`
}

type homeworkEnvelope struct {
	Success bool            `json:"success"`
	Data    *[]homeworkItem `json:"data"`
}
