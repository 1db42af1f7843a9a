package render

import (
	"strconv"

	"eduplus-export/internal/scrapers/eduplus"
)

// Kind is the closed set of question kinds the renderer knows about.
type Kind int

const (
	KindUnknown Kind = iota
	KindChoice
	KindTrueFalse
	KindFillBlank
)

// KindOf maps an eduplus qsnType code to a Kind, unrecognized or missing codes are KindUnknown.
func KindOf(qsnType *eduplus.FlexInt) Kind {
	if qsnType == nil {
		return KindUnknown
	}
	switch *qsnType {
	case 1, 2:
		return KindChoice
	case 3:
		return KindTrueFalse
	case 6:
		return KindFillBlank
	}
	return KindUnknown
}

// typeCode formats the raw qsnType for the unknown question marker.
func typeCode(qsnType *eduplus.FlexInt) string {
	if qsnType == nil {
		return "null"
	}
	return strconv.Itoa(int(*qsnType))
}

// OptionLabel returns the label of the option at idx (0 based): A..Z, then AA, AB, ...
// like spreadsheet columns.
func OptionLabel(idx int) string {
	if idx < 0 {
		return ""
	}
	var label []byte
	for n := idx + 1; n > 0; n = (n - 1) / 26 {
		label = append(label, byte('A'+(n-1)%26))
	}
	// digits were produced least significant first
	for i, j := 0, len(label)-1; i < j; i, j = i+1, j-1 {
		label[i], label[j] = label[j], label[i]
	}
	return string(label)
}
