package handler

import "unicode/utf16"

// PresenceColor is how peers draw a user's cursor.
type PresenceColor struct {
	Name        string `json:"name"`
	BorderClass string `json:"border_class"`
	RGB         string `json:"rgb"`
}

var presencePalette = []PresenceColor{
	{"red", "border-red-700", "rgb(185, 28, 28)"},
	{"orange", "border-orange-700", "rgb(194, 65, 12)"},
	{"amber", "border-amber-700", "rgb(180, 83, 9)"},
	{"yellow", "border-yellow-700", "rgb(161, 98, 7)"},
	{"lime", "border-lime-700", "rgb(77, 124, 15)"},
	{"green", "border-green-700", "rgb(21, 128, 61)"},
	{"emerald", "border-emerald-700", "rgb(4, 120, 87)"},
	{"teal", "border-teal-700", "rgb(15, 118, 110)"},
	{"cyan", "border-cyan-700", "rgb(14, 116, 144)"},
	{"sky", "border-sky-700", "rgb(3, 105, 161)"},
	{"blue", "border-blue-700", "rgb(29, 78, 216)"},
	{"indigo", "border-indigo-700", "rgb(67, 56, 202)"},
	{"violet", "border-violet-700", "rgb(109, 40, 217)"},
	{"purple", "border-purple-700", "rgb(126, 34, 206)"},
	{"fuchsia", "border-fuchsia-700", "rgb(162, 28, 175)"},
	{"pink", "border-pink-700", "rgb(190, 24, 93)"},
	{"rose", "border-rose-700", "rgb(190, 18, 60)"},
}

// presenceColor picks a palette entry from a 31-multiplier hash of the user
// id over its UTF-16 units, so browsers computing it locally agree.
func presenceColor(userID string) PresenceColor {
	var acc int64
	for _, unit := range utf16.Encode([]rune(userID)) {
		shifted := int64(int32(uint32(int32(acc)) << 5))
		acc = int64(unit) + shifted - acc
	}
	if acc < 0 {
		acc = -acc
	}
	return presencePalette[acc%int64(len(presencePalette))]
}
