package money

// fractionDigits maps currency codes whose minor unit differs from the usual
// two fraction digits. Codes not listed here default to two.
var fractionDigits = map[string]int32{
	"BHD": 3,
	"BIF": 0,
	"CLP": 0,
	"DJF": 0,
	"GNF": 0,
	"IQD": 3,
	"ISK": 0,
	"JOD": 3,
	"JPY": 0,
	"KMF": 0,
	"KRW": 0,
	"KWD": 3,
	"LYD": 3,
	"OMR": 3,
	"PYG": 0,
	"RWF": 0,
	"TND": 3,
	"UGX": 0,
	"VND": 0,
	"XAF": 0,
	"XOF": 0,
	"XPF": 0,
}

// Precision returns the number of fraction digits for the given currency
// code. Unknown codes default to two.
func Precision(currency string) int32 {
	if p, ok := fractionDigits[currency]; ok {
		return p
	}
	return 2
}
