package mockhlr

import (
	"fmt"
	"strings"
)

// Operator prefixes, longest match wins.
var operators = map[string]string{
	"0811": "Telkomsel", "0812": "Telkomsel", "0813": "Telkomsel",
	"0821": "Telkomsel", "0822": "Telkomsel", "0823": "Telkomsel",
	"0852": "Telkomsel", "0853": "Telkomsel",
	"0814": "Indosat", "0815": "Indosat", "0816": "Indosat",
	"0855": "Indosat", "0856": "Indosat", "0857": "Indosat", "0858": "Indosat",
	"0817": "XL", "0818": "XL", "0819": "XL", "0859": "XL", "0877": "XL", "0878": "XL",
	"0831": "Axis", "0832": "Axis", "0833": "Axis", "0838": "Axis",
	"0895": "Tri", "0896": "Tri", "0897": "Tri", "0898": "Tri", "0899": "Tri",
	"0881": "Smartfren", "0882": "Smartfren", "0883": "Smartfren", "0884": "Smartfren",
	"0885": "Smartfren", "0886": "Smartfren", "0887": "Smartfren", "0888": "Smartfren", "0889": "Smartfren",
}

// Fifth digit picks a location so different prefixes give different answers.
var locations = []string{
	"Jakarta", "Bandung", "Surabaya", "Medan", "Semarang",
	"Makassar", "Palembang", "Denpasar", "Yogyakarta", "Balikpapan",
}

// DefaultResponder answers like the real form: an "Operator:" and an "HLR:"
// line for known prefixes and an ERROR line otherwise.
func DefaultResponder(msisdn string) string {
	if len(msisdn) < 10 || !isDigits(msisdn) {
		return fmt.Sprintf("ERROR: nomor %s tidak valid", msisdn)
	}
	op, ok := operators[msisdn[:4]]
	if !ok {
		return fmt.Sprintf("ERROR: prefix %s tidak dikenal", msisdn[:4])
	}
	loc := locations[int(msisdn[4]-'0')]
	return strings.Join([]string{
		"MSISDN: " + msisdn,
		"Operator: " + op,
		"HLR: " + loc,
	}, "\n")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
