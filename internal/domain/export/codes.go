package export

// Static code-mapping tables from internal field values to the regulator's
// coded vocabulary. Unmapped values fall through to "" and render as the
// not-recorded sentinel.

var genderCodes = map[string]string{
	"female":             "9906001",
	"male":               "9906003",
	"unknown":            "9906005",
	"transgender-male":   "9906007",
	"transgender-female": "9906009",
}

var raceCodes = map[string]string{
	"american-indian":  "2514001",
	"asian":            "2514003",
	"black":            "2514005",
	"hispanic":         "2514007",
	"pacific-islander": "2514009",
	"white":            "2514011",
}

var transportModeCodes = map[string]string{
	"ground":         "4216005",
	"ground-upgrade": "4216007",
	"air":            "4216015",
}

var levelOfCareCodes = map[string]string{
	"bls":                "9917001",
	"als":                "9917003",
	"critical-care":      "9917005",
	"community-medicine": "9917007",
}

var dispositionCodes = map[string]string{
	"transported":         "4212033",
	"treated-released":    "4212031",
	"refused":             "4212027",
	"cancelled":           "4212005",
	"dead-at-scene":       "4212009",
	"no-patient-found":    "4212023",
	"standby-no-services": "4212035",
	"transferred-care":    "4212037",
}

var acuityCodes = map[string]string{
	"critical":     "4219001",
	"emergent":     "4219003",
	"lower-acuity": "4219005",
	"dead":         "4219007",
}

func mapCode(table map[string]string, value string) string {
	return table[value]
}
