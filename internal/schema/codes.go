package schema

import "strings"

// Event-type code tables. The public search surface uses two-letter
// "filter" codes while the dump files carry the database codes; the
// mapping is static and maintained by hand, never inferred from data.
var filterToDBCode = map[string]string{
	"DE": "D",  // death
	"MA": "M",  // malfunction
	"IN": "IN", // injury
	"IL": "IL", // injury (hospitalization)
	"OT": "O",  // other
}

var dbToFilterCode = map[string]string{
	"D":  "DE",
	"M":  "MA",
	"IN": "IN",
	"IL": "IL",
	"O":  "OT",
}

// CanonicalEventCode maps any spelling of an event type found in the
// dumps to the canonical database code. The lone single-letter legacy
// code "I" expands to "IN"; unknown codes pass through upper-cased so
// nothing is silently discarded.
func CanonicalEventCode(raw string) string {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" {
		return ""
	}
	if code == "I" {
		return "IN"
	}
	if _, ok := dbToFilterCode[code]; ok {
		return code
	}
	if db, ok := filterToDBCode[code]; ok {
		return db
	}
	return code
}

// FilterEventCode maps a canonical database code back to its two-letter
// filter code, for callers that build search filters.
func FilterEventCode(dbCode string) string {
	code := strings.ToUpper(strings.TrimSpace(dbCode))
	if filter, ok := dbToFilterCode[code]; ok {
		return filter
	}
	return code
}

// manufacturerAliases folds the most common spelling variants of large
// manufacturers into one canonical name. Lookup is longest-match on the
// cleaned name prefix so "MEDTRONIC MINIMED INC" resolves to the
// MiniMed entry, not the bare Medtronic one.
var manufacturerAliases = map[string]string{
	"MEDTRONIC":                "MEDTRONIC",
	"MEDTRONIC MINIMED":        "MEDTRONIC MINIMED",
	"MEDTRONIC PUERTO RICO":    "MEDTRONIC",
	"ABBOTT":                   "ABBOTT",
	"ABBOTT DIABETES CARE":     "ABBOTT DIABETES CARE",
	"ABBOTT VASCULAR":          "ABBOTT VASCULAR",
	"BOSTON SCIENTIFIC":        "BOSTON SCIENTIFIC",
	"BAXTER":                   "BAXTER",
	"BAXTER HEALTHCARE":        "BAXTER",
	"BECTON DICKINSON":         "BECTON DICKINSON",
	"BD":                       "BECTON DICKINSON",
	"DEXCOM":                   "DEXCOM",
	"ETHICON":                  "ETHICON",
	"ETHICON ENDO-SURGERY":     "ETHICON ENDO-SURGERY",
	"JOHNSON & JOHNSON":        "JOHNSON & JOHNSON",
	"JOHNSON AND JOHNSON":      "JOHNSON & JOHNSON",
	"PHILIPS":                  "PHILIPS",
	"PHILIPS RESPIRONICS":      "PHILIPS RESPIRONICS",
	"RESPIRONICS":              "PHILIPS RESPIRONICS",
	"SIEMENS":                  "SIEMENS",
	"SMITH & NEPHEW":           "SMITH & NEPHEW",
	"SMITH AND NEPHEW":         "SMITH & NEPHEW",
	"STRYKER":                  "STRYKER",
	"TANDEM DIABETES CARE":     "TANDEM DIABETES CARE",
	"ZIMMER":                   "ZIMMER BIOMET",
	"ZIMMER BIOMET":            "ZIMMER BIOMET",
	"GE HEALTHCARE":            "GE HEALTHCARE",
	"GENERAL ELECTRIC":         "GE HEALTHCARE",
	"INSULET":                  "INSULET",
	"INTUITIVE SURGICAL":       "INTUITIVE SURGICAL",
	"TERUMO":                   "TERUMO",
	"ROCHE":                    "ROCHE",
	"ROCHE DIABETES CARE":      "ROCHE DIABETES CARE",
	"ST. JUDE MEDICAL":         "ST JUDE MEDICAL",
	"ST JUDE MEDICAL":          "ST JUDE MEDICAL",
	"COOK":                     "COOK MEDICAL",
	"COOK MEDICAL":             "COOK MEDICAL",
	"COVIDIEN":                 "COVIDIEN",
	"HOLOGIC":                  "HOLOGIC",
	"ARTHREX":                  "ARTHREX",
	"EDWARDS LIFESCIENCES":     "EDWARDS LIFESCIENCES",
	"FRESENIUS":                "FRESENIUS",
	"FRESENIUS MEDICAL CARE":   "FRESENIUS",
	"DEPUY":                    "DEPUY SYNTHES",
	"DEPUY SYNTHES":            "DEPUY SYNTHES",
	"CAREFUSION":               "CAREFUSION",
	"VARIAN":                   "VARIAN",
	"OLYMPUS":                  "OLYMPUS",
	"KARL STORZ":               "KARL STORZ",
	"W.L. GORE":                "W L GORE",
	"W L GORE":                 "W L GORE",
	"BAYER":                    "BAYER",
	"B. BRAUN":                 "B BRAUN",
	"B BRAUN":                  "B BRAUN",
	"CONMED":                   "CONMED",
	"TELEFLEX":                 "TELEFLEX",
	"NUVASIVE":                 "NUVASIVE",
	"LIVANOVA":                 "LIVANOVA",
	"BIOTRONIK":                "BIOTRONIK",
	"CYBERONICS":               "LIVANOVA",
	"ALCON":                    "ALCON",
	"BAUSCH & LOMB":            "BAUSCH & LOMB",
	"BAUSCH AND LOMB":          "BAUSCH & LOMB",
	"CARDINAL HEALTH":          "CARDINAL HEALTH",
	"INTEGRA":                  "INTEGRA LIFESCIENCES",
	"INTEGRA LIFESCIENCES":     "INTEGRA LIFESCIENCES",
	"THERMO FISHER":            "THERMO FISHER",
	"HAEMONETICS":              "HAEMONETICS",
	"SMITHS MEDICAL":           "SMITHS MEDICAL",
	"MASIMO":                   "MASIMO",
	"DRAEGER":                  "DRAEGER",
	"DRAGER":                   "DRAEGER",
	"MAQUET":                   "GETINGE",
	"GETINGE":                  "GETINGE",
	"ZOLL":                     "ZOLL",
	"PHYSIO-CONTROL":           "PHYSIO-CONTROL",
	"NATUS":                    "NATUS MEDICAL",
	"NATUS MEDICAL":            "NATUS MEDICAL",
	"SORIN":                    "LIVANOVA",
	"HOSPIRA":                  "HOSPIRA",
	"ICU MEDICAL":              "ICU MEDICAL",
	"MERIT MEDICAL":            "MERIT MEDICAL",
	"PENUMBRA":                 "PENUMBRA",
	"GLOBUS MEDICAL":           "GLOBUS MEDICAL",
	"EXACTECH":                 "EXACTECH",
	"ACELITY":                  "3M",
	"KCI":                      "3M",
	"3M":                       "3M",
}

// CleanManufacturer normalizes a raw manufacturer name and resolves it
// through the alias table with longest-prefix matching. Names without an
// alias are returned in cleaned form.
func CleanManufacturer(raw string) string {
	name := strings.ToUpper(strings.TrimSpace(raw))
	if name == "" {
		return ""
	}
	name = strings.Join(strings.Fields(name), " ")
	name = strings.TrimSuffix(name, ",")
	for _, suffix := range []string{" INCORPORATED", " CORPORATION", " COMPANY", ", INC.", ", INC", " INC.", " INC", " CORP.", " CORP", " LLC.", " LLC", " LTD.", " LTD", " CO.", " CO", " PLC", " GMBH", " AG", " SA"} {
		if strings.HasSuffix(name, suffix) {
			name = strings.TrimSuffix(name, suffix)
			name = strings.TrimSuffix(strings.TrimSpace(name), ",")
			name = strings.TrimSpace(name)
			break
		}
	}

	best := ""
	for alias := range manufacturerAliases {
		if len(alias) <= len(best) {
			continue
		}
		if name == alias || strings.HasPrefix(name, alias+" ") {
			best = alias
		}
	}
	if best != "" {
		return manufacturerAliases[best]
	}
	return name
}
