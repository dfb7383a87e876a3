package schema

import "maudeflow/internal/domain"

// Column layouts below follow the FDA's published record layouts for
// each file family. Era boundaries are keyed purely by column count.

var mdrColumns84 = []string{
	"MDR_REPORT_KEY",
	"EVENT_KEY",
	"REPORT_NUMBER",
	"REPORT_SOURCE_CODE",
	"MANUFACTURER_LINK_FLAG",
	"NUMBER_DEVICES_IN_EVENT",
	"NUMBER_PATIENTS_IN_EVENT",
	"DATE_RECEIVED",
	"ADVERSE_EVENT_FLAG",
	"PRODUCT_PROBLEM_FLAG",
	"DATE_REPORT",
	"DATE_OF_EVENT",
	"REPROCESSED_AND_REUSED_FLAG",
	"REPORTER_OCCUPATION_CODE",
	"HEALTH_PROFESSIONAL",
	"INITIAL_REPORT_TO_FDA",
	"DATE_FACILITY_AWARE",
	"REPORT_DATE",
	"REPORT_TO_FDA",
	"DATE_REPORT_TO_FDA",
	"EVENT_LOCATION",
	"DATE_REPORT_TO_MANUFACTURER",
	"MANUFACTURER_CONTACT_T_NAME",
	"MANUFACTURER_CONTACT_F_NAME",
	"MANUFACTURER_CONTACT_L_NAME",
	"MANUFACTURER_CONTACT_STREET_1",
	"MANUFACTURER_CONTACT_STREET_2",
	"MANUFACTURER_CONTACT_CITY",
	"MANUFACTURER_CONTACT_STATE",
	"MANUFACTURER_CONTACT_ZIP_CODE",
	"MANUFACTURER_CONTACT_ZIP_EXT",
	"MANUFACTURER_CONTACT_COUNTRY",
	"MANUFACTURER_CONTACT_POSTAL",
	"MANUFACTURER_CONTACT_AREA_CODE",
	"MANUFACTURER_CONTACT_EXCHANGE",
	"MANUFACTURER_CONTACT_PHONE_NO",
	"MANUFACTURER_CONTACT_EXTENSION",
	"MANUFACTURER_CONTACT_PCOUNTRY",
	"MANUFACTURER_CONTACT_PCITY",
	"MANUFACTURER_CONTACT_PLOCAL",
	"MANUFACTURER_G1_NAME",
	"MANUFACTURER_G1_STREET_1",
	"MANUFACTURER_G1_STREET_2",
	"MANUFACTURER_G1_CITY",
	"MANUFACTURER_G1_STATE_CODE",
	"MANUFACTURER_G1_ZIP_CODE",
	"MANUFACTURER_G1_ZIP_CODE_EXT",
	"MANUFACTURER_G1_COUNTRY_CODE",
	"MANUFACTURER_G1_POSTAL_CODE",
	"DATE_MANUFACTURER_RECEIVED",
	"DEVICE_DATE_OF_MANUFACTURE",
	"SINGLE_USE_FLAG",
	"REMEDIAL_ACTION",
	"PREVIOUS_USE_CODE",
	"REMOVAL_CORRECTION_NUMBER",
	"EVENT_TYPE",
	"DISTRIBUTOR_NAME",
	"DISTRIBUTOR_ADDRESS_1",
	"DISTRIBUTOR_ADDRESS_2",
	"DISTRIBUTOR_CITY",
	"DISTRIBUTOR_STATE_CODE",
	"DISTRIBUTOR_ZIP_CODE",
	"DISTRIBUTOR_ZIP_CODE_EXT",
	"REPORT_TO_MANUFACTURER",
	"MANUFACTURER_NAME",
	"MANUFACTURER_ADDRESS_1",
	"MANUFACTURER_ADDRESS_2",
	"MANUFACTURER_CITY",
	"MANUFACTURER_STATE_CODE",
	"MANUFACTURER_ZIP_CODE",
	"MANUFACTURER_ZIP_CODE_EXT",
	"MANUFACTURER_COUNTRY_CODE",
	"MANUFACTURER_POSTAL_CODE",
	"TYPE_OF_REPORT",
	"SOURCE_TYPE",
	"DATE_ADDED",
	"DATE_CHANGED",
	"REPORTER_COUNTRY_CODE",
	"PMA_PMN_NUM",
	"EXEMPTION_NUMBER",
	"SUMMARY_REPORT",
	"REPORTER_STATE_CODE",
	"REPORTER_ZIP_CODE",
	"MANUFACTURER_AWARE_DATE",
}

var mdrColumns86 = append(append([]string{}, mdrColumns84...),
	"NOE_SUMMARIZED",
	"COMBINATION_PRODUCT_FLAG",
)

var deviceColumns28 = []string{
	"MDR_REPORT_KEY",
	"DEVICE_EVENT_KEY",
	"IMPLANT_FLAG",
	"DATE_REMOVED_FLAG",
	"DEVICE_SEQUENCE_NO",
	"DATE_RECEIVED",
	"BRAND_NAME",
	"GENERIC_NAME",
	"MANUFACTURER_D_NAME",
	"MANUFACTURER_D_ADDRESS_1",
	"MANUFACTURER_D_ADDRESS_2",
	"MANUFACTURER_D_CITY",
	"MANUFACTURER_D_STATE_CODE",
	"MANUFACTURER_D_ZIP_CODE",
	"MANUFACTURER_D_ZIP_CODE_EXT",
	"MANUFACTURER_D_COUNTRY_CODE",
	"MANUFACTURER_D_POSTAL_CODE",
	"DEVICE_OPERATOR",
	"EXPIRATION_DATE_OF_DEVICE",
	"MODEL_NUMBER",
	"CATALOG_NUMBER",
	"LOT_NUMBER",
	"OTHER_ID_NUMBER",
	"DEVICE_AVAILABILITY",
	"DATE_RETURNED_TO_MANUFACTURER",
	"DEVICE_REPORT_PRODUCT_CODE",
	"DEVICE_AGE_TEXT",
	"DEVICE_EVALUATED_BY_MANUFACTUR",
}

var deviceColumns34 = append(append([]string{}, deviceColumns28...),
	"BASELINE_BRAND_NAME",
	"BASELINE_GENERIC_NAME",
	"BASELINE_MODEL_NUMBER",
	"BASELINE_CATALOG_NUMBER",
	"UDI_DI",
	"UDI_PUBLIC",
)

var textColumns6 = []string{
	"MDR_REPORT_KEY",
	"MDR_TEXT_KEY",
	"TEXT_TYPE_CODE",
	"PATIENT_SEQUENCE_NUMBER",
	"DATE_REPORT",
	"FOI_TEXT",
}

var patientColumns4 = []string{
	"MDR_REPORT_KEY",
	"PATIENT_SEQUENCE_NUMBER",
	"SEQUENCE_NUMBER_TREATMENT",
	"SEQUENCE_NUMBER_OUTCOME",
}

var patientColumns5 = []string{
	"MDR_REPORT_KEY",
	"PATIENT_SEQUENCE_NUMBER",
	"DATE_RECEIVED",
	"SEQUENCE_NUMBER_TREATMENT",
	"SEQUENCE_NUMBER_OUTCOME",
}

func optional(names ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out
}

func init() {
	register(Version{
		Category:    domain.CategoryMDR,
		ColumnCount: 84,
		Columns:     mdrColumns84,
	})
	register(Version{
		Category:    domain.CategoryMDR,
		ColumnCount: 86,
		Columns:     mdrColumns86,
		Optional:    optional("NOE_SUMMARIZED", "COMBINATION_PRODUCT_FLAG"),
	})
	register(Version{
		Category:    domain.CategoryDevice,
		ColumnCount: 28,
		Columns:     deviceColumns28,
	})
	register(Version{
		Category:    domain.CategoryDevice,
		ColumnCount: 34,
		Columns:     deviceColumns34,
		Optional: optional(
			"BASELINE_BRAND_NAME", "BASELINE_GENERIC_NAME",
			"BASELINE_MODEL_NUMBER", "BASELINE_CATALOG_NUMBER",
			"UDI_DI", "UDI_PUBLIC",
		),
	})
	register(Version{
		Category:    domain.CategoryText,
		ColumnCount: 6,
		Columns:     textColumns6,
	})
	register(Version{
		Category:    domain.CategoryPatient,
		ColumnCount: 4,
		Columns:     patientColumns4,
	})
	register(Version{
		Category:    domain.CategoryPatient,
		ColumnCount: 5,
		Columns:     patientColumns5,
		Optional:    optional("DATE_RECEIVED"),
	})
}

// columnAliases maps FDA header spellings seen across eras to the
// canonical column names above.
var columnAliases = map[string]string{
	"DEVICE_EVALUATED_BY_MANUFACTURER":  "DEVICE_EVALUATED_BY_MANUFACTUR",
	"MANUFACTURER_CONTACT_PHONE_NUMBER": "MANUFACTURER_CONTACT_PHONE_NO",
	"MANUFACTURER_CONTACT_ZIP_CODE_EXT": "MANUFACTURER_CONTACT_ZIP_EXT",
	"MANUFACTURER_CONTACT_POSTAL_CODE":  "MANUFACTURER_CONTACT_POSTAL",
	"MANUFACTURER_CONTACT_COUNTRY_CODE": "MANUFACTURER_CONTACT_COUNTRY",
	"MANUFACTURER_CONTACT_STATE_CODE":   "MANUFACTURER_CONTACT_STATE",
	"MDR_EVENT_KEY":                     "EVENT_KEY",
	"REPORT_NUMBER_":                    "REPORT_NUMBER",
	"DEVICE_PROBLEM_CODE":               "DEVICE_REPORT_PRODUCT_CODE",
	"PATIENT_SEQUENCE_NO":               "PATIENT_SEQUENCE_NUMBER",
	"SEQUENCE_NUMBER_OUTCOME_":          "SEQUENCE_NUMBER_OUTCOME",
	"ADVERSE_EVENT_FLAG_":               "ADVERSE_EVENT_FLAG",
	"FOI_TEXT_":                         "FOI_TEXT",
}

var keyColumns = map[domain.FileCategory][]string{
	domain.CategoryMDR:     {"MDR_REPORT_KEY"},
	domain.CategoryDevice:  {"MDR_REPORT_KEY", "DEVICE_SEQUENCE_NO"},
	domain.CategoryText:    {"MDR_REPORT_KEY", "MDR_TEXT_KEY", "TEXT_TYPE_CODE"},
	domain.CategoryPatient: {"MDR_REPORT_KEY", "PATIENT_SEQUENCE_NUMBER"},
}

var tables = map[domain.FileCategory]string{
	domain.CategoryMDR:     "mdr_events",
	domain.CategoryDevice:  "devices",
	domain.CategoryText:    "event_texts",
	domain.CategoryPatient: "patients",
}

// The MDR master file is re-exported in full; everything else ships as
// non-overlapping per-period deltas.
var cumulativeCategories = map[domain.FileCategory]bool{
	domain.CategoryMDR: true,
}

var filePrefixes = map[domain.FileCategory][]string{
	domain.CategoryMDR:     {"mdrfoi"},
	domain.CategoryDevice:  {"foidev", "device"},
	domain.CategoryText:    {"foitext"},
	domain.CategoryPatient: {"patient"},
}
