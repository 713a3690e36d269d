package normalize

// FieldAliases maps each canonical field to the ordered list of source
// attribute names it may arrive under. The city has published the LRA
// inventory under several schemas over the years; first non-null match
// wins. Extend the lists here rather than adding conditionals to the
// normalizer.
var FieldAliases = map[string][]string{
	"parcelId":     {"HANDLE", "PARCEL_ID", "ParcelID", "PARCELID", "PIN"},
	"address":      {"FULL_ADDRESS", "FULLADDR", "SITEADDR", "PROP_ADD", "ADDRESS"},
	"neighborhood": {"NHD_NAME", "NBRHD_NAME", "NEIGHBORHOOD", "NHD_NUM_ST"},
	"ward":         {"WARD", "WARD20", "WARD_1", "WARD_NUM"},
	"zip":          {"ZIP", "ZIP_CODE", "ZIPCODE", "PROP_ZIP"},
	"sqft":         {"SQ_FT", "SQFT", "LOT_SQFT", "SQ_FEET"},
	"usage":        {"USAGE", "LAND_USE", "USE_CLASS", "LU_DESC"},
	"status":       {"STATUS", "LRA_STATUS", "PROP_STATUS", "CURR_STATUS"},
	"propertyType": {"PROP_TYPE", "PROPERTY_TYPE", "PRPTY_TYPE", "SITE_TYPE"},
	"objectId":     {"OBJECTID", "OBJECTID_1", "FID"},
}

// firstPresent returns the first attribute present under any of the alias
// names for the canonical field, or nil when every alias is absent or null.
func firstPresent(attrs map[string]interface{}, field string) interface{} {
	for _, alias := range FieldAliases[field] {
		if v, ok := attrs[alias]; ok && v != nil {
			return v
		}
	}
	return nil
}
