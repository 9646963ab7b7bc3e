package config

const (
	// MaxNodeNameLength is the maximum length for node names.
	// Limited to 255 to fit in PostgreSQL VARCHAR(255) and provide
	// reasonable UX (names should be short and descriptive).
	MaxNodeNameLength = 255

	// MaxAliasLength is the maximum length for content type and property aliases.
	// Aliases become XML element names in snapshots.
	MaxAliasLength = 100

	// MaxPropertiesPerVersion caps the property set of a single version.
	MaxPropertiesPerVersion = 200

	// MaxPropertyValueLength is the maximum length for a single property value.
	// Large bodies belong in the asset store, not inline.
	MaxPropertyValueLength = 1 << 20
)
